// Package qdrant provides a driven.VectorIndex backed by a Qdrant collection.
// Points are keyed by record ID and compared by cosine distance.
package qdrant

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
	"github.com/custodia-labs/neurovault/internal/logger"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// Default configuration values.
const (
	DefaultAddr       = "localhost:6334"
	DefaultCollection = "neurovault"
)

// Config holds configuration for the Qdrant vector index.
type Config struct {
	// Addr is the gRPC host:port of the Qdrant server (default: localhost:6334).
	Addr string

	// Collection is the collection name (default: neurovault).
	Collection string

	// Dimensions is the vector size the collection is created with.
	Dimensions int
}

// VectorIndex stores record embeddings in Qdrant.
type VectorIndex struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dimensions  int
}

// New connects to Qdrant and creates the collection if it is missing.
func New(ctx context.Context, cfg Config) (*VectorIndex, error) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	idx, err := NewWithConn(ctx, conn, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return idx, nil
}

// NewWithConn builds an index over an existing connection, which it then owns.
func NewWithConn(ctx context.Context, conn *grpc.ClientConn, cfg Config) (*VectorIndex, error) {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: qdrant collection needs a positive dimension", domain.ErrInvalidInput)
	}

	idx := &VectorIndex{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  cfg.Collection,
		dimensions:  cfg.Dimensions,
	}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (v *VectorIndex) ensureCollection(ctx context.Context) error {
	exists, err := v.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: v.collection})
	if err != nil {
		return fmt.Errorf("%w: check collection %q: %v", domain.ErrVectorIndexUnavailable, v.collection, err)
	}
	if exists.GetResult().GetExists() {
		return nil
	}

	logger.Info("Creating Qdrant collection %q (%d dimensions)", v.collection, v.dimensions)
	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: pb.NewVectorsConfig(&pb.VectorParams{
			Size:     uint64(v.dimensions),
			Distance: pb.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: create collection %q: %v", domain.ErrVectorIndexUnavailable, v.collection, err)
	}
	return nil
}

// Upsert inserts or replaces the vector for a record.
func (v *VectorIndex) Upsert(ctx context.Context, recordID int64, embedding []float32) error {
	if recordID <= 0 {
		return fmt.Errorf("%w: record id %d", domain.ErrInvalidInput, recordID)
	}
	if len(embedding) != v.dimensions {
		return fmt.Errorf("%w: index has %d dimensions, vector has %d",
			domain.ErrDimensionMismatch, v.dimensions, len(embedding))
	}

	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           pb.PtrOf(true),
		Points: []*pb.PointStruct{{
			Id:      pb.NewIDNum(uint64(recordID)),
			Vectors: pb.NewVectors(embedding...),
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert %d: %w", recordID, err)
	}
	return nil
}

// Delete removes the vectors for the given records.
func (v *VectorIndex) Delete(ctx context.Context, recordIDs ...int64) error {
	if len(recordIDs) == 0 {
		return nil
	}
	_, err := v.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: v.collection,
		Wait:           pb.PtrOf(true),
		Points:         pb.NewPointsSelectorIDs(pointIDs(recordIDs)),
	})
	if err != nil {
		return fmt.Errorf("qdrant delete: %w", err)
	}
	return nil
}

// NearestNeighbors returns up to k hits by ascending cosine distance.
// Qdrant reports cosine similarity; distance is 1 - similarity.
func (v *VectorIndex) NearestNeighbors(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}
	resp, err := v.points.Search(ctx, &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         query,
		Limit:          uint64(k),
		WithPayload:    pb.NewWithPayload(false),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	hits := make([]driven.VectorHit, 0, len(resp.GetResult()))
	for _, pt := range resp.GetResult() {
		hits = append(hits, driven.VectorHit{
			RecordID: int64(pt.GetId().GetNum()),
			Distance: 1 - float64(pt.GetScore()),
		})
	}
	return hits, nil
}

// Lookup returns the stored vectors for the given records.
func (v *VectorIndex) Lookup(ctx context.Context, recordIDs []int64) ([]domain.EmbeddingEntry, error) {
	if len(recordIDs) == 0 {
		return []domain.EmbeddingEntry{}, nil
	}
	resp, err := v.points.Get(ctx, &pb.GetPoints{
		CollectionName: v.collection,
		Ids:            pointIDs(recordIDs),
		WithPayload:    pb.NewWithPayload(false),
		WithVectors:    pb.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant get: %w", err)
	}

	entries := make([]domain.EmbeddingEntry, 0, len(resp.GetResult()))
	for _, pt := range resp.GetResult() {
		entries = append(entries, domain.EmbeddingEntry{
			RecordID: int64(pt.GetId().GetNum()),
			Vector:   denseVector(pt.GetVectors().GetVector()),
		})
	}
	return entries, nil
}

// Close releases the gRPC connection.
func (v *VectorIndex) Close() error {
	return v.conn.Close()
}

func pointIDs(recordIDs []int64) []*pb.PointId {
	ids := make([]*pb.PointId, len(recordIDs))
	for i, id := range recordIDs {
		ids[i] = pb.NewIDNum(uint64(id))
	}
	return ids
}

// denseVector reads a vector from either the current or the legacy field.
func denseVector(out *pb.VectorOutput) []float32 {
	if dense := out.GetDense(); dense != nil {
		return dense.GetData()
	}
	return out.GetData() //nolint:staticcheck // servers before 1.14 only fill the legacy field
}
