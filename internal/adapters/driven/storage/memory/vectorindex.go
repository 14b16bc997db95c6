package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is an in-memory implementation of driven.VectorIndex.
// Search is an exhaustive cosine scan.
type VectorIndex struct {
	mu         sync.RWMutex
	dimensions int
	vectors    map[int64][]float32
}

// NewVectorIndex creates a new in-memory vector index.
// A dimensions of zero accepts the size of the first vector.
func NewVectorIndex(dimensions int) *VectorIndex {
	return &VectorIndex{
		dimensions: dimensions,
		vectors:    make(map[int64][]float32),
	}
}

// Upsert stores the vector for a record.
func (v *VectorIndex) Upsert(_ context.Context, recordID int64, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("%w: empty vector", domain.ErrInvalidInput)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.dimensions == 0 {
		v.dimensions = len(embedding)
	}
	if len(embedding) != v.dimensions {
		return fmt.Errorf("%w: index has %d dimensions, vector has %d",
			domain.ErrDimensionMismatch, v.dimensions, len(embedding))
	}
	v.vectors[recordID] = slices.Clone(embedding)
	return nil
}

// Put stores a vector without validation. Useful for simulating corrupt entries.
func (v *VectorIndex) Put(recordID int64, embedding []float32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vectors[recordID] = embedding
}

// Delete removes vectors.
func (v *VectorIndex) Delete(_ context.Context, recordIDs ...int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, id := range recordIDs {
		delete(v.vectors, id)
	}
	return nil
}

// NearestNeighbors returns the k closest vectors by cosine distance.
func (v *VectorIndex) NearestNeighbors(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	hits := make([]driven.VectorHit, 0, len(v.vectors))
	for id, vec := range v.vectors {
		sim, err := domain.Cosine(query, vec)
		if err != nil {
			continue
		}
		hits = append(hits, driven.VectorHit{RecordID: id, Distance: 1 - sim})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].RecordID < hits[j].RecordID
	})
	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Lookup returns stored vectors for the given records.
func (v *VectorIndex) Lookup(_ context.Context, recordIDs []int64) ([]domain.EmbeddingEntry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var entries []domain.EmbeddingEntry
	for _, id := range recordIDs {
		if vec, ok := v.vectors[id]; ok {
			entries = append(entries, domain.EmbeddingEntry{RecordID: id, Vector: slices.Clone(vec)})
		}
	}
	return entries, nil
}

// Len returns the number of stored vectors.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.vectors)
}

// Close releases resources.
func (v *VectorIndex) Close() error {
	return nil
}
