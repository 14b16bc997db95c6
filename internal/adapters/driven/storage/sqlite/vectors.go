package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
	"github.com/custodia-labs/neurovault/internal/logger"
)

const metaDimensions = "embedding_dimensions"

// vectorIndex implements driven.VectorIndex with an exhaustive cosine scan.
// The vault is personal-scale, so a full scan stays fast and exact.
type vectorIndex struct {
	store *Store
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

// Upsert stores the vector for a record. The first vector fixes the
// dimensionality of the index; later vectors must match it.
func (v *vectorIndex) Upsert(ctx context.Context, recordID int64, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("%w: empty vector", domain.ErrInvalidInput)
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting vector upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var stored string
	err = tx.QueryRowContext(ctx, "SELECT value FROM vector_meta WHERE key = ?", metaDimensions).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, "INSERT INTO vector_meta (key, value) VALUES (?, ?)",
			metaDimensions, strconv.Itoa(len(embedding))); err != nil {
			return fmt.Errorf("recording dimensions: %w", err)
		}
	case err != nil:
		return fmt.Errorf("reading dimensions: %w", err)
	default:
		dim, convErr := strconv.Atoi(stored)
		if convErr != nil {
			return fmt.Errorf("parsing stored dimensions %q: %w", stored, convErr)
		}
		if dim != len(embedding) {
			return fmt.Errorf("%w: index has %d dimensions, vector has %d",
				domain.ErrDimensionMismatch, dim, len(embedding))
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO embeddings (record_id, vector, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(record_id) DO UPDATE SET vector = excluded.vector, updated_at = excluded.updated_at
	`, recordID, float32SliceToBytes(embedding), toUnix(time.Now()))
	if err != nil {
		return fmt.Errorf("saving embedding: %w", mapConstraintError(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing embedding: %w", err)
	}
	return nil
}

// Delete removes vectors for the given records.
func (v *vectorIndex) Delete(ctx context.Context, recordIDs ...int64) error {
	if len(recordIDs) == 0 {
		return nil
	}
	_, err := v.store.db.ExecContext(ctx,
		"DELETE FROM embeddings WHERE record_id IN ("+placeholders(len(recordIDs))+")",
		int64Args(recordIDs)...)
	if err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}
	return nil
}

// NearestNeighbors returns the k closest vectors by cosine distance.
// Rows that cannot be decoded or compared are skipped.
func (v *vectorIndex) NearestNeighbors(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := v.store.db.QueryContext(ctx, "SELECT record_id, vector FROM embeddings")
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var hits []driven.VectorHit
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		vec, err := bytesToFloat32Slice(blob)
		if err != nil {
			logger.Warn("sqlite: skipping embedding for record %d: %v", id, err)
			continue
		}
		sim, err := domain.Cosine(query, vec)
		if err != nil {
			logger.Warn("sqlite: skipping embedding for record %d: %v", id, err)
			continue
		}
		hits = append(hits, driven.VectorHit{RecordID: id, Distance: 1 - sim})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Lookup returns stored vectors. A blob that cannot be decoded is returned
// with a nil vector so callers can report it.
func (v *vectorIndex) Lookup(ctx context.Context, recordIDs []int64) ([]domain.EmbeddingEntry, error) {
	if len(recordIDs) == 0 {
		return nil, nil
	}

	rows, err := v.store.db.QueryContext(ctx,
		"SELECT record_id, vector FROM embeddings WHERE record_id IN ("+placeholders(len(recordIDs))+")",
		int64Args(recordIDs)...)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var entries []domain.EmbeddingEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		vec, err := bytesToFloat32Slice(blob)
		if err != nil {
			vec = nil
		}
		entries = append(entries, domain.EmbeddingEntry{RecordID: id, Vector: vec})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}
	return entries, nil
}

// Close is a no-op; the connection belongs to the Store.
func (v *vectorIndex) Close() error {
	return nil
}
