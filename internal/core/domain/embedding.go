package domain

import (
	"fmt"
	"math"
)

// EmbeddingEntry is the vector stored for a single record.
type EmbeddingEntry struct {
	// RecordID is the owning record.
	RecordID int64

	// Vector is the embedding. Its length must match the index dimensionality.
	Vector []float32
}

// Validate checks the entry against the expected dimensionality.
// A dim of zero skips the length check.
func (e EmbeddingEntry) Validate(dim int) error {
	if len(e.Vector) == 0 {
		return fmt.Errorf("%w: record %d has an empty vector", ErrMalformedEmbedding, e.RecordID)
	}
	if dim > 0 && len(e.Vector) != dim {
		return fmt.Errorf("%w: record %d has %d dimensions, want %d",
			ErrMalformedEmbedding, e.RecordID, len(e.Vector), dim)
	}
	var norm float64
	for _, v := range e.Vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: record %d contains non-finite values", ErrMalformedEmbedding, e.RecordID)
		}
		norm += f * f
	}
	if norm == 0 {
		return fmt.Errorf("%w: record %d has zero magnitude", ErrMalformedEmbedding, e.RecordID)
	}
	return nil
}

// Cosine returns the cosine similarity of two vectors.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, fmt.Errorf("%w: zero magnitude vector", ErrMalformedEmbedding)
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
