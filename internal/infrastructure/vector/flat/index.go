// Package flat is an exhaustive in-memory L2 index. Search is exact, which
// matches the corpus sizes an FAQ holds.
package flat

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/vecgo/distance"

	"github.com/kirillkom/faq-assistant/internal/core/domain"
)

var ErrEmptyIndex = errors.New("flat index is empty")

type Index struct {
	dimension int
	dist      distance.Func
	vectors   [][]float32
}

func New() (*Index, error) {
	dist, err := distance.Provider(distance.MetricL2)
	if err != nil {
		return nil, fmt.Errorf("resolve l2 distance: %w", err)
	}
	return &Index{dist: dist}, nil
}

// Add appends vectors in order; position i maps to corpus entry Len()+i.
// Must not run concurrently with Nearest.
func (ix *Index) Add(_ context.Context, vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("vector %d is empty", i)
		}
		if ix.dimension == 0 {
			ix.dimension = len(v)
		}
		if len(v) != ix.dimension {
			return fmt.Errorf("vector %d dimension mismatch: expected %d, got %d", i, ix.dimension, len(v))
		}
		cp := make([]float32, len(v))
		copy(cp, v)
		ix.vectors = append(ix.vectors, cp)
	}
	return nil
}

// Nearest returns the entry with the smallest squared L2 distance; ties keep
// the lowest position.
func (ix *Index) Nearest(ctx context.Context, query []float32) (domain.Neighbor, error) {
	if len(ix.vectors) == 0 {
		return domain.Neighbor{}, ErrEmptyIndex
	}
	if len(query) != ix.dimension {
		return domain.Neighbor{}, fmt.Errorf("query dimension mismatch: expected %d, got %d", ix.dimension, len(query))
	}
	if err := ctx.Err(); err != nil {
		return domain.Neighbor{}, err
	}

	best := domain.Neighbor{Index: 0, Distance: float64(ix.dist(query, ix.vectors[0]))}
	for i := 1; i < len(ix.vectors); i++ {
		d := float64(ix.dist(query, ix.vectors[i]))
		if d < best.Distance {
			best = domain.Neighbor{Index: i, Distance: d}
		}
	}
	return best, nil
}

func (ix *Index) Len() int {
	return len(ix.vectors)
}
