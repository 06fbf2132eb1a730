// Package embed turns prompt text into fixed-dimension normalized vectors.
// The model itself is an external collaborator; this package only defines
// the contract and a client for OpenAI-compatible embedding endpoints.
package embed

import (
	"context"
	"math"
)

// Embedder converts text into an L2-normalized vector of fixed dimension.
// Implementations must be deterministic for identical input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimension is the vector length every call to Embed returns. It must
	// match the dimension the ANN indexes are constructed with.
	Dimension() int
}

// NormalizeL2 scales the vector to unit Euclidean length in place and
// returns it. The zero vector is returned unchanged.
func NormalizeL2(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
