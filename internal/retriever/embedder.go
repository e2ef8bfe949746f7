package retriever

import (
	"context"
	"errors"
)

var (
	// ErrQuotaExceeded is returned when the embedding provider rejects a call
	// for rate or quota reasons.
	ErrQuotaExceeded = errors.New("embedding quota exceeded")
	ErrEmbedding     = errors.New("embedding failed")
)

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
