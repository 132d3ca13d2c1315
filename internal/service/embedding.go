package service

import (
	"context"
	"time"

	"github.com/voidreamer/merrino-memory/internal/domain"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// generateEmbedding calls the provider under a bounded timeout and wraps
// failures in the upstream error code, so callers (and HTTP clients) can tell
// a provider outage from their own bad input.
func generateEmbedding(ctx context.Context, client EmbeddingClient, timeout time.Duration, text string) ([]float32, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	embedding, err := client.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "embedding provider unavailable", err)
	}

	return embedding, nil
}
