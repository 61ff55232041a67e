// Package embeddings produces vector representations of entry text for relevance ranking.
package embeddings

import (
	"context"
	"errors"
)

// Provider produces vector representations for text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrEmptyText is returned when there is nothing to embed.
var ErrEmptyText = errors.New("embeddings: empty text")
