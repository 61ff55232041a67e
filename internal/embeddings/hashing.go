package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Hashing is an offline Provider that maps tokens into a fixed number of buckets.
// Texts sharing words land close together under cosine similarity, which is enough
// for the local build and for tests.
type Hashing struct {
	Dim int
}

// NewHashing returns a hashing embedder with dim buckets (256 when dim <= 0).
func NewHashing(dim int) *Hashing {
	if dim <= 0 {
		dim = 256
	}
	return &Hashing{Dim: dim}
}

func (h *Hashing) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return nil, ErrEmptyText
	}
	vec := make([]float32, h.Dim)
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		vec[int(f.Sum32())%h.Dim] += 1
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return nil, ErrEmptyText
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec, nil
}
