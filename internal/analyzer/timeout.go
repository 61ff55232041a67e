package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/echovault/echovault/internal/embeddings"
	"github.com/echovault/echovault/internal/model"
)

var (
	// ErrTimeout is returned when an external call does not settle within its bound.
	ErrTimeout = errors.New("analyzer: call timed out")
	// ErrPanic wraps a panic raised by a provider call.
	ErrPanic = errors.New("analyzer: call panicked")
)

// guarded calls fn and converts a panic into an ErrPanic error carrying the panic stack.
func guarded[T any](ctx context.Context, op string, fn func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v, err = zero, pkgerrors.WithStack(fmt.Errorf("%s: %w: %v", op, ErrPanic, r))
		}
	}()
	return fn(ctx)
}

// bounded runs fn with a deadline and returns ErrTimeout when it has not settled by then,
// even if fn ignores its context. A panic in fn comes back as ErrPanic.
func bounded[T any](ctx context.Context, d time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return guarded(ctx, op, fn)
	}
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := guarded(cctx, op, fn)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-cctx.Done():
		var zero T
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%s: %w", op, ErrTimeout)
		}
		return zero, cctx.Err()
	}
}

type timeoutAnalyzer struct {
	next TextAnalyzer
	d    time.Duration
}

// WithTimeout bounds every call on a.
func WithTimeout(a TextAnalyzer, d time.Duration) TextAnalyzer {
	return &timeoutAnalyzer{next: a, d: d}
}

func (t *timeoutAnalyzer) Classify(ctx context.Context, text string) (Classification, error) {
	return bounded(ctx, t.d, "classify", func(ctx context.Context) (Classification, error) {
		return t.next.Classify(ctx, text)
	})
}

func (t *timeoutAnalyzer) Analyze(ctx context.Context, text string, et model.EntryType) (Analysis, error) {
	return bounded(ctx, t.d, "analyze", func(ctx context.Context) (Analysis, error) {
		return t.next.Analyze(ctx, text, et)
	})
}

func (t *timeoutAnalyzer) GenerateInsight(ctx context.Context, req InsightRequest) (*model.Insight, error) {
	return bounded(ctx, t.d, "insight", func(ctx context.Context) (*model.Insight, error) {
		return t.next.GenerateInsight(ctx, req)
	})
}

func (t *timeoutAnalyzer) ExtractEnhancedContext(ctx context.Context, text string, recent []*model.Entry) (*EnhancedContext, error) {
	return bounded(ctx, t.d, "enhanced context", func(ctx context.Context) (*EnhancedContext, error) {
		return t.next.ExtractEnhancedContext(ctx, text, recent)
	})
}

func (t *timeoutAnalyzer) Answer(ctx context.Context, question string, entries []*model.Entry) (string, error) {
	return bounded(ctx, t.d, "answer", func(ctx context.Context) (string, error) {
		return t.next.Answer(ctx, question, entries)
	})
}

type timeoutEmbedder struct {
	next embeddings.Provider
	d    time.Duration
}

// EmbedderWithTimeout bounds every Embed call on p.
func EmbedderWithTimeout(p embeddings.Provider, d time.Duration) embeddings.Provider {
	return &timeoutEmbedder{next: p, d: d}
}

func (t *timeoutEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return bounded(ctx, t.d, "embed", func(ctx context.Context) ([]float32, error) {
		return t.next.Embed(ctx, text)
	})
}
