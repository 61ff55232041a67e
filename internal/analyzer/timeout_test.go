package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echovault/echovault/internal/model"
)

// hangingAnalyzer ignores its context and never returns on its own.
type hangingAnalyzer struct {
	HeuristicAnalyzer
	release chan struct{}
}

func (h *hangingAnalyzer) Classify(context.Context, string) (Classification, error) {
	<-h.release
	return Classification{EntryType: model.EntryTask}, nil
}

type hangingEmbedder struct{ release chan struct{} }

func (h *hangingEmbedder) Embed(context.Context, string) ([]float32, error) {
	<-h.release
	return []float32{1}, nil
}

func TestWithTimeout_TurnsHangIntoError(t *testing.T) {
	h := &hangingAnalyzer{release: make(chan struct{})}
	defer close(h.release)

	a := WithTimeout(h, 20*time.Millisecond)
	start := time.Now()
	_, err := a.Classify(context.Background(), "anything")
	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWithTimeout_PassesThrough(t *testing.T) {
	a := WithTimeout(NewHeuristicAnalyzer(), time.Second)
	res, err := a.Analyze(context.Background(), "great day", model.EntryReflection)
	require.NoError(t, err)
	assert.NotNil(t, res.MoodScore)
}

func TestEmbedderWithTimeout(t *testing.T) {
	h := &hangingEmbedder{release: make(chan struct{})}
	defer close(h.release)

	_, err := EmbedderWithTimeout(h, 20*time.Millisecond).Embed(context.Background(), "x")
	require.ErrorIs(t, err, ErrTimeout)
}

type panickingEmbedder struct{}

func (panickingEmbedder) Embed(context.Context, string) ([]float32, error) {
	var v []float32
	return []float32{v[3]}, nil
}

func TestEmbedderWithTimeout_PanicBecomesError(t *testing.T) {
	for _, d := range []time.Duration{0, time.Second} {
		_, err := EmbedderWithTimeout(panickingEmbedder{}, d).Embed(context.Background(), "x")
		require.ErrorIs(t, err, ErrPanic)
		assert.Contains(t, err.Error(), "embed")
	}
}
