package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echovault/echovault/internal/analyzer"
	"github.com/echovault/echovault/internal/model"
	"github.com/echovault/echovault/internal/relevance"
	"github.com/echovault/echovault/internal/store/memstore"
)

type fixedEmbedder struct {
	vec []float32
	err error
}

func (f fixedEmbedder) Embed(context.Context, string) ([]float32, error) { return f.vec, f.err }

type echoAnalyzer struct {
	analyzer.TextAnalyzer
	got []*model.Entry
	err error
}

func (a *echoAnalyzer) Answer(_ context.Context, q string, entries []*model.Entry) (string, error) {
	a.got = entries
	return "about " + q, a.err
}

func seed(t *testing.T) (*memstore.Store, map[string]string) {
	t.Helper()
	s := memstore.New()
	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	ids := map[string]string{}
	for i, tc := range []struct {
		name string
		vec  []float32
	}{
		{"sleep", []float32{1, 0}},
		{"work", []float32{0, 1}},
		{"sleep-again", []float32{0.9, 0.1}},
		{"none", nil},
	} {
		e, err := s.Entries().Create(context.Background(), &model.Entry{
			UserID: "u", Text: tc.name, CreatedAt: base.Add(time.Duration(i) * time.Hour), Embedding: tc.vec,
		})
		require.NoError(t, err)
		ids[tc.name] = e.ID
	}
	return s, ids
}

func TestAsk_UsesRankedContext(t *testing.T) {
	s, ids := seed(t)
	a := &echoAnalyzer{}
	svc := NewService(s, fixedEmbedder{vec: []float32{1, 0}}, a, relevance.Options{Threshold: relevance.Threshold(0.5)}, 2, zerolog.Nop())

	ans, err := svc.Ask(context.Background(), "u", "  how am I sleeping? ")
	require.NoError(t, err)
	assert.Equal(t, "about how am I sleeping?", ans.Text)
	assert.False(t, ans.FromRecent)
	assert.Equal(t, []string{ids["sleep"], ids["sleep-again"]}, ans.Sources)
	assert.Len(t, a.got, 2)
}

func TestAsk_FallsBackToRecent(t *testing.T) {
	for name, emb := range map[string]fixedEmbedder{
		"embed failure":    {err: errors.New("down")},
		"nothing relevant": {vec: []float32{-1, -1}},
	} {
		t.Run(name, func(t *testing.T) {
			s, ids := seed(t)
			svc := NewService(s, emb, &echoAnalyzer{}, relevance.Options{}, 2, zerolog.Nop())
			ans, err := svc.Ask(context.Background(), "u", "anything?")
			require.NoError(t, err)
			assert.True(t, ans.FromRecent)
			assert.Equal(t, []string{ids["none"], ids["sleep-again"]}, ans.Sources)
		})
	}
}

func TestAsk_Errors(t *testing.T) {
	s, _ := seed(t)
	svc := NewService(s, fixedEmbedder{vec: []float32{1, 0}}, &echoAnalyzer{err: errors.New("llm down")}, relevance.Options{}, 2, zerolog.Nop())

	_, err := svc.Ask(context.Background(), "u", "   ")
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.Ask(context.Background(), "u", "why?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm down")
}
