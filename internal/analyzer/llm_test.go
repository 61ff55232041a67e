package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echovault/echovault/internal/model"
)

type scriptedCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (s *scriptedCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

func TestLLMAnalyzer_Classify(t *testing.T) {
	c := &scriptedCompleter{reply: "```json\n{\"entryType\":\"vent\",\"confidence\":0.9}\n```"}
	a := NewLLMAnalyzer(c, zerolog.Nop())

	res, err := a.Classify(context.Background(), "so annoyed")
	require.NoError(t, err)
	assert.Equal(t, model.EntryVent, res.EntryType)
	assert.Contains(t, c.prompts[0], "so annoyed")
}

func TestLLMAnalyzer_ClassifyUnknownTypeDefaultsToReflection(t *testing.T) {
	a := NewLLMAnalyzer(&scriptedCompleter{reply: `{"entryType":"poem","confidence":0.4}`}, zerolog.Nop())
	res, err := a.Classify(context.Background(), "roses are red")
	require.NoError(t, err)
	assert.Equal(t, model.EntryReflection, res.EntryType)
}

func TestLLMAnalyzer_AnalyzeClampsMood(t *testing.T) {
	a := NewLLMAnalyzer(&scriptedCompleter{reply: `{"title":"t","tags":["x"],"moodScore":1.7}`}, zerolog.Nop())
	res, err := a.Analyze(context.Background(), "text", model.EntryReflection)
	require.NoError(t, err)
	require.NotNil(t, res.MoodScore)
	assert.Equal(t, 1.0, *res.MoodScore)
}

func TestLLMAnalyzer_AnalyzeTaskHasNoMood(t *testing.T) {
	a := NewLLMAnalyzer(&scriptedCompleter{reply: `{"title":"t","moodScore":0.2}`}, zerolog.Nop())
	res, err := a.Analyze(context.Background(), "buy milk", model.EntryTask)
	require.NoError(t, err)
	assert.Nil(t, res.MoodScore)
}

func TestLLMAnalyzer_ParseFailure(t *testing.T) {
	a := NewLLMAnalyzer(&scriptedCompleter{reply: "sorry, I can't help"}, zerolog.Nop())
	_, err := a.Analyze(context.Background(), "text", model.EntryReflection)
	require.ErrorIs(t, err, ErrParse)
}

func TestLLMAnalyzer_CompleterError(t *testing.T) {
	boom := errors.New("boom")
	a := NewLLMAnalyzer(&scriptedCompleter{err: boom}, zerolog.Nop())
	_, err := a.Classify(context.Background(), "text")
	require.ErrorIs(t, err, boom)
}

func TestLLMAnalyzer_InsightNotFound(t *testing.T) {
	c := &scriptedCompleter{reply: `{"found":false}`}
	a := NewLLMAnalyzer(c, zerolog.Nop())

	ins, err := a.GenerateInsight(context.Background(), InsightRequest{
		Text:    "new",
		Related: []*model.Entry{{ID: "old", Text: "older entry"}},
	})
	require.NoError(t, err)
	assert.Nil(t, ins)
	assert.True(t, strings.Contains(c.prompts[0], "older entry"))
}

func TestLLMAnalyzer_InsightSkippedWithoutContext(t *testing.T) {
	c := &scriptedCompleter{}
	ins, err := NewLLMAnalyzer(c, zerolog.Nop()).GenerateInsight(context.Background(), InsightRequest{Text: "new"})
	require.NoError(t, err)
	assert.Nil(t, ins)
	assert.Empty(t, c.prompts)
}
