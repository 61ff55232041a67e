package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echovault/echovault/internal/model"
)

func TestHeuristicClassify(t *testing.T) {
	h := NewHeuristicAnalyzer()
	ctx := context.Background()

	c, err := h.Classify(ctx, "Need to buy milk. Remind me to call the dentist.")
	require.NoError(t, err)
	assert.Equal(t, model.EntryTask, c.EntryType)
	assert.Len(t, c.ExtractedTasks, 2)

	c, err = h.Classify(ctx, "Ugh, I am so fed up with the commute")
	require.NoError(t, err)
	assert.Equal(t, model.EntryVent, c.EntryType)

	c, err = h.Classify(ctx, "Spent the evening thinking about where I want to be next year")
	require.NoError(t, err)
	assert.Equal(t, model.EntryReflection, c.EntryType)
}

func TestHeuristicAnalyze_Mood(t *testing.T) {
	h := NewHeuristicAnalyzer()
	ctx := context.Background()

	low, err := h.Analyze(ctx, "I feel sad and tired and anxious. Everything is awful.", model.EntryReflection)
	require.NoError(t, err)
	require.NotNil(t, low.MoodScore)
	assert.Less(t, *low.MoodScore, 0.3)
	assert.Equal(t, "cbt", low.Framework)

	high, err := h.Analyze(ctx, "So happy and proud, a great day with friends", model.EntryReflection)
	require.NoError(t, err)
	require.NotNil(t, high.MoodScore)
	assert.GreaterOrEqual(t, *high.MoodScore, 0.7)
	assert.Equal(t, "celebration", high.Framework)

	task, err := h.Analyze(ctx, "Need to file taxes", model.EntryTask)
	require.NoError(t, err)
	assert.Nil(t, task.MoodScore)
	assert.Equal(t, "task", task.Framework)
}

func TestHeuristicAnalyze_CBTDistortion(t *testing.T) {
	res, err := NewHeuristicAnalyzer().Analyze(context.Background(),
		"I always mess things up. I feel bad.", model.EntryReflection)
	require.NoError(t, err)
	require.NotNil(t, res.CBTBreakdown)
	assert.Equal(t, "overgeneralization", res.CBTBreakdown.Distortion)
	assert.Equal(t, "I always mess things up", res.CBTBreakdown.AutomaticThought)
}

func TestHeuristicInsight(t *testing.T) {
	h := NewHeuristicAnalyzer()
	related := []*model.Entry{
		{ID: "e1", Text: "Long run this morning", Tags: []string{"running"}},
		{ID: "e2", Text: "Skipped running again"},
	}
	ins, err := h.GenerateInsight(context.Background(), InsightRequest{Text: "Went running by the lake, running felt easy", Related: related})
	require.NoError(t, err)
	require.NotNil(t, ins)
	assert.True(t, ins.Found)
	assert.Contains(t, ins.Message, "running")

	none, err := h.GenerateInsight(context.Background(), InsightRequest{Text: "Went running"})
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestHeuristicEnhancedContext(t *testing.T) {
	recent := []*model.Entry{{ID: "prev", Tags: []string{"marathon"}}}
	ec, err := NewHeuristicAnalyzer().ExtractEnhancedContext(context.Background(),
		"My goal marathon training is on track, marathon in May.", recent)
	require.NoError(t, err)
	require.NotNil(t, ec)
	assert.Contains(t, ec.TopicTags, "marathon")
	assert.Equal(t, "prev", ec.ContinuesSituation)
	require.NotNil(t, ec.GoalUpdate)
	assert.Equal(t, "@goal:marathon", ec.GoalUpdate.Tag)
	assert.Equal(t, "progress", ec.GoalUpdate.Status)
}

func TestHeuristicAnswer(t *testing.T) {
	h := NewHeuristicAnalyzer()
	out, err := h.Answer(context.Background(), "how was May?", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "couldn't find")

	day := time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC)
	out, err = h.Answer(context.Background(), "how was May?", []*model.Entry{{Title: "Race day", EffectiveDate: day}})
	require.NoError(t, err)
	assert.Contains(t, out, "May 3, 2026: Race day")
}
