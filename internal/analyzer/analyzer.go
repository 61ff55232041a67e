// Package analyzer defines the text-analysis collaborator used by the entry pipeline,
// maintenance jobs and chat: classification, mood/CBT analysis, insight generation,
// enhanced-context extraction and question answering.
package analyzer

import (
	"context"

	"github.com/echovault/echovault/internal/model"
)

// TextAnalyzer is pure request/response; implementations hold no per-entry state.
type TextAnalyzer interface {
	Classify(ctx context.Context, text string) (Classification, error)
	Analyze(ctx context.Context, text string, entryType model.EntryType) (Analysis, error)
	// GenerateInsight returns nil when no insight was found.
	GenerateInsight(ctx context.Context, req InsightRequest) (*model.Insight, error)
	// ExtractEnhancedContext returns nil when nothing could be extracted.
	ExtractEnhancedContext(ctx context.Context, text string, recent []*model.Entry) (*EnhancedContext, error)
	// Answer responds to a chat question grounded on the supplied entries.
	Answer(ctx context.Context, question string, entries []*model.Entry) (string, error)
}

// Classification is the outcome of Classify.
type Classification struct {
	EntryType      model.EntryType `json:"entryType"`
	Confidence     float64         `json:"confidence"`
	ExtractedTasks []string        `json:"extractedTasks,omitempty"`
}

// Analysis is the outcome of Analyze. MoodScore is nil for tasks.
type Analysis struct {
	Title              string              `json:"title"`
	Tags               []string            `json:"tags"`
	MoodScore          *float64            `json:"moodScore"`
	Framework          string              `json:"framework,omitempty"`
	CBTBreakdown       *model.CBTBreakdown `json:"cbtBreakdown,omitempty"`
	VentSupport        string              `json:"ventSupport,omitempty"`
	Celebration        string              `json:"celebration,omitempty"`
	TaskAcknowledgment string              `json:"taskAcknowledgment,omitempty"`
}

// Model converts the result into the persisted analysis record.
func (a Analysis) Model() *model.Analysis {
	return &model.Analysis{
		Framework:          a.Framework,
		CBTBreakdown:       a.CBTBreakdown,
		VentSupport:        a.VentSupport,
		Celebration:        a.Celebration,
		TaskAcknowledgment: a.TaskAcknowledgment,
	}
}

// InsightRequest carries the new entry and the retrieval context around it.
type InsightRequest struct {
	Text    string
	Related []*model.Entry
	Recent  []*model.Entry
	All     []*model.Entry
}

// EnhancedContext is structured context pulled out of an entry.
type EnhancedContext struct {
	StructuredTags     []string          `json:"structuredTags"`
	TopicTags          []string          `json:"topicTags"`
	ContinuesSituation string            `json:"continuesSituation,omitempty"`
	GoalUpdate         *model.GoalUpdate `json:"goalUpdate,omitempty"`
}

// clampMood keeps a mood score inside [0,1].
func clampMood(v *float64) *float64 {
	if v == nil {
		return nil
	}
	x := *v
	if x < 0 {
		x = 0
	}
	if x > 1 {
		x = 1
	}
	return &x
}
