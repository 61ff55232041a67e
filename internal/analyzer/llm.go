package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/openai"
	"charm.land/fantasy/providers/openrouter"
	"github.com/rs/zerolog"

	"github.com/echovault/echovault/internal/model"
)

// Completer sends a single prompt to a language model and returns the text reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// FantasyConfig selects the hosted model behind FantasyCompleter.
type FantasyConfig struct {
	Provider string // openai | anthropic | openrouter
	APIKey   string
	BaseURL  string
	Model    string
}

// FantasyCompleter is a Completer backed by charm.land/fantasy.
type FantasyCompleter struct {
	model fantasy.LanguageModel
	name  string
}

func NewFantasyCompleter(ctx context.Context, cfg FantasyConfig) (*FantasyCompleter, error) {
	var provider fantasy.Provider
	var err error

	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		provider, err = openai.New(opts...)
	case "anthropic":
		opts := []anthropic.Option{anthropic.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		provider, err = anthropic.New(opts...)
	case "openrouter":
		provider, err = openrouter.New(openrouter.WithAPIKey(cfg.APIKey))
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	lm, err := provider.LanguageModel(ctx, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("get language model: %w", err)
	}
	return &FantasyCompleter{model: lm, name: cfg.Provider}, nil
}

func (c *FantasyCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	agent := fantasy.NewAgent(c.model)
	result, err := agent.Generate(ctx, fantasy.AgentCall{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("%s generate: %w", c.name, err)
	}
	return result.Response.Content.Text(), nil
}

// LLMAnalyzer implements TextAnalyzer with JSON-returning prompts.
type LLMAnalyzer struct {
	llm Completer
	log zerolog.Logger
}

func NewLLMAnalyzer(llm Completer, log zerolog.Logger) *LLMAnalyzer {
	return &LLMAnalyzer{llm: llm, log: log.With().Str("component", "llm_analyzer").Logger()}
}

func (a *LLMAnalyzer) complete(ctx context.Context, op, prompt string) (string, error) {
	start := time.Now()
	out, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	a.log.Debug().Str("op", op).Dur("took", time.Since(start)).Int("reply_len", len(out)).Msg("llm call")
	return out, nil
}

func (a *LLMAnalyzer) Classify(ctx context.Context, text string) (Classification, error) {
	raw, err := a.complete(ctx, "classify", fmt.Sprintf(classifyPrompt, text))
	if err != nil {
		return Classification{}, err
	}
	c, err := ParseLenient[Classification](raw)
	if err != nil {
		return Classification{}, err
	}
	if !c.EntryType.Valid() {
		c.EntryType = model.EntryReflection
	}
	return c, nil
}

func (a *LLMAnalyzer) Analyze(ctx context.Context, text string, et model.EntryType) (Analysis, error) {
	raw, err := a.complete(ctx, "analyze", fmt.Sprintf(analyzePrompt, et, text))
	if err != nil {
		return Analysis{}, err
	}
	res, err := ParseLenient[Analysis](raw)
	if err != nil {
		return Analysis{}, err
	}
	res.MoodScore = clampMood(res.MoodScore)
	if et == model.EntryTask {
		res.MoodScore = nil
	}
	return res, nil
}

func (a *LLMAnalyzer) GenerateInsight(ctx context.Context, req InsightRequest) (*model.Insight, error) {
	if len(req.Related) == 0 && len(req.Recent) == 0 {
		return nil, nil
	}
	var sb strings.Builder
	writeEntries(&sb, "Related entries", req.Related)
	writeEntries(&sb, "Recent entries", req.Recent)
	fmt.Fprintf(&sb, "Total entries in journal: %d\n", len(req.All))

	raw, err := a.complete(ctx, "insight", fmt.Sprintf(insightPrompt, sb.String(), req.Text))
	if err != nil {
		return nil, err
	}
	ins, err := ParseLenient[model.Insight](raw)
	if err != nil {
		return nil, err
	}
	if !ins.Found {
		return nil, nil
	}
	return &ins, nil
}

func (a *LLMAnalyzer) ExtractEnhancedContext(ctx context.Context, text string, recent []*model.Entry) (*EnhancedContext, error) {
	var sb strings.Builder
	writeEntries(&sb, "Recent entries", recent)
	raw, err := a.complete(ctx, "enhanced_context", fmt.Sprintf(contextPrompt, sb.String(), text))
	if err != nil {
		return nil, err
	}
	ec, err := ParseLenient[EnhancedContext](raw)
	if err != nil {
		return nil, err
	}
	if len(ec.StructuredTags) == 0 && len(ec.TopicTags) == 0 && ec.ContinuesSituation == "" && ec.GoalUpdate == nil {
		return nil, nil
	}
	return &ec, nil
}

func (a *LLMAnalyzer) Answer(ctx context.Context, question string, entries []*model.Entry) (string, error) {
	var sb strings.Builder
	writeEntries(&sb, "Journal entries", entries)
	out, err := a.complete(ctx, "answer", fmt.Sprintf(answerPrompt, sb.String(), question))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func writeEntries(sb *strings.Builder, heading string, entries []*model.Entry) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s:\n", heading)
	for _, e := range entries {
		fmt.Fprintf(sb, "- [%s] (id=%s, tags=%s) %s\n",
			e.EffectiveDate.Format("2006-01-02"), e.ID, strings.Join(e.Tags, ","), e.Text)
	}
}

const classifyPrompt = `Classify this journal entry as one of: reflection, task, vent, mixed.
Extract any concrete tasks the writer intends to do.
Respond with JSON only: {"entryType": "...", "confidence": 0.0-1.0, "extractedTasks": ["..."]}

Entry:
%s`

const analyzePrompt = `Analyze this journal entry (type: %s).
Return JSON only with fields:
  "title": short title (max 6 words),
  "tags": lowercase topic tags,
  "moodScore": number 0-1 (0 = very low, 1 = very high) or null for tasks,
  "framework": "cbt" | "vent" | "celebration" | "task",
  "cbtBreakdown": {"automaticThought","distortion","challenge","alternativeThought"} when framework is cbt,
  "ventSupport", "celebration", "taskAcknowledgment": short supportive text where relevant.

Entry:
%s`

const insightPrompt = `You help a person notice patterns in their journal.
%s
New entry:
%s

If the new entry connects to earlier entries (recurring pattern, progress, callback),
respond with JSON {"found": true, "type": "pattern|progress|callback", "message": "...",
"followUpQuestions": ["..."]}. Otherwise respond {"found": false}.`

const contextPrompt = `Extract structured context from a journal entry.
%s
Entry:
%s

Respond with JSON only: {"structuredTags": ["@person:name", "@place:name", "@goal:name"],
"topicTags": ["..."], "continuesSituation": "id of a recent entry this continues, or empty",
"goalUpdate": {"tag": "@goal:name", "status": "progress|achieved|abandoned"} or null}`

const answerPrompt = `Answer the question using only these journal entries. Cite dates.
%s
Question: %s`
