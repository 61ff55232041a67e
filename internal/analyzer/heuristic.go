package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/tsawler/prose/v3"

	"github.com/echovault/echovault/internal/model"
)

// HeuristicAnalyzer is an offline TextAnalyzer built from word lists and prose NER.
// It backs the local build target and keeps the pipeline usable without an API key.
type HeuristicAnalyzer struct{}

func NewHeuristicAnalyzer() *HeuristicAnalyzer { return &HeuristicAnalyzer{} }

var (
	taskMarkers = []string{"need to", "have to", "must ", "todo", "to-do", "remind me", "don't forget", "should call", "buy ", "schedule "}
	ventMarkers = []string{"ugh", "hate", "so angry", "fed up", "sick of", "furious", "can't stand", "annoyed"}

	positiveWords = wordSet("happy", "grateful", "great", "good", "calm", "proud", "excited", "love", "joy",
		"relaxed", "peaceful", "win", "won", "finally", "better", "fun", "thankful", "energized")
	negativeWords = wordSet("sad", "angry", "tired", "anxious", "worried", "stressed", "lonely", "hate",
		"awful", "terrible", "bad", "upset", "hurt", "exhausted", "overwhelmed", "frustrated", "ugh", "cry")

	distortions = []struct {
		words []string
		name  string
	}{
		{[]string{"always", "never", "everyone", "nobody", "nothing"}, "overgeneralization"},
		{[]string{"worst", "disaster", "ruined", "catastrophe"}, "catastrophizing"},
		{[]string{"should", "must"}, "should statements"},
	}

	stopWords = wordSet("the", "and", "that", "this", "with", "have", "from", "they", "about", "were", "been",
		"just", "really", "today", "what", "when", "then", "than", "there", "their", "would", "could", "feel",
		"felt", "feeling", "very", "much", "some", "into", "because", "after", "before", "again", "also", "still",
		"need", "want", "going", "didn't", "don't", "can't", "it's", "i'm", "myself", "your", "will")
)

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// keywords returns up to n frequent content words, most frequent first.
func keywords(text string, n int) []string {
	counts := map[string]int{}
	for _, w := range words(text) {
		if len(w) < 4 || stopWords[w] {
			continue
		}
		counts[w]++
	}
	out := make([]string, 0, len(counts))
	for w := range counts {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func sentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool { return r == '.' || r == '!' || r == '?' || r == '\n' })
	out := parts[:0]
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (h *HeuristicAnalyzer) Classify(ctx context.Context, text string) (Classification, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}
	lower := strings.ToLower(text)
	var tasks []string
	for _, s := range sentences(text) {
		if containsAny(strings.ToLower(s)+" ", taskMarkers) {
			tasks = append(tasks, s)
		}
	}
	isVent := containsAny(lower, ventMarkers) || strings.Count(text, "!") >= 3
	reflective := len(words(text)) > 25

	switch {
	case len(tasks) > 0 && (isVent || reflective):
		return Classification{EntryType: model.EntryMixed, Confidence: 0.6, ExtractedTasks: tasks}, nil
	case len(tasks) > 0:
		return Classification{EntryType: model.EntryTask, Confidence: 0.8, ExtractedTasks: tasks}, nil
	case isVent:
		return Classification{EntryType: model.EntryVent, Confidence: 0.7}, nil
	default:
		return Classification{EntryType: model.EntryReflection, Confidence: 0.6}, nil
	}
}

func moodOf(ws []string) float64 {
	score := 0.5
	for _, w := range ws {
		if positiveWords[w] {
			score += 0.1
		}
		if negativeWords[w] {
			score -= 0.1
		}
	}
	return *clampMood(&score)
}

func (h *HeuristicAnalyzer) Analyze(ctx context.Context, text string, et model.EntryType) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	ws := words(text)
	res := Analysis{Title: titleFrom(text), Tags: keywords(text, 3)}

	if et == model.EntryTask {
		res.Framework = "task"
		res.TaskAcknowledgment = "Noted. One step at a time."
		return res, nil
	}

	mood := moodOf(ws)
	res.MoodScore = &mood
	switch {
	case et == model.EntryVent:
		res.Framework = "vent"
		res.VentSupport = "That sounds really frustrating. It makes sense to let it out."
	case mood >= 0.7:
		res.Framework = "celebration"
		res.Celebration = "This sounds like a good moment worth holding on to."
	default:
		res.Framework = "cbt"
		if mood < 0.5 {
			res.CBTBreakdown = cbtBreakdown(text, ws)
		}
	}
	return res, nil
}

func cbtBreakdown(text string, ws []string) *model.CBTBreakdown {
	set := wordSet(ws...)
	for _, d := range distortions {
		for _, w := range d.words {
			if set[w] {
				return &model.CBTBreakdown{
					AutomaticThought:   firstSentence(text),
					Distortion:         d.name,
					Challenge:          fmt.Sprintf("Is it really true that %q applies here?", w),
					AlternativeThought: "This is one hard moment, not the whole picture.",
				}
			}
		}
	}
	return nil
}

func firstSentence(text string) string {
	if s := sentences(text); len(s) > 0 {
		return s[0]
	}
	return strings.TrimSpace(text)
}

func titleFrom(text string) string {
	ws := strings.Fields(firstSentence(text))
	if len(ws) > 6 {
		ws = ws[:6]
	}
	return strings.Join(ws, " ")
}

func (h *HeuristicAnalyzer) GenerateInsight(ctx context.Context, req InsightRequest) (*model.Insight, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	topics := keywords(req.Text, 5)
	if len(topics) == 0 || len(req.Related) == 0 {
		return nil, nil
	}
	best, hits := "", 0
	for _, t := range topics {
		n := 0
		for _, e := range req.Related {
			if hasTag(e, t) || strings.Contains(strings.ToLower(e.Text), t) {
				n++
			}
		}
		if n > hits {
			best, hits = t, n
		}
	}
	if hits == 0 {
		return nil, nil
	}
	return &model.Insight{
		Found:   true,
		Type:    "pattern",
		Message: fmt.Sprintf("You've written about %s %d time(s) before.", best, hits),
		FollowUpQuestions: []string{
			fmt.Sprintf("What has changed about %s since you last wrote about it?", best),
		},
	}, nil
}

func hasTag(e *model.Entry, tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func entityTag(label, text string) string {
	name := strings.ToLower(strings.Join(strings.Fields(text), "-"))
	if name == "" {
		return ""
	}
	switch strings.ToUpper(label) {
	case "PERSON":
		return "@person:" + name
	case "GPE", "LOC", "FAC":
		return "@place:" + name
	case "ORG":
		return "@org:" + name
	case "EVENT":
		return "@event:" + name
	default:
		return ""
	}
}

func (h *HeuristicAnalyzer) ExtractEnhancedContext(ctx context.Context, text string, recent []*model.Entry) (*EnhancedContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ec := &EnhancedContext{TopicTags: keywords(text, 3)}

	doc, err := prose.NewDocument(text)
	if err == nil {
		seen := map[string]bool{}
		for _, ent := range doc.Entities() {
			if tag := entityTag(ent.Label, ent.Text); tag != "" && !seen[tag] {
				seen[tag] = true
				ec.StructuredTags = append(ec.StructuredTags, tag)
			}
		}
	}

	lower := strings.ToLower(text)
	if idx := strings.Index(lower, "my goal"); idx != -1 {
		rest := keywords(lower[idx+len("my goal"):], 1)
		if len(rest) == 1 {
			tag := "@goal:" + rest[0]
			status := "progress"
			if strings.Contains(lower, "achieved") || strings.Contains(lower, "finally") {
				status = "achieved"
			}
			ec.GoalUpdate = &model.GoalUpdate{Tag: tag, Status: status}
			ec.StructuredTags = append(ec.StructuredTags, tag)
		}
	}

	for _, e := range recent {
		for _, t := range ec.TopicTags {
			if hasTag(e, t) {
				ec.ContinuesSituation = e.ID
				break
			}
		}
		if ec.ContinuesSituation != "" {
			break
		}
	}

	if len(ec.StructuredTags) == 0 && len(ec.TopicTags) == 0 && ec.ContinuesSituation == "" && ec.GoalUpdate == nil {
		return nil, nil
	}
	return ec, nil
}

func (h *HeuristicAnalyzer) Answer(ctx context.Context, question string, entries []*model.Entry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "I couldn't find anything in your journal about that yet.", nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Here is what your journal says (%d entries):\n", len(entries))
	for _, e := range entries {
		title := e.Title
		if title == "" {
			title = titleFrom(e.Text)
		}
		fmt.Fprintf(&sb, "- %s: %s\n", e.EffectiveDate.Format("Jan 2, 2006"), title)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
