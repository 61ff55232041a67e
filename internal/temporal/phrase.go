package temporal

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/echovault/echovault/internal/model"
)

// PhraseDetector recognises common English relative-date phrases.
type PhraseDetector struct{}

func NewPhraseDetector() *PhraseDetector { return &PhraseDetector{} }

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
}

var numberWords = map[string]int{"two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "a couple of": 2, "a few": 3}

const weekdayAlt = `(sunday|monday|tuesday|wednesday|thursday|friday|saturday)`

type pastRule struct {
	re         *regexp.Regexp
	confidence float64
	daysBack   func(m []string, now time.Time) int
}

var pastRules = []pastRule{
	{regexp.MustCompile(`(?i)\byesterday\b`), 0.95, func([]string, time.Time) int { return 1 }},
	{regexp.MustCompile(`(?i)\blast night\b`), 0.9, func([]string, time.Time) int { return 1 }},
	{regexp.MustCompile(`(?i)\b(\d+|two|three|four|five|six|a couple of|a few) days ago\b`), 0.85, func(m []string, _ time.Time) int {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
		return numberWords[strings.ToLower(m[1])]
	}},
	{regexp.MustCompile(`(?i)\blast ` + weekdayAlt + `\b`), 0.75, func(m []string, now time.Time) int {
		back := (int(now.Weekday()) - int(weekdays[strings.ToLower(m[1])]) + 7) % 7
		if back == 0 {
			back = 7
		}
		return back
	}},
	{regexp.MustCompile(`(?i)\bthe other day\b`), 0.55, func([]string, time.Time) int { return 2 }},
	{regexp.MustCompile(`(?i)\blast week\b`), 0.5, func([]string, time.Time) int { return 7 }},
}

type futureRule struct {
	re        *regexp.Regexp
	daysAhead func(m []string, now time.Time) int
}

var futureRules = []futureRule{
	{regexp.MustCompile(`(?i)\btomorrow\b`), func([]string, time.Time) int { return 1 }},
	{regexp.MustCompile(`(?i)\blater today\b`), func([]string, time.Time) int { return 0 }},
	{regexp.MustCompile(`(?i)\bnext week\b`), func([]string, time.Time) int { return 7 }},
	{regexp.MustCompile(`(?i)\bnext ` + weekdayAlt + `\b`), func(m []string, now time.Time) int {
		ahead := (int(weekdays[strings.ToLower(m[1])]) - int(now.Weekday()) + 7) % 7
		if ahead == 0 {
			ahead = 7
		}
		return ahead
	}},
}

// Detect picks the highest-confidence past phrase and collects every future mention.
func (p *PhraseDetector) Detect(ctx context.Context, text string, now time.Time) (Detection, error) {
	if err := ctx.Err(); err != nil {
		return Detection{}, err
	}
	var d Detection
	for _, r := range pastRules {
		m := r.re.FindStringSubmatch(text)
		if m == nil || r.confidence <= d.Confidence {
			continue
		}
		days := r.daysBack(m, now)
		if days <= 0 {
			continue
		}
		d = Detection{Detected: true, Date: now.AddDate(0, 0, -days), Confidence: r.confidence, Phrase: m[0]}
	}

	for _, r := range futureRules {
		for _, loc := range r.re.FindAllStringSubmatchIndex(text, -1) {
			m := submatches(text, loc)
			date := now.AddDate(0, 0, r.daysAhead(m, now))
			d.FutureMentions = append(d.FutureMentions, model.FutureMention{
				Phrase: m[0],
				Date:   &date,
				Event:  sentenceAround(text, loc[0]),
			})
		}
	}
	return d, nil
}

func submatches(text string, loc []int) []string {
	out := make([]string, len(loc)/2)
	for i := range out {
		if loc[2*i] >= 0 {
			out[i] = text[loc[2*i]:loc[2*i+1]]
		}
	}
	return out
}

func sentenceAround(text string, pos int) string {
	start := strings.LastIndexAny(text[:pos], ".!?\n") + 1
	end := len(text)
	if i := strings.IndexAny(text[pos:], ".!?\n"); i != -1 {
		end = pos + i
	}
	return strings.TrimSpace(text[start:end])
}
