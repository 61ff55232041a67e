// Package sanitize normalizes analyzer output before it is written to an entry.
package sanitize

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/echovault/echovault/internal/model"
)

// TitleRunes is the length of a title derived from raw text.
const TitleRunes = 50

// NormalizeTag lowercases and trims a tag and collapses inner whitespace to '-'.
// Structured tags keep their "@kind:" prefix.
func NormalizeTag(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	t = strings.TrimLeft(t, "#")
	return strings.Join(strings.Fields(t), "-")
}

// MergeTags returns the deduplicated, sorted union of every tag set. The result is never nil.
func MergeTags(sets ...[]string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, set := range sets {
		for _, t := range set {
			n := NormalizeTag(t)
			if n == "" {
				continue
			}
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// TruncateTitle returns the first n runes of the first line of text, with an ellipsis when cut.
func TruncateTitle(text string, n int) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i != -1 {
		text = strings.TrimSpace(text[:i])
	}
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	r := []rune(text)
	return strings.TrimSpace(string(r[:n])) + "…"
}

// FallbackPatch is the neutral result written when enrichment could not complete.
func FallbackPatch(text string) model.EntryPatch {
	status := model.AnalysisComplete
	et := model.EntryReflection
	mood := model.NeutralMood
	tags := []string{}
	title := TruncateTitle(text, TitleRunes)
	return model.EntryPatch{
		AnalysisStatus: &status,
		EntryType:      &et,
		MoodScore:      &mood,
		Tags:           &tags,
		DefaultTitle:   &title,
	}
}

// ComposeText prefixes text with a quoted reply context.
func ComposeText(text, replyContext string) string {
	text = strings.TrimSpace(text)
	replyContext = strings.TrimSpace(replyContext)
	if replyContext == "" {
		return text
	}
	lines := strings.Split(replyContext, "\n")
	for i, l := range lines {
		lines[i] = "> " + strings.TrimSpace(l)
	}
	return strings.Join(lines, "\n") + "\n\n" + text
}
