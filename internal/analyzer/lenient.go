package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParse is returned when no JSON object could be recovered from a model reply.
var ErrParse = errors.New("analyzer: no parseable JSON in response")

var bareObject = regexp.MustCompile(`(?s)\{.*\}`)

// ParseLenient decodes a JSON object out of free-form model output. Candidates are tried
// in order: a ```json fenced block, any fenced block, the outermost bare {...} span, then
// the raw text. The first candidate that decodes wins.
func ParseLenient[T any](raw string) (T, error) {
	var out T
	for _, candidate := range jsonCandidates(raw) {
		var v T
		if err := json.Unmarshal([]byte(candidate), &v); err == nil {
			return v, nil
		}
	}
	return out, fmt.Errorf("%w: %q", ErrParse, truncateForError(raw))
}

func jsonCandidates(s string) []string {
	var out []string
	if start := strings.Index(s, "```json"); start != -1 {
		start += len("```json")
		if end := strings.Index(s[start:], "```"); end != -1 {
			out = append(out, strings.TrimSpace(s[start:start+end]))
		}
	}
	if start := strings.Index(s, "```"); start != -1 {
		start += 3
		if end := strings.Index(s[start:], "```"); end != -1 {
			content := strings.TrimSpace(s[start : start+end])
			// Drop a language identifier line such as "JSON" or "js".
			if idx := strings.Index(content, "\n"); idx != -1 && !strings.ContainsAny(content[:idx], "{[") {
				content = content[idx+1:]
			}
			out = append(out, strings.TrimSpace(content))
		}
	}
	if m := bareObject.FindString(s); m != "" {
		out = append(out, m)
	}
	return append(out, strings.TrimSpace(s))
}

func truncateForError(s string) string {
	const limit = 80
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
