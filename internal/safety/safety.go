// Package safety screens raw entry text for crisis and warning signals before anything
// is persisted.
package safety

import (
	"fmt"
	"regexp"
	"strings"
)

// Predicate reports whether text carries a signal. Predicates must be pure.
type Predicate func(text string) bool

// Decision is the outcome of Gate.Evaluate.
type Decision struct {
	Crisis  bool `json:"crisis"`
	Warning bool `json:"warning"`
}

// Blocked reports whether the pipeline must wait for an explicit Resolution.
func (d Decision) Blocked() bool { return d.Crisis }

// Resolution is the user's answer to a blocked gate.
type Resolution string

const (
	// ResolveOkay proceeds with a normal save.
	ResolveOkay Resolution = "okay"
	// ResolveSupport shows support resources, then proceeds.
	ResolveSupport Resolution = "support"
	// ResolveCrisis shows support resources and discards the entry.
	ResolveCrisis Resolution = "crisis"
)

// ParseResolution validates a resolution received from a client.
func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(strings.ToLower(strings.TrimSpace(s))); r {
	case ResolveOkay, ResolveSupport, ResolveCrisis:
		return r, nil
	}
	return "", fmt.Errorf("unknown gate resolution %q", s)
}

// Proceeds reports whether the submission continues into the pipeline.
func (r Resolution) Proceeds() bool {
	return r == ResolveOkay || r == ResolveSupport
}

// ShowsResources reports whether support resources should be presented.
func (r Resolution) ShowsResources() bool {
	return r == ResolveSupport || r == ResolveCrisis
}

// Gate evaluates text against a crisis predicate and a warning predicate.
type Gate struct {
	crisis  Predicate
	warning Predicate
}

// NewGate builds a gate. A nil predicate never fires.
func NewGate(crisis, warning Predicate) *Gate {
	never := func(string) bool { return false }
	if crisis == nil {
		crisis = never
	}
	if warning == nil {
		warning = never
	}
	return &Gate{crisis: crisis, warning: warning}
}

// NewDefaultGate uses the built-in phrase predicates.
func NewDefaultGate() *Gate {
	return NewGate(PhrasePredicate(defaultCrisisPatterns...), PhrasePredicate(defaultWarningPatterns...))
}

// Evaluate has no side effects and is deterministic for a given text.
func (g *Gate) Evaluate(text string) Decision {
	return Decision{Crisis: g.crisis(text), Warning: g.warning(text)}
}

// PhrasePredicate matches any of the given regular expressions case-insensitively.
func PhrasePredicate(patterns ...string) Predicate {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		res = append(res, regexp.MustCompile(`(?i)`+p))
	}
	return func(text string) bool {
		for _, re := range res {
			if re.MatchString(text) {
				return true
			}
		}
		return false
	}
}

var defaultCrisisPatterns = []string{
	`\b(kill|hurt|harm)(ing)? myself\b`,
	`\bsuicid(e|al)\b`,
	`\bend (it all|my life)\b`,
	`\b(want|wish) (to|i could) die\b`,
	`\bno reason to (live|go on)\b`,
	`\bbetter off without me\b`,
}

var defaultWarningPatterns = []string{
	`\bhopeless\b`,
	`\bworthless\b`,
	`\bcan'?t (take|do) (it|this) any ?more\b`,
	`\bnobody (cares|would notice)\b`,
	`\bwhat'?s the point\b`,
	`\btrapped\b`,
}
