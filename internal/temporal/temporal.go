// Package temporal works out which day an entry is about when the text refers to the past.
package temporal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/echovault/echovault/internal/model"
)

// Confidence bands.
const (
	ApplyAbove   = 0.8
	ConfirmFloor = 0.5
)

// Action is what the pipeline does with a detection.
type Action string

const (
	// ActionIgnore keeps EffectiveDate = CreatedAt.
	ActionIgnore Action = "ignore"
	// ActionApply backdates without asking.
	ActionApply Action = "apply"
	// ActionConfirm suspends the submission until the user answers.
	ActionConfirm Action = "confirm"
)

// ActionFor maps a confidence to an action: c > 0.8 applies, 0.5 <= c <= 0.8 confirms,
// anything lower is ignored.
func ActionFor(c float64) Action {
	switch {
	case c > ApplyAbove:
		return ActionApply
	case c >= ConfirmFloor:
		return ActionConfirm
	default:
		return ActionIgnore
	}
}

// Detection is the raw output of a Detector.
type Detection struct {
	Detected       bool
	Date           time.Time
	Confidence     float64
	Phrase         string
	FutureMentions []model.FutureMention
}

// Detector finds past-date references and future mentions in text.
type Detector interface {
	Detect(ctx context.Context, text string, now time.Time) (Detection, error)
}

// Resolution is the outcome of Resolver.Resolve.
type Resolution struct {
	Detected       bool                  `json:"detected"`
	EffectiveDate  time.Time             `json:"effectiveDate"`
	DetectedDate   time.Time             `json:"detectedDate,omitempty"`
	Confidence     float64               `json:"confidence"`
	OriginalPhrase string                `json:"originalPhrase,omitempty"`
	FutureMentions []model.FutureMention `json:"futureMentions,omitempty"`
	Action         Action                `json:"action"`
	createdAt      time.Time
}

// NeedsConfirmation reports whether the submission must suspend.
func (r Resolution) NeedsConfirmation() bool { return r.Action == ActionConfirm }

// Answer is the user's reply to a confirmation prompt.
type Answer string

const (
	KeepToday   Answer = "keep-today"
	UseDetected Answer = "use-detected"
)

// ParseAnswer validates an answer received from a client.
func ParseAnswer(s string) (Answer, error) {
	switch a := Answer(strings.ToLower(strings.TrimSpace(s))); a {
	case KeepToday, UseDetected:
		return a, nil
	}
	return "", fmt.Errorf("unknown temporal answer %q", s)
}

// WithAnswer settles a confirmation. Any answer other than UseDetected keeps today.
func (r Resolution) WithAnswer(a Answer) Resolution {
	if r.Action != ActionConfirm {
		return r
	}
	if a == UseDetected {
		r.EffectiveDate = r.DetectedDate
		r.Action = ActionApply
	} else {
		r.EffectiveDate = r.createdAt
		r.Action = ActionIgnore
	}
	return r
}

// Context returns the annotation stored on the entry, or nil when nothing was detected.
func (r Resolution) Context() *model.TemporalContext {
	if !r.Detected {
		return nil
	}
	return &model.TemporalContext{
		Detected:       true,
		OriginalPhrase: r.OriginalPhrase,
		DetectedDate:   r.DetectedDate,
		Confidence:     r.Confidence,
		Backdated:      !r.EffectiveDate.Equal(r.createdAt),
	}
}

// Resolver applies the confidence policy to a Detector.
type Resolver struct {
	detector Detector
}

func NewResolver(d Detector) *Resolver {
	if d == nil {
		d = NewPhraseDetector()
	}
	return &Resolver{detector: d}
}

// Resolve never fails: a detector error is treated as "nothing detected".
func (r *Resolver) Resolve(ctx context.Context, text string, createdAt time.Time) Resolution {
	res := Resolution{EffectiveDate: createdAt, Action: ActionIgnore, createdAt: createdAt}

	d, err := r.detector.Detect(ctx, text, createdAt)
	if err != nil {
		return res
	}
	res.FutureMentions = d.FutureMentions
	if !d.Detected {
		return res
	}

	c := d.Confidence
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	res.Detected = true
	res.Confidence = c
	res.DetectedDate = d.Date
	res.OriginalPhrase = d.Phrase
	res.Action = ActionFor(c)
	if res.Action == ActionApply {
		res.EffectiveDate = d.Date
	}
	return res
}
