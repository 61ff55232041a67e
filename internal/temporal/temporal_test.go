package temporal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedDetector struct {
	d   Detection
	err error
}

func (f fixedDetector) Detect(context.Context, string, time.Time) (Detection, error) { return f.d, f.err }

var created = time.Date(2026, 3, 12, 20, 30, 0, 0, time.UTC) // Thursday

func TestActionFor(t *testing.T) {
	for c := 0.0; c <= 1.0001; c += 0.01 {
		got := ActionFor(c)
		switch {
		case c > 0.8:
			assert.Equal(t, ActionApply, got, "c=%v", c)
		case c >= 0.5:
			assert.Equal(t, ActionConfirm, got, "c=%v", c)
		default:
			assert.Equal(t, ActionIgnore, got, "c=%v", c)
		}
	}
	assert.Equal(t, ActionConfirm, ActionFor(0.8))
	assert.Equal(t, ActionConfirm, ActionFor(0.5))
	assert.Equal(t, ActionIgnore, ActionFor(0.4999))
	assert.Equal(t, ActionApply, ActionFor(0.8001))
}

func TestResolve_ConfidenceBands(t *testing.T) {
	past := created.AddDate(0, 0, -3)
	for _, tc := range []struct {
		c         float64
		action    Action
		effective time.Time
	}{
		{0.95, ActionApply, past},
		{0.8, ActionConfirm, created},
		{0.5, ActionConfirm, created},
		{0.3, ActionIgnore, created},
		{0, ActionIgnore, created},
	} {
		r := NewResolver(fixedDetector{d: Detection{Detected: true, Date: past, Confidence: tc.c, Phrase: "p"}})
		res := r.Resolve(context.Background(), "text", created)
		assert.Equal(t, tc.action, res.Action, "c=%v", tc.c)
		assert.True(t, tc.effective.Equal(res.EffectiveDate), "c=%v", tc.c)
		assert.Equal(t, tc.action == ActionConfirm, res.NeedsConfirmation())
	}
}

func TestResolve_NotDetected(t *testing.T) {
	res := NewResolver(fixedDetector{}).Resolve(context.Background(), "text", created)
	assert.False(t, res.Detected)
	assert.Equal(t, ActionIgnore, res.Action)
	assert.True(t, res.EffectiveDate.Equal(created))
	assert.Nil(t, res.Context())
}

func TestResolve_DetectorErrorIgnored(t *testing.T) {
	res := NewResolver(fixedDetector{err: errors.New("down")}).Resolve(context.Background(), "text", created)
	assert.Equal(t, ActionIgnore, res.Action)
	assert.True(t, res.EffectiveDate.Equal(created))
}

func TestWithAnswer(t *testing.T) {
	past := created.AddDate(0, 0, -2)
	r := NewResolver(fixedDetector{d: Detection{Detected: true, Date: past, Confidence: 0.6, Phrase: "the other day"}})
	res := r.Resolve(context.Background(), "text", created)
	require.True(t, res.NeedsConfirmation())

	used := res.WithAnswer(UseDetected)
	assert.True(t, used.EffectiveDate.Equal(past))
	assert.False(t, used.NeedsConfirmation())
	require.NotNil(t, used.Context())
	assert.True(t, used.Context().Backdated)

	kept := res.WithAnswer(KeepToday)
	assert.True(t, kept.EffectiveDate.Equal(created))
	require.NotNil(t, kept.Context())
	assert.False(t, kept.Context().Backdated)
	assert.Equal(t, "the other day", kept.Context().OriginalPhrase)
}

func TestParseAnswer(t *testing.T) {
	a, err := ParseAnswer("USE-DETECTED")
	require.NoError(t, err)
	assert.Equal(t, UseDetected, a)
	_, err = ParseAnswer("later")
	require.Error(t, err)
}
