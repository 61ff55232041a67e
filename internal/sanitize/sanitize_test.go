package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echovault/echovault/internal/model"
)

func TestMergeTags(t *testing.T) {
	got := MergeTags([]string{"Work", " sleep "}, nil, []string{"#work", "@person:Sam", "", "Late Night"})
	assert.Equal(t, []string{"@person:sam", "late-night", "sleep", "work"}, got)
	assert.NotNil(t, MergeTags())
	assert.Empty(t, MergeTags())
}

func TestMergeTags_OrderInsensitive(t *testing.T) {
	a := MergeTags([]string{"b", "a"}, []string{"c"})
	b := MergeTags([]string{"c"}, []string{"a", "b", "a"})
	assert.Equal(t, a, b)
}

func TestTruncateTitle(t *testing.T) {
	assert.Equal(t, "short", TruncateTitle("  short ", 50))
	assert.Equal(t, "first line", TruncateTitle("first line\nsecond line", 50))

	long := strings.Repeat("é", 60)
	got := TruncateTitle(long, 50)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.Equal(t, 51, len([]rune(got)))
}

func TestFallbackPatch(t *testing.T) {
	p := FallbackPatch("Today I walked to the harbour and watched the boats for a very long time")
	require.NotNil(t, p.AnalysisStatus)
	assert.Equal(t, model.AnalysisComplete, *p.AnalysisStatus)
	assert.Equal(t, model.EntryReflection, *p.EntryType)
	assert.Equal(t, model.NeutralMood, *p.MoodScore)
	assert.Empty(t, *p.Tags)
	assert.LessOrEqual(t, len([]rune(*p.DefaultTitle)), TitleRunes+1)
	assert.Nil(t, p.ContextVersion)
}

func TestComposeText(t *testing.T) {
	assert.Equal(t, "hello", ComposeText(" hello ", ""))
	assert.Equal(t, "> was it good?\n> really?\n\nyes", ComposeText("yes", "was it good?\nreally?"))
}
