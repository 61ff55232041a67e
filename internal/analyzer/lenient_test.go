package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Title string `json:"title"`
	Score int    `json:"score"`
}

func TestParseLenient(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want sample
	}{
		{"json fence", "Sure!\n```json\n{\"title\":\"a\",\"score\":1}\n```\nthanks", sample{"a", 1}},
		{"plain fence with language line", "```JSON\n{\"title\":\"b\",\"score\":2}\n```", sample{"b", 2}},
		{"plain fence no language", "```\n{\"title\":\"c\",\"score\":3}\n```", sample{"c", 3}},
		{"bare object in prose", "Here you go: {\"title\":\"d\",\"score\":4} hope it helps", sample{"d", 4}},
		{"raw", ` {"title":"e","score":5} `, sample{"e", 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseLenient[sample](tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseLenient_GivesUp(t *testing.T) {
	_, err := ParseLenient[sample]("I could not analyze this entry.")
	require.ErrorIs(t, err, ErrParse)
}

func TestParseLenient_BrokenFenceFallsThrough(t *testing.T) {
	raw := "```json\nnot json\n```\n{\"title\":\"f\",\"score\":6}"
	got, err := ParseLenient[sample](raw)
	require.NoError(t, err)
	assert.Equal(t, "f", got.Title)
}
