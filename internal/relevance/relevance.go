// Package relevance selects past entries that are similar to a query embedding.
package relevance

import (
	"math"
	"sort"

	"github.com/echovault/echovault/internal/model"
)

// Defaults used when Options fields are unset.
const (
	DefaultThreshold = 0.3
	DefaultTopK      = 10
)

// Options tune Rank.
type Options struct {
	Threshold *float64 // nil means DefaultThreshold; 0 keeps every non-negative match
	TopK      int
}

// Threshold returns a pointer for Options.Threshold.
func Threshold(v float64) *float64 { return &v }

func (o Options) withDefaults() Options {
	if o.Threshold == nil {
		o.Threshold = Threshold(DefaultThreshold)
	}
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	return o
}

// Scored is an entry with its similarity to the query.
type Scored struct {
	Entry *model.Entry
	Score float64
}

// CosineSimilarity returns dot(a,b)/(|a||b|). It is 0 when either vector has zero norm
// or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Clamp rounding drift.
	return math.Max(-1, math.Min(1, s))
}

// Rank scores every entry that has an embedding, keeps scores >= Threshold and returns
// at most TopK of them, best first. Ties go to the newer entry.
func Rank(query []float32, corpus []*model.Entry, opts Options) []Scored {
	opts = opts.withDefaults()
	if len(query) == 0 {
		return nil
	}
	var out []Scored
	for _, e := range corpus {
		if e == nil || !e.HasEmbedding() {
			continue
		}
		s := CosineSimilarity(query, e.Embedding)
		if s >= *opts.Threshold {
			out = append(out, Scored{Entry: e, Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Entry.CreatedAt.After(out[j].Entry.CreatedAt)
	})
	if len(out) > opts.TopK {
		out = out[:opts.TopK]
	}
	return out
}

// Recent returns the n most recently created entries, newest first.
func Recent(corpus []*model.Entry, n int) []*model.Entry {
	out := make([]*model.Entry, 0, len(corpus))
	for _, e := range corpus {
		if e != nil {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Selection is the context chosen for a generative call.
type Selection struct {
	Entries []*model.Entry
	Scores  []float64 // parallel to Entries; empty when FromRecent
	// FromRecent is true when nothing cleared the threshold and the recency window was used.
	FromRecent bool
}

// SelectContext ranks the corpus against query and falls back to the recentN newest
// entries when nothing clears the threshold or query is empty. Enrichment and chat both
// go through here so the fallback is applied the same way.
func SelectContext(query []float32, corpus []*model.Entry, opts Options, recentN int) Selection {
	ranked := Rank(query, corpus, opts)
	if len(ranked) == 0 {
		return Selection{Entries: Recent(corpus, recentN), FromRecent: true}
	}
	sel := Selection{Entries: make([]*model.Entry, len(ranked)), Scores: make([]float64, len(ranked))}
	for i, s := range ranked {
		sel.Entries[i] = s.Entry
		sel.Scores[i] = s.Score
	}
	return sel
}
