// Package chat answers questions about a user's journal from the entries most relevant to
// the question.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/echovault/echovault/internal/analyzer"
	"github.com/echovault/echovault/internal/embeddings"
	"github.com/echovault/echovault/internal/model"
	"github.com/echovault/echovault/internal/relevance"
	"github.com/echovault/echovault/internal/store"
)

// Answer is a reply grounded in journal entries.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []string `json:"sources"`
	// FromRecent is set when no entry cleared the relevance threshold and the most
	// recent entries were used instead.
	FromRecent bool `json:"fromRecent"`
}

// Service runs retrieval with the same context policy enrichment uses.
type Service struct {
	store    store.Store
	embedder embeddings.Provider
	analyzer analyzer.TextAnalyzer
	opts     relevance.Options
	recentN  int
	log      zerolog.Logger
}

func NewService(s store.Store, emb embeddings.Provider, a analyzer.TextAnalyzer, opts relevance.Options, recentN int, log zerolog.Logger) *Service {
	if recentN <= 0 {
		recentN = 5
	}
	return &Service{
		store:    s,
		embedder: emb,
		analyzer: a,
		opts:     opts,
		recentN:  recentN,
		log:      log.With().Str("component", "chat").Logger(),
	}
}

// Ask answers question from userID's entries. If the question cannot be embedded the
// most recent entries are used as context.
func (s *Service) Ask(ctx context.Context, userID, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("%w: question is empty", model.ErrValidation)
	}

	corpus, err := s.store.Entries().List(ctx, model.ListEntriesRequest{UserID: userID})
	if err != nil {
		return Answer{}, fmt.Errorf("load entries: %w", err)
	}

	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("question embedding failed; using recent entries")
		vec = nil
	}
	sel := relevance.SelectContext(vec, corpus, s.opts, s.recentN)

	text, err := s.analyzer.Answer(ctx, question, sel.Entries)
	if err != nil {
		return Answer{}, fmt.Errorf("answer: %w", err)
	}
	out := Answer{Text: text, Sources: make([]string, 0, len(sel.Entries)), FromRecent: sel.FromRecent}
	for _, e := range sel.Entries {
		out.Sources = append(out.Sources, e.ID)
	}
	s.log.Debug().Str("user_id", userID).Int("sources", len(out.Sources)).Bool("from_recent", out.FromRecent).Msg("question answered")
	return out, nil
}
