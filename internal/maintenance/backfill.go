package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/echovault/echovault/internal/embeddings"
	"github.com/echovault/echovault/internal/model"
	"github.com/echovault/echovault/internal/store"
)

var errEmptyVector = errors.New("embedder returned an empty vector")

// BackfillConfig bounds one embedding backfill pass.
type BackfillConfig struct {
	Cap   int           // max entries attempted per pass
	Delay time.Duration // pause between items
}

// BackfillResult summarises one pass.
type BackfillResult struct {
	Missing  int `json:"missing"`
	Embedded int `json:"embedded"`
	Failed   int `json:"failed"`
}

// EmbeddingBackfill embeds entries saved without a vector.
type EmbeddingBackfill struct {
	store    store.Store
	embedder embeddings.Provider
	cfg      BackfillConfig
	log      zerolog.Logger
}

func NewEmbeddingBackfill(s store.Store, emb embeddings.Provider, cfg BackfillConfig, log zerolog.Logger) *EmbeddingBackfill {
	if cfg.Cap <= 0 {
		cfg.Cap = 5
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	return &EmbeddingBackfill{
		store:    s,
		embedder: emb,
		cfg:      cfg,
		log:      log.With().Str("component", "embedding_backfill").Logger(),
	}
}

// Run embeds up to Cap entries of userID that have no embedding, oldest first. A failed
// item is logged and the pass continues.
func (b *EmbeddingBackfill) Run(ctx context.Context, userID string) (BackfillResult, error) {
	all, err := b.store.Entries().List(ctx, model.ListEntriesRequest{UserID: userID})
	if err != nil {
		return BackfillResult{}, fmt.Errorf("backfill: list entries: %w", err)
	}
	var missing []*model.Entry
	for i := len(all) - 1; i >= 0; i-- {
		if !all[i].HasEmbedding() {
			missing = append(missing, all[i])
		}
	}
	res := BackfillResult{Missing: len(missing)}
	if len(missing) == 0 {
		return res, nil
	}
	if len(missing) > b.cfg.Cap {
		missing = missing[:b.cfg.Cap]
	}

	for i, e := range missing {
		if i > 0 {
			if err := pause(ctx, b.cfg.Delay); err != nil {
				return res, err
			}
		}
		vec, err := b.embedder.Embed(ctx, e.Text)
		if err == nil && len(vec) == 0 {
			err = errEmptyVector
		}
		if err == nil {
			_, err = b.store.Entries().Update(ctx, e.UserID, e.ID, model.EntryPatch{Embedding: vec})
		}
		if err != nil {
			res.Failed++
			b.log.Warn().Str("entry_id", e.ID).Err(err).Msg("backfill item failed")
			continue
		}
		res.Embedded++
	}
	b.log.Info().Str("user_id", userID).
		Int("missing", res.Missing).Int("embedded", res.Embedded).Int("failed", res.Failed).
		Msg("embedding backfill finished")
	return res, nil
}
