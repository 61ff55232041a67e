package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/echovault/echovault/internal/analyzer"
	"github.com/echovault/echovault/internal/model"
	"github.com/echovault/echovault/internal/relevance"
	"github.com/echovault/echovault/internal/sanitize"
	"github.com/echovault/echovault/internal/store"
)

// RetrofitConfig controls batching of the schema retrofit.
type RetrofitConfig struct {
	Target       int           // context version every entry converges to
	BatchSize    int           // entries per batch
	BatchDelay   time.Duration // pause between batches
	RecentWindow int           // prior entries handed to context extraction
	// StaleAfter is how old a pending entry must be before the retrofit settles it with
	// the neutral fallback. Younger pending entries belong to in-flight enrichment.
	StaleAfter time.Duration
}

// RetrofitResult summarises one pass.
type RetrofitResult struct {
	Total    int `json:"total"`
	Updated  int `json:"updated"`
	Failed   int `json:"failed"`
	Deferred int `json:"deferred"`
}

// SchemaRetrofit re-derives enhanced context for entries below the target context version.
type SchemaRetrofit struct {
	store    store.Store
	analyzer analyzer.TextAnalyzer
	cfg      RetrofitConfig
	log      zerolog.Logger
	clock    func() time.Time
}

func NewSchemaRetrofit(s store.Store, a analyzer.TextAnalyzer, cfg RetrofitConfig, log zerolog.Logger) *SchemaRetrofit {
	if cfg.Target < 1 {
		cfg.Target = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = 5
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}
	return &SchemaRetrofit{
		store:    s,
		analyzer: a,
		cfg:      cfg,
		log:      log.With().Str("component", "schema_retrofit").Logger(),
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Target returns the context version this retrofit converges to.
func (r *SchemaRetrofit) Target() int { return r.cfg.Target }

// Run retrofits every entry of userID whose context version is below the target. Item
// errors are logged and skipped; progress is reported after every item. Only a failure
// to load the corpus or a cancelled ctx aborts the pass.
func (r *SchemaRetrofit) Run(ctx context.Context, userID string, progress func(model.RetrofitProgress)) (RetrofitResult, error) {
	all, err := r.store.Entries().List(ctx, model.ListEntriesRequest{UserID: userID})
	if err != nil {
		return RetrofitResult{}, fmt.Errorf("retrofit: list entries: %w", err)
	}
	var todo []*model.Entry
	for _, e := range all {
		if e.ContextVersion < r.cfg.Target {
			todo = append(todo, e)
		}
	}
	res := RetrofitResult{Total: len(todo)}
	if len(todo) == 0 {
		return res, nil
	}
	r.log.Info().Str("user_id", userID).Int("total", len(todo)).Int("target", r.cfg.Target).Msg("retrofit starting")

	report := func(done int) {
		if progress != nil {
			progress(model.RetrofitProgress{Processed: done, Total: len(todo)})
		}
	}
	report(0)

	processed := 0
	for start := 0; start < len(todo); start += r.cfg.BatchSize {
		if start > 0 {
			if err := pause(ctx, r.cfg.BatchDelay); err != nil {
				return res, err
			}
		}
		end := min(start+r.cfg.BatchSize, len(todo))
		for _, e := range todo[start:end] {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			switch ok, err := r.retrofit(ctx, e, all); {
			case err != nil:
				res.Failed++
				r.log.Warn().Str("entry_id", e.ID).Err(err).Msg("retrofit item failed")
			case !ok:
				res.Deferred++
			default:
				res.Updated++
			}
			processed++
			report(processed)
		}
	}
	r.log.Info().Str("user_id", userID).
		Int("updated", res.Updated).Int("failed", res.Failed).Int("deferred", res.Deferred).
		Msg("retrofit finished")
	return res, nil
}

// retrofit writes one entry. It returns false when the entry was deferred.
func (r *SchemaRetrofit) retrofit(ctx context.Context, e *model.Entry, corpus []*model.Entry) (bool, error) {
	target := r.cfg.Target
	patch := model.EntryPatch{ContextVersion: &target}

	if e.AnalysisStatus == model.AnalysisPending {
		if r.clock().Sub(e.CreatedAt) < r.cfg.StaleAfter {
			return false, nil
		}
		patch = sanitize.FallbackPatch(e.Text)
		patch.ContextVersion = &target
	} else if e.EntryType != model.EntryTask {
		ec, err := r.analyzer.ExtractEnhancedContext(ctx, e.Text, priorEntries(e, corpus, r.cfg.RecentWindow))
		if err != nil {
			return false, fmt.Errorf("enhanced context: %w", err)
		}
		if ec != nil {
			tags := sanitize.MergeTags(e.Tags, ec.StructuredTags, ec.TopicTags)
			patch.Tags = &tags
			if ec.ContinuesSituation != "" {
				cs := ec.ContinuesSituation
				patch.ContinuesSituation = &cs
			}
			patch.GoalUpdate = ec.GoalUpdate
		}
	}

	if _, err := r.store.Entries().Update(ctx, e.UserID, e.ID, patch); err != nil {
		return false, fmt.Errorf("update: %w", err)
	}
	return true, nil
}

// priorEntries returns the n most recent entries created before e.
func priorEntries(e *model.Entry, corpus []*model.Entry, n int) []*model.Entry {
	var prior []*model.Entry
	for _, c := range corpus {
		if c.ID != e.ID && c.CreatedAt.Before(e.CreatedAt) {
			prior = append(prior, c)
		}
	}
	return relevance.Recent(prior, n)
}

// pause sleeps for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
