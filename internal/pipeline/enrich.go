package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	pkgerrors "github.com/pkg/errors"

	"github.com/echovault/echovault/internal/analyzer"
	"github.com/echovault/echovault/internal/events"
	"github.com/echovault/echovault/internal/model"
	"github.com/echovault/echovault/internal/relevance"
	"github.com/echovault/echovault/internal/sanitize"
)

var (
	errAlreadySettled = errors.New("enrichment already written")
	errNoEmbedding    = errors.New("no embedding; skipping analysis")
	errEnrichPanic    = errors.New("enrichment panicked")
)

// recovered turns a recovered panic value into an error with the current stack.
func recovered(r any) error {
	return pkgerrors.WithStack(fmt.Errorf("%w: %v", errEnrichPanic, r))
}

// completion guards the single write-back allowed per entry.
type completion struct {
	mu           sync.Mutex
	done         bool
	decompressed bool
}

// write runs fn unless a previous write succeeded. The token is settled only when fn succeeds.
func (c *completion) write(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return errAlreadySettled
	}
	if err := fn(); err != nil {
		return err
	}
	c.done = true
	return nil
}

func (c *completion) settled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// signalOnce reports true the first time it is called.
func (c *completion) signalOnce() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.decompressed {
		return false
	}
	c.decompressed = true
	return true
}

// Settled reports whether the entry's enrichment has been written back.
func (p *Pipeline) Settled(entryID string) bool {
	p.mu.Lock()
	tok := p.tokens[entryID]
	p.mu.Unlock()
	return tok != nil && tok.settled()
}

func (p *Pipeline) spawnEnrichment(parent context.Context, e *model.Entry, skipAnalysis bool) {
	p.mu.Lock()
	if _, dup := p.tokens[e.ID]; dup {
		p.mu.Unlock()
		p.log.Warn().Str("entry_id", e.ID).Msg("enrichment already scheduled")
		return
	}
	tok := &completion{}
	p.tokens[e.ID] = tok
	p.mu.Unlock()

	// Enrichment outlives the request that created the entry.
	ctx := context.WithoutCancel(parent)
	entry := *e
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				err := recovered(r)
				p.log.Error().Stack().Str("entry_id", entry.ID).Err(err).Msg("enrichment goroutine panicked")
				if !tok.settled() {
					p.onSettled(&entry, p.writeFallback(&entry, tok))
				}
			}
		}()
		p.onSettled(&entry, p.enrich(ctx, &entry, tok, skipAnalysis))
	}()
}

// enrich runs the analysis chain and performs exactly one write-back: the enriched patch,
// or the neutral fallback when anything in the chain failed.
func (p *Pipeline) enrich(ctx context.Context, e *model.Entry, tok *completion, skipAnalysis bool) error {
	start := time.Now()
	var (
		patch model.EntryPatch
		err   error
	)
	if skipAnalysis {
		err = errNoEmbedding
	} else {
		patch, err = p.analyzeGuarded(ctx, e)
	}

	if err == nil {
		err = tok.write(func() error { return p.update(e.ID, patch) })
		if err == nil {
			enrichmentsTotal.WithLabelValues("enriched").Inc()
			enrichDuration.Observe(time.Since(start).Seconds())
			p.log.Info().Str("entry_id", e.ID).Dur("took", time.Since(start)).Msg("entry enriched")
			if patch.MoodScore != nil && *patch.MoodScore < p.cfg.LowMoodThreshold && tok.signalOnce() {
				p.publish(events.EventNeedsDecompression, events.Event{EntryID: e.ID})
			}
			return nil
		}
		if errors.Is(err, errAlreadySettled) {
			return nil
		}
	}

	ev := p.log.Warn()
	if errors.Is(err, errEnrichPanic) || errors.Is(err, analyzer.ErrPanic) {
		ev = p.log.Error().Stack()
	}
	ev.Str("entry_id", e.ID).Err(err).Msg("enrichment failed; writing fallback")
	return p.writeFallback(e, tok)
}

func (p *Pipeline) writeFallback(e *model.Entry, tok *completion) error {
	patch := sanitize.FallbackPatch(e.Text)

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.cfg.FallbackBackoff
	exp.Multiplier = 2
	exp.MaxInterval = 16 * p.cfg.FallbackBackoff
	exp.MaxElapsedTime = 0
	exp.Reset()

	var err error
	for attempt := 1; attempt <= p.cfg.FallbackAttempts; attempt++ {
		err = tok.write(func() error { return p.update(e.ID, patch) })
		if err == nil {
			enrichmentsTotal.WithLabelValues("fallback").Inc()
			return nil
		}
		if errors.Is(err, errAlreadySettled) {
			return nil
		}
		p.log.Warn().Str("entry_id", e.ID).Int("attempt", attempt).Err(err).Msg("fallback write failed")
		if attempt < p.cfg.FallbackAttempts {
			time.Sleep(exp.NextBackOff())
		}
	}
	return fmt.Errorf("fallback write for %s: %w", e.ID, err)
}

// update uses its own deadline so a cancelled caller cannot strand an entry in pending.
func (p *Pipeline) update(entryID string, patch model.EntryPatch) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.WriteTimeout)
	defer cancel()
	_, err := p.d.Store.Entries().Update(ctx, p.userID, entryID, patch)
	return err
}

func (p *Pipeline) onSettled(e *model.Entry, err error) {
	if err != nil {
		enrichmentsTotal.WithLabelValues("stranded").Inc()
		p.log.Error().Stack().Str("entry_id", e.ID).Err(err).Msg("entry left pending")
		return
	}
	p.publish(events.EventComplete, events.Event{EntryID: e.ID})
}

func (p *Pipeline) analyzeGuarded(ctx context.Context, e *model.Entry) (patch model.EntryPatch, err error) {
	defer func() {
		if r := recover(); r != nil {
			patch, err = model.EntryPatch{}, recovered(r)
		}
	}()
	return p.analyze(ctx, e)
}

// analyze builds the success patch. Any error aborts the whole chain.
func (p *Pipeline) analyze(ctx context.Context, e *model.Entry) (model.EntryPatch, error) {
	cls, err := p.d.Analyzer.Classify(ctx, e.Text)
	if err != nil {
		return model.EntryPatch{}, fmt.Errorf("classify: %w", err)
	}
	et := cls.EntryType
	if !et.Valid() {
		et = model.EntryReflection
	}

	an, err := p.d.Analyzer.Analyze(ctx, e.Text, et)
	if err != nil {
		return model.EntryPatch{}, fmt.Errorf("analyze: %w", err)
	}

	status := model.AnalysisComplete
	version := p.cfg.ContextVersion
	patch := model.EntryPatch{
		AnalysisStatus: &status,
		EntryType:      &et,
		Analysis:       an.Model(),
		ContextVersion: &version,
	}
	if an.Title != "" {
		title := an.Title
		patch.DefaultTitle = &title
	}
	if et != model.EntryTask && an.MoodScore != nil {
		mood := *an.MoodScore
		patch.MoodScore = &mood
	}
	if len(cls.ExtractedTasks) > 0 {
		tasks := append([]string(nil), cls.ExtractedTasks...)
		patch.ExtractedTasks = &tasks
	}

	tagSets := [][]string{an.Tags}
	if et != model.EntryTask {
		corpus, err := p.corpus(ctx, e.ID)
		if err != nil {
			return model.EntryPatch{}, fmt.Errorf("load corpus: %w", err)
		}
		sel := relevance.SelectContext(e.Embedding, corpus, p.cfg.Relevance, p.cfg.RecentWindow)
		recent := relevance.Recent(corpus, p.cfg.RecentWindow)

		insight, err := p.d.Analyzer.GenerateInsight(ctx, analyzer.InsightRequest{
			Text: e.Text, Related: sel.Entries, Recent: recent, All: corpus,
		})
		if err != nil {
			return model.EntryPatch{}, fmt.Errorf("insight: %w", err)
		}
		patch.Insight = insight

		ec, err := p.d.Analyzer.ExtractEnhancedContext(ctx, e.Text, recent)
		if err != nil {
			return model.EntryPatch{}, fmt.Errorf("enhanced context: %w", err)
		}
		if ec != nil {
			tagSets = append(tagSets, ec.StructuredTags, ec.TopicTags)
			if ec.ContinuesSituation != "" {
				cs := ec.ContinuesSituation
				patch.ContinuesSituation = &cs
			}
			patch.GoalUpdate = ec.GoalUpdate
		}
	}
	tags := sanitize.MergeTags(tagSets...)
	patch.Tags = &tags
	return patch, nil
}

// corpus loads the user's other entries.
func (p *Pipeline) corpus(ctx context.Context, exclude string) ([]*model.Entry, error) {
	all, err := p.d.Store.Entries().List(ctx, model.ListEntriesRequest{UserID: p.userID})
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, e := range all {
		if e.ID != exclude {
			out = append(out, e)
		}
	}
	return out, nil
}
