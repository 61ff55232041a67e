// Package pipeline turns raw journal text into a durable, enriched entry: safety gate,
// temporal resolution, persistence or offline queueing, then background enrichment.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/echovault/echovault/internal/analyzer"
	"github.com/echovault/echovault/internal/embeddings"
	"github.com/echovault/echovault/internal/events"
	"github.com/echovault/echovault/internal/model"
	"github.com/echovault/echovault/internal/offline"
	"github.com/echovault/echovault/internal/relevance"
	"github.com/echovault/echovault/internal/safety"
	"github.com/echovault/echovault/internal/sanitize"
	"github.com/echovault/echovault/internal/store"
	"github.com/echovault/echovault/internal/temporal"
)

var (
	// ErrSaveFailed wraps a durable-store failure on Create. Nothing was written.
	ErrSaveFailed = errors.New("pipeline: save failed")
	// ErrUnknownPending is returned when a resolution names no suspended submission.
	ErrUnknownPending = errors.New("pipeline: unknown pending submission")
)

// Status is the outcome of a Submit or a resolution.
type Status string

const (
	StatusSaved                      Status = "saved"
	StatusOfflineQueued              Status = "offline-queued"
	StatusGateBlocked                Status = "gate-blocked"
	StatusTemporalConfirmationNeeded Status = "temporal-confirmation-needed"
	StatusDiscarded                  Status = "discarded"
)

// Submission is raw user input.
type Submission struct {
	Text         string `json:"text"`
	ReplyContext string `json:"replyContext,omitempty"`
	Category     string `json:"category,omitempty"`
}

// Result tells the caller what happened and what, if anything, it must ask the user.
type Result struct {
	Status    Status               `json:"status"`
	EntryID   string               `json:"entryId,omitempty"`
	OfflineID string               `json:"offlineId,omitempty"`
	PendingID string               `json:"pendingId,omitempty"`
	Gate      *safety.Decision     `json:"gate,omitempty"`
	Temporal  *temporal.Resolution `json:"temporal,omitempty"`
	// ShowResources is set when the user asked for support resources.
	ShowResources bool `json:"showResources,omitempty"`
}

// Config tunes enrichment.
type Config struct {
	LowMoodThreshold float64
	// ContextVersion is written on successful enrichment.
	ContextVersion int
	Relevance      relevance.Options
	RecentWindow   int
	// FallbackAttempts bounds retries of the fallback write on store errors.
	FallbackAttempts int
	// FallbackBackoff is the first retry interval; later intervals grow exponentially.
	FallbackBackoff time.Duration
	WriteTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.ContextVersion < 1 {
		c.ContextVersion = 1
	}
	if c.RecentWindow <= 0 {
		c.RecentWindow = 5
	}
	if c.FallbackAttempts <= 0 {
		c.FallbackAttempts = 3
	}
	if c.FallbackBackoff <= 0 {
		c.FallbackBackoff = 200 * time.Millisecond
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	return c
}

// Deps are the collaborators of a Pipeline. Analyzer and Embedder should already be
// wrapped with analyzer.WithTimeout / analyzer.EmbedderWithTimeout.
type Deps struct {
	Store        store.Store
	Analyzer     analyzer.TextAnalyzer
	Embedder     embeddings.Provider
	Gate         *safety.Gate
	Temporal     *temporal.Resolver
	Queue        *offline.Queue
	Events       events.Publisher
	Connectivity offline.Connectivity
	Clock        func() time.Time
	Log          zerolog.Logger
}

type stage int

const (
	stageGate stage = iota
	stageTemporal
)

// draft is a submission carried across suspensions.
type draft struct {
	text      string
	category  string
	createdAt time.Time
	gate      safety.Decision
	temporal  temporal.Resolution
}

type suspended struct {
	stage stage
	draft draft
}

// Pipeline is scoped to one user session.
type Pipeline struct {
	userID string
	cfg    Config
	d      Deps
	log    zerolog.Logger

	mu      sync.Mutex
	pending map[string]*suspended
	tokens  map[string]*completion

	wg sync.WaitGroup
}

// New builds a pipeline for userID.
func New(userID string, cfg Config, d Deps) *Pipeline {
	if d.Gate == nil {
		d.Gate = safety.NewDefaultGate()
	}
	if d.Temporal == nil {
		d.Temporal = temporal.NewResolver(nil)
	}
	if d.Queue == nil {
		d.Queue = offline.NewQueue()
	}
	if d.Events == nil {
		d.Events = events.Discard{}
	}
	if d.Connectivity == nil {
		d.Connectivity = offline.ConnectivityFunc(func() bool { return true })
	}
	if d.Clock == nil {
		d.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Pipeline{
		userID:  userID,
		cfg:     cfg.withDefaults(),
		d:       d,
		log:     d.Log.With().Str("component", "pipeline").Str("user_id", userID).Logger(),
		pending: map[string]*suspended{},
		tokens:  map[string]*completion{},
	}
}

// UserID returns the owner of this pipeline.
func (p *Pipeline) UserID() string { return p.userID }

// Queue exposes the offline queue this pipeline feeds.
func (p *Pipeline) Queue() *offline.Queue { return p.d.Queue }

func (p *Pipeline) publish(kind events.EventKind, evt events.Event) {
	evt.Kind = kind
	evt.UserID = p.userID
	p.d.Events.Publish(evt)
}

// Submit runs the synchronous part of the pipeline. It returns once the entry is durably
// written, queued offline, or suspended waiting for the user.
func (p *Pipeline) Submit(ctx context.Context, sub Submission) (Result, error) {
	text := sanitize.ComposeText(sub.Text, sub.ReplyContext)
	if text == "" {
		return Result{}, fmt.Errorf("%w: entry text is empty", model.ErrValidation)
	}
	category := strings.ToLower(strings.TrimSpace(sub.Category))
	if category == "" {
		category = model.CategoryPersonal
	}
	if category != model.CategoryPersonal && category != model.CategoryWork {
		return Result{}, fmt.Errorf("%w: unknown category %q", model.ErrValidation, sub.Category)
	}

	dr := draft{text: text, category: category, createdAt: p.d.Clock()}
	dr.gate = p.d.Gate.Evaluate(text)
	if dr.gate.Blocked() {
		id := p.suspend(stageGate, dr)
		gate := dr.gate
		p.publish(events.EventGateBlocked, events.Event{PendingID: id})
		p.log.Info().Str("pending_id", id).Msg("submission blocked by safety gate")
		return observe(Result{Status: StatusGateBlocked, PendingID: id, Gate: &gate}, nil)
	}
	return observe(p.afterGate(ctx, dr))
}

func (p *Pipeline) afterGate(ctx context.Context, dr draft) (Result, error) {
	dr.temporal = p.d.Temporal.Resolve(ctx, dr.text, dr.createdAt)
	if dr.temporal.NeedsConfirmation() {
		id := p.suspend(stageTemporal, dr)
		res := dr.temporal
		p.publish(events.EventTemporalConfirmationNeeded, events.Event{PendingID: id})
		return Result{Status: StatusTemporalConfirmationNeeded, PendingID: id, Temporal: &res}, nil
	}
	return p.commit(ctx, dr)
}

// ResolveGate resumes a gate-blocked submission.
func (p *Pipeline) ResolveGate(ctx context.Context, pendingID string, r safety.Resolution) (Result, error) {
	s, err := p.take(pendingID, stageGate)
	if err != nil {
		return Result{}, err
	}
	if !r.Proceeds() {
		p.log.Info().Str("pending_id", pendingID).Msg("submission discarded after crisis resolution")
		return observe(Result{Status: StatusDiscarded, ShowResources: r.ShowsResources()}, nil)
	}
	res, err := p.afterGate(ctx, s.draft)
	res.ShowResources = r.ShowsResources()
	return observe(res, err)
}

// ResolveTemporal resumes a submission waiting for date confirmation.
func (p *Pipeline) ResolveTemporal(ctx context.Context, pendingID string, a temporal.Answer) (Result, error) {
	s, err := p.take(pendingID, stageTemporal)
	if err != nil {
		return Result{}, err
	}
	s.draft.temporal = s.draft.temporal.WithAnswer(a)
	return observe(p.commit(ctx, s.draft))
}

// Dismiss handles a closed prompt: a gate-blocked submission is discarded without any
// write, a temporal prompt falls back to keeping today's date and continues.
func (p *Pipeline) Dismiss(ctx context.Context, pendingID string) (Result, error) {
	p.mu.Lock()
	s, ok := p.pending[pendingID]
	p.mu.Unlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownPending, pendingID)
	}
	if s.stage == stageTemporal {
		return p.ResolveTemporal(ctx, pendingID, temporal.KeepToday)
	}
	if _, err := p.take(pendingID, stageGate); err != nil {
		return Result{}, err
	}
	return observe(Result{Status: StatusDiscarded}, nil)
}

// Pending reports how many submissions are suspended.
func (p *Pipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *Pipeline) suspend(st stage, dr draft) string {
	id := uuid.New().String()
	p.mu.Lock()
	p.pending[id] = &suspended{stage: st, draft: dr}
	p.mu.Unlock()
	return id
}

func (p *Pipeline) take(id string, st stage) (*suspended, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.pending[id]
	if !ok || s.stage != st {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPending, id)
	}
	delete(p.pending, id)
	return s, nil
}

func (p *Pipeline) entryFrom(dr draft) model.Entry {
	return model.Entry{
		UserID:            p.userID,
		Text:              dr.text,
		Category:          dr.category,
		CreatedAt:         dr.createdAt,
		EffectiveDate:     dr.temporal.EffectiveDate,
		AnalysisStatus:    model.AnalysisPending,
		EntryType:         model.EntryReflection,
		Tags:              []string{},
		SafetyFlagged:     dr.gate.Crisis,
		WarningIndicators: dr.gate.Warning,
		TemporalContext:   dr.temporal.Context(),
		FutureMentions:    dr.temporal.FutureMentions,
	}
}

func (p *Pipeline) commit(ctx context.Context, dr draft) (Result, error) {
	e := p.entryFrom(dr)
	if !p.d.Connectivity.Online() {
		item := p.d.Queue.Enqueue(e)
		p.publish(events.EventOfflineQueued, events.Event{OfflineID: item.OfflineID})
		p.log.Info().Str("offline_id", item.OfflineID).Int("queued", p.d.Queue.Len()).Msg("entry queued offline")
		return Result{Status: StatusOfflineQueued, OfflineID: item.OfflineID}, nil
	}
	created, err := p.persist(ctx, e)
	if err != nil {
		return Result{}, err
	}
	return Result{Status: StatusSaved, EntryID: created.ID}, nil
}

// Replay persists an entry captured offline, keeping its original dates. It implements
// offline.Replayer.
func (p *Pipeline) Replay(ctx context.Context, item model.OfflineQueueItem) (string, error) {
	e := item.Entry
	e.UserID = p.userID
	created, err := p.persist(ctx, e)
	if err != nil {
		return "", err
	}
	p.log.Info().Str("offline_id", item.OfflineID).Str("entry_id", created.ID).Msg("offline entry replayed")
	return created.ID, nil
}

// persist embeds, writes the pending entry and starts enrichment.
func (p *Pipeline) persist(ctx context.Context, e model.Entry) (*model.Entry, error) {
	vec, embedErr := p.d.Embedder.Embed(ctx, e.Text)
	if embedErr != nil {
		p.log.Warn().Err(embedErr).Msg("embedding failed; saving without vector")
		vec = nil
	}
	e.Embedding = vec

	created, err := p.d.Store.Entries().Create(ctx, &e)
	if err != nil {
		p.log.Error().Stack().Err(err).Msg("entry save failed")
		return nil, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	p.publish(events.EventPending, events.Event{EntryID: created.ID})
	p.spawnEnrichment(ctx, created, embedErr != nil)
	return created, nil
}

// Wait blocks until every spawned enrichment has settled.
func (p *Pipeline) Wait() { p.wg.Wait() }
