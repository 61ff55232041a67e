package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/echovault/echovault/internal/analyzer"
	"github.com/echovault/echovault/internal/events"
	"github.com/echovault/echovault/internal/model"
	"github.com/echovault/echovault/internal/offline"
	"github.com/echovault/echovault/internal/safety"
	"github.com/echovault/echovault/internal/store"
	"github.com/echovault/echovault/internal/store/memstore"
	"github.com/echovault/echovault/internal/temporal"
)

// call records one store mutation.
type call struct {
	op    string // create | update
	id    string
	entry *model.Entry
	patch model.EntryPatch
}

// recordingStore wraps memstore and records every successful mutation.
type recordingStore struct {
	inner *memstore.Store

	mu              sync.Mutex
	calls           []call
	failCreate      error
	failUpdateTimes int
}

func newRecordingStore() *recordingStore { return &recordingStore{inner: memstore.New()} }

func (s *recordingStore) Entries() store.Entries { return &recordingEntries{s: s, next: s.inner.Entries()} }

func (s *recordingStore) Calls() []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]call(nil), s.calls...)
}

func (s *recordingStore) count(op string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.op == op {
			n++
		}
	}
	return n
}

type recordingEntries struct {
	s    *recordingStore
	next store.Entries
}

func (r *recordingEntries) Create(ctx context.Context, e *model.Entry) (*model.Entry, error) {
	r.s.mu.Lock()
	fail := r.s.failCreate
	r.s.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	out, err := r.next.Create(ctx, e)
	if err == nil {
		r.s.mu.Lock()
		r.s.calls = append(r.s.calls, call{op: "create", id: out.ID, entry: out})
		r.s.mu.Unlock()
	}
	return out, err
}

func (r *recordingEntries) Update(ctx context.Context, userID, entryID string, patch model.EntryPatch) (*model.Entry, error) {
	r.s.mu.Lock()
	if r.s.failUpdateTimes > 0 {
		r.s.failUpdateTimes--
		r.s.mu.Unlock()
		return nil, errors.New("store: transient write failure")
	}
	r.s.mu.Unlock()
	out, err := r.next.Update(ctx, userID, entryID, patch)
	if err == nil {
		r.s.mu.Lock()
		r.s.calls = append(r.s.calls, call{op: "update", id: entryID, patch: patch})
		r.s.mu.Unlock()
	}
	return out, err
}

func (r *recordingEntries) GetByID(ctx context.Context, userID, entryID string) (*model.Entry, error) {
	return r.next.GetByID(ctx, userID, entryID)
}

func (r *recordingEntries) List(ctx context.Context, req model.ListEntriesRequest) ([]*model.Entry, error) {
	return r.next.List(ctx, req)
}

func (r *recordingEntries) Subscribe(ctx context.Context, req model.ListEntriesRequest) (<-chan []*model.Entry, error) {
	return r.next.Subscribe(ctx, req)
}

// scriptedAnalyzer returns fixed results and can fail or block individual calls.
type scriptedAnalyzer struct {
	entryType    model.EntryType
	mood         *float64
	failClassify error
	failAnalyze  error
	panicOnCall  bool
	block        chan struct{} // when non-nil, Analyze waits on it

	insightCalls atomic.Int32
	contextCalls atomic.Int32
}

func (a *scriptedAnalyzer) Classify(ctx context.Context, _ string) (analyzer.Classification, error) {
	if a.panicOnCall {
		panic("classifier state corrupted")
	}
	if a.failClassify != nil {
		return analyzer.Classification{}, a.failClassify
	}
	et := a.entryType
	if et == "" {
		et = model.EntryReflection
	}
	return analyzer.Classification{EntryType: et, Confidence: 0.9}, nil
}

func (a *scriptedAnalyzer) Analyze(ctx context.Context, _ string, et model.EntryType) (analyzer.Analysis, error) {
	if a.block != nil {
		<-a.block
	}
	if a.failAnalyze != nil {
		return analyzer.Analysis{}, a.failAnalyze
	}
	res := analyzer.Analysis{Title: "Analyzed title", Tags: []string{"Work", "sleep"}, Framework: "cbt"}
	if et != model.EntryTask {
		res.MoodScore = a.mood
	}
	return res, nil
}

func (a *scriptedAnalyzer) GenerateInsight(context.Context, analyzer.InsightRequest) (*model.Insight, error) {
	a.insightCalls.Add(1)
	return &model.Insight{Found: true, Type: "pattern", Message: "again"}, nil
}

func (a *scriptedAnalyzer) ExtractEnhancedContext(context.Context, string, []*model.Entry) (*analyzer.EnhancedContext, error) {
	a.contextCalls.Add(1)
	return &analyzer.EnhancedContext{StructuredTags: []string{"@person:sam"}, TopicTags: []string{"work", "commute"}}, nil
}

func (a *scriptedAnalyzer) Answer(context.Context, string, []*model.Entry) (string, error) {
	return "answer", nil
}

type stubEmbedder struct{ err error }

func (s stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0, 0}, nil
}

type fixedDetector struct{ d temporal.Detection }

func (f fixedDetector) Detect(context.Context, string, time.Time) (temporal.Detection, error) {
	return f.d, nil
}

type harness struct {
	p        *Pipeline
	store    *recordingStore
	analyzer *scriptedAnalyzer
	events   *events.Recorder
	online   *atomic.Bool
	now      time.Time
}

type option func(*Deps, *Config)

func withDetector(d temporal.Detection) option {
	return func(deps *Deps, _ *Config) { deps.Temporal = temporal.NewResolver(fixedDetector{d: d}) }
}

func withEmbedder(e stubEmbedder) option {
	return func(deps *Deps, _ *Config) { deps.Embedder = e }
}

func withTimeout(d time.Duration) option {
	return func(deps *Deps, _ *Config) { deps.Analyzer = analyzer.WithTimeout(deps.Analyzer, d) }
}

func newHarness(t *testing.T, a *scriptedAnalyzer, opts ...option) *harness {
	t.Helper()
	h := &harness{
		store:    newRecordingStore(),
		analyzer: a,
		events:   &events.Recorder{},
		online:   &atomic.Bool{},
		now:      time.Date(2026, 3, 12, 20, 30, 0, 0, time.UTC),
	}
	h.online.Store(true)
	deps := Deps{
		Store:        h.store,
		Analyzer:     a,
		Embedder:     stubEmbedder{},
		Gate:         safety.NewGate(safety.PhrasePredicate(`\bcrisis-word\b`), safety.PhrasePredicate(`\bwarn-word\b`)),
		Temporal:     temporal.NewResolver(fixedDetector{}),
		Queue:        offline.NewQueue(),
		Events:       h.events,
		Connectivity: offline.ConnectivityFunc(h.online.Load),
		Clock:        func() time.Time { return h.now },
		Log:          zerolog.Nop(),
	}
	cfg := Config{LowMoodThreshold: 0.3, ContextVersion: 2, FallbackBackoff: time.Millisecond}
	for _, o := range opts {
		o(&deps, &cfg)
	}
	h.p = New("user-1", cfg, deps)
	return h
}

func (h *harness) get(t *testing.T, id string) *model.Entry {
	t.Helper()
	e, err := h.store.inner.Entries().GetByID(context.Background(), "user-1", id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return e
}

func ptr[T any](v T) *T { return &v }
