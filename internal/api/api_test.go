package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echovault/echovault/internal/analyzer"
	"github.com/echovault/echovault/internal/chat"
	"github.com/echovault/echovault/internal/embeddings"
	"github.com/echovault/echovault/internal/events"
	"github.com/echovault/echovault/internal/maintenance"
	"github.com/echovault/echovault/internal/model"
	"github.com/echovault/echovault/internal/pipeline"
	"github.com/echovault/echovault/internal/relevance"
	"github.com/echovault/echovault/internal/session"
	"github.com/echovault/echovault/internal/store/memstore"
)

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return f.text, f.err
}

type fakeHealth struct{ ok bool }

func (f fakeHealth) IsHealthy() bool              { return f.ok }
func (f fakeHealth) Components() map[string]bool { return map[string]bool{"store": f.ok} }

type testServer struct {
	router   http.Handler
	sessions *session.Registry
	store    *memstore.Store
}

func newTestServer(t *testing.T, mutate ...func(*Deps)) *testServer {
	t.Helper()
	st := memstore.New()
	an := analyzer.NewHeuristicAnalyzer()
	emb := embeddings.NewHashing(64)
	bus := events.NewBus(32)
	sched := maintenance.NewScheduler(
		maintenance.NewSchemaRetrofit(st, an, maintenance.RetrofitConfig{Target: 1}, zerolog.Nop()),
		maintenance.NewEmbeddingBackfill(st, emb, maintenance.BackfillConfig{}, zerolog.Nop()),
		bus, zerolog.Nop(),
	)
	reg := session.NewRegistry(session.Config{
		Pipeline:  pipeline.Config{LowMoodThreshold: 0.3, ContextVersion: 1},
		Deps:      pipeline.Deps{Store: st, Analyzer: an, Embedder: emb, Events: bus, Log: zerolog.Nop()},
		Scheduler: sched,
	}, zerolog.Nop())
	t.Cleanup(func() {
		reg.Close()
		sched.Stop()
	})

	d := Deps{
		Sessions:    reg,
		Store:       st,
		Chat:        chat.NewService(st, emb, an, relevance.Options{}, 5, zerolog.Nop()),
		Transcriber: fakeTranscriber{text: "spoken words"},
		Scheduler:   sched,
		Bus:         bus,
		Log:         zerolog.Nop(),
		Heartbeat:   time.Hour,
	}
	for _, m := range mutate {
		m(&d)
	}
	return &testServer{router: NewRouter(d), sessions: reg, store: st}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestSubmitAndReadEntry(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/api/users/alice/entries", map[string]string{"text": "Walked by the river after work and felt calm", "category": "Work"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	res := decode[pipeline.Result](t, rr)
	require.Equal(t, pipeline.StatusSaved, res.Status)

	s.sessions.Get("alice").Pipeline.Wait()

	rr = s.do(t, http.MethodGet, "/api/users/alice/entries/"+res.EntryID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	e := decode[model.Entry](t, rr)
	assert.Equal(t, model.AnalysisComplete, e.AnalysisStatus)
	assert.Equal(t, model.CategoryWork, e.Category)
	assert.NotEmpty(t, e.Title)

	rr = s.do(t, http.MethodGet, "/api/users/bob/entries/"+res.EntryID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code, "entries are scoped to their user")
}

func TestSubmitValidation(t *testing.T) {
	s := newTestServer(t)
	for name, tc := range map[string]struct {
		path string
		body any
	}{
		"bad json":     {"/api/users/alice/entries", "{"},
		"empty text":   {"/api/users/alice/entries", map[string]string{"text": "  "}},
		"bad category": {"/api/users/alice/entries", map[string]string{"text": "hi", "category": "gym"}},
		"bad user":     {"/api/users/Not%20Valid/entries", map[string]string{"text": "hi"}},
	} {
		t.Run(name, func(t *testing.T) {
			rr := s.do(t, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}
}

func TestGateFlow(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/api/users/alice/entries", map[string]string{"text": "Some days I want to die"})
	require.Equal(t, http.StatusAccepted, rr.Code)
	res := decode[pipeline.Result](t, rr)
	require.Equal(t, pipeline.StatusGateBlocked, res.Status)
	require.NotNil(t, res.Gate)
	assert.True(t, res.Gate.Crisis)

	rr = s.do(t, http.MethodGet, "/api/users/alice/entries", nil)
	assert.Equal(t, float64(0), decode[map[string]any](t, rr)["count"], "nothing written while blocked")

	rr = s.do(t, http.MethodPost, "/api/users/alice/pending/"+res.PendingID+"/gate", map[string]string{"resolution": "maybe"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodPost, "/api/users/alice/pending/"+res.PendingID+"/gate", map[string]string{"resolution": "support"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	out := decode[pipeline.Result](t, rr)
	assert.True(t, out.ShowResources)
	s.sessions.Get("alice").Pipeline.Wait()

	e, err := s.store.Entries().GetByID(context.Background(), "alice", out.EntryID)
	require.NoError(t, err)
	assert.True(t, e.SafetyFlagged)

	rr = s.do(t, http.MethodPost, "/api/users/alice/pending/"+res.PendingID+"/gate", map[string]string{"resolution": "okay"})
	assert.Equal(t, http.StatusNotFound, rr.Code, "a resolution is consumed once")
}

func TestDismissGateDiscards(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(t, http.MethodPost, "/api/users/alice/entries", map[string]string{"text": "everyone is better off without me"})
	res := decode[pipeline.Result](t, rr)
	require.Equal(t, pipeline.StatusGateBlocked, res.Status)

	rr = s.do(t, http.MethodDelete, "/api/users/alice/pending/"+res.PendingID, nil)
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, pipeline.StatusDiscarded, decode[pipeline.Result](t, rr).Status)

	all, err := s.store.Entries().List(context.Background(), model.ListEntriesRequest{UserID: "alice"})
	require.NoError(t, err)
	assert.Empty(t, all)

	rr = s.do(t, http.MethodDelete, "/api/users/alice/pending/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEditAndList(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(t, http.MethodPost, "/api/users/alice/entries", map[string]string{"text": "Morning pages about the garden"})
	id := decode[pipeline.Result](t, rr).EntryID
	s.sessions.Get("alice").Pipeline.Wait()

	rr = s.do(t, http.MethodPatch, "/api/users/alice/entries/"+id, map[string]string{"title": "  Garden  ", "category": "WORK"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	e := decode[model.Entry](t, rr)
	assert.Equal(t, "Garden", e.Title)
	assert.Equal(t, model.CategoryWork, e.Category)

	rr = s.do(t, http.MethodPatch, "/api/users/alice/entries/"+id, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	s.do(t, http.MethodPost, "/api/users/alice/entries", map[string]string{"text": "Second note"})
	s.sessions.Get("alice").Pipeline.Wait()

	rr = s.do(t, http.MethodGet, "/api/users/alice/entries?limit=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[struct {
		Entries []model.Entry `json:"entries"`
		Count   int           `json:"count"`
	}](t, rr)
	assert.Equal(t, 1, list.Count)

	rr = s.do(t, http.MethodGet, "/api/users/alice/entries?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChat(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/users/alice/entries", map[string]string{"text": "Slept badly again, the neighbours were loud"})
	s.sessions.Get("alice").Pipeline.Wait()

	rr := s.do(t, http.MethodPost, "/api/users/alice/chat", map[string]string{"question": "How have I been sleeping?"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	ans := decode[chat.Answer](t, rr)
	assert.NotEmpty(t, ans.Text)
	assert.Len(t, ans.Sources, 1)

	rr = s.do(t, http.MethodPost, "/api/users/alice/chat", map[string]string{"question": ""})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTranscribe(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/users/alice/transcribe", strings.NewReader("RIFF....WAVE"))
	req.Header.Set("Content-Type", "audio/wav")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "spoken words", decode[map[string]string](t, rr)["text"])

	s = newTestServer(t, func(d *Deps) { d.Transcriber = fakeTranscriber{err: analyzer.ErrNoSpeech} })
	rr = s.do(t, http.MethodPost, "/api/users/alice/transcribe", "audio")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, analyzer.UserMessage(analyzer.ErrNoSpeech), decode[map[string]any](t, rr)["message"])

	rr = s.do(t, http.MethodPost, "/api/users/alice/transcribe", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMaintenanceEndpoints(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(t, http.MethodGet, "/api/users/alice/maintenance", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(0), decode[map[string]any](t, rr)["epoch"])

	require.Eventually(t, func() bool { return !s.sessions.Get("alice").Maintenance.Busy() }, time.Second, 5*time.Millisecond)
	rr = s.do(t, http.MethodPost, "/api/users/alice/maintenance", nil)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	assert.Equal(t, 1, s.sessions.Get("alice").Maintenance.Epoch())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, func(d *Deps) { d.Health = fakeHealth{ok: false} })
	rr := s.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	body := decode[map[string]any](t, rr)
	assert.Equal(t, "DEGRADED", body["status"])

	s = newTestServer(t, func(d *Deps) { d.Health = fakeHealth{ok: true} })
	rr = s.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMetricsExposed(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(t, http.MethodPost, "/api/users/alice/entries", map[string]string{"text": "quiet morning"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `echovault_submissions_total{status="saved"}`)
}

func TestEventStream(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/users/alice/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	post, err := http.Post(srv.URL+"/api/users/alice/entries", "application/json", strings.NewReader(`{"text":"A quiet evening with tea"}`))
	require.NoError(t, err)
	post.Body.Close()

	seen := map[string]bool{}
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() && !(seen["pending"] && seen["complete"]) {
		if kind, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
			seen[kind] = true
		}
	}
	assert.True(t, seen["pending"])
	assert.True(t, seen["complete"])
}

func TestEntryStream(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/users/alice/entries/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	next := func() map[string]any {
		for sc.Scan() {
			if data, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
				var v map[string]any
				require.NoError(t, json.Unmarshal([]byte(data), &v))
				return v
			}
		}
		t.Fatal("stream ended")
		return nil
	}
	assert.Equal(t, float64(0), next()["count"])

	post, err := http.Post(srv.URL+"/api/users/alice/entries", "application/json", strings.NewReader(`{"text":"First light"}`))
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, float64(1), next()["count"])
}
