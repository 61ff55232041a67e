package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seenRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]string
	Type   string
	Raw    []byte
}

func newFakeAPI(t *testing.T, status int, reply string) (*httptest.Server, *[]seenRequest) {
	t.Helper()
	var seen []seenRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		sr := seenRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Type: r.Header.Get("Content-Type"), Raw: raw}
		if strings.HasPrefix(sr.Type, "application/json") && len(raw) > 0 {
			_ = json.Unmarshal(raw, &sr.Body)
		}
		seen = append(seen, sr)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSubmitSendsEntry(t *testing.T) {
	srv, seen := newFakeAPI(t, http.StatusCreated, `{"status":"saved","entryId":"e1"}`)

	out, err := run(t, "", "--api", srv.URL, "--user", "sam", "submit", "long day at work", "--category", "work")
	require.NoError(t, err)
	assert.Contains(t, out, `"entryId":"e1"`)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/users/sam/entries", req.Path)
	assert.Equal(t, "long day at work", req.Body["text"])
	assert.Equal(t, "work", req.Body["category"])
	_, hasReply := req.Body["replyContext"]
	assert.False(t, hasReply)
}

func TestSubmitReadsStdin(t *testing.T) {
	srv, seen := newFakeAPI(t, http.StatusAccepted, `{"status":"queued_offline"}`)

	_, err := run(t, "  from a pipe\n", "-a", srv.URL, "-u", "sam", "submit", "--reply", "How was today?")
	require.NoError(t, err)
	require.Len(t, *seen, 1)
	assert.Equal(t, "from a pipe", (*seen)[0].Body["text"])
	assert.Equal(t, "How was today?", (*seen)[0].Body["replyContext"])
}

func TestSubmitRejectsEmptyStdin(t *testing.T) {
	srv, seen := newFakeAPI(t, http.StatusCreated, `{}`)

	_, err := run(t, "   ", "-a", srv.URL, "-u", "sam", "submit")
	require.Error(t, err)
	assert.Empty(t, *seen)
}

func TestUserRequired(t *testing.T) {
	t.Setenv("JOURNAL_USER", "")
	srv, seen := newFakeAPI(t, http.StatusOK, `{}`)

	_, err := run(t, "", "-a", srv.URL, "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--user")
	assert.Empty(t, *seen)
}

func TestResolveCommands(t *testing.T) {
	srv, seen := newFakeAPI(t, http.StatusCreated, `{"status":"saved"}`)

	_, err := run(t, "", "-a", srv.URL, "-u", "sam", "resolve", "gate", "p-1", "okay")
	require.NoError(t, err)
	_, err = run(t, "", "-a", srv.URL, "-u", "sam", "resolve", "temporal", "p-2", "use-today")
	require.NoError(t, err)
	_, err = run(t, "", "-a", srv.URL, "-u", "sam", "dismiss", "p-3")
	require.NoError(t, err)

	require.Len(t, *seen, 3)
	assert.Equal(t, "/api/users/sam/pending/p-1/gate", (*seen)[0].Path)
	assert.Equal(t, "okay", (*seen)[0].Body["resolution"])
	assert.Equal(t, "/api/users/sam/pending/p-2/temporal", (*seen)[1].Path)
	assert.Equal(t, "use-today", (*seen)[1].Body["answer"])
	assert.Equal(t, http.MethodDelete, (*seen)[2].Method)
	assert.Equal(t, "/api/users/sam/pending/p-3", (*seen)[2].Path)
}

func TestListQuery(t *testing.T) {
	srv, seen := newFakeAPI(t, http.StatusOK, `{"entries":[],"count":0}`)

	out, err := run(t, "", "-a", srv.URL, "-u", "sam", "list", "--limit", "10", "--before", "2026-10-01T00:00:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, `"count":0`)
	require.Len(t, *seen, 1)
	assert.Contains(t, (*seen)[0].Query, "limit=10")
	assert.Contains(t, (*seen)[0].Query, "before=2026-10-01T00%3A00%3A00Z")
}

func TestEditNeedsAField(t *testing.T) {
	srv, seen := newFakeAPI(t, http.StatusOK, `{}`)

	_, err := run(t, "", "-a", srv.URL, "-u", "sam", "edit", "e1")
	require.Error(t, err)
	assert.Empty(t, *seen)

	_, err = run(t, "", "-a", srv.URL, "-u", "sam", "edit", "e1", "--title", "")
	require.NoError(t, err)
	require.Len(t, *seen, 1)
	assert.Equal(t, http.MethodPatch, (*seen)[0].Method)
	title, ok := (*seen)[0].Body["title"]
	assert.True(t, ok, "an explicit empty title clears it")
	assert.Empty(t, title)
}

func TestAskAndMaintain(t *testing.T) {
	srv, seen := newFakeAPI(t, http.StatusOK, `{"answer":"ok"}`)

	_, err := run(t, "", "-a", srv.URL, "-u", "sam", "ask", "how", "did", "I", "sleep?")
	require.NoError(t, err)
	_, err = run(t, "", "-a", srv.URL, "-u", "sam", "maintain")
	require.NoError(t, err)
	_, err = run(t, "", "-a", srv.URL, "-u", "sam", "maintain", "--run")
	require.NoError(t, err)

	require.Len(t, *seen, 3)
	assert.Equal(t, "how did I sleep?", (*seen)[0].Body["question"])
	assert.Equal(t, http.MethodGet, (*seen)[1].Method)
	assert.Equal(t, http.MethodPost, (*seen)[2].Method)
	assert.Equal(t, "/api/users/sam/maintenance", (*seen)[2].Path)
}

func TestTranscribeUploadsRawAudio(t *testing.T) {
	srv, seen := newFakeAPI(t, http.StatusOK, `{"text":"hello"}`)

	out, err := run(t, "RIFFdata", "-a", srv.URL, "-u", "sam", "transcribe", "-", "--mime", "audio/wav")
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
	require.Len(t, *seen, 1)
	assert.Equal(t, "audio/wav", (*seen)[0].Type)
	assert.Equal(t, []byte("RIFFdata"), (*seen)[0].Raw)
}

func TestErrorStatusSurfacesMessage(t *testing.T) {
	srv, _ := newFakeAPI(t, http.StatusConflict, `{"error":"maintenance already running"}`)

	_, err := run(t, "", "-a", srv.URL, "-u", "sam", "maintain", "--run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "already running")
}

func TestAudioMime(t *testing.T) {
	assert.Equal(t, "audio/mpeg", audioMime("memo.MP3"))
	assert.Equal(t, "audio/mp4", audioMime("memo.m4a"))
	assert.Equal(t, "audio/webm", audioMime("memo"))
}
