package analyzer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transcribeServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWhisperTranscriber(t *testing.T) {
	srv := transcribeServer(t, http.StatusOK, `{"text":"  hello journal "}`)
	text, err := NewWhisperTranscriber(srv.URL, "key", "whisper-1").Transcribe(context.Background(), []byte("audio"), "audio/webm;codecs=opus")
	require.NoError(t, err)
	assert.Equal(t, "hello journal", text)
}

func TestWhisperTranscriber_Sentinels(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusTooManyRequests, `{}`, ErrRateLimited},
		{http.StatusUnauthorized, `{}`, ErrAuth},
		{http.StatusForbidden, `{}`, ErrAuth},
		{http.StatusBadRequest, `{}`, ErrBadRequest},
		{http.StatusBadGateway, `{}`, ErrUnavailable},
		{http.StatusOK, `{"text":""}`, ErrNoSpeech},
	}
	for _, tc := range cases {
		srv := transcribeServer(t, tc.status, tc.body)
		_, err := NewWhisperTranscriber(srv.URL, "", "whisper-1").Transcribe(context.Background(), []byte("a"), "audio/mp4")
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
		assert.NotEmpty(t, UserMessage(err))
	}
}

func TestWhisperTranscriber_EmptyAudio(t *testing.T) {
	_, err := NewWhisperTranscriber("http://127.0.0.1:1", "", "m").Transcribe(context.Background(), nil, "audio/wav")
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestUserMessage(t *testing.T) {
	assert.Empty(t, UserMessage(nil))
	assert.Contains(t, UserMessage(ErrNoSpeech), "No speech")
	assert.Contains(t, UserMessage(errors.New("other")), "unavailable")
}
