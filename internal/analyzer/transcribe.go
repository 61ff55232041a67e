package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Transcription sentinels. Callers branch on these with errors.Is; none are retried.
var (
	ErrRateLimited = errors.New("transcribe: rate limited")
	ErrAuth        = errors.New("transcribe: authentication failed")
	ErrBadRequest  = errors.New("transcribe: bad request")
	ErrUnavailable = errors.New("transcribe: service unavailable")
	ErrNoSpeech    = errors.New("transcribe: no speech detected")
)

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mime string) (string, error)
}

// UserMessage maps a transcription error to text suitable for the person recording.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return "Too many recordings in a short time. Please wait a moment and try again."
	case errors.Is(err, ErrAuth):
		return "Voice transcription is not configured correctly."
	case errors.Is(err, ErrBadRequest):
		return "That recording could not be processed. Try recording again."
	case errors.Is(err, ErrNoSpeech):
		return "No speech was detected in the recording."
	default:
		return "Transcription is unavailable right now. Your recording was not saved as text."
	}
}

// WhisperTranscriber calls an OpenAI-compatible /audio/transcriptions endpoint.
type WhisperTranscriber struct {
	client *resty.Client
	model  string
}

func NewWhisperTranscriber(baseURL, apiKey, model string) *WhisperTranscriber {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(2 * time.Minute)
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &WhisperTranscriber{client: c, model: model}
}

var mimeExtensions = map[string]string{
	"audio/webm":  "webm",
	"audio/mp4":   "m4a",
	"audio/m4a":   "m4a",
	"audio/x-m4a": "m4a",
	"audio/mpeg":  "mp3",
	"audio/wav":   "wav",
	"audio/x-wav": "wav",
	"audio/ogg":   "ogg",
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, audio []byte, mime string) (string, error) {
	if len(audio) == 0 {
		return "", ErrBadRequest
	}
	ext, ok := mimeExtensions[strings.ToLower(strings.Split(mime, ";")[0])]
	if !ok {
		ext = "webm"
	}

	var out struct {
		Text string `json:"text"`
	}
	resp, err := w.client.R().
		SetContext(ctx).
		SetFileReader("file", "recording."+ext, bytes.NewReader(audio)).
		SetFormData(map[string]string{"model": w.model}).
		SetResult(&out).
		Post("/audio/transcriptions")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusTooManyRequests:
		return "", ErrRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return "", ErrAuth
	case code == http.StatusBadRequest:
		return "", ErrBadRequest
	case code < 200 || code >= 300:
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, code)
	}

	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}
