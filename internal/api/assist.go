package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/echovault/echovault/internal/analyzer"
	"github.com/echovault/echovault/internal/api/respond"
	"github.com/echovault/echovault/internal/api/validate"
)

// maxAudioBytes bounds uploaded recordings (25 MiB, the Whisper API limit).
const maxAudioBytes = 25 << 20

// AssistHandler serves chat, voice transcription and maintenance control.
type AssistHandler struct {
	d Deps
}

// Ask handles POST /api/users/{userId}/chat
func (h *AssistHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.Question(req.Question); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	ans, err := h.d.Chat.Ask(r.Context(), mux.Vars(r)["userId"], req.Question)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, ans)
}

// Transcribe handles POST /api/users/{userId}/transcribe. The recording is either the
// multipart field "audio" or the raw request body.
func (h *AssistHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if h.d.Transcriber == nil {
		respond.WriteError(w, http.StatusNotImplemented, "transcription not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)

	var (
		audio []byte
		mime  = r.Header.Get("Content-Type")
		err   error
	)
	if strings.HasPrefix(mime, "multipart/") {
		file, hdr, ferr := r.FormFile("audio")
		if ferr != nil {
			respond.WriteBadRequest(w, "multipart field \"audio\" is required")
			return
		}
		defer file.Close()
		mime = hdr.Header.Get("Content-Type")
		audio, err = io.ReadAll(file)
	} else {
		audio, err = io.ReadAll(r.Body)
	}
	if err != nil {
		respond.WriteBadRequest(w, "could not read recording")
		return
	}
	if len(audio) == 0 {
		respond.WriteBadRequest(w, "recording is empty")
		return
	}

	text, err := h.d.Transcriber.Transcribe(r.Context(), audio, mime)
	if err != nil {
		h.d.Log.Warn().Err(err).Str("user_id", mux.Vars(r)["userId"]).Msg("transcription failed")
		respond.WriteError(w, transcribeStatus(err), analyzer.UserMessage(err))
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"text": text})
}

func transcribeStatus(err error) int {
	switch {
	case errors.Is(err, analyzer.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, analyzer.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, analyzer.ErrNoSpeech):
		return http.StatusUnprocessableEntity
	case errors.Is(err, analyzer.ErrAuth):
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}

// MaintenanceStatus handles GET /api/users/{userId}/maintenance
func (h *AssistHandler) MaintenanceStatus(w http.ResponseWriter, r *http.Request) {
	sess := h.d.Sessions.Get(mux.Vars(r)["userId"])
	respond.WriteJSON(w, http.StatusOK, sess.Maintenance.Status())
}

// RunMaintenance handles POST /api/users/{userId}/maintenance: it opens a new epoch for the
// session, or answers 409 while a job is still running.
func (h *AssistHandler) RunMaintenance(w http.ResponseWriter, r *http.Request) {
	if h.d.Scheduler == nil {
		respond.WriteError(w, http.StatusNotImplemented, "maintenance not configured")
		return
	}
	userID := mux.Vars(r)["userId"]
	sess := h.d.Sessions.Get(userID)
	if !h.d.Scheduler.RunNow(userID, sess.Maintenance) {
		respond.WriteError(w, http.StatusConflict, "maintenance already running")
		return
	}
	respond.WriteJSON(w, http.StatusAccepted, sess.Maintenance.Status())
}
