package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/echovault/echovault/internal/api/respond"
	"github.com/echovault/echovault/internal/api/validate"
	"github.com/echovault/echovault/internal/model"
	"github.com/echovault/echovault/internal/pipeline"
	"github.com/echovault/echovault/internal/safety"
	"github.com/echovault/echovault/internal/temporal"
)

// EntryHandler handles submission, resolution and entry reads (thin transport layer).
type EntryHandler struct {
	d Deps
}

// Submit handles POST /api/users/{userId}/entries
func (h *EntryHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Submission
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.Submission(req.Text, req.ReplyContext, req.Category); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	sess := h.d.Sessions.Get(mux.Vars(r)["userId"])
	res, err := sess.Pipeline.Submit(r.Context(), req)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	writeResult(w, res)
}

// ResolveGate handles POST /api/users/{userId}/pending/{pendingId}/gate
func (h *EntryHandler) ResolveGate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Resolution string `json:"resolution"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	resolution, err := safety.ParseResolution(req.Resolution)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	pendingID, ok := pendingIDFrom(w, r)
	if !ok {
		return
	}

	sess := h.d.Sessions.Get(mux.Vars(r)["userId"])
	res, err := sess.Pipeline.ResolveGate(r.Context(), pendingID, resolution)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	writeResult(w, res)
}

// ResolveTemporal handles POST /api/users/{userId}/pending/{pendingId}/temporal
func (h *EntryHandler) ResolveTemporal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	answer, err := temporal.ParseAnswer(req.Answer)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	pendingID, ok := pendingIDFrom(w, r)
	if !ok {
		return
	}

	sess := h.d.Sessions.Get(mux.Vars(r)["userId"])
	res, err := sess.Pipeline.ResolveTemporal(r.Context(), pendingID, answer)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	writeResult(w, res)
}

// Dismiss handles DELETE /api/users/{userId}/pending/{pendingId}
func (h *EntryHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	pendingID, ok := pendingIDFrom(w, r)
	if !ok {
		return
	}
	sess := h.d.Sessions.Get(mux.Vars(r)["userId"])
	res, err := sess.Pipeline.Dismiss(r.Context(), pendingID)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	writeResult(w, res)
}

// Get handles GET /api/users/{userId}/entries/{entryId}
func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := validate.EntryID(vars["entryId"]); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	e, err := h.d.Store.Entries().GetByID(r.Context(), vars["userId"], vars["entryId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, e)
}

// Edit handles PATCH /api/users/{userId}/entries/{entryId}. Only the title and category are
// user-editable.
func (h *EntryHandler) Edit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := validate.EntryID(vars["entryId"]); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	var req struct {
		Title    *string `json:"title"`
		Category *string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.EntryEdit(req.Title, req.Category); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	patch := model.EntryPatch{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		patch.Title = &title
	}
	if req.Category != nil {
		category := strings.ToLower(strings.TrimSpace(*req.Category))
		patch.Category = &category
	}
	e, err := h.d.Store.Entries().Update(r.Context(), vars["userId"], vars["entryId"], patch)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, e)
}

// List handles GET /api/users/{userId}/entries
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req, err := validate.ListQuery(mux.Vars(r)["userId"], q.Get("limit"), q.Get("before"), q.Get("after"))
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	entries, err := h.d.Store.Entries().List(r.Context(), req)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []*model.Entry{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

// OfflineQueue handles GET /api/users/{userId}/offline
func (h *EntryHandler) OfflineQueue(w http.ResponseWriter, r *http.Request) {
	sess := h.d.Sessions.Get(mux.Vars(r)["userId"])
	items := sess.Queue.Items()
	if items == nil {
		items = []model.OfflineQueueItem{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func pendingIDFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := mux.Vars(r)["pendingId"]
	if err := validate.PendingID(id); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return "", false
	}
	return id, true
}

// writeResult answers 201 when an entry was persisted and 202 for every other outcome.
func writeResult(w http.ResponseWriter, res pipeline.Result) {
	code := http.StatusAccepted
	if res.Status == pipeline.StatusSaved {
		code = http.StatusCreated
	}
	respond.WriteJSON(w, code, res)
}
