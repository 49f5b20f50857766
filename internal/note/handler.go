package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"notevault/internal/note/model"
	"notevault/internal/note/service"
	"notevault/middleware"
	"notevault/pkg/logger"

	"github.com/gorilla/mux"
)

type NoteHandler struct {
	Service *service.NoteService
}

func NewNoteHandler(service *service.NoteService) *NoteHandler {
	return &NoteHandler{Service: service}
}

// ListNotes handles GET /api/v1/notes?tags=a&tags=b&userId=&notebookId=.
// Tags may also be comma separated, as in tags=a,b.
func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := model.NoteFilter{
		Tags:   splitTags(query["tags"]),
		UserID: strings.TrimSpace(query.Get("userId")),
	}
	if raw := strings.TrimSpace(query.Get("notebookId")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid notebookId parameter", nil)
			return
		}
		filter.NotebookID = &id
	}

	notes, err := h.Service.List(r.Context(), filter, caller(r))
	if err != nil {
		h.fail(w, "list notes", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, notes)
}

func (h *NoteHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}

	note, err := h.Service.Get(r.Context(), id, caller(r))
	if err != nil {
		h.fail(w, "get note", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req model.CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	note, err := h.Service.Create(r.Context(), req, caller(r))
	if err != nil {
		h.fail(w, "create note", err)
		return
	}
	w.Header().Set("Location", "/api/v1/notes/"+strconv.FormatInt(note.ID, 10))
	middleware.WriteJSON(w, http.StatusCreated, note)
}

func (h *NoteHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}

	var req model.UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	note, err := h.Service.Update(r.Context(), id, req, caller(r))
	if err != nil {
		h.fail(w, "update note", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}

	if err := h.Service.Delete(r.Context(), id, caller(r)); err != nil {
		h.fail(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail maps service errors onto HTTP statuses. Only unexpected failures are
// logged at error level.
func (h *NoteHandler) fail(w http.ResponseWriter, action string, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		middleware.WriteError(w, http.StatusBadRequest, "Validation failed", verr.Fields)
	case errors.Is(err, service.ErrUnauthorized):
		middleware.WriteError(w, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, service.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, service.ErrStoreUnavailable):
		logger.Sugar.Warnf("Handler: Failed to %s: %v", action, err)
		middleware.WriteError(w, http.StatusServiceUnavailable, "Note store is unavailable", nil)
	default:
		logger.Sugar.Errorf("Handler: Failed to %s: %v", action, err)
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}

func splitTags(values []string) []string {
	var tags []string
	for _, v := range values {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				tags = append(tags, name)
			}
		}
	}
	return tags
}

func noteID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid note id", nil)
		return 0, false
	}
	return id, true
}

func caller(r *http.Request) model.Identity {
	id, _ := middleware.IdentityFrom(r.Context())
	return id
}
