package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JeevanMahesha/studio/internal/models"
	"github.com/JeevanMahesha/studio/internal/service"
	apierrors "github.com/JeevanMahesha/studio/internal/transport/http/errors"
)

type createStatusRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListStatuses — GET /statuses. По умолчанию по имени; order=priority — по приоритету отображения.
func (h *Handlers) ListStatuses(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListStatuses(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	switch r.URL.Query().Get("order") {
	case "", "name":
	case "priority":
		service.SortByPriority(list)
	default:
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"statuses": list})
}

func (h *Handlers) CreateStatus(w http.ResponseWriter, r *http.Request) {
	var in createStatusRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	created, err := h.Service.CreateStatus(r.Context(), session(r), models.ProfileStatus{
		Name:        in.Name,
		Description: in.Description,
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.Header().Set("Location", "/statuses/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var in models.StatusUpdate
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	updated, err := h.Service.UpdateStatus(r.Context(), session(r), chi.URLParam(r, "id"), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// DeleteStatus — DELETE /statuses/{id}; 409 status_in_use, если статус используется.
func (h *Handlers) DeleteStatus(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteStatus(r.Context(), session(r), chi.URLParam(r, "id")); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
