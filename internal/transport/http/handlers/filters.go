package handlers

import (
	"net/http"

	"github.com/JeevanMahesha/studio/internal/filterstate"
	apierrors "github.com/JeevanMahesha/studio/internal/transport/http/errors"
)

func (h *Handlers) GetFilters(w http.ResponseWriter, r *http.Request) {
	st, err := h.Service.Filters(r.Context(), session(r))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, st)
}

// PatchFilters — PATCH /filters. Смена поиска, статуса или сортировки сбрасывает страницу на 1.
func (h *Handlers) PatchFilters(w http.ResponseWriter, r *http.Request) {
	var in filterstate.Patch
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	st, err := h.Service.ApplyFilters(r.Context(), session(r), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, st)
}

func (h *Handlers) ClearFilters(w http.ResponseWriter, r *http.Request) {
	st, err := h.Service.ClearFilters(r.Context(), session(r))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, st)
}
