package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JeevanMahesha/studio/internal/filterstate"
	"github.com/JeevanMahesha/studio/internal/models"
	apierrors "github.com/JeevanMahesha/studio/internal/transport/http/errors"
)

// profilePageResponse — страница списка вместе с фильтрами сессии.
type profilePageResponse struct {
	Items         []models.Profile  `json:"items"`
	Total         int64             `json:"total"`
	Page          int32             `json:"page"`
	PageSize      int32             `json:"pageSize"`
	NextPageToken string            `json:"nextPageToken,omitempty"`
	Filters       filterstate.State `json:"filters"`
	// Placeholder — показана предыдущая страница, текущая ещё грузится.
	Placeholder bool `json:"placeholder"`
	Refreshing  bool `json:"refreshing"`
}

// createProfileRequest — тело POST /profiles. Id и метки времени назначает сервер.
type createProfileRequest struct {
	Name           string   `json:"name"`
	CasteRaise     string   `json:"casteRaise"`
	Age            int      `json:"age"`
	Star           string   `json:"star"`
	StarMatchScore float64  `json:"starMatchScore"`
	City           string   `json:"city"`
	State          string   `json:"state"`
	MobileNumber   string   `json:"mobileNumber"`
	StatusID       string   `json:"statusId"`
	MatrimonyID    string   `json:"matrimonyId"`
	Comments       []string `json:"comments"`
}

func (c createProfileRequest) model() models.Profile {
	return models.Profile{
		Name:           c.Name,
		CasteRaise:     c.CasteRaise,
		Age:            c.Age,
		Star:           c.Star,
		StarMatchScore: c.StarMatchScore,
		City:           c.City,
		State:          c.State,
		MobileNumber:   c.MobileNumber,
		StatusID:       c.StatusID,
		MatrimonyID:    c.MatrimonyID,
		Comments:       c.Comments,
	}
}

// filterPatchFromQuery собирает изменение фильтров из query (search, status, sort, page).
// Присутствующий пустой status — режим по умолчанию.
func filterPatchFromQuery(r *http.Request) (filterstate.Patch, bool, error) {
	q := r.URL.Query()
	var (
		p       filterstate.Patch
		changed bool
	)

	if q.Has("search") {
		v := q.Get("search")
		p.SearchTerm, changed = &v, true
	}
	if q.Has("status") {
		v := models.StatusFilter(strings.TrimSpace(q.Get("status")))
		p.StatusFilter, changed = &v, true
	}
	if q.Has("sort") {
		v := q.Get("sort")
		p.SortBy, changed = &v, true
	}

	page, ok, err := queryInt32(r, "page")
	if err != nil {
		return filterstate.Patch{}, false, err
	}
	if ok {
		p.CurrentPage, changed = &page, true
	}

	return p, changed, nil
}

// ListProfiles — GET /profiles.
//
// Без page_token: параметры search/status/sort/page сохраняются в фильтры сессии,
// затем отдаётся страница по фильтрам. С page_token: выдача после токена по
// фильтрам сессии, без их изменения.
func (h *Handlers) ListProfiles(w http.ResponseWriter, r *http.Request) {
	size, _, err := queryInt32(r, "page_size")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	patch, changed, err := filterPatchFromQuery(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if token := r.URL.Query().Get("page_token"); token != "" {
		h.listAfter(w, r, token, size)
		return
	}

	if changed {
		if _, err := h.Service.ApplyFilters(r.Context(), session(r), patch); err != nil {
			apierrors.WriteError(w, r, err)
			return
		}
	}

	view, err := h.Service.SessionProfiles(r.Context(), session(r), size)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profilePageResponse{
		Items:         view.Page.Items,
		Total:         view.Page.Total,
		Page:          view.Page.Page,
		PageSize:      view.Page.PageSize,
		NextPageToken: view.Page.NextPageToken,
		Filters:       view.Filters,
		Placeholder:   view.Placeholder,
		Refreshing:    view.Refreshing,
	})
}

func (h *Handlers) listAfter(w http.ResponseWriter, r *http.Request, token string, size int32) {
	st, err := h.Service.Filters(r.Context(), session(r))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	page, err := h.Service.ListProfilesAfter(r.Context(), st.Query(size), token)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profilePageResponse{
		Items:         page.Items,
		Total:         page.Total,
		PageSize:      page.PageSize,
		NextPageToken: page.NextPageToken,
		Filters:       st,
	})
}

// GetProfileOptions — GET /profiles/options.
func (h *Handlers) GetProfileOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.Service.ProfileOptions(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, opts)
}

func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.Profile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.Header().Set("Last-Modified", p.UpdatedAt.UTC().Format(http.TimeFormat))
	writeJSON(w, http.StatusOK, p)
}

// CreateProfile — POST /profiles; 201 и Location на карточку.
func (h *Handlers) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var in createProfileRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	created, err := h.Service.CreateProfile(r.Context(), session(r), in.model())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.Header().Set("Location", "/profiles/"+url.PathEscape(created.ID))
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in models.ProfileUpdate
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	updated, err := h.Service.UpdateProfile(r.Context(), session(r), chi.URLParam(r, "id"), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// DeleteProfile — DELETE /profiles/{id}; отвечает фильтрами сессии после удаления
// (страница могла сместиться назад).
func (h *Handlers) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	st, err := h.Service.DeleteProfile(r.Context(), session(r), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"filters": st})
}

// ListMutations — GET /mutations: состояния записей текущей сессии.
func (h *Handlers) ListMutations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"mutations": h.Service.Mutations().List(session(r))})
}
