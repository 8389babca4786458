package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/eldridge/lorevault/internal/apperr"
	"github.com/go-chi/chi/v5"
)

// Handler holds API route handlers.
type Handler struct {
	svc *Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// ListCategories handles GET /api/categories.
//
//	@Summary		List record categories
//	@Tags			categories
//	@Produce		json
//	@Success		200	{object}	CategoryListResponse
//	@Security		BearerAuth
//	@Router			/categories [get]
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.Categories()
	if err != nil {
		slog.Error("list categories failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": cats,
	})
}

// GetTemplate handles GET /api/categories/{category}/template.
//
//	@Summary		Get the template document for a category
//	@Tags			categories
//	@Produce		json
//	@Param			category	path		string	true	"Category name"
//	@Success		200			{object}	TemplateResponse
//	@Security		BearerAuth
//	@Router			/categories/{category}/template [get]
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	md, real := h.svc.Template(category)
	writeJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"template": md,
		"fallback": !real,
		"fields":   h.svc.TemplateFields(category),
	})
}

// ListRecords handles GET /api/categories/{category}/records.
//
//	@Summary		List records with optional pagination and filtering
//	@Tags			records
//	@Produce		json
//	@Param			category	path		string	true	"Category name"
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Param			tag			query		string	false	"Filter by tag"
//	@Param			sort		query		string	false	"Sort field"	Enums(name, modified)
//	@Success		200			{object}	RecordListResponse
//	@Security		BearerAuth
//	@Router			/categories/{category}/records [get]
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	tag := q.Get("tag")
	sort := q.Get("sort")

	items, total, err := h.svc.ListRecords(category, limit, offset, tag, sort)
	if err != nil {
		slog.Error("list records failed", slog.String("category", category), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records": items,
		"total":   total,
	})
}

// GetRecord handles GET /api/categories/{category}/records/{id}.
//
//	@Summary		Get a single record
//	@Tags			records
//	@Produce		json
//	@Param			category	path		string	true	"Category name"
//	@Param			id			path		string	true	"Record id"
//	@Success		200			{object}	RecordDetail
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/categories/{category}/records/{id} [get]
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	id := chi.URLParam(r, "id")
	rec, err := h.svc.GetRecord(category, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get record failed", slog.String("category", category), slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CreateRecord handles POST /api/categories/{category}/records.
//
//	@Summary		Create a new record
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			category	path		string				true	"Category name"
//	@Param			body		body		CreateRecordRequest	true	"Record to create"
//	@Success		201			{object}	RecordDetail
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/categories/{category}/records [post]
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	category := chi.URLParam(r, "category")
	var req struct {
		Name   string         `json:"name"`
		Values map[string]any `json:"values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	rec, err := h.svc.CreateRecord(category, req.Name, req.Values)
	if err != nil {
		slog.Error("create record failed", slog.String("category", category), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// UpdateRecord handles PUT /api/categories/{category}/records/{id}.
//
//	@Summary		Update record values with optimistic concurrency
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			category	path		string				true	"Category name"
//	@Param			id			path		string				true	"Record id"
//	@Param			If-Match	header		string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		UpdateRecordRequest	true	"Updated values"
//	@Success		200			{object}	RecordDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/categories/{category}/records/{id} [put]
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	category := chi.URLParam(r, "category")
	id := chi.URLParam(r, "id")
	var req struct {
		Values map[string]any `json:"values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if len(req.Values) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("values are required"))
		return
	}

	ifMatch := r.Header.Get("If-Match")
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch = strings.Trim(ifMatch, `"`)

	rec, err := h.svc.UpdateRecord(category, id, req.Values, ifMatch)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
		default:
			slog.Error("update record failed", slog.String("category", category), slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		}
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteRecord handles DELETE /api/categories/{category}/records/{id}.
//
//	@Summary		Delete a record and its images
//	@Tags			records
//	@Param			category	path	string	true	"Category name"
//	@Param			id			path	string	true	"Record id"
//	@Success		204			"Record deleted"
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/categories/{category}/records/{id} [delete]
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteRecord(category, id); err != nil {
		slog.Error("delete record failed", slog.String("category", category), slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DuplicateRecord handles POST /api/categories/{category}/records/{id}/duplicate.
//
//	@Summary		Duplicate a record including its images
//	@Tags			records
//	@Produce		json
//	@Param			category	path		string	true	"Category name"
//	@Param			id			path		string	true	"Record id"
//	@Success		201			{object}	RecordDetail
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/categories/{category}/records/{id}/duplicate [post]
func (h *Handler) DuplicateRecord(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	id := chi.URLParam(r, "id")
	rec, err := h.svc.DuplicateRecord(r.Context(), category, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("duplicate record failed", slog.String("category", category), slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// Backlinks handles GET /api/categories/{category}/records/{id}/backlinks.
//
//	@Summary		List records linking to this record
//	@Tags			links
//	@Produce		json
//	@Param			category	path		string	true	"Category name"
//	@Param			id			path		string	true	"Record id"
//	@Success		200			{object}	BacklinksResponse
//	@Security		BearerAuth
//	@Router			/categories/{category}/records/{id}/backlinks [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	id := chi.URLParam(r, "id")
	refs, err := h.svc.Backlinks(category, id)
	if err != nil {
		slog.Error("backlinks failed", slog.String("category", category), slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"backlinks": refs,
	})
}

// ResolveLink handles GET /api/links/resolve.
//
//	@Summary		Resolve a link target to its display name
//	@Tags			links
//	@Produce		json
//	@Param			category	query		string	true	"Target category"
//	@Param			id			query		string	true	"Target record id"
//	@Success		200			{object}	world.Resolution
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links/resolve [get]
func (h *Handler) ResolveLink(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := q.Get("category")
	id := q.Get("id")
	if category == "" || id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("category and id are required"))
		return
	}
	writeJSON(w, http.StatusOK, h.svc.ResolveLink(category, id))
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across records
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}
