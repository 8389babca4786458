package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// worldRoot is used to resolve image upload paths.
func NewRouter(svc *Service, authEnabled bool, token string, sseHandler http.Handler, worldRoot string) chi.Router {
	h := NewHandler(svc)
	ih := NewImageHandler(worldRoot, svc.RecordExists)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Categories and templates.
	r.Get("/categories", h.ListCategories)
	r.Get("/categories/{category}/template", h.GetTemplate)

	// Records CRUD.
	r.Get("/categories/{category}/records", h.ListRecords)
	r.Post("/categories/{category}/records", h.CreateRecord)
	r.Get("/categories/{category}/records/{id}", h.GetRecord)
	r.Put("/categories/{category}/records/{id}", h.UpdateRecord)
	r.Delete("/categories/{category}/records/{id}", h.DeleteRecord)
	r.Post("/categories/{category}/records/{id}/duplicate", h.DuplicateRecord)
	r.Get("/categories/{category}/records/{id}/backlinks", h.Backlinks)

	// Search.
	r.Get("/search", h.Search)

	// Link resolution.
	r.Get("/links/resolve", h.ResolveLink)

	// Image upload (auth-protected).
	r.Post("/categories/{category}/records/{id}/images", ih.Upload)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
