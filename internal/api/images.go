package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
)

const maxUploadBytes = 50 << 20 // 50 MB

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// slugSegmentRe matches a single category or record-id path segment.
// Record ids are slugified on creation and categories are template file
// stems, so anything outside this charset is a crafted path.
var slugSegmentRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ImageHandler accepts and serves per-record image files.
type ImageHandler struct {
	worldRoot string
	// recordExists guards uploads against minting image directories for
	// ids that have no record file. Nil disables the check (serve-only use).
	recordExists func(category, id string) bool
}

// NewImageHandler creates a handler rooted at the world directory.
func NewImageHandler(worldRoot string, recordExists func(category, id string) bool) *ImageHandler {
	return &ImageHandler{worldRoot: worldRoot, recordExists: recordExists}
}

// imageDir returns the absolute path to a record's image directory.
func (h *ImageHandler) imageDir(category, id string) string {
	return filepath.Join(h.worldRoot, "records", category, "images", id)
}

// safeName validates that the filename is a plain image name (no path
// separators, no traversal, allowed extension) and returns the absolute path
// under the record's image directory.
func (h *ImageHandler) safeName(category, id, name string) (string, error) {
	if !slugSegmentRe.MatchString(category) {
		return "", fmt.Errorf("invalid category: %s", category)
	}
	if !slugSegmentRe.MatchString(id) {
		return "", fmt.Errorf("invalid record id: %s", id)
	}
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	if !imageExts[strings.ToLower(filepath.Ext(cleaned))] {
		return "", fmt.Errorf("unsupported image type: %s", filepath.Ext(cleaned))
	}
	dir := h.imageDir(category, id)
	abs := filepath.Join(dir, cleaned)
	if !strings.HasPrefix(abs, dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes image directory")
	}
	return abs, nil
}

// ServeFile handles GET /images/{category}/{id}/{filename}.
func (h *ImageHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	id := chi.URLParam(r, "id")
	abs, err := h.safeName(category, id, chi.URLParam(r, "filename"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}

// Upload handles POST /api/categories/{category}/records/{id}/images
// (multipart/form-data, field "file"). The response includes the
// world-relative path suitable for an image field value.
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	category := chi.URLParam(r, "category")
	id := chi.URLParam(r, "id")

	if h.recordExists != nil && !h.recordExists(category, id) {
		writeJSON(w, http.StatusNotFound, errorBody(fmt.Sprintf("record not found: %s/%s", category, id)))
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	abs, err := h.safeName(category, id, header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	if err := os.MkdirAll(h.imageDir(category, id), 0o755); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to create image dir"))
		return
	}

	dst, err := os.Create(abs)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to create file"))
		return
	}
	defer dst.Close()

	written, err := io.Copy(dst, file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to write file"))
		return
	}

	rel := filepath.ToSlash(filepath.Join("records", category, "images", id, filepath.Base(abs)))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"filename": filepath.Base(abs),
		"size":     written,
		"path":     rel,
	})
}
