package handlers

import (
	"net/http"
	"strings"

	"github.com/marmos91/zcore/pkg/zfs"
)

// BookmarkHandler handles bookmark API endpoints.
type BookmarkHandler struct {
	client *zfs.Client
}

// NewBookmarkHandler creates a new BookmarkHandler.
func NewBookmarkHandler(client *zfs.Client) *BookmarkHandler {
	return &BookmarkHandler{client: client}
}

// BookmarkSpec names one bookmark to create and the snapshot it
// preserves.
type BookmarkSpec struct {
	// Bookmark is the fully qualified bookmark name ("fs#mark").
	Bookmark string `json:"bookmark"`

	// Source is the snapshot to preserve ("fs@snap").
	Source string `json:"source"`
}

// CreateBookmarksRequest is the request body for POST /api/v1/bookmarks.
type CreateBookmarksRequest struct {
	Bookmarks []BookmarkSpec `json:"bookmarks"`
}

// CreateBookmarksResponse is the response body for POST /api/v1/bookmarks.
type CreateBookmarksResponse struct {
	Created []string `json:"created"`
}

// Create handles POST /api/v1/bookmarks.
// Creates the requested bookmarks atomically: all of them or none.
func (h *BookmarkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBookmarksRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if len(req.Bookmarks) == 0 {
		BadRequest(w, "At least one bookmark is required")
		return
	}

	reqs := make([]zfs.BookmarkRequest, 0, len(req.Bookmarks))
	created := make([]string, 0, len(req.Bookmarks))
	for _, b := range req.Bookmarks {
		reqs = append(reqs, zfs.BookmarkRequest{Bookmark: b.Bookmark, Source: b.Source})
		created = append(created, b.Bookmark)
	}

	if err := h.client.Bookmark(r.Context(), reqs); err != nil {
		WriteFault(w, err)
		return
	}

	WriteJSONCreated(w, CreateBookmarksResponse{Created: created})
}

// DestroyBookmarksRequest is the request body for POST /api/v1/bookmarks/destroy.
type DestroyBookmarksRequest struct {
	Bookmarks []string `json:"bookmarks"`
}

// Destroy handles POST /api/v1/bookmarks/destroy.
// Destroys the named bookmarks; bookmarks that no longer exist are
// reported as soft misses, not errors.
func (h *BookmarkHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	var req DestroyBookmarksRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if len(req.Bookmarks) == 0 {
		BadRequest(w, "At least one bookmark is required")
		return
	}

	misses, err := h.client.DestroyBookmarks(r.Context(), req.Bookmarks)
	if err != nil {
		WriteFault(w, err)
		return
	}

	WriteJSONOK(w, batchResult(misses))
}

// List handles GET /api/v1/bookmarks.
// Lists the bookmarks of the filesystem named by the "filesystem"
// query parameter, keyed by short name. The optional "props" parameter
// is a comma-separated list of numeric properties to include
// ("guid", "createtxg", "creation").
func (h *BookmarkHandler) List(w http.ResponseWriter, r *http.Request) {
	fs := r.URL.Query().Get("filesystem")
	if fs == "" {
		BadRequest(w, "Query parameter 'filesystem' is required")
		return
	}

	var props []string
	if p := r.URL.Query().Get("props"); p != "" {
		props = strings.Split(p, ",")
	}

	bookmarks, err := h.client.GetBookmarks(r.Context(), fs, props)
	if err != nil {
		WriteFault(w, err)
		return
	}

	WriteJSONOK(w, bookmarks)
}
