package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/zcore/pkg/journal"
)

// DefaultJournalLimit bounds journal listings when the request does not
// carry an explicit limit.
const DefaultJournalLimit = 100

// JournalHandler handles operation journal API endpoints.
type JournalHandler struct {
	store *journal.Store
}

// NewJournalHandler creates a new JournalHandler.
// The store may be nil when journaling is disabled; every endpoint then
// reports 503.
func NewJournalHandler(store *journal.Store) *JournalHandler {
	return &JournalHandler{store: store}
}

// available writes a 503 problem and returns false when journaling is
// disabled.
func (h *JournalHandler) available(w http.ResponseWriter) bool {
	if h.store == nil {
		WriteProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "Journal is not enabled")
		return false
	}
	return true
}

// ListJournalResponse is the response body for GET /api/v1/journal.
type ListJournalResponse struct {
	Entries []*journal.Entry `json:"entries"`
}

// List handles GET /api/v1/journal.
// Lists journal entries newest first. Optional query parameters:
// "op", "outcome" and "target" filter the listing, "since" (RFC 3339)
// drops older entries, "limit" bounds the result (default 100).
func (h *JournalHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	filter := journal.Filter{
		Op:      r.URL.Query().Get("op"),
		Outcome: r.URL.Query().Get("outcome"),
		Target:  r.URL.Query().Get("target"),
		Limit:   DefaultJournalLimit,
	}

	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			BadRequest(w, "Query parameter 'since' must be an RFC 3339 timestamp")
			return
		}
		filter.Since = t
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			BadRequest(w, "Query parameter 'limit' must be a positive integer")
			return
		}
		filter.Limit = n
	}

	entries, err := h.store.List(r.Context(), filter)
	if err != nil {
		InternalServerError(w, "Failed to list journal entries")
		return
	}

	if entries == nil {
		entries = []*journal.Entry{}
	}
	WriteJSONOK(w, ListJournalResponse{Entries: entries})
}

// Get handles GET /api/v1/journal/{id}.
// Returns a single journal entry.
func (h *JournalHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	id := chi.URLParam(r, "id")
	entry, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, journal.ErrEntryNotFound) {
			NotFound(w, "Journal entry not found")
			return
		}
		InternalServerError(w, "Failed to get journal entry")
		return
	}

	WriteJSONOK(w, entry)
}

// PruneJournalRequest is the request body for POST /api/v1/journal/prune.
type PruneJournalRequest struct {
	// Before is the cutoff: entries recorded before it are removed.
	Before time.Time `json:"before"`
}

// PruneJournalResponse is the response body for POST /api/v1/journal/prune.
type PruneJournalResponse struct {
	Pruned int64 `json:"pruned"`
}

// Prune handles POST /api/v1/journal/prune.
// Removes journal entries recorded before the cutoff.
func (h *JournalHandler) Prune(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	var req PruneJournalRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Before.IsZero() {
		BadRequest(w, "Cutoff timestamp 'before' is required")
		return
	}

	pruned, err := h.store.Prune(r.Context(), req.Before)
	if err != nil {
		InternalServerError(w, "Failed to prune journal entries")
		return
	}

	WriteJSONOK(w, PruneJournalResponse{Pruned: pruned})
}
