package handlers

import (
	"net/http"

	"github.com/marmos91/zcore/pkg/engine"
	"github.com/marmos91/zcore/pkg/zfs"
)

// HoldHandler handles hold API endpoints.
type HoldHandler struct {
	client *zfs.Client
}

// NewHoldHandler creates a new HoldHandler.
func NewHoldHandler(client *zfs.Client) *HoldHandler {
	return &HoldHandler{client: client}
}

// HoldSpec names one hold to place.
type HoldSpec struct {
	// Snapshot is the fully qualified snapshot to hold.
	Snapshot string `json:"snapshot"`

	// Tag names the hold.
	Tag string `json:"tag"`
}

// CreateHoldsRequest is the request body for POST /api/v1/holds.
type CreateHoldsRequest struct {
	Holds []HoldSpec `json:"holds"`
}

// Create handles POST /api/v1/holds.
// Places the requested holds. Snapshots that do not exist are reported
// as soft misses, not errors. Holds placed through the API are never
// bound to a cleanup descriptor; they persist until released.
func (h *HoldHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateHoldsRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if len(req.Holds) == 0 {
		BadRequest(w, "At least one hold is required")
		return
	}

	reqs := make([]zfs.HoldRequest, 0, len(req.Holds))
	for _, spec := range req.Holds {
		reqs = append(reqs, zfs.HoldRequest{Snapshot: spec.Snapshot, Tag: spec.Tag})
	}

	misses, err := h.client.Hold(r.Context(), reqs, engine.NoFD)
	if err != nil {
		WriteFault(w, err)
		return
	}

	WriteJSONCreated(w, batchResult(misses))
}

// ReleaseSpec names hold tags to release from one snapshot.
type ReleaseSpec struct {
	Snapshot string   `json:"snapshot"`
	Tags     []string `json:"tags"`
}

// ReleaseHoldsRequest is the request body for POST /api/v1/holds/release.
type ReleaseHoldsRequest struct {
	Releases []ReleaseSpec `json:"releases"`
}

// Release handles POST /api/v1/holds/release.
// Releases the named holds. A missing snapshot is a soft miss under its
// own name; a missing tag on an existing snapshot is a soft miss under
// "snapshot#tag".
func (h *HoldHandler) Release(w http.ResponseWriter, r *http.Request) {
	var req ReleaseHoldsRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if len(req.Releases) == 0 {
		BadRequest(w, "At least one release is required")
		return
	}

	reqs := make([]zfs.ReleaseRequest, 0, len(req.Releases))
	for _, spec := range req.Releases {
		reqs = append(reqs, zfs.ReleaseRequest{Snapshot: spec.Snapshot, Tags: spec.Tags})
	}

	misses, err := h.client.Release(r.Context(), reqs)
	if err != nil {
		WriteFault(w, err)
		return
	}

	WriteJSONOK(w, batchResult(misses))
}

// List handles GET /api/v1/holds.
// Lists the holds on the snapshot named by the "snapshot" query
// parameter, keyed by tag with each hold's creation time.
func (h *HoldHandler) List(w http.ResponseWriter, r *http.Request) {
	snapshot := r.URL.Query().Get("snapshot")
	if snapshot == "" {
		BadRequest(w, "Query parameter 'snapshot' is required")
		return
	}

	holds, err := h.client.GetHolds(r.Context(), snapshot)
	if err != nil {
		WriteFault(w, err)
		return
	}

	WriteJSONOK(w, holds)
}
