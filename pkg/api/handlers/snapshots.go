package handlers

import (
	"net/http"

	"github.com/marmos91/zcore/pkg/zfs"
)

// SnapshotHandler handles snapshot API endpoints.
type SnapshotHandler struct {
	client *zfs.Client
}

// NewSnapshotHandler creates a new SnapshotHandler.
func NewSnapshotHandler(client *zfs.Client) *SnapshotHandler {
	return &SnapshotHandler{client: client}
}

// CreateSnapshotsRequest is the request body for POST /api/v1/snapshots.
type CreateSnapshotsRequest struct {
	// Snapshots are fully qualified names ("fs@snap"). They may span
	// filesystems but must share a pool.
	Snapshots []string `json:"snapshots"`

	// Properties are user properties applied to every snapshot.
	Properties map[string]any `json:"properties,omitempty"`
}

// CreateSnapshotsResponse is the response body for POST /api/v1/snapshots.
type CreateSnapshotsResponse struct {
	Created []string `json:"created"`
}

// BatchResult is the response body for batch operations that tolerate
// absent targets. SoftMisses lists the requested targets that were
// already gone.
type BatchResult struct {
	SoftMisses []string `json:"soft_misses"`
}

// batchResult normalizes a soft-miss list for API output.
func batchResult(misses []string) BatchResult {
	if misses == nil {
		misses = []string{}
	}
	return BatchResult{SoftMisses: misses}
}

// Create handles POST /api/v1/snapshots.
// Creates the named snapshots atomically: all of them or none.
func (h *SnapshotHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSnapshotsRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if len(req.Snapshots) == 0 {
		BadRequest(w, "At least one snapshot is required")
		return
	}

	var opts *zfs.SnapshotOptions
	if props := normalizeProperties(req.Properties); props != nil {
		opts = &zfs.SnapshotOptions{Properties: props}
	}

	if err := h.client.Snapshot(r.Context(), req.Snapshots, opts); err != nil {
		WriteFault(w, err)
		return
	}

	WriteJSONCreated(w, CreateSnapshotsResponse{Created: req.Snapshots})
}

// DestroySnapshotsRequest is the request body for POST /api/v1/snapshots/destroy.
type DestroySnapshotsRequest struct {
	Snapshots []string `json:"snapshots"`

	// Defer marks snapshots with holds or clones for destruction when
	// the last of them goes away, instead of failing the batch.
	Defer bool `json:"defer,omitempty"`
}

// Destroy handles POST /api/v1/snapshots/destroy.
// Destroys the named snapshots; snapshots that no longer exist are
// reported as soft misses, not errors.
func (h *SnapshotHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	var req DestroySnapshotsRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if len(req.Snapshots) == 0 {
		BadRequest(w, "At least one snapshot is required")
		return
	}

	var opts *zfs.DestroyOptions
	if req.Defer {
		opts = &zfs.DestroyOptions{Defer: true}
	}

	misses, err := h.client.DestroySnapshots(r.Context(), req.Snapshots, opts)
	if err != nil {
		WriteFault(w, err)
		return
	}

	WriteJSONOK(w, batchResult(misses))
}

// SpaceResponse is the response body for stream size estimates.
type SpaceResponse struct {
	Snapshot string `json:"snapshot"`
	From     string `json:"from,omitempty"`
	Bytes    uint64 `json:"bytes"`
}

// Space handles GET /api/v1/snapshots/space.
// Estimates the size of the replication stream for the snapshot named
// by the "snapshot" query parameter, incremental from the optional
// "from" source.
func (h *SnapshotHandler) Space(w http.ResponseWriter, r *http.Request) {
	snapshot := r.URL.Query().Get("snapshot")
	if snapshot == "" {
		BadRequest(w, "Query parameter 'snapshot' is required")
		return
	}

	var opts *zfs.SendOptions
	from := r.URL.Query().Get("from")
	if from != "" {
		opts = &zfs.SendOptions{From: from}
	}

	bytes, err := h.client.SendSpace(r.Context(), snapshot, opts)
	if err != nil {
		WriteFault(w, err)
		return
	}

	WriteJSONOK(w, SpaceResponse{Snapshot: snapshot, From: from, Bytes: bytes})
}

// RangeSpaceResponse is the response body for snapshot range size
// estimates.
type RangeSpaceResponse struct {
	First string `json:"first"`
	Last  string `json:"last"`
	Bytes uint64 `json:"bytes"`
}

// RangeSpace handles GET /api/v1/snapshots/range-space.
// Estimates the space consumed by the snapshots between "first" and
// "last", inclusive.
func (h *SnapshotHandler) RangeSpace(w http.ResponseWriter, r *http.Request) {
	first := r.URL.Query().Get("first")
	last := r.URL.Query().Get("last")
	if first == "" || last == "" {
		BadRequest(w, "Query parameters 'first' and 'last' are required")
		return
	}

	bytes, err := h.client.SnapshotRangeSpace(r.Context(), first, last)
	if err != nil {
		WriteFault(w, err)
		return
	}

	WriteJSONOK(w, RangeSpaceResponse{First: first, Last: last, Bytes: bytes})
}
