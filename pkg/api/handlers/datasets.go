package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/marmos91/zcore/pkg/zfs"
)

// DatasetHandler handles dataset API endpoints.
type DatasetHandler struct {
	client *zfs.Client
}

// NewDatasetHandler creates a new DatasetHandler.
func NewDatasetHandler(client *zfs.Client) *DatasetHandler {
	return &DatasetHandler{client: client}
}

// CreateDatasetRequest is the request body for POST /api/v1/datasets.
type CreateDatasetRequest struct {
	// Name is the fully qualified dataset name. The parent must exist.
	Name string `json:"name"`

	// Type is "filesystem" or "volume". Empty means filesystem. Volumes
	// require a "volsize" property.
	Type string `json:"type,omitempty"`

	// Properties are applied at creation time.
	Properties map[string]any `json:"properties,omitempty"`
}

// DatasetResponse echoes the dataset a mutation acted on.
type DatasetResponse struct {
	Name string `json:"name"`
}

// Create handles POST /api/v1/datasets.
// Creates a new filesystem or volume.
func (h *DatasetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateDatasetRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Name == "" {
		BadRequest(w, "Dataset name is required")
		return
	}

	opts := &zfs.CreateOptions{Properties: normalizeProperties(req.Properties)}
	switch req.Type {
	case "", zfs.TypeFilesystem:
		opts.Type = zfs.DatasetFilesystem
	case zfs.TypeVolume:
		opts.Type = zfs.DatasetVolume
	default:
		BadRequest(w, fmt.Sprintf("Unknown dataset type %q", req.Type))
		return
	}

	if err := h.client.Create(r.Context(), req.Name, opts); err != nil {
		WriteFault(w, err)
		return
	}

	WriteJSONCreated(w, DatasetResponse{Name: req.Name})
}

// CloneRequest is the request body for POST /api/v1/datasets/clone.
type CloneRequest struct {
	// Name is the clone to create.
	Name string `json:"name"`

	// Origin is the snapshot the clone starts from.
	Origin string `json:"origin"`

	// Properties are applied at creation time.
	Properties map[string]any `json:"properties,omitempty"`
}

// Clone handles POST /api/v1/datasets/clone.
// Creates a dataset whose initial contents are the origin snapshot.
func (h *DatasetHandler) Clone(w http.ResponseWriter, r *http.Request) {
	var req CloneRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Name == "" || req.Origin == "" {
		BadRequest(w, "Clone name and origin snapshot are required")
		return
	}

	if err := h.client.Clone(r.Context(), req.Name, req.Origin, normalizeProperties(req.Properties)); err != nil {
		WriteFault(w, err)
		return
	}

	WriteJSONCreated(w, DatasetResponse{Name: req.Name})
}

// PromoteRequest is the request body for POST /api/v1/datasets/promote.
type PromoteRequest struct {
	Name string `json:"name"`
}

// Promote handles POST /api/v1/datasets/promote.
// Promotes a clone so it no longer depends on its origin.
func (h *DatasetHandler) Promote(w http.ResponseWriter, r *http.Request) {
	var req PromoteRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Name == "" {
		BadRequest(w, "Dataset name is required")
		return
	}

	if err := h.client.Promote(r.Context(), req.Name); err != nil {
		WriteFault(w, err)
		return
	}

	WriteJSONOK(w, DatasetResponse{Name: req.Name})
}

// RenameRequest is the request body for POST /api/v1/datasets/rename.
type RenameRequest struct {
	Name    string `json:"name"`
	NewName string `json:"new_name"`
}

// Rename handles POST /api/v1/datasets/rename.
// Renames a dataset within its pool.
func (h *DatasetHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Name == "" || req.NewName == "" {
		BadRequest(w, "Both the current and the new dataset name are required")
		return
	}

	if err := h.client.Rename(r.Context(), req.Name, req.NewName); err != nil {
		WriteFault(w, err)
		return
	}

	WriteJSONOK(w, DatasetResponse{Name: req.NewName})
}

// DestroyDatasetRequest is the request body for POST /api/v1/datasets/destroy.
type DestroyDatasetRequest struct {
	Name string `json:"name"`
}

// Destroy handles POST /api/v1/datasets/destroy.
// Destroys a single filesystem or volume. Snapshots are destroyed
// through the snapshot batch endpoint.
func (h *DatasetHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	var req DestroyDatasetRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Name == "" {
		BadRequest(w, "Dataset name is required")
		return
	}

	if err := h.client.Destroy(r.Context(), req.Name); err != nil {
		WriteFault(w, err)
		return
	}

	WriteNoContent(w)
}

// ExistsResponse is the response body for GET /api/v1/datasets.
type ExistsResponse struct {
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
}

// Exists handles GET /api/v1/datasets.
// Reports whether the dataset named by the "name" query parameter
// exists.
func (h *DatasetHandler) Exists(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		BadRequest(w, "Query parameter 'name' is required")
		return
	}

	exists, err := h.client.Exists(r.Context(), name)
	if err != nil {
		WriteFault(w, err)
		return
	}

	WriteJSONOK(w, ExistsResponse{Name: name, Exists: exists})
}

// ListDatasetsResponse is the response body for GET /api/v1/datasets/list.
type ListDatasetsResponse struct {
	Datasets []zfs.Dataset `json:"datasets"`
}

// List handles GET /api/v1/datasets/list.
// Enumerates datasets under the "root" query parameter, every pool when
// empty. "recurse=true" includes descendants; "types" is a
// comma-separated filter of dataset type labels.
func (h *DatasetHandler) List(w http.ResponseWriter, r *http.Request) {
	root := r.URL.Query().Get("root")

	opts := &zfs.ListOptions{
		Recurse: r.URL.Query().Get("recurse") == "true",
	}
	if t := r.URL.Query().Get("types"); t != "" {
		opts.Types = strings.Split(t, ",")
	}

	datasets, err := h.client.ListAll(r.Context(), root, opts)
	if err != nil {
		WriteFault(w, err)
		return
	}

	if datasets == nil {
		datasets = []zfs.Dataset{}
	}
	WriteJSONOK(w, ListDatasetsResponse{Datasets: datasets})
}

// RollbackRequest is the request body for POST /api/v1/datasets/rollback.
type RollbackRequest struct {
	// Filesystem is the dataset to roll back.
	Filesystem string `json:"filesystem"`

	// Snapshot optionally pins the rollback target. It must be the
	// filesystem's most recent snapshot. Empty rolls back to whatever
	// snapshot is most recent.
	Snapshot string `json:"snapshot,omitempty"`
}

// RollbackResponse is the response body for POST /api/v1/datasets/rollback.
type RollbackResponse struct {
	Filesystem string `json:"filesystem"`

	// Snapshot is the snapshot the filesystem now matches.
	Snapshot string `json:"snapshot"`
}

// Rollback handles POST /api/v1/datasets/rollback.
// Discards changes made since the filesystem's most recent snapshot.
func (h *DatasetHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	var req RollbackRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Filesystem == "" {
		BadRequest(w, "Filesystem name is required")
		return
	}

	snapshot := req.Snapshot
	if snapshot == "" {
		rolled, err := h.client.Rollback(r.Context(), req.Filesystem)
		if err != nil {
			WriteFault(w, err)
			return
		}
		snapshot = rolled
	} else {
		if err := h.client.RollbackTo(r.Context(), req.Filesystem, req.Snapshot); err != nil {
			WriteFault(w, err)
			return
		}
	}

	WriteJSONOK(w, RollbackResponse{Filesystem: req.Filesystem, Snapshot: snapshot})
}

// SyncPoolRequest is the request body for POST /api/v1/pools/sync.
type SyncPoolRequest struct {
	Pool string `json:"pool"`

	// Force also flushes when the pool has no dirty data.
	Force bool `json:"force,omitempty"`
}

// Sync handles POST /api/v1/pools/sync.
// Blocks until the pool's pending writes reach stable storage.
func (h *DatasetHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req SyncPoolRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Pool == "" {
		BadRequest(w, "Pool name is required")
		return
	}

	if err := h.client.Sync(r.Context(), req.Pool, req.Force); err != nil {
		WriteFault(w, err)
		return
	}

	WriteNoContent(w)
}
