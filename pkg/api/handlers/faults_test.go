package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/pkg/zfs/zerrors"
)

func TestStatusForCode(t *testing.T) {
	tests := []struct {
		code zerrors.Code
		want int
	}{
		{zerrors.ErrNameInvalid, http.StatusBadRequest},
		{zerrors.ErrNameTooLong, http.StatusBadRequest},
		{zerrors.ErrPropertyInvalid, http.StatusBadRequest},
		{zerrors.ErrMultipleTargets, http.StatusBadRequest},
		{zerrors.ErrPoolsDiffer, http.StatusBadRequest},
		{zerrors.ErrStreamCorrupt, http.StatusBadRequest},
		{zerrors.ErrDatasetNotFound, http.StatusNotFound},
		{zerrors.ErrDatasetExists, http.StatusConflict},
		{zerrors.ErrDatasetBusy, http.StatusConflict},
		{zerrors.ErrSnapshotMismatch, http.StatusConflict},
		{zerrors.ErrDestinationModified, http.StatusConflict},
		{zerrors.ErrPermissionDenied, http.StatusForbidden},
		{zerrors.ErrNoSpace, http.StatusInsufficientStorage},
		{zerrors.ErrNotSupported, http.StatusNotImplemented},
		{zerrors.ErrInitializationFailed, http.StatusServiceUnavailable},
		{zerrors.ErrUnclassified, http.StatusInternalServerError},
		{zerrors.ErrInternal, http.StatusInternalServerError},
		{zerrors.ErrBadFileDescriptor, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			if got := statusForCode(tt.code); got != tt.want {
				t.Errorf("statusForCode(%s) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestWriteFault(t *testing.T) {
	t.Run("batch error carries per-target faults", func(t *testing.T) {
		batch := zerrors.NewBatchError(zerrors.ErrDatasetExists, "snapshot", unix.EEXIST, []*zerrors.Error{
			zerrors.New(zerrors.ErrDatasetExists, "snapshot", "tank/a@s1", unix.EEXIST),
			zerrors.New(zerrors.ErrDatasetBusy, "snapshot", "tank/b@s1", unix.EBUSY),
		})

		w := httptest.NewRecorder()
		WriteFault(w, batch)

		if w.Code != http.StatusConflict {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
		}
		if ct := w.Header().Get("Content-Type"); ct != ContentTypeProblemJSON {
			t.Errorf("Content-Type = %s, want %s", ct, ContentTypeProblemJSON)
		}

		var problem Problem
		decodeResponse(t, w, &problem)
		if problem.Status != http.StatusConflict {
			t.Errorf("Problem status = %d, want %d", problem.Status, http.StatusConflict)
		}
		if len(problem.Faults) != 2 {
			t.Fatalf("Expected 2 faults, got %+v", problem.Faults)
		}
		if problem.Faults[0].Target != "tank/a@s1" || problem.Faults[0].Kind != "DatasetExists" {
			t.Errorf("Fault[0] = %+v, want tank/a@s1 DatasetExists", problem.Faults[0])
		}
		if problem.Faults[1].Target != "tank/b@s1" || problem.Faults[1].Kind != "DatasetBusy" {
			t.Errorf("Fault[1] = %+v, want tank/b@s1 DatasetBusy", problem.Faults[1])
		}
		if problem.Faults[0].Errno != int(unix.EEXIST) {
			t.Errorf("Fault[0] errno = %d, want %d", problem.Faults[0].Errno, int(unix.EEXIST))
		}
	})

	t.Run("single error renders a plain problem", func(t *testing.T) {
		err := zerrors.New(zerrors.ErrDatasetNotFound, "rollback", "tank/ghost", unix.ENOENT)

		w := httptest.NewRecorder()
		WriteFault(w, err)

		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
		}

		var problem Problem
		decodeResponse(t, w, &problem)
		if len(problem.Faults) != 0 {
			t.Errorf("Expected no faults extension, got %+v", problem.Faults)
		}
		if problem.Detail == "" {
			t.Error("Expected problem detail")
		}
	})

	t.Run("local validation error maps without errno", func(t *testing.T) {
		err := zerrors.NewNameInvalidError("snapshot", "tank/a", "missing delimiter")

		w := httptest.NewRecorder()
		WriteFault(w, err)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("unclassified error degrades to internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteFault(w, errors.New("boom"))

		if w.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
	})
}
