package handlers

import (
	"errors"
	"net/http"

	"github.com/marmos91/zcore/pkg/zfs/zerrors"
)

// Fault is the wire form of a single classified engine failure.
type Fault struct {
	// Target is the dataset the failure is attributed to, if any.
	Target string `json:"target,omitempty"`

	// Kind is the fault classification, e.g. "DatasetNotFound".
	Kind string `json:"kind"`

	// Errno is the raw engine status, 0 for faults raised locally.
	Errno int `json:"errno,omitempty"`

	// Detail is a human-readable explanation of the failure.
	Detail string `json:"detail,omitempty"`
}

// statusForCode maps a fault classification to an HTTP status code.
func statusForCode(code zerrors.Code) int {
	switch code {
	case zerrors.ErrNameInvalid, zerrors.ErrNameTooLong, zerrors.ErrPropertyInvalid,
		zerrors.ErrMultipleTargets, zerrors.ErrPoolsDiffer, zerrors.ErrStreamCorrupt:
		return http.StatusBadRequest
	case zerrors.ErrDatasetNotFound:
		return http.StatusNotFound
	case zerrors.ErrDatasetExists, zerrors.ErrDatasetBusy, zerrors.ErrSnapshotMismatch,
		zerrors.ErrDestinationModified:
		return http.StatusConflict
	case zerrors.ErrPermissionDenied:
		return http.StatusForbidden
	case zerrors.ErrNoSpace:
		return http.StatusInsufficientStorage
	case zerrors.ErrNotSupported:
		return http.StatusNotImplemented
	case zerrors.ErrInitializationFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteFault renders an engine error as an RFC 7807 problem response.
// Batch failures carry one entry per faulted target in the faults
// extension member; everything else degrades to a plain problem.
func WriteFault(w http.ResponseWriter, err error) {
	if batch, ok := zerrors.AsBatch(err); ok {
		status := statusForCode(batch.Code)
		faults := make([]Fault, 0, len(batch.Faults))
		for _, f := range batch.Faults {
			faults = append(faults, Fault{
				Target: f.Target,
				Kind:   f.Code.String(),
				Errno:  int(f.Errno),
				Detail: f.Message,
			})
		}

		writeProblemJSON(w, &Problem{
			Type:   "about:blank",
			Title:  http.StatusText(status),
			Status: status,
			Detail: batch.Error(),
			Faults: faults,
		})
		return
	}

	var zerr *zerrors.Error
	if errors.As(err, &zerr) {
		status := statusForCode(zerr.Code)
		WriteProblem(w, status, http.StatusText(status), zerr.Error())
		return
	}

	InternalServerError(w, err.Error())
}
