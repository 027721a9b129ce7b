// Package zerrors provides the fault taxonomy for boundary operations.
// This is a leaf package with no internal dependencies, designed to be
// imported by the client, the engine adapters and the CLI without causing
// circular imports.
//
// Import graph: zerrors <- zfs <- cmd/api consumers
//
// A fault is either a single Error (one cause, optionally attributed to
// one target) or a BatchError (a compound fault carrying one Error per
// attributable target of a batch operation). Soft misses are not faults
// and never appear here; batch operations return them as data.
package zerrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sys/unix"
)

// Code classifies the kind of fault that occurred. Kinds are coarse by
// contract: where the engine cannot distinguish two causes of the same
// status (missing parent filesystem vs. missing origin snapshot, for
// example), a single coarser kind is used instead of guessing.
type Code int

const (
	// ErrNameInvalid indicates a dataset name violates the naming rules
	// (bad characters, wrong delimiter for the operation, empty component).
	ErrNameInvalid Code = iota + 1

	// ErrNameTooLong indicates a dataset name exceeds the engine's limit.
	ErrNameTooLong

	// ErrDatasetExists indicates the target already exists.
	ErrDatasetExists

	// ErrDatasetNotFound indicates a required dataset does not exist.
	// Deliberately coarser than "filesystem not found" vs "snapshot not
	// found": several operations receive one status for either cause.
	ErrDatasetNotFound

	// ErrPropertyInvalid indicates an unknown or badly typed property was
	// passed in an operation's property List.
	ErrPropertyInvalid

	// ErrPoolsDiffer indicates targets of one batch span multiple pools,
	// which the engine processes one pool at a time.
	ErrPoolsDiffer

	// ErrSnapshotMismatch indicates the named snapshot is not the most
	// recent one, so a rollback or incremental operation cannot use it.
	ErrSnapshotMismatch

	// ErrDestinationModified indicates a receive destination changed since
	// the incremental source snapshot was taken.
	ErrDestinationModified

	// ErrDatasetBusy indicates the target is held, cloned, mounted or
	// otherwise obstructed.
	ErrDatasetBusy

	// ErrStreamCorrupt indicates a replication stream failed its integrity
	// checks or uses a feature this engine does not understand.
	ErrStreamCorrupt

	// ErrMultipleTargets indicates an operation restricted to one target
	// received several (two snapshots of the same filesystem, for example).
	ErrMultipleTargets

	// ErrInitializationFailed indicates the process-wide engine handle
	// could not be established. Every call fails with this until the
	// process restarts.
	ErrInitializationFailed

	// ErrUnclassified is the compound kind used when the engine's signal
	// does not fit any documented kind; the per-target fault list carries
	// the raw codes.
	ErrUnclassified

	// ErrNoSpace indicates the pool is out of space or a quota is hit.
	ErrNoSpace

	// ErrPermissionDenied indicates the caller lacks the privilege for the
	// operation.
	ErrPermissionDenied

	// ErrBadFileDescriptor indicates the stream descriptor passed to a
	// send, receive or hold-cleanup operation is not usable.
	ErrBadFileDescriptor

	// ErrNotSupported indicates the engine does not implement the
	// operation or option.
	ErrNotSupported

	// ErrInternal indicates a broken invariant on our side of the
	// boundary: an undecodable reply List, or an error map that
	// contradicts the call's coarse status.
	ErrInternal
)

// String returns a human-readable name for the code.
func (c Code) String() string {
	switch c {
	case ErrNameInvalid:
		return "NameInvalid"
	case ErrNameTooLong:
		return "NameTooLong"
	case ErrDatasetExists:
		return "DatasetExists"
	case ErrDatasetNotFound:
		return "DatasetNotFound"
	case ErrPropertyInvalid:
		return "PropertyInvalid"
	case ErrPoolsDiffer:
		return "PoolsDiffer"
	case ErrSnapshotMismatch:
		return "SnapshotMismatch"
	case ErrDestinationModified:
		return "DestinationModified"
	case ErrDatasetBusy:
		return "DatasetBusy"
	case ErrStreamCorrupt:
		return "StreamCorrupt"
	case ErrMultipleTargets:
		return "MultipleTargets"
	case ErrInitializationFailed:
		return "InitializationFailed"
	case ErrUnclassified:
		return "Unclassified"
	case ErrNoSpace:
		return "NoSpace"
	case ErrPermissionDenied:
		return "PermissionDenied"
	case ErrBadFileDescriptor:
		return "BadFileDescriptor"
	case ErrNotSupported:
		return "NotSupported"
	case ErrInternal:
		return "Internal"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// Error is a single classified fault.
type Error struct {
	Code    Code
	Op      string     // boundary operation that raised the fault, if any
	Target  string     // dataset the fault is attributed to, if any
	Errno   unix.Errno // raw engine status, 0 for faults raised locally
	Message string
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code.String())
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Target != "" {
		fmt.Fprintf(&b, " (target: %s)", e.Target)
	}
	if e.Op != "" {
		fmt.Fprintf(&b, " (op: %s)", e.Op)
	}
	return b.String()
}

// Unwrap exposes the underlying cause, if the fault wraps one.
func (e *Error) Unwrap() error {
	return e.cause
}

// BatchError is a compound fault: one batch operation failed, with one
// Error per attributable target. Faults is sorted by target name so the
// message and any rendered listing are deterministic.
type BatchError struct {
	Code   Code
	Op     string
	Errno  unix.Errno // call-level status reported by the engine
	Faults []*Error
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	switch len(e.Faults) {
	case 0:
		return fmt.Sprintf("%s: %s failed", e.Code, e.Op)
	case 1:
		return fmt.Sprintf("%s: %s failed: %s", e.Code, e.Op, e.Faults[0].Error())
	default:
		return fmt.Sprintf("%s: %s failed for %d targets", e.Code, e.Op, len(e.Faults))
	}
}

// Targets returns the names the compound fault is attributed to, in
// sorted order.
func (e *BatchError) Targets() []string {
	names := make([]string, 0, len(e.Faults))
	for _, f := range e.Faults {
		names = append(names, f.Target)
	}
	return names
}

// SortFaults orders the per-target faults by target name.
func (e *BatchError) SortFaults() {
	sort.Slice(e.Faults, func(i, j int) bool {
		return e.Faults[i].Target < e.Faults[j].Target
	})
}

// ============================================================================
// Factory Functions
// ============================================================================

// New creates a classified fault with the default message for its code.
func New(code Code, op, target string, errno unix.Errno) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Target:  target,
		Errno:   errno,
		Message: defaultMessage(code),
	}
}

// NewNameInvalidError creates a NameInvalid fault raised before the
// boundary call, during client-side target validation.
func NewNameInvalidError(op, target, reason string) *Error {
	return &Error{
		Code:    ErrNameInvalid,
		Op:      op,
		Target:  target,
		Message: reason,
	}
}

// NewNameTooLongError creates a NameTooLong fault.
func NewNameTooLongError(op, target string) *Error {
	return &Error{
		Code:    ErrNameTooLong,
		Op:      op,
		Target:  target,
		Message: defaultMessage(ErrNameTooLong),
	}
}

// NewPropertyInvalidError creates a PropertyInvalid fault for a property
// set rejected before the boundary call.
func NewPropertyInvalidError(op, target string, cause error) *Error {
	return &Error{
		Code:    ErrPropertyInvalid,
		Op:      op,
		Target:  target,
		Message: fmt.Sprintf("invalid properties: %v", cause),
		cause:   cause,
	}
}

// NewInitializationFailedError creates the sticky fault reported when the
// engine handle cannot be established.
func NewInitializationFailedError(cause error) *Error {
	return &Error{
		Code:    ErrInitializationFailed,
		Message: fmt.Sprintf("engine handle initialization failed: %v", cause),
		cause:   cause,
	}
}

// NewInternalError creates an Internal fault for a broken invariant on
// the client side of the boundary.
func NewInternalError(op, message string, cause error) *Error {
	e := &Error{
		Code:    ErrInternal,
		Op:      op,
		Message: message,
		cause:   cause,
	}
	if cause != nil {
		e.Message = fmt.Sprintf("%s: %v", message, cause)
	}
	return e
}

// NewBatchError creates a compound fault and sorts its per-target faults.
func NewBatchError(code Code, op string, errno unix.Errno, faults []*Error) *BatchError {
	e := &BatchError{
		Code:   code,
		Op:     op,
		Errno:  errno,
		Faults: faults,
	}
	e.SortFaults()
	return e
}

func defaultMessage(code Code) string {
	switch code {
	case ErrNameInvalid:
		return "invalid dataset name"
	case ErrNameTooLong:
		return "dataset name too long"
	case ErrDatasetExists:
		return "dataset already exists"
	case ErrDatasetNotFound:
		return "dataset not found"
	case ErrPropertyInvalid:
		return "invalid property"
	case ErrPoolsDiffer:
		return "targets span multiple pools"
	case ErrSnapshotMismatch:
		return "snapshot is not the most recent"
	case ErrDestinationModified:
		return "destination modified since source snapshot"
	case ErrDatasetBusy:
		return "dataset busy"
	case ErrStreamCorrupt:
		return "stream corrupt or uses an unsupported feature"
	case ErrMultipleTargets:
		return "operation accepts a single target"
	case ErrInitializationFailed:
		return "engine handle initialization failed"
	case ErrUnclassified:
		return "engine reported an unclassified failure"
	case ErrNoSpace:
		return "no space left in pool"
	case ErrPermissionDenied:
		return "permission denied"
	case ErrBadFileDescriptor:
		return "bad stream descriptor"
	case ErrNotSupported:
		return "operation not supported by engine"
	case ErrInternal:
		return "internal fault"
	default:
		return "unknown fault"
	}
}

// ============================================================================
// Error Type Checking Helpers
// ============================================================================

// CodeOf extracts the fault code from an error, looking through wrapping.
// It reports false for errors that did not originate in this package.
func CodeOf(err error) (Code, bool) {
	var single *Error
	if errors.As(err, &single) {
		return single.Code, true
	}
	var batch *BatchError
	if errors.As(err, &batch) {
		return batch.Code, true
	}
	return 0, false
}

// AsBatch extracts a compound fault from an error, looking through
// wrapping.
func AsBatch(err error) (*BatchError, bool) {
	var batch *BatchError
	if errors.As(err, &batch) {
		return batch, true
	}
	return nil, false
}

// IsNotFoundError returns true if the error is a DatasetNotFound fault.
func IsNotFoundError(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == ErrDatasetNotFound
}

// IsExistsError returns true if the error is a DatasetExists fault.
func IsExistsError(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == ErrDatasetExists
}

// IsBusyError returns true if the error is a DatasetBusy fault.
func IsBusyError(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == ErrDatasetBusy
}

// IsPoolsDifferError returns true if the error is a PoolsDiffer fault.
func IsPoolsDifferError(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == ErrPoolsDiffer
}

// IsInitializationError returns true if the error reports a failed engine
// handle initialization.
func IsInitializationError(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == ErrInitializationFailed
}
