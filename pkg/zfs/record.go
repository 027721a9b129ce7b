package zfs

import (
	"context"
	"time"
)

// Batch outcome labels. These are the values carried by Record.Outcome,
// the operations metrics, and the journal.
const (
	// OutcomeSuccess means every target was applied.
	OutcomeSuccess = "success"

	// OutcomeSoftMisses means the call succeeded but some targets were
	// already absent.
	OutcomeSoftMisses = "soft_misses"

	// OutcomeFault means the call failed and no target was applied.
	OutcomeFault = "fault"
)

// Record is the journal entry for one completed operation. The client
// emits one per call regardless of outcome.
type Record struct {
	// Op is the boundary operation name.
	Op string

	// Targets are the distinct names the call addressed, in submission
	// order. Single-object operations carry one entry.
	Targets []string

	// Outcome is one of the Outcome constants.
	Outcome string

	// SoftMisses lists the targets that were already absent. Empty unless
	// Outcome is OutcomeSoftMisses.
	SoftMisses []string

	// FaultKind is the fault's classification when Outcome is
	// OutcomeFault, empty otherwise.
	FaultKind string

	// Errno is the engine's coarse status. Zero on success.
	Errno int

	// Duration is the wall-clock time of the call.
	Duration time.Duration
}

// Recorder receives a Record after each operation completes. Recorder
// failures are logged by the client and never affect the operation's
// result.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}
