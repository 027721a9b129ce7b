// Package zfs is the management-plane client for the storage engine.
// It validates target names, encodes operation arguments into packed
// Lists, issues boundary calls through an engine handle, and
// reconstructs structured outcomes from the engine's coarse status and
// error map.
//
// Batch operations are atomic per operation. Creation-style batches
// (Snapshot, Bookmark, Hold) apply every target or none. Destruction-
// style batches (DestroySnapshots, DestroyBookmarks, Release) treat
// targets that are already absent as soft misses, reported alongside a
// nil error, and remove what they can even when a blocked target fails
// the batch. Faults carry the classification from the zerrors package.
package zfs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/internal/logger"
	"github.com/marmos91/zcore/internal/metrics"
	"github.com/marmos91/zcore/internal/protocol/nvlist"
	"github.com/marmos91/zcore/internal/telemetry"
	"github.com/marmos91/zcore/pkg/engine"
	"github.com/marmos91/zcore/pkg/engine/ioctl"
	"github.com/marmos91/zcore/pkg/zfs/zerrors"
)

// maxOutputSize caps the reply buffer growth on retries. A reply that
// does not fit here is reported as an internal fault instead of growing
// without bound.
const maxOutputSize = 128 * 1024 * 1024

// Client issues management operations against one engine handle. A
// Client is safe for concurrent use when its engine is.
type Client struct {
	engine     engine.Engine
	recorder   Recorder
	metrics    *metrics.Operations
	outputSize int
}

// Option configures a Client.
type Option func(*Client)

// WithRecorder journals every completed operation through r. Recorder
// failures are logged and never affect operation results.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithMetrics publishes per-operation counters and latencies.
func WithMetrics(m *metrics.Operations) Option {
	return func(c *Client) { c.metrics = m }
}

// WithOutputSize sets the initial reply buffer capacity. The client
// doubles the capacity and retries when the engine reports that a reply
// does not fit.
func WithOutputSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.outputSize = n
		}
	}
}

// New builds a Client over eng. The caller keeps ownership of eng and
// closes it once the Client is no longer used.
func New(eng engine.Engine, opts ...Option) *Client {
	c := &Client{
		engine:     eng,
		metrics:    metrics.Null(),
		outputSize: engine.DefaultOutputSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	defaultOnce   sync.Once
	defaultClient *Client
	defaultErr    error
)

// Default returns the shared client over the host engine handle,
// opening the handle on first use. A failed open is permanent for the
// life of the process: every later call reports the same initialization
// fault.
func Default() (*Client, error) {
	defaultOnce.Do(func() {
		eng, err := ioctl.Open()
		if err != nil {
			defaultErr = zerrors.NewInitializationFailedError(err)
			return
		}
		defaultClient = New(eng)
	})
	return defaultClient, defaultErr
}

// ============================================================================
// Boundary plumbing
// ============================================================================

// call issues one boundary call that produces no reply List.
func (c *Client) call(ctx context.Context, op engine.Op, name string, input *nvlist.List, fd int) (unix.Errno, error) {
	packed, err := packInput(op, input)
	if err != nil {
		return 0, err
	}
	req := &engine.Request{Op: op, Name: name, Input: packed, FD: fd}
	status, cerr := c.engine.Call(ctx, req)
	if cerr != nil {
		return 0, zerrors.NewInternalError(string(op), "boundary call failed", cerr)
	}
	return status, nil
}

// callOutput issues one boundary call and decodes its reply, growing
// the output buffer and retrying while the engine reports it too small.
// The reply is nil when the engine wrote nothing.
func (c *Client) callOutput(ctx context.Context, op engine.Op, name string, input *nvlist.List, fd int) (unix.Errno, *nvlist.List, error) {
	packed, err := packInput(op, input)
	if err != nil {
		return 0, nil, err
	}
	req := &engine.Request{Op: op, Name: name, Input: packed, FD: fd}
	for size := c.outputSize; ; size *= 2 {
		status, reply, cerr := c.callOutputOnce(ctx, req, size)
		if cerr != nil {
			return 0, nil, cerr
		}
		if status != unix.ENOMEM {
			return status, reply, nil
		}
		if size >= maxOutputSize {
			return 0, nil, zerrors.NewInternalError(string(op),
				fmt.Sprintf("reply does not fit in %d bytes", size), nil)
		}
		c.metrics.RecordOutputRetry()
	}
}

// callOutputOnce runs one attempt with a buffer of the given capacity.
// The buffer never escapes this frame: the reply is decoded into an
// owned List before the buffer returns to the pool.
func (c *Client) callOutputOnce(ctx context.Context, req *engine.Request, size int) (unix.Errno, *nvlist.List, error) {
	out := engine.NewOutput(size)
	defer out.Release()

	req.Output = out
	status, err := c.engine.Call(ctx, req)
	if err != nil {
		return 0, nil, zerrors.NewInternalError(string(req.Op), "boundary call failed", err)
	}
	if status == unix.ENOMEM || out.Len() == 0 {
		return status, nil, nil
	}
	reply, derr := nvlist.Unpack(out.Bytes())
	if derr != nil {
		return 0, nil, zerrors.NewInternalError(string(req.Op), "undecodable reply", derr)
	}
	return status, reply, nil
}

func packInput(op engine.Op, input *nvlist.List) ([]byte, error) {
	if input == nil {
		return nil, nil
	}
	packed, err := nvlist.Pack(input)
	if err != nil {
		return nil, zerrors.NewInternalError(string(op), "input encoding failed", err)
	}
	return packed, nil
}

// nameFlags builds a List carrying each name as a flag pair. Callers
// pass deduplicated names.
func nameFlags(names []string) *nvlist.List {
	l := nvlist.New()
	for _, name := range names {
		_ = l.AddFlag(name)
	}
	return l
}

// propsList converts user properties for the wire. A value the codec
// cannot carry is a PropertyInvalid fault raised before the call.
func propsList(op engine.Op, target string, props map[string]any) (*nvlist.List, error) {
	l, err := nvlist.FromMap(props)
	if err != nil {
		return nil, zerrors.NewPropertyInvalidError(string(op), target, err)
	}
	return l, nil
}

// ============================================================================
// Instrumentation
// ============================================================================

// run wraps one operation body with tracing, metrics, logging and
// journaling. The body receives the span context; its soft misses and
// error become the operation's outcome.
func (c *Client) run(ctx context.Context, op engine.Op, set *TargetSet, fn func(context.Context) ([]string, error)) ([]string, error) {
	ctx, span := telemetry.StartOperationSpan(ctx, string(op),
		telemetry.Pool(set.Pool()), telemetry.Targets(set.Len()))
	defer span.End()

	start := time.Now()
	misses, err := fn(ctx)
	elapsed := time.Since(start)

	outcome := OutcomeSuccess
	switch {
	case err != nil:
		outcome = OutcomeFault
	case len(misses) > 0:
		outcome = OutcomeSoftMisses
	}

	c.metrics.RecordCall(string(op), outcome, elapsed.Seconds())
	c.metrics.RecordSoftMisses(string(op), len(misses))
	telemetry.SetAttributes(ctx, telemetry.Outcome(outcome), telemetry.SoftMisses(len(misses)))

	rec := Record{
		Op:         string(op),
		Targets:    set.Names(),
		Outcome:    outcome,
		SoftMisses: misses,
		Duration:   elapsed,
	}

	if err != nil {
		rec.FaultKind = faultKind(err)
		rec.Errno = errnoOf(err)
		c.metrics.RecordEngineStatus(string(op), rec.Errno)
		telemetry.RecordError(ctx, err)
		telemetry.SetAttributes(ctx, telemetry.FaultKind(rec.FaultKind), telemetry.Errno(rec.Errno))
		logger.WarnCtx(ctx, "operation failed",
			logger.Operation(string(op)),
			logger.Pool(set.Pool()),
			logger.Targets(set.Len()),
			logger.FaultKind(rec.FaultKind),
			logger.Errno(rec.Errno),
			logger.Err(err))
	} else {
		logger.DebugCtx(ctx, "operation complete",
			logger.Operation(string(op)),
			logger.Pool(set.Pool()),
			logger.Targets(set.Len()),
			logger.Outcome(outcome),
			logger.SoftMisses(len(misses)),
			logger.DurationMs(logger.Duration(start)))
	}

	if c.recorder != nil {
		if rerr := c.recorder.Record(ctx, rec); rerr != nil {
			logger.WarnCtx(ctx, "journal record failed",
				logger.Operation(string(op)),
				logger.Err(rerr))
		}
	}

	return misses, err
}

// faultKind labels a fault for metrics and the journal.
func faultKind(err error) string {
	if code, ok := zerrors.CodeOf(err); ok {
		return code.String()
	}
	return zerrors.ErrInternal.String()
}

// errnoOf extracts the engine's coarse status from a fault. Zero for
// faults raised before the boundary call.
func errnoOf(err error) int {
	var batch *zerrors.BatchError
	if errors.As(err, &batch) {
		return int(batch.Errno)
	}
	var single *zerrors.Error
	if errors.As(err, &single) {
		return int(single.Errno)
	}
	return 0
}
