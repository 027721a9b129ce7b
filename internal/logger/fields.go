package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so journal
// correlation and log queries stay cheap.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Boundary Operations
	// ========================================================================
	KeyOperation  = "operation"   // Boundary operation name: snapshot, hold, destroy_snapshots, ...
	KeyPool       = "pool"        // Pool the operation targets
	KeyDataset    = "dataset"     // Primary dataset/snapshot/bookmark name
	KeyTarget     = "target"      // Single target within a batch
	KeyTargets    = "targets"     // Number of targets in a batch
	KeyErrno      = "errno"       // Raw engine status
	KeyFaultKind  = "fault_kind"  // Classified fault kind
	KeySoftMisses = "soft_misses" // Number of targets treated as soft misses
	KeyOutcome    = "outcome"     // success, soft_misses, fault

	// ========================================================================
	// Streams
	// ========================================================================
	KeyFD       = "fd"       // Stream descriptor number
	KeySnapshot = "snapshot" // Snapshot a stream is taken from or received into
	KeyOrigin   = "origin"   // Clone origin or incremental source
	KeyBytes    = "bytes"    // Bytes moved through a stream

	// ========================================================================
	// Storage Backends (journal, spool, S3 sinks)
	// ========================================================================
	KeyStoreType  = "store_type" // Backend type: sqlite, postgres, file, s3
	KeyBucket     = "bucket"     // S3 bucket name
	KeyKey        = "key"        // Object key in S3
	KeyRegion     = "region"     // S3 region
	KeyPath       = "path"       // Local file path
	KeyAttempt    = "attempt"    // Retry attempt number
	KeyMaxRetries = "max_retries"

	// ========================================================================
	// API
	// ========================================================================
	KeyRequestID = "request_id" // Chi middleware request ID
	KeyClientIP  = "client_ip"  // Client IP address (without port)
	KeyUsername  = "username"   // Authenticated API user
	KeyStatus    = "status"     // HTTP status code

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Operation returns a slog.Attr for a boundary operation name
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Pool returns a slog.Attr for the pool an operation targets
func Pool(name string) slog.Attr {
	return slog.String(KeyPool, name)
}

// Dataset returns a slog.Attr for a dataset name
func Dataset(name string) slog.Attr {
	return slog.String(KeyDataset, name)
}

// Target returns a slog.Attr for a single batch target
func Target(name string) slog.Attr {
	return slog.String(KeyTarget, name)
}

// Targets returns a slog.Attr for the size of a batch
func Targets(n int) slog.Attr {
	return slog.Int(KeyTargets, n)
}

// Errno returns a slog.Attr for a raw engine status
func Errno(errno int) slog.Attr {
	return slog.Int(KeyErrno, errno)
}

// FaultKind returns a slog.Attr for a classified fault kind
func FaultKind(kind string) slog.Attr {
	return slog.String(KeyFaultKind, kind)
}

// SoftMisses returns a slog.Attr for the number of soft misses
func SoftMisses(n int) slog.Attr {
	return slog.Int(KeySoftMisses, n)
}

// Outcome returns a slog.Attr for a call outcome
func Outcome(o string) slog.Attr {
	return slog.String(KeyOutcome, o)
}

// FD returns a slog.Attr for a stream descriptor
func FD(fd int) slog.Attr {
	return slog.Int(KeyFD, fd)
}

// Snapshot returns a slog.Attr for a snapshot name
func Snapshot(name string) slog.Attr {
	return slog.String(KeySnapshot, name)
}

// Origin returns a slog.Attr for a clone origin or incremental source
func Origin(name string) slog.Attr {
	return slog.String(KeyOrigin, name)
}

// Bytes returns a slog.Attr for bytes moved through a stream
func Bytes(n int64) slog.Attr {
	return slog.Int64(KeyBytes, n)
}

// StoreType returns a slog.Attr for a storage backend type
func StoreType(t string) slog.Attr {
	return slog.String(KeyStoreType, t)
}

// Bucket returns a slog.Attr for an S3 bucket name
func Bucket(name string) slog.Attr {
	return slog.String(KeyBucket, name)
}

// Key returns a slog.Attr for an S3 object key
func Key(k string) slog.Attr {
	return slog.String(KeyKey, k)
}

// Region returns a slog.Attr for an S3 region
func Region(r string) slog.Attr {
	return slog.String(KeyRegion, r)
}

// Path returns a slog.Attr for a local file path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// RequestID returns a slog.Attr for an API request ID
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// ClientIP returns a slog.Attr for a client IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// Username returns a slog.Attr for an authenticated API user
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// Status returns a slog.Attr for an HTTP status code
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
