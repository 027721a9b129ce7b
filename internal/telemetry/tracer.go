package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for boundary operations and their supporting stores.
// Engine-level keys use the "zfs." prefix; stream and journal keys use
// their own.
const (
	// ========================================================================
	// Boundary operation attributes
	// ========================================================================
	AttrOperation  = "zfs.operation"   // snapshot, hold, destroy_snapshots, ...
	AttrPool       = "zfs.pool"        // pool the call targets
	AttrTargets    = "zfs.targets"     // batch size after deduplication
	AttrErrno      = "zfs.errno"       // raw engine status
	AttrFaultKind  = "zfs.fault_kind"  // classified fault kind
	AttrSoftMisses = "zfs.soft_misses" // targets treated as soft misses
	AttrOutcome    = "zfs.outcome"     // success, soft_misses, fault

	// ========================================================================
	// Stream attributes
	// ========================================================================
	AttrStreamDirection = "stream.direction" // send, receive
	AttrStreamBytes     = "stream.bytes"

	// ========================================================================
	// Journal and sink attributes
	// ========================================================================
	AttrStoreType = "store.type" // sqlite, postgres, file, s3
	AttrBucket    = "storage.bucket"
	AttrKey       = "storage.key"
)

// Operation returns an attribute for a boundary operation name
func Operation(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

// Pool returns an attribute for the pool a call targets
func Pool(name string) attribute.KeyValue {
	return attribute.String(AttrPool, name)
}

// Targets returns an attribute for a batch size
func Targets(n int) attribute.KeyValue {
	return attribute.Int(AttrTargets, n)
}

// Errno returns an attribute for a raw engine status
func Errno(errno int) attribute.KeyValue {
	return attribute.Int(AttrErrno, errno)
}

// FaultKind returns an attribute for a classified fault kind
func FaultKind(kind string) attribute.KeyValue {
	return attribute.String(AttrFaultKind, kind)
}

// SoftMisses returns an attribute for the number of soft misses
func SoftMisses(n int) attribute.KeyValue {
	return attribute.Int(AttrSoftMisses, n)
}

// Outcome returns an attribute for a call outcome
func Outcome(o string) attribute.KeyValue {
	return attribute.String(AttrOutcome, o)
}

// StreamDirection returns an attribute for a stream direction
func StreamDirection(d string) attribute.KeyValue {
	return attribute.String(AttrStreamDirection, d)
}

// StreamBytes returns an attribute for bytes moved through a stream
func StreamBytes(n int64) attribute.KeyValue {
	return attribute.Int64(AttrStreamBytes, n)
}

// StoreType returns an attribute for a backing store type
func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

// Bucket returns an attribute for an S3 bucket name
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for an S3 object key
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// StartOperationSpan starts a span for one boundary operation.
// This is a convenience function that sets common attributes.
func StartOperationSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Operation(op),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "zfs."+op, trace.WithAttributes(allAttrs...))
}

// StartStreamSpan starts a span for a replication stream transfer.
func StartStreamSpan(ctx context.Context, direction string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		StreamDirection(direction),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "stream."+direction, trace.WithAttributes(allAttrs...))
}

// StartJournalSpan starts a span for a journal store operation.
func StartJournalSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "journal."+operation, trace.WithAttributes(attrs...))
}
