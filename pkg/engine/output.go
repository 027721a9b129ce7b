package engine

import (
	"fmt"

	"github.com/marmos91/zcore/pkg/bufpool"
)

// OutputBuffer is the reply buffer for one boundary call. The caller
// allocates it with a capacity guess, the engine fills it with a packed
// List, and the caller decodes and releases it. Storage comes from the
// shared buffer pool, so Release must run exactly once per buffer; the
// scoped decode helpers in pkg/zfs take care of that.
//
// An OutputBuffer is owned by a single call and is not safe for
// concurrent use.
type OutputBuffer struct {
	buf []byte
	n   int
}

// DefaultOutputSize is the initial capacity for engine replies. Batch
// error maps and most query results fit well under this; callers retry
// with doubled capacity when the engine reports ENOMEM.
const DefaultOutputSize = 16 * 1024

// NewOutput allocates a reply buffer with the given capacity, drawn from
// the shared pool. A capacity of zero or less gets DefaultOutputSize.
func NewOutput(capacity int) *OutputBuffer {
	if capacity <= 0 {
		capacity = DefaultOutputSize
	}
	return &OutputBuffer{buf: bufpool.Get(capacity)}
}

// Cap returns the buffer's capacity in bytes.
func (o *OutputBuffer) Cap() int {
	return len(o.buf)
}

// Len returns the number of bytes the engine wrote.
func (o *OutputBuffer) Len() int {
	return o.n
}

// Bytes returns the filled portion of the buffer. The slice aliases pool
// storage and is invalid after Release.
func (o *OutputBuffer) Bytes() []byte {
	return o.buf[:o.n]
}

// Fill copies a packed reply into the buffer. It reports false without
// writing anything when the reply does not fit; the engine then returns
// ENOMEM and the caller retries with a larger buffer.
func (o *OutputBuffer) Fill(reply []byte) bool {
	if len(reply) > len(o.buf) {
		return false
	}
	o.n = copy(o.buf, reply)
	return true
}

// Raw exposes the whole backing slice for adapters that hand the buffer
// to the engine by address. After the engine fills it, the adapter records
// the reply length with SetLen.
func (o *OutputBuffer) Raw() []byte {
	return o.buf
}

// SetLen records how many bytes the engine wrote into the raw buffer.
func (o *OutputBuffer) SetLen(n int) error {
	if n < 0 || n > len(o.buf) {
		return fmt.Errorf("reply length %d outside buffer capacity %d", n, len(o.buf))
	}
	o.n = n
	return nil
}

// Release returns the storage to the pool. It is idempotent; the buffer
// and any slice obtained from Bytes or Raw must not be used afterwards.
func (o *OutputBuffer) Release() {
	if o.buf == nil {
		return
	}
	bufpool.Put(o.buf)
	o.buf = nil
	o.n = 0
}
