package engine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputBufferFill(t *testing.T) {
	t.Run("CopiesReplyThatFits", func(t *testing.T) {
		out := NewOutput(64)
		defer out.Release()

		reply := bytes.Repeat([]byte{0xAB}, 48)
		require.True(t, out.Fill(reply))
		assert.Equal(t, 48, out.Len())
		assert.Equal(t, reply, out.Bytes())
	})

	t.Run("RejectsOversizedReply", func(t *testing.T) {
		out := NewOutput(16)
		defer out.Release()

		require.False(t, out.Fill(make([]byte, out.Cap()+1)))
		assert.Zero(t, out.Len())
	})

	t.Run("DefaultsCapacity", func(t *testing.T) {
		out := NewOutput(0)
		defer out.Release()

		assert.Equal(t, DefaultOutputSize, out.Cap())
	})
}

func TestOutputBufferSetLen(t *testing.T) {
	out := NewOutput(32)
	defer out.Release()

	raw := out.Raw()
	require.Len(t, raw, out.Cap())
	copy(raw, []byte("packed reply"))

	require.NoError(t, out.SetLen(12))
	assert.Equal(t, []byte("packed reply"), out.Bytes())

	assert.Error(t, out.SetLen(-1))
	assert.Error(t, out.SetLen(out.Cap()+1))
}

func TestOutputBufferRelease(t *testing.T) {
	out := NewOutput(32)
	require.True(t, out.Fill([]byte{1, 2, 3}))

	out.Release()
	assert.Zero(t, out.Len())
	assert.Zero(t, out.Cap())

	// A second release must be a no-op.
	out.Release()
}
