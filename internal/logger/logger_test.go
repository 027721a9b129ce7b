package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer for testing.
// Returns the buffer and a cleanup function to restore original output.
func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)

	mu.Lock()
	originalOutput := output
	originalColor := useColor
	output = buf
	useColor = false
	mu.Unlock()

	reconfigure()

	cleanup := func() {
		mu.Lock()
		output = originalOutput
		useColor = originalColor
		mu.Unlock()
		reconfigure()
		SetLevel("INFO")
		SetFormat("text")
	}

	return buf, cleanup
}

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugLevelShowsAllMessages", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("DEBUG")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		assert.Contains(t, out, "debug message")
		assert.Contains(t, out, "info message")
		assert.Contains(t, out, "warn message")
		assert.Contains(t, out, "error message")
	})

	t.Run("InfoLevelFiltersDebug", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")

		Debug("debug message")
		Info("info message")

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.Contains(t, out, "info message")
	})

	t.Run("ErrorLevelAlwaysLogs", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("ERROR")

		Info("info message")
		Error("error message")

		out := buf.String()
		assert.NotContains(t, out, "info message")
		assert.Contains(t, out, "error message")
	})

	t.Run("InvalidLevelIsIgnored", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")
		SetLevel("VERBOSE")

		Info("still here")
		assert.Contains(t, buf.String(), "still here")
	})
}

func TestStructuredFields(t *testing.T) {
	t.Run("TextFormatRendersKeyValuePairs", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")
		SetFormat("text")

		Info("boundary call", KeyOperation, "snapshot", KeyTargets, 3)

		out := buf.String()
		assert.Contains(t, out, "boundary call")
		assert.Contains(t, out, "operation=snapshot")
		assert.Contains(t, out, "targets=3")
	})

	t.Run("JSONFormatEmitsValidJSON", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")
		SetFormat("json")

		Info("boundary call", KeyOperation, "hold", KeyErrno, 2)

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "boundary call", record["msg"])
		assert.Equal(t, "hold", record[KeyOperation])
		assert.EqualValues(t, 2, record[KeyErrno])
	})
}

func TestContextFields(t *testing.T) {
	t.Run("InjectsLogContextFields", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")
		SetFormat("text")

		lc := NewLogContext().WithOperation("destroy_snapshots").WithPool("tank")
		ctx := WithContext(context.Background(), lc)

		InfoCtx(ctx, "batch submitted")

		out := buf.String()
		assert.Contains(t, out, "operation=destroy_snapshots")
		assert.Contains(t, out, "pool=tank")
	})

	t.Run("NilContextValueIsHarmless", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")
		InfoCtx(context.Background(), "no log context")

		assert.Contains(t, buf.String(), "no log context")
	})

	t.Run("CloneDoesNotAliasOriginal", func(t *testing.T) {
		lc := NewLogContext().WithPool("tank")
		clone := lc.WithPool("backup")

		assert.Equal(t, "tank", lc.Pool)
		assert.Equal(t, "backup", clone.Pool)
	})
}

func TestConcurrentLogging(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				Info("concurrent line", KeyTargets, j)
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 16*50)
	for _, line := range lines {
		assert.Contains(t, line, "concurrent line")
	}
}
