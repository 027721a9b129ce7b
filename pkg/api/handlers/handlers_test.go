package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marmos91/zcore/pkg/engine/sim"
	"github.com/marmos91/zcore/pkg/zfs"
)

// newTestClient builds a zfs client over a volatile engine with one
// pool named tank.
func newTestClient(t *testing.T) *zfs.Client {
	t.Helper()
	eng, err := sim.New(sim.Config{})
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	if err := eng.CreatePool("tank"); err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	return zfs.New(eng)
}

func createFS(t *testing.T, c *zfs.Client, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := c.Create(context.Background(), name, nil); err != nil {
			t.Fatalf("Failed to create %s: %v", name, err)
		}
	}
}

func takeSnapshots(t *testing.T, c *zfs.Client, snaps ...string) {
	t.Helper()
	for _, snap := range snaps {
		if err := c.Snapshot(context.Background(), []string{snap}, nil); err != nil {
			t.Fatalf("Failed to snapshot %s: %v", snap, err)
		}
	}
}

func datasetExists(t *testing.T, c *zfs.Client, name string) bool {
	t.Helper()
	ok, err := c.Exists(context.Background(), name)
	if err != nil {
		t.Fatalf("Exists(%s) failed: %v", name, err)
	}
	return ok
}

// doJSON drives a handler with a JSON-encoded body and returns the
// recorded response.
func doJSON(t *testing.T, handler http.HandlerFunc, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to unmarshal response %q: %v", w.Body.String(), err)
	}
}
