package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHoldHandler_Create(t *testing.T) {
	t.Run("places holds and reports soft misses", func(t *testing.T) {
		client := newTestClient(t)
		createFS(t, client, "tank/a")
		takeSnapshots(t, client, "tank/a@s1")
		handler := NewHoldHandler(client)

		w := doJSON(t, handler.Create, http.MethodPost, "/api/v1/holds", CreateHoldsRequest{
			Holds: []HoldSpec{
				{Snapshot: "tank/a@s1", Tag: "backup"},
				{Snapshot: "tank/a@ghost", Tag: "backup"},
			},
		})

		if w.Code != http.StatusCreated {
			t.Fatalf("Create() status = %d, want %d, body = %s", w.Code, http.StatusCreated, w.Body.String())
		}
		var resp BatchResult
		decodeResponse(t, w, &resp)
		if len(resp.SoftMisses) != 1 || resp.SoftMisses[0] != "tank/a@ghost" {
			t.Errorf("SoftMisses = %v, want [tank/a@ghost]", resp.SoftMisses)
		}
	})

	t.Run("duplicate tag maps to conflict", func(t *testing.T) {
		client := newTestClient(t)
		createFS(t, client, "tank/a")
		takeSnapshots(t, client, "tank/a@s1")
		handler := NewHoldHandler(client)

		w := doJSON(t, handler.Create, http.MethodPost, "/api/v1/holds", CreateHoldsRequest{
			Holds: []HoldSpec{{Snapshot: "tank/a@s1", Tag: "backup"}},
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("First hold failed: %d, body = %s", w.Code, w.Body.String())
		}

		w = doJSON(t, handler.Create, http.MethodPost, "/api/v1/holds", CreateHoldsRequest{
			Holds: []HoldSpec{{Snapshot: "tank/a@s1", Tag: "backup"}},
		})

		if w.Code != http.StatusConflict {
			t.Errorf("Create() status = %d, want %d, body = %s", w.Code, http.StatusConflict, w.Body.String())
		}
	})

	t.Run("two tags for one snapshot in one batch rejected", func(t *testing.T) {
		client := newTestClient(t)
		createFS(t, client, "tank/a")
		takeSnapshots(t, client, "tank/a@s1")
		handler := NewHoldHandler(client)

		w := doJSON(t, handler.Create, http.MethodPost, "/api/v1/holds", CreateHoldsRequest{
			Holds: []HoldSpec{
				{Snapshot: "tank/a@s1", Tag: "backup"},
				{Snapshot: "tank/a@s1", Tag: "replica"},
			},
		})

		if w.Code != http.StatusBadRequest {
			t.Errorf("Create() status = %d, want %d, body = %s", w.Code, http.StatusBadRequest, w.Body.String())
		}
	})

	t.Run("empty request rejected", func(t *testing.T) {
		handler := NewHoldHandler(newTestClient(t))

		w := doJSON(t, handler.Create, http.MethodPost, "/api/v1/holds", CreateHoldsRequest{})

		if w.Code != http.StatusBadRequest {
			t.Errorf("Create() status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestHoldHandler_Release(t *testing.T) {
	t.Run("releases and reports qualified soft misses", func(t *testing.T) {
		client := newTestClient(t)
		createFS(t, client, "tank/a")
		takeSnapshots(t, client, "tank/a@s1")
		handler := NewHoldHandler(client)

		w := doJSON(t, handler.Create, http.MethodPost, "/api/v1/holds", CreateHoldsRequest{
			Holds: []HoldSpec{{Snapshot: "tank/a@s1", Tag: "backup"}},
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("Hold failed: %d, body = %s", w.Code, w.Body.String())
		}

		w = doJSON(t, handler.Release, http.MethodPost, "/api/v1/holds/release", ReleaseHoldsRequest{
			Releases: []ReleaseSpec{
				{Snapshot: "tank/a@s1", Tags: []string{"backup", "ghost-tag"}},
			},
		})

		if w.Code != http.StatusOK {
			t.Fatalf("Release() status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
		}
		var resp BatchResult
		decodeResponse(t, w, &resp)
		if len(resp.SoftMisses) != 1 || resp.SoftMisses[0] != "tank/a@s1#ghost-tag" {
			t.Errorf("SoftMisses = %v, want [tank/a@s1#ghost-tag]", resp.SoftMisses)
		}
	})

	t.Run("missing snapshot is a soft miss", func(t *testing.T) {
		client := newTestClient(t)
		handler := NewHoldHandler(client)

		w := doJSON(t, handler.Release, http.MethodPost, "/api/v1/holds/release", ReleaseHoldsRequest{
			Releases: []ReleaseSpec{
				{Snapshot: "tank/ghost@s1", Tags: []string{"backup"}},
			},
		})

		if w.Code != http.StatusOK {
			t.Fatalf("Release() status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
		}
		var resp BatchResult
		decodeResponse(t, w, &resp)
		if len(resp.SoftMisses) != 1 || resp.SoftMisses[0] != "tank/ghost@s1" {
			t.Errorf("SoftMisses = %v, want [tank/ghost@s1]", resp.SoftMisses)
		}
	})

	t.Run("empty request rejected", func(t *testing.T) {
		handler := NewHoldHandler(newTestClient(t))

		w := doJSON(t, handler.Release, http.MethodPost, "/api/v1/holds/release", ReleaseHoldsRequest{})

		if w.Code != http.StatusBadRequest {
			t.Errorf("Release() status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestHoldHandler_List(t *testing.T) {
	client := newTestClient(t)
	createFS(t, client, "tank/a")
	takeSnapshots(t, client, "tank/a@s1")
	handler := NewHoldHandler(client)

	// One tag per snapshot per batch, so each tag goes in its own request
	for _, tag := range []string{"backup", "replica"} {
		w := doJSON(t, handler.Create, http.MethodPost, "/api/v1/holds", CreateHoldsRequest{
			Holds: []HoldSpec{{Snapshot: "tank/a@s1", Tag: tag}},
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("Hold %s failed: %d, body = %s", tag, w.Code, w.Body.String())
		}
	}

	t.Run("lists holds by tag", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/holds?snapshot=tank/a@s1", nil)
		w := httptest.NewRecorder()
		handler.List(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("List() status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
		}
		var holds map[string]time.Time
		decodeResponse(t, w, &holds)
		if len(holds) != 2 {
			t.Fatalf("Expected 2 holds, got %d: %v", len(holds), holds)
		}
		for _, tag := range []string{"backup", "replica"} {
			if _, ok := holds[tag]; !ok {
				t.Errorf("Expected hold tag %s", tag)
			}
		}
	})

	t.Run("missing parameter rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/holds", nil)
		w := httptest.NewRecorder()
		handler.List(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("List() status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("unknown snapshot maps to not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/holds?snapshot=tank/a@ghost", nil)
		w := httptest.NewRecorder()
		handler.List(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("List() status = %d, want %d, body = %s", w.Code, http.StatusNotFound, w.Body.String())
		}
	})
}
