//go:build integration

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/marmos91/zcore/pkg/journal"
	"github.com/marmos91/zcore/pkg/zfs"
)

func newTestJournal(t *testing.T) *journal.Store {
	t.Helper()
	store, err := journal.New(&journal.Config{
		Type: journal.DatabaseTypeSQLite,
		SQLite: journal.SQLiteConfig{
			Path: ":memory:",
		},
	})
	if err != nil {
		t.Fatalf("Failed to create journal store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// insertJournalEntry writes an entry with an explicit timestamp so
// ordering and pruning assertions do not depend on insertion timing.
func insertJournalEntry(t *testing.T, store *journal.Store, op, outcome string, targets []string, createdAt time.Time) string {
	t.Helper()
	entry := &journal.Entry{
		ID:        uuid.New().String(),
		CreatedAt: createdAt,
		Op:        op,
		Outcome:   outcome,
	}
	if err := entry.SetTargets(targets); err != nil {
		t.Fatalf("Failed to encode targets: %v", err)
	}
	if err := store.DB().Create(entry).Error; err != nil {
		t.Fatalf("Failed to insert entry: %v", err)
	}
	return entry.ID
}

func TestJournalHandler_List(t *testing.T) {
	store := newTestJournal(t)
	handler := NewJournalHandler(store)

	// One entry through the real recording path, the rest direct
	if err := store.Record(context.Background(), zfs.Record{
		Op:       "snapshot",
		Targets:  []string{"tank/a@s1"},
		Outcome:  zfs.OutcomeSuccess,
		Duration: 5 * time.Millisecond,
	}); err != nil {
		t.Fatalf("Failed to record entry: %v", err)
	}
	insertJournalEntry(t, store, "hold", zfs.OutcomeSoftMisses, []string{"tank/a@s2"}, time.Now().Add(-time.Hour))
	insertJournalEntry(t, store, "destroy_snaps", zfs.OutcomeFault, []string{"tank/a@s3"}, time.Now().Add(-2*time.Hour))

	t.Run("lists all entries", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/journal", nil)
		w := httptest.NewRecorder()
		handler.List(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("List() status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
		}
		var resp ListJournalResponse
		decodeResponse(t, w, &resp)
		if len(resp.Entries) != 3 {
			t.Errorf("Expected 3 entries, got %d", len(resp.Entries))
		}
	})

	t.Run("filters by op", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/journal?op=hold", nil)
		w := httptest.NewRecorder()
		handler.List(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("List() status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
		}
		var resp ListJournalResponse
		decodeResponse(t, w, &resp)
		if len(resp.Entries) != 1 || resp.Entries[0].Op != "hold" {
			t.Errorf("Expected one hold entry, got %+v", resp.Entries)
		}
	})

	t.Run("filters by outcome", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/journal?outcome=fault", nil)
		w := httptest.NewRecorder()
		handler.List(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("List() status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
		}
		var resp ListJournalResponse
		decodeResponse(t, w, &resp)
		if len(resp.Entries) != 1 || resp.Entries[0].Outcome != zfs.OutcomeFault {
			t.Errorf("Expected one fault entry, got %+v", resp.Entries)
		}
	})

	t.Run("since drops older entries", func(t *testing.T) {
		since := time.Now().Add(-30 * time.Minute).UTC().Format(time.RFC3339)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/journal?since="+since, nil)
		w := httptest.NewRecorder()
		handler.List(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("List() status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
		}
		var resp ListJournalResponse
		decodeResponse(t, w, &resp)
		if len(resp.Entries) != 1 {
			t.Errorf("Expected 1 recent entry, got %d", len(resp.Entries))
		}
	})

	t.Run("limit bounds the listing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/journal?limit=2", nil)
		w := httptest.NewRecorder()
		handler.List(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("List() status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
		}
		var resp ListJournalResponse
		decodeResponse(t, w, &resp)
		if len(resp.Entries) != 2 {
			t.Errorf("Expected 2 entries, got %d", len(resp.Entries))
		}
	})

	t.Run("invalid since rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/journal?since=yesterday", nil)
		w := httptest.NewRecorder()
		handler.List(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("List() status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("invalid limit rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/journal?limit=0", nil)
		w := httptest.NewRecorder()
		handler.List(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("List() status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestJournalHandler_Get(t *testing.T) {
	store := newTestJournal(t)
	handler := NewJournalHandler(store)
	id := insertJournalEntry(t, store, "snapshot", zfs.OutcomeSuccess, []string{"tank/a@s1"}, time.Now())

	getEntry := func(t *testing.T, id string) *httptest.ResponseRecorder {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/journal/"+id, nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
		w := httptest.NewRecorder()
		handler.Get(w, req)
		return w
	}

	t.Run("returns the entry", func(t *testing.T) {
		w := getEntry(t, id)

		if w.Code != http.StatusOK {
			t.Fatalf("Get() status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
		}
		var entry journal.Entry
		decodeResponse(t, w, &entry)
		if entry.ID != id {
			t.Errorf("ID = %s, want %s", entry.ID, id)
		}
		if len(entry.ParsedTargets) != 1 || entry.ParsedTargets[0] != "tank/a@s1" {
			t.Errorf("Targets = %v, want [tank/a@s1]", entry.ParsedTargets)
		}
	})

	t.Run("unknown id maps to not found", func(t *testing.T) {
		w := getEntry(t, uuid.New().String())

		if w.Code != http.StatusNotFound {
			t.Errorf("Get() status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

func TestJournalHandler_Prune(t *testing.T) {
	t.Run("removes entries before the cutoff", func(t *testing.T) {
		store := newTestJournal(t)
		handler := NewJournalHandler(store)
		insertJournalEntry(t, store, "snapshot", zfs.OutcomeSuccess, []string{"tank/a@old"}, time.Now().Add(-48*time.Hour))
		insertJournalEntry(t, store, "snapshot", zfs.OutcomeSuccess, []string{"tank/a@new"}, time.Now())

		w := doJSON(t, handler.Prune, http.MethodPost, "/api/v1/journal/prune", PruneJournalRequest{
			Before: time.Now().Add(-24 * time.Hour),
		})

		if w.Code != http.StatusOK {
			t.Fatalf("Prune() status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
		}
		var resp PruneJournalResponse
		decodeResponse(t, w, &resp)
		if resp.Pruned != 1 {
			t.Errorf("Pruned = %d, want 1", resp.Pruned)
		}
	})

	t.Run("missing cutoff rejected", func(t *testing.T) {
		handler := NewJournalHandler(newTestJournal(t))

		w := doJSON(t, handler.Prune, http.MethodPost, "/api/v1/journal/prune", PruneJournalRequest{})

		if w.Code != http.StatusBadRequest {
			t.Errorf("Prune() status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}
