package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// Journaling is optional; a nil store must degrade every journal
// endpoint to 503 instead of panicking.
func TestJournalHandler_Disabled(t *testing.T) {
	handler := NewJournalHandler(nil)

	tests := []struct {
		name string
		call func(w http.ResponseWriter, r *http.Request)
	}{
		{"list", handler.List},
		{"get", handler.Get},
		{"prune", handler.Prune},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/journal", nil)
			w := httptest.NewRecorder()
			tt.call(w, req)

			if w.Code != http.StatusServiceUnavailable {
				t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
			}
			if ct := w.Header().Get("Content-Type"); ct != ContentTypeProblemJSON {
				t.Errorf("Content-Type = %s, want %s", ct, ContentTypeProblemJSON)
			}
		})
	}
}
