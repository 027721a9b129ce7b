package handlers

import (
	"encoding/json"
	"math"
	"net/http"
)

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// normalizeProperties prepares JSON-decoded dataset properties for the
// engine. JSON numbers decode to float64, but numeric dataset
// properties such as volsize are unsigned integers on the wire, so
// non-negative integral values convert to uint64. Everything else
// passes through unchanged.
func normalizeProperties(props map[string]any) map[string]any {
	if len(props) == 0 {
		return nil
	}
	out := make(map[string]any, len(props))
	for name, value := range props {
		if f, ok := value.(float64); ok && f >= 0 && f == math.Trunc(f) && f < math.MaxUint64 {
			out[name] = uint64(f)
			continue
		}
		out[name] = value
	}
	return out
}
