package httptransport

import (
	"encoding/json"
	"net/http"
	"time"
)

// WriteJSON encodes v as the response body with status, setting the
// JSON content type.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ParseSince reads the optional ?since=RFC3339 query parameter the
// executor history endpoints accept. The boolean is false only when the
// parameter is present but unparseable; an absent parameter yields the
// zero time (meaning "everything").
func ParseSince(r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DecodeJSON decodes r's body into v. A malformed body is the
// caller's responsibility to turn into a 422 via WriteDecodeError;
// DecodeJSON itself only reports the decode failure.
func DecodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
