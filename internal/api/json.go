package api

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 problem-details body. Every error response on the
// API goes through writeProblem so clients see one error shape.
type Problem struct {
	Type     string `json:"type"`
	Status   int    `json:"status"`
	Title    string `json:"title"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// writeJSON encodes v as the response body. Encode errors are dropped; the
// status line is already on the wire by then.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Status:   status,
		Title:    title,
		Detail:   detail,
		Instance: instance,
	})
}
