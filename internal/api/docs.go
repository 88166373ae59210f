package api

import (
    "net/http"
    "os"
)

// openAPILoad reads the contract from disk so doc edits show up without a rebuild.
func openAPILoad() ([]byte, error) {
    return os.ReadFile("openapi/openapi.yaml")
}

// OpenAPIHandler serves the raw OpenAPI document
func (s *Server) OpenAPIHandler(w http.ResponseWriter, r *http.Request) {
    b, err := openAPILoad()
    if err != nil { writeProblem(w, 500, "OpenAPI not available", err.Error(), r.URL.Path); return }
    w.Header().Set("Content-Type", "application/yaml")
    w.Header().Set("Cache-Control", "no-cache")
    w.WriteHeader(200)
    _, _ = w.Write(b)
}

// DocsHandler serves a ReDoc page rendering /openapi.yaml
func (s *Server) DocsHandler(w http.ResponseWriter, r *http.Request) {
    w.Header().Set("Content-Type", "text/html; charset=utf-8")
    w.WriteHeader(200)
    _, _ = w.Write([]byte(`<!DOCTYPE html><html><head><title>Trip Planner API</title>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <script src="https://cdn.jsdelivr.net/npm/redoc@next/bundles/redoc.standalone.js"></script>
    </head><body>
    <redoc spec-url="/openapi.yaml"></redoc>
    </body></html>`))
}
