// Command importer loads a CSV place catalog into a running API instance.
package main

import (
    "bytes"
    "encoding/json"
    "flag"
    "fmt"
    "log"
    "net/http"

    "tripnav/internal/integrations/csvfile"
)

func main() {
    var (
        file   = flag.String("file", "places.csv", "path to the CSV catalog export")
        apiURL = flag.String("api", "http://localhost:8080", "base URL of the API")
        tenant = flag.String("tenant", "t_demo", "tenant id")
    )
    flag.Parse()

    src := csvfile.Adapter{Path: *file}
    batch, err := src.FetchPlaces("", "")
    if err != nil {
        log.Fatalf("read catalog: %v", err)
    }
    body, _ := json.Marshal(map[string]any{"places": batch.Places})
    req, _ := http.NewRequest(http.MethodPost, *apiURL+"/v1/places", bytes.NewReader(body))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", *tenant)
    req.Header.Set("X-Role", "admin")
    resp, err := http.DefaultClient.Do(req)
    if err != nil {
        log.Fatalf("upsert: %v", err)
    }
    defer func() { _ = resp.Body.Close() }()
    if resp.StatusCode != http.StatusOK {
        log.Fatalf("upsert: status %d", resp.StatusCode)
    }
    var counts struct {
        Created int `json:"created"`
        Updated int `json:"updated"`
    }
    _ = json.NewDecoder(resp.Body).Decode(&counts)
    fmt.Printf("imported %d places (%d created, %d updated)\n", len(batch.Places), counts.Created, counts.Updated)
}
