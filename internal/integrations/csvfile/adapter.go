// Package csvfile imports a place catalog from a local CSV export.
package csvfile

import (
    "encoding/csv"
    "fmt"
    "io"
    "os"
    "strconv"

    "tripnav/internal/integrations"
    "tripnav/internal/model"
)

// Adapter parses catalog rows from a CSV file. Expected header:
// id,name,category,lat,lng,price,description (price may be blank).
type Adapter struct {
    Path string
}

func (a Adapter) Name() string { return "csv-file" }

func (a Adapter) Authenticate(cfg map[string]any) (integrations.AuthState, error) {
    return integrations.AuthState{Method: "file"}, nil
}

func (a Adapter) FetchPlaces(since string, cursor string) (integrations.PlaceBatch, error) {
    f, err := os.Open(a.Path)
    if err != nil { return integrations.PlaceBatch{}, err }
    defer func() { _ = f.Close() }()
    places, err := Parse(f)
    if err != nil { return integrations.PlaceBatch{}, err }
    return integrations.PlaceBatch{Places: places}, nil
}

func (a Adapter) Webhooks() integrations.WebhookInfo {
    return integrations.WebhookInfo{Events: []string{}, Verify: func(sig string, body []byte) bool { return true }}
}

// Parse reads catalog rows from r. A header row is required; unknown
// categories fail the whole batch so a bad export never half-loads.
func Parse(r io.Reader) ([]model.Place, error) {
    cr := csv.NewReader(r)
    header, err := cr.Read()
    if err != nil { return nil, fmt.Errorf("read header: %w", err) }
    col := map[string]int{}
    for i, h := range header { col[h] = i }
    for _, need := range []string{"id", "name", "category", "lat", "lng"} {
        if _, ok := col[need]; !ok { return nil, fmt.Errorf("missing column %q", need) }
    }
    var places []model.Place
    line := 1
    for {
        rec, err := cr.Read()
        if err == io.EOF { break }
        if err != nil { return nil, err }
        line++
        cat, err := model.ParseCategory(rec[col["category"]])
        if err != nil { return nil, fmt.Errorf("line %d: %w", line, err) }
        lat, err := strconv.ParseFloat(rec[col["lat"]], 64)
        if err != nil { return nil, fmt.Errorf("line %d: bad lat: %w", line, err) }
        lng, err := strconv.ParseFloat(rec[col["lng"]], 64)
        if err != nil { return nil, fmt.Errorf("line %d: bad lng: %w", line, err) }
        p := model.Place{ID: rec[col["id"]], Name: rec[col["name"]], Category: cat, Lat: lat, Lng: lng}
        if i, ok := col["price"]; ok && i < len(rec) && rec[i] != "" {
            v, err := strconv.ParseFloat(rec[i], 64)
            if err != nil { return nil, fmt.Errorf("line %d: bad price: %w", line, err) }
            p.Price = &v
        }
        if i, ok := col["description"]; ok && i < len(rec) {
            p.Description = rec[i]
        }
        places = append(places, p)
    }
    return places, nil
}
