package integrations

import "tripnav/internal/model"

// CatalogSource defines the minimal interface for external place-catalog integrations.
type CatalogSource interface {
    Name() string
    Authenticate(cfg map[string]any) (AuthState, error)
    FetchPlaces(since string, cursor string) (PlaceBatch, error)
    Webhooks() WebhookInfo
}

type AuthState struct {
    Method string
    Token  string
}

type PlaceBatch struct {
    Places []model.Place
    Cursor string
}

type WebhookInfo struct {
    Events []string
    Verify func(sig string, body []byte) bool
}
