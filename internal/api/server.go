package api

import (
    "context"
    "net/http"
    "os"
    "strings"

    "tripnav/internal/auth"
    "tripnav/internal/config"
    "tripnav/internal/plan"
    "tripnav/internal/store"
    "tripnav/internal/webhooks"
)

type Server struct {
    Cfg    config.Config
    Store  store.Store
    Pub    *webhooks.Publisher
    Auth   *auth.Verifier
    Broker EventBroker
}

// NewServer creates a Server. If DATABASE_URL is unset, uses in-memory store.
func NewServer() (*Server, error) {
    cfg, err := config.Load()
    if err != nil {
        return nil, err
    }
    var s store.Store
    if strings.TrimSpace(cfg.DatabaseURL) == "" {
        s = store.NewMemory()
    } else {
        sp, err := store.NewPostgres(cfg.DatabaseURL)
        if err != nil {
            return nil, err
        }
        // Run migrations (dev helper)
        if os.Getenv("DB_MIGRATE") != "false" {
            _ = sp.MigrateDir("db/migrations")
        }
        s = sp
    }
    // Broker selection
    var broker EventBroker
    if cfg.RedisURL != "" {
        if rb, err := NewRedisBroker(cfg.RedisURL); err == nil { broker = rb } else { broker = NewBroker() }
    } else {
        broker = NewBroker()
    }
    return &Server{Cfg: cfg, Store: s, Pub: webhooks.NewPublisher(s), Auth: auth.NewVerifierFromEnv(), Broker: broker}, nil
}

func (s *Server) withTenant(r *http.Request) (context.Context, string) {
    // For now, get tenant from header; in production decode from JWT.
    tenant := r.Header.Get("X-Tenant-Id")
    if tenant == "" { tenant = "t_demo" }
    ctx := context.WithValue(r.Context(), ctxKeyTenant{}, tenant)
    return ctx, tenant
}

type ctxKeyTenant struct{}

// generator builds a planner over the configured tuning knobs and the
// tenant's current catalog.
func (s *Server) generator(catalog plan.Catalog) *plan.Generator {
    return &plan.Generator{Cfg: s.Cfg.Planner, Catalog: catalog}
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
    return webhooks.NewWorker(s.Store)
}
