package main

import (
    "bufio"
    "fmt"
    "log"
    "net"
    "net/http"
    "strconv"
    "time"

    "github.com/prometheus/client_golang/prometheus/promhttp"

    "tripnav/internal/api"
    "tripnav/internal/metrics"
)

func main() {
    srvDeps, err := api.NewServer()
    if err != nil {
        log.Fatalf("failed to init server: %v", err)
    }

    mux := http.NewServeMux()

    // Survey intake and reference catalog
    mux.HandleFunc("/v1/surveys", srvDeps.SurveysHandler)
    mux.HandleFunc("/v1/places", srvDeps.PlacesHandler)
    mux.HandleFunc("/v1/scores", srvDeps.ScoresHandler)

    // Plans
    mux.HandleFunc("/v1/plans", srvDeps.PlansHandler)
    mux.HandleFunc("/v1/plans/", srvDeps.PlanByIDHandler) // includes /events/stream

    // Subscriptions
    mux.HandleFunc("/v1/subscriptions", srvDeps.SubscriptionsHandler)
    mux.HandleFunc("/v1/subscriptions/", srvDeps.SubscriptionByIDHandler)

    // Health
    mux.HandleFunc("/healthz", srvDeps.HealthHandler)
    mux.HandleFunc("/readyz", srvDeps.ReadyHandler)

    // Admin
    mux.HandleFunc("/v1/admin/webhook-deliveries", srvDeps.WebhookDeliveriesHandler)
    mux.HandleFunc("/v1/admin/webhook-deliveries/", srvDeps.WebhookDeliveryRetryHandler)
    mux.HandleFunc("/v1/admin/plan-metrics", srvDeps.PlanMetricsHandler)
    mux.HandleFunc("/v1/admin/evaluate", srvDeps.EvaluateHandler)

    // WebSocket bridge for plan events
    mux.HandleFunc("/v1/ws", srvDeps.PlanEventsWSHandler)

    // Docs and debug
    mux.HandleFunc("/openapi.yaml", srvDeps.OpenAPIHandler)
    mux.HandleFunc("/docs", srvDeps.DocsHandler)
    mux.HandleFunc("/console", srvDeps.SwaggerHandler)
    mux.HandleFunc("/static/", srvDeps.StaticHandler)
    mux.HandleFunc("/debugz", srvDeps.DebugJSON)

    // Prometheus
    metrics.RegisterDefault()
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

    addr := ":" + srvDeps.Cfg.Port

    limiter := api.NewRateLimiter(srvDeps.Cfg.RateLimit.PerSecond, srvDeps.Cfg.RateLimit.Burst)
    srv := &http.Server{
        Addr:              addr,
        Handler:           logMiddleware(metricsMiddleware(limiter.Middleware(mux))),
        ReadHeaderTimeout: 5 * time.Second,
    }

    log.Printf("API listening on %s", addr)
    // Start webhook worker
    if srvDeps.Pub != nil {
        worker := srvDeps.NewWebhookWorker()
        worker.Start()
    }
    if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
        log.Fatalf("server error: %v", err)
    }
}

func logMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        next.ServeHTTP(w, r)
        dur := time.Since(start)
        log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, dur)
    })
}

type statusRecorder struct {
    http.ResponseWriter
    status int
}

func (rec *statusRecorder) WriteHeader(code int) { rec.status = code; rec.ResponseWriter.WriteHeader(code) }

// Flush and Hijack pass through so SSE and WebSocket upgrades keep working.
func (rec *statusRecorder) Flush() {
    if f, ok := rec.ResponseWriter.(http.Flusher); ok { f.Flush() }
}

func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
    if h, ok := rec.ResponseWriter.(http.Hijacker); ok { return h.Hijack() }
    return nil, nil, fmt.Errorf("hijack not supported")
}

func metricsMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        rec := &statusRecorder{ResponseWriter: w, status: 200}
        next.ServeHTTP(rec, r)
        status := strconv.Itoa(rec.status)
        metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
        metrics.HTTPDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
    })
}
