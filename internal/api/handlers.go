package api

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "sort"
    "strings"
    "sync"
    "time"

    "github.com/google/uuid"

    "tripnav/internal/metrics"
    "tripnav/internal/model"
    "tripnav/internal/plan"
    "tripnav/internal/store"
    "tripnav/internal/webhooks"
)

// SurveysHandler handles POST/GET /v1/surveys
func (s *Server) SurveysHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        var req model.SurveyIn
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if err := validateSurvey(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid survey", err.Error(), r.URL.Path)
            return
        }
        _, tenant := s.withTenant(r)
        info := plan.IntakeSurvey(req)
        if err := s.Store.SaveUserInfo(r.Context(), tenant, info); err != nil {
            writeProblem(w, http.StatusInternalServerError, "Save survey failed", err.Error(), r.URL.Path)
            return
        }
        s.Pub.Emit(r.Context(), tenant, webhooks.EventSurveySaved, map[string]any{
            "userId": info.UserID,
            "travelStyle": info.TravelStyle,
            "durationDays": info.DurationDays,
        })
        writeJSON(w, http.StatusCreated, info)
    case http.MethodGet:
        userID := r.URL.Query().Get("userId")
        if userID == "" { writeProblem(w, 400, "Missing userId", "", r.URL.Path); return }
        _, tenant := s.withTenant(r)
        info, err := s.Store.GetUserInfo(r.Context(), tenant, userID)
        if err != nil { writeProblem(w, 404, "Survey not found", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, info)
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// PlacesHandler handles POST/GET /v1/places
func (s *Server) PlacesHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        p := s.getPrincipal(r)
        if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
        var body struct{ Places []model.Place `json:"places"` }
        if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if err := validatePlaces(body.Places); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid places", err.Error(), r.URL.Path)
            return
        }
        created, updated, err := s.Store.UpsertPlaces(r.Context(), p.Tenant, body.Places)
        if err != nil { writeProblem(w, 500, "Upsert places failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]int{"created": created, "updated": updated})
    case http.MethodGet:
        _, tenant := s.withTenant(r)
        byID, err := s.Store.ListPlaces(r.Context(), tenant)
        if err != nil { writeProblem(w, 500, "List places failed", err.Error(), r.URL.Path); return }
        items := make([]model.Place, 0, len(byID))
        for _, pl := range byID { items = append(items, pl) }
        sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
        writeJSON(w, 200, map[string]any{"items": items})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// ScoresHandler handles POST/GET /v1/scores
func (s *Server) ScoresHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        var body struct {
            UserID string         `json:"userId"`
            Kind   string         `json:"kind"`
            Scores model.ScoreSet `json:"scores"`
        }
        if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if err := validateScores(body.UserID, body.Kind, body.Scores); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid scores", err.Error(), r.URL.Path)
            return
        }
        _, tenant := s.withTenant(r)
        if err := s.Store.SaveScores(r.Context(), tenant, body.UserID, body.Kind, body.Scores); err != nil {
            writeProblem(w, 500, "Save scores failed", err.Error(), r.URL.Path)
            return
        }
        s.Pub.Emit(r.Context(), tenant, webhooks.EventScoresUpdated, map[string]any{
            "userId": body.UserID, "kind": body.Kind,
        })
        writeJSON(w, 200, map[string]bool{"ok": true})
    case http.MethodGet:
        userID := r.URL.Query().Get("userId")
        kind := r.URL.Query().Get("kind")
        if userID == "" || kind == "" { writeProblem(w, 400, "Missing userId or kind", "", r.URL.Path); return }
        _, tenant := s.withTenant(r)
        scores, err := s.Store.GetScores(r.Context(), tenant, userID, kind)
        if err != nil { writeProblem(w, 404, "Scores not found", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"userId": userID, "kind": kind, "scores": scores})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// PlansHandler handles POST /v1/plans (generate) and GET /v1/plans (list)
func (s *Server) PlansHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        var req model.PlanRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if strings.TrimSpace(req.UserID) == "" {
            writeProblem(w, http.StatusBadRequest, "Missing userId", "", r.URL.Path)
            return
        }
        _, tenant := s.withTenant(r)
        info, err := s.Store.GetUserInfo(r.Context(), tenant, req.UserID)
        if err != nil {
            if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Survey not found", "submit a survey before planning", r.URL.Path); return }
            writeProblem(w, 500, "Load survey failed", err.Error(), r.URL.Path)
            return
        }
        catalog, err := s.Store.ListPlaces(r.Context(), tenant)
        if err != nil { writeProblem(w, 500, "Load places failed", err.Error(), r.URL.Path); return }
        popularity, err := s.Store.GetScores(r.Context(), tenant, req.UserID, store.ScoreKindPopularity)
        if err != nil && !errors.Is(err, store.ErrNotFound) { writeProblem(w, 500, "Load scores failed", err.Error(), r.URL.Path); return }
        preference, err := s.Store.GetScores(r.Context(), tenant, req.UserID, store.ScoreKindPreference)
        if err != nil && !errors.Is(err, store.ErrNotFound) { writeProblem(w, 500, "Load scores failed", err.Error(), r.URL.Path); return }

        in := plan.Inputs{
            Template:   info.Template,
            Params:     model.TripParams{DurationDays: info.DurationDays, TotalBudget: info.TotalBudget},
            Popularity: popularity,
            Preference: preference,
        }
        planID := uuid.New().String()
        s.Broker.Publish(planID, SSEEvent{Type: "plan.started", Data: map[string]any{
            "planId": planID, "userId": req.UserID,
        }})
        schedules, runMetrics, err := s.generator(plan.Catalog(catalog)).Generate(in)
        if err != nil {
            writeProblem(w, http.StatusBadRequest, "Plan generation failed", err.Error(), r.URL.Path)
            return
        }
        for _, m := range runMetrics {
            plan.RecordMetrics(tenant, req.UserID, m)
            metrics.PlansBuilt.WithLabelValues(m.Strategy).Inc()
            metrics.PlanBuildDuration.WithLabelValues(m.Strategy).Observe(m.AssemblyMs / 1000)
            s.Broker.Publish(planID, SSEEvent{Type: "plan.strategy", Data: map[string]any{
                "planId": planID, "strategy": m.Strategy, "assemblyMs": m.AssemblyMs,
            }})
        }

        created, err := s.Store.CreatePlan(r.Context(), model.Plan{
            ID:        planID,
            TenantID:  tenant,
            UserID:    req.UserID,
            PlanOrder: plan.PlanOrder,
            Plans:     schedules,
        })
        if err != nil { writeProblem(w, 500, "Save plan failed", err.Error(), r.URL.Path); return }
        s.Pub.Emit(r.Context(), tenant, webhooks.EventPlanCreated, map[string]any{
            "id": created.ID, "userId": created.UserID, "strategies": created.PlanOrder,
        })
        s.Broker.Publish(created.ID, SSEEvent{Type: "plan.completed", Data: map[string]any{
            "planId": created.ID, "userId": created.UserID,
        }})
        writeJSON(w, http.StatusCreated, map[string]any{"plan": created, "metrics": runMetrics})
    case http.MethodGet:
        _, tenant := s.withTenant(r)
        userID := r.URL.Query().Get("userId")
        cursor := r.URL.Query().Get("cursor")
        limit := 50
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListPlans(r.Context(), tenant, userID, cursor, limit)
        if err != nil { writeProblem(w, 500, "List plans failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// PlanByIDHandler handles GET /v1/plans/{id} and GET /v1/plans/{id}/events/stream
func (s *Server) PlanByIDHandler(w http.ResponseWriter, r *http.Request) {
    path := r.URL.Path
    rest := strings.TrimPrefix(path, "/v1/plans/")
    if rest == path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]
    if len(parts) > 1 && parts[1] == "events" && len(parts) > 2 && parts[2] == "stream" {
        // SSE for plan events
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        pr := s.getPrincipal(r)
        if !(pr.IsAdmin() || pr.Role == "planner") {
            // allow travelers only for their own plans
            _, tenant := s.withTenant(r)
            pl, err := s.Store.GetPlan(r.Context(), tenant, id)
            if err != nil { writeProblem(w, 404, "Plan not found", err.Error(), r.URL.Path); return }
            if pr.UserID == "" || pl.UserID == "" || pr.UserID != pl.UserID {
                writeProblem(w, 403, "Forbidden", "not authorized for plan events", r.URL.Path)
                return
            }
        }
        flusher, ok := w.(http.Flusher)
        if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
        w.Header().Set("Content-Type", "text/event-stream")
        w.Header().Set("Cache-Control", "no-cache")
        w.Header().Set("Connection", "keep-alive")
        // subscribe
        ch := s.Broker.Subscribe(id)
        defer s.Broker.Unsubscribe(id, ch)
        // initial heartbeat
        fmt.Fprintf(w, "event: heartbeat\n")
        fmt.Fprintf(w, "data: {\"planId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
        flusher.Flush()
        // stream loop
        notify := r.Context().Done()
        for {
            select {
            case <-notify:
                return
            case evt := <-ch:
                b, _ := json.Marshal(evt.Data)
                fmt.Fprintf(w, "event: %s\n", evt.Type)
                fmt.Fprintf(w, "data: %s\n\n", string(b))
                flusher.Flush()
            case <-time.After(15 * time.Second):
                fmt.Fprintf(w, "event: heartbeat\n")
                fmt.Fprintf(w, "data: {\"planId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
                flusher.Flush()
            }
        }
    }
    if len(parts) == 1 {
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        _, tenant := s.withTenant(r)
        pl, err := s.Store.GetPlan(r.Context(), tenant, id)
        if err != nil { writeProblem(w, 404, "Plan not found", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, pl)
        return
    }
    writeProblem(w, http.StatusNotFound, "Not Found", "", path)
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        p := s.getPrincipal(r)
        if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
        var req model.SubscriptionRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if err := validateSubscription(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid subscription", err.Error(), r.URL.Path)
            return
        }
        if req.TenantID == "" { req.TenantID = p.Tenant }
        sub, err := s.Store.CreateSubscription(r.Context(), req)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, sub)
    case http.MethodGet:
        // Admin list
        p := s.getPrincipal(r)
        if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, cursor, limit)
        if err != nil { writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// Subscription delete (admin)
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodDelete { w.WriteHeader(405); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
    if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil { writeProblem(w, 500, "Delete subscription failed", err.Error(), r.URL.Path); return }
    w.WriteHeader(204)
}

// Admin: webhook deliveries list and retry
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/webhook-deliveries" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(405); return }
    status := r.URL.Query().Get("status")
    cursor := r.URL.Query().Get("cursor")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, next, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, status, cursor, limit)
    if err != nil { writeProblem(w, 500, "List deliveries failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/") || !strings.HasSuffix(r.URL.Path, "/retry") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodPost { w.WriteHeader(405); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
    if err := s.Store.RetryWebhookDelivery(r.Context(), p.Tenant, id); err != nil { writeProblem(w, 500, "Retry delivery failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 202, map[string]int{"accepted": 1})
}

// Admin: assembly metrics per user
func (s *Server) PlanMetricsHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/plan-metrics" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    userID := r.URL.Query().Get("userId")
    if userID == "" { writeProblem(w, 400, "Missing userId", "", r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"userId": userID, "strategies": plan.MetricsFor(p.Tenant, userID)})
}

// Admin: batch baseline evaluation across users and variants
func (s *Server) EvaluateHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/evaluate" || r.Method != http.MethodPost { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    var body struct {
        UserIDs  []string `json:"userIds"`
        Variants []string `json:"variants"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if len(body.UserIDs) == 0 { writeProblem(w, 400, "Missing userIds", "", r.URL.Path); return }
    if len(body.Variants) == 0 { body.Variants = []string{plan.BaselineReview, plan.BaselinePreference} }
    for _, v := range body.Variants {
        if v != plan.BaselineReview && v != plan.BaselinePreference {
            writeProblem(w, 400, "Invalid variant", v, r.URL.Path)
            return
        }
    }
    catalog, err := s.Store.ListPlaces(r.Context(), p.Tenant)
    if err != nil { writeProblem(w, 500, "Load places failed", err.Error(), r.URL.Path); return }

    var (
        mu      sync.Mutex
        results []plan.BaselineResult
        wg      sync.WaitGroup
    )
    for _, uid := range body.UserIDs {
        info, err := s.Store.GetUserInfo(r.Context(), p.Tenant, uid)
        if err != nil { continue }
        for _, variant := range body.Variants {
            kind := store.ScoreKindPopularity
            if variant == plan.BaselinePreference { kind = store.ScoreKindPreference }
            ranked, err := s.Store.GetScores(r.Context(), p.Tenant, uid, kind)
            if err != nil { continue }
            wg.Add(1)
            go func(uid, variant string, tpl model.Template, ranked model.ScoreSet) {
                defer wg.Done()
                res := plan.RunBaseline(variant, uid, tpl, ranked, plan.Catalog(catalog))
                mu.Lock()
                results = append(results, res)
                mu.Unlock()
            }(uid, variant, info.Template, ranked)
        }
    }
    wg.Wait()
    sort.Slice(results, func(i, j int) bool {
        if results[i].UserID != results[j].UserID { return results[i].UserID < results[j].UserID }
        return results[i].Variant < results[j].Variant
    })
    writeJSON(w, 200, map[string]any{"results": results})
}

// HealthHandler responds to liveness probes.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]string{"status": "ok"})
}

// ReadyHandler verifies the backing store is reachable.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    if pg, ok := s.Store.(*store.Postgres); ok {
        ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
        defer cancel()
        if err := pg.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
    }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}
