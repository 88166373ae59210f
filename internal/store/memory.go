package store

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/google/uuid"
    "tripnav/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu      sync.Mutex
    places  map[string]map[string]model.Place    // tenant -> place id -> place
    scores  map[string]model.ScoreSet            // tenant|user|kind -> score set
    users   map[string]model.UserInfo            // tenant|user -> survey result
    plans   map[string]model.Plan                // plan id -> plan
    plansBy map[string][]string                  // tenant -> plan ids, insertion order
    subs    map[string][]model.Subscription      // tenant -> subscriptions
    // Webhooks queue state
    deliveries         map[string]*memDelivery   // id -> delivery state
    deliveriesByTenant map[string][]string       // tenant -> delivery ids
}

func NewMemory() *Memory {
    return &Memory{
        places: map[string]map[string]model.Place{},
        scores: map[string]model.ScoreSet{},
        users: map[string]model.UserInfo{},
        plans: map[string]model.Plan{},
        plansBy: map[string][]string{},
        subs: map[string][]model.Subscription{},
        deliveries: map[string]*memDelivery{},
        deliveriesByTenant: map[string][]string{},
    }
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
    WebhookDelivery
    NextAttemptAt time.Time
    LastError     string
    ResponseCode  int
    LatencyMs     int
    DeliveredAt   *time.Time
}

func scoreKey(tenantID, userID, kind string) string { return tenantID + "|" + userID + "|" + kind }
func userKey(tenantID, userID string) string        { return tenantID + "|" + userID }

func (m *Memory) UpsertPlaces(ctx context.Context, tenantID string, places []model.Place) (int, int, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    cat := m.places[tenantID]
    if cat == nil { cat = map[string]model.Place{}; m.places[tenantID] = cat }
    created, updated := 0, 0
    for _, p := range places {
        if _, ok := cat[p.ID]; ok { updated++ } else { created++ }
        cat[p.ID] = p
    }
    return created, updated, nil
}

func (m *Memory) ListPlaces(ctx context.Context, tenantID string) (map[string]model.Place, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := make(map[string]model.Place, len(m.places[tenantID]))
    for id, p := range m.places[tenantID] { out[id] = p }
    return out, nil
}

func (m *Memory) GetPlace(ctx context.Context, tenantID, id string) (model.Place, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    p, ok := m.places[tenantID][id]
    if !ok { return model.Place{}, ErrNotFound }
    return p, nil
}

func (m *Memory) SaveScores(ctx context.Context, tenantID, userID, kind string, scores model.ScoreSet) error {
    m.mu.Lock(); defer m.mu.Unlock()
    cp := model.ScoreSet{}
    for cat, list := range scores { cp[cat] = append([]model.ScoredCandidate(nil), list...) }
    m.scores[scoreKey(tenantID, userID, kind)] = cp
    return nil
}

func (m *Memory) GetScores(ctx context.Context, tenantID, userID, kind string) (model.ScoreSet, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    s, ok := m.scores[scoreKey(tenantID, userID, kind)]
    if !ok { return nil, ErrNotFound }
    out := model.ScoreSet{}
    for cat, list := range s { out[cat] = append([]model.ScoredCandidate(nil), list...) }
    return out, nil
}

func (m *Memory) SaveUserInfo(ctx context.Context, tenantID string, info model.UserInfo) error {
    m.mu.Lock(); defer m.mu.Unlock()
    m.users[userKey(tenantID, info.UserID)] = info
    return nil
}

func (m *Memory) GetUserInfo(ctx context.Context, tenantID, userID string) (model.UserInfo, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    u, ok := m.users[userKey(tenantID, userID)]
    if !ok { return model.UserInfo{}, ErrNotFound }
    return u, nil
}

func (m *Memory) CreatePlan(ctx context.Context, plan model.Plan) (model.Plan, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if plan.ID == "" { plan.ID = uuid.New().String() }
    if plan.CreatedAt == "" { plan.CreatedAt = time.Now().UTC().Format(time.RFC3339) }
    m.plans[plan.ID] = plan
    m.plansBy[plan.TenantID] = append(m.plansBy[plan.TenantID], plan.ID)
    return plan, nil
}

func (m *Memory) GetPlan(ctx context.Context, tenantID, id string) (model.Plan, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    p, ok := m.plans[id]
    if !ok || p.TenantID != tenantID { return model.Plan{}, ErrNotFound }
    return p, nil
}

func (m *Memory) ListPlans(ctx context.Context, tenantID, userID, cursor string, limit int) ([]model.Plan, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.plansBy[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids {
            if id == cursor { start = i + 1; break }
        }
    }
    if limit <= 0 { limit = 100 }
    out := []model.Plan{}
    var next string
    for i := start; i < len(ids) && len(out) < limit; i++ {
        p := m.plans[ids[i]]
        if userID == "" || p.UserID == userID { out = append(out, p) }
        next = ids[i]
    }
    if len(out) < limit { next = "" }
    return out, next, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
    m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
    return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    var out []model.Subscription
    for _, s := range m.subs[tenantID] {
        for _, e := range s.Events { if e == eventType { out = append(out, s); break } }
    }
    return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    list := m.subs[tenantID]
    start := 0
    if cursor != "" {
        for i := range list { if list[i].ID == cursor { start = i+1; break } }
    }
    if limit <= 0 { limit = 100 }
    end := start + limit
    if end > len(list) { end = len(list) }
    items := append([]model.Subscription(nil), list[start:end]...)
    next := ""
    if end < len(list) { next = list[end-1].ID }
    return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    arr := m.subs[tenantID]
    out := make([]model.Subscription, 0, len(arr))
    for _, s := range arr { if s.ID != id { out = append(out, s) } }
    m.subs[tenantID] = out
    return nil
}

// Webhook deliveries
func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    dk := computeDedupKey(payload)
    for _, eid := range m.deliveriesByTenant[tenantID] {
        if e := m.deliveries[eid]; e != nil && e.EventType == eventType && e.URL == url && e.DedupKey == dk {
            return e.ID, nil
        }
    }
    id := uuid.New().String()
    d := &memDelivery{WebhookDelivery: WebhookDelivery{ID: id, TenantID: tenantID, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, DedupKey: dk, Payload: payload, Status: "pending", Attempts: 0}, NextAttemptAt: time.Now()}
    m.deliveries[id] = d
    m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
    return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    now := time.Now()
    out := []WebhookDelivery{}
    for _, id := range m.iterDeliveryIDs() {
        d := m.deliveries[id]
        if d == nil { continue }
        if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
            out = append(out, d.WebhookDelivery)
            if limit > 0 && len(out) >= limit { break }
        }
    }
    return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return nil }
    d.Attempts++
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    if success {
        d.Status = "delivered"
        now := time.Now()
        d.DeliveredAt = &now
    } else {
        d.Status = "retry"
        d.LastError = lastError
        if nextAttemptAt != nil { d.NextAttemptAt = *nextAttemptAt } else { d.NextAttemptAt = time.Now().Add(1 * time.Minute) }
    }
    return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d != nil {
        d.Status = "failed"
        d.LastError = lastError
        d.ResponseCode = responseCode
        d.LatencyMs = latencyMs
    }
    return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []map[string]any{}
    ids := m.deliveriesByTenant[tenantID]
    for _, id := range ids {
        d := m.deliveries[id]
        if d == nil { continue }
        if status == "" || d.Status == status {
            item := map[string]any{"id": d.ID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
            if !d.NextAttemptAt.IsZero() { item["nextAttemptAt"] = d.NextAttemptAt }
            if d.LastError != "" { item["lastError"] = d.LastError }
            out = append(out, item)
        }
    }
    return out, "", nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d != nil && d.TenantID == tenantID {
        d.Status = "pending"
        d.NextAttemptAt = time.Now()
    }
    return nil
}

/// helper: iterate delivery IDs in a stable tenant order
func (m *Memory) iterDeliveryIDs() []string {
    tenants := make([]string, 0, len(m.deliveriesByTenant))
    for t := range m.deliveriesByTenant { tenants = append(tenants, t) }
    sort.Strings(tenants)
    ids := []string{}
    for _, t := range tenants { ids = append(ids, m.deliveriesByTenant[t]...) }
    return ids
}
