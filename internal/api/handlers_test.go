package api

import (
    "bytes"
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "os"
    "path/filepath"
    "testing"
    "time"

    "tripnav/internal/model"
)

func newTestServer(t *testing.T) *Server {
    t.Helper()
    // Small per-category quotas so a compact fixture catalog still clusters.
    cfgPath := filepath.Join(t.TempDir(), "config.yaml")
    body := "planner:\n  placesPerCategory: 3\n  minPlacesPerCategory: 2\n"
    if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil { t.Fatal(err) }
    t.Setenv("CONFIG_FILE", cfgPath)
    t.Setenv("DATABASE_URL", "")
    t.Setenv("REDIS_URL", "")
    s, err := NewServer()
    if err != nil { t.Fatalf("NewServer: %v", err) }
    return s
}

func adminReq(method, target string, body []byte) *http.Request {
    var r *http.Request
    if body != nil {
        r = httptest.NewRequest(method, target, bytes.NewReader(body))
        r.Header.Set("Content-Type", "application/json")
    } else {
        r = httptest.NewRequest(method, target, nil)
    }
    r.Header.Set("X-Tenant-Id", "t_test")
    r.Header.Set("X-Role", "admin")
    return r
}

func seedPlaces(t *testing.T, s *Server) {
    t.Helper()
    price := func(v float64) *float64 { return &v }
    var places []model.Place
    add := func(id string, cat model.Category, lat, lng float64, p *float64) {
        places = append(places, model.Place{ID: id, Name: id, Category: cat, Lat: lat, Lng: lng, Price: p})
    }
    // Area A
    add("c1", model.CategoryCafe, 35.100, 129.000, price(4000))
    add("c2", model.CategoryCafe, 35.102, 129.002, price(3000))
    add("c3", model.CategoryCafe, 35.104, 129.004, nil)
    add("r1", model.CategoryRestaurant, 35.101, 129.001, price(8000))
    add("r2", model.CategoryRestaurant, 35.103, 129.003, price(6000))
    add("r3", model.CategoryRestaurant, 35.105, 129.005, price(7000))
    add("a1", model.CategoryAttraction, 35.106, 129.006, nil)
    add("a2", model.CategoryAttraction, 35.108, 129.008, nil)
    add("a3", model.CategoryAttraction, 35.110, 129.010, nil)
    // Area B
    add("c4", model.CategoryCafe, 35.400, 129.300, price(5000))
    add("c5", model.CategoryCafe, 35.402, 129.302, price(4500))
    add("c6", model.CategoryCafe, 35.404, 129.304, nil)
    add("r4", model.CategoryRestaurant, 35.401, 129.301, price(9000))
    add("r5", model.CategoryRestaurant, 35.403, 129.303, price(5000))
    add("r6", model.CategoryRestaurant, 35.405, 129.305, price(8000))
    add("a4", model.CategoryAttraction, 35.406, 129.306, nil)
    add("a5", model.CategoryAttraction, 35.408, 129.308, nil)
    add("a6", model.CategoryAttraction, 35.410, 129.310, nil)
    // Lodging between the areas
    add("h1", model.CategoryAccommodation, 35.250, 129.150, price(40000))
    add("h2", model.CategoryAccommodation, 35.252, 129.152, price(90000))

    b, _ := json.Marshal(map[string]any{"places": places})
    rr := httptest.NewRecorder()
    s.PlacesHandler(rr, adminReq(http.MethodPost, "/v1/places", b))
    if rr.Code != 200 { t.Fatalf("seed places: %d %s", rr.Code, rr.Body.String()) }
}

func seedSurvey(t *testing.T, s *Server, userID string) {
    t.Helper()
    b, _ := json.Marshal(model.SurveyIn{
        UserID:       userID,
        TotalBudget:  100000,
        DurationDays: 2,
        StyleRank:    map[string]int{"food": 1, "relax": 2},
    })
    rr := httptest.NewRecorder()
    s.SurveysHandler(rr, adminReq(http.MethodPost, "/v1/surveys", b))
    if rr.Code != http.StatusCreated { t.Fatalf("seed survey: %d %s", rr.Code, rr.Body.String()) }
}

func seedScores(t *testing.T, s *Server, userID, kind string, reverse bool) {
    t.Helper()
    rank := func(ids ...string) []model.ScoredCandidate {
        out := make([]model.ScoredCandidate, 0, len(ids))
        n := len(ids)
        for i, id := range ids {
            out = append(out, model.ScoredCandidate{PlaceID: id, Score: float64(n - i)})
        }
        return out
    }
    scores := model.ScoreSet{
        model.CategoryCafe:          rank("c1", "c2", "c3", "c4", "c5", "c6"),
        model.CategoryRestaurant:    rank("r1", "r2", "r3", "r4", "r5", "r6"),
        model.CategoryAttraction:    rank("a1", "a2", "a3", "a4", "a5", "a6"),
        model.CategoryAccommodation: rank("h1", "h2"),
    }
    if reverse {
        scores = model.ScoreSet{
            model.CategoryCafe:          rank("c4", "c5", "c6", "c1", "c2", "c3"),
            model.CategoryRestaurant:    rank("r4", "r5", "r6", "r1", "r2", "r3"),
            model.CategoryAttraction:    rank("a4", "a5", "a6", "a1", "a2", "a3"),
            model.CategoryAccommodation: rank("h2", "h1"),
        }
    }
    b, _ := json.Marshal(map[string]any{"userId": userID, "kind": kind, "scores": scores})
    rr := httptest.NewRecorder()
    s.ScoresHandler(rr, adminReq(http.MethodPost, "/v1/scores", b))
    if rr.Code != 200 { t.Fatalf("seed scores %s: %d %s", kind, rr.Code, rr.Body.String()) }
}

type planResponse struct {
    Plan    model.Plan              `json:"plan"`
    Metrics []model.StrategyMetrics `json:"metrics"`
}

func createPlan(t *testing.T, s *Server, userID string) planResponse {
    t.Helper()
    b, _ := json.Marshal(model.PlanRequest{UserID: userID})
    rr := httptest.NewRecorder()
    s.PlansHandler(rr, adminReq(http.MethodPost, "/v1/plans", b))
    if rr.Code != http.StatusCreated { t.Fatalf("create plan: %d %s", rr.Code, rr.Body.String()) }
    var res planResponse
    if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil { t.Fatalf("decode plan: %v", err) }
    return res
}

func TestHealthReady(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
    if rr.Code != 200 { t.Fatalf("health: got %d", rr.Code) }
    rr = httptest.NewRecorder()
    s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
    if rr.Code != 200 { t.Fatalf("ready: got %d", rr.Code) }
}

func TestSurveyCreateGet(t *testing.T) {
    s := newTestServer(t)
    seedSurvey(t, s, "u1")

    rr := httptest.NewRecorder()
    s.SurveysHandler(rr, adminReq(http.MethodGet, "/v1/surveys?userId=u1", nil))
    if rr.Code != 200 { t.Fatalf("get survey: %d", rr.Code) }
    var info model.UserInfo
    if err := json.Unmarshal(rr.Body.Bytes(), &info); err != nil { t.Fatal(err) }
    if info.TravelStyle != "food" { t.Fatalf("style = %s", info.TravelStyle) }
    if info.BudgetPerDay != 50000 { t.Fatalf("budgetPerDay = %v", info.BudgetPerDay) }
    if len(info.Template.Days) != 2 { t.Fatalf("template days = %d", len(info.Template.Days)) }
    last := info.Template.Days[0].Slots[len(info.Template.Days[0].Slots)-1]
    if last.Category != model.CategoryAccommodation { t.Fatalf("expected nightly slot, got %s", last.Category) }
}

func TestSurveyValidation(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.SurveysHandler(rr, adminReq(http.MethodPost, "/v1/surveys", []byte(`{"userId":"","durationDays":2}`)))
    if rr.Code != 400 { t.Fatalf("want 400, got %d", rr.Code) }
}

func TestPlacesValidation(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    body := []byte(`{"places":[{"id":"x1","category":"Museum","lat":1,"lng":2}]}`)
    s.PlacesHandler(rr, adminReq(http.MethodPost, "/v1/places", body))
    if rr.Code != 400 { t.Fatalf("want 400, got %d", rr.Code) }
}

func TestScoresValidation(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    body := []byte(`{"userId":"u1","kind":"sentiment","scores":{"Cafe":[{"id":"c1","score":1}]}}`)
    s.ScoresHandler(rr, adminReq(http.MethodPost, "/v1/scores", body))
    if rr.Code != 400 { t.Fatalf("want 400, got %d", rr.Code) }
}

func TestPlanRequiresSurvey(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.PlansHandler(rr, adminReq(http.MethodPost, "/v1/plans", []byte(`{"userId":"ghost"}`)))
    if rr.Code != 404 { t.Fatalf("want 404, got %d", rr.Code) }
}

func TestPlanFlow(t *testing.T) {
    s := newTestServer(t)
    seedPlaces(t, s)
    seedSurvey(t, s, "u1")
    seedScores(t, s, "u1", "popularity", true)
    seedScores(t, s, "u1", "preference", false)

    res := createPlan(t, s, "u1")
    if res.Plan.ID == "" { t.Fatal("plan id missing") }
    wantOrder := []string{"hybrid", "popularity", "personalized"}
    if len(res.Plan.PlanOrder) != 3 { t.Fatalf("plan_order = %v", res.Plan.PlanOrder) }
    for i, k := range wantOrder {
        if res.Plan.PlanOrder[i] != k { t.Fatalf("plan_order = %v", res.Plan.PlanOrder) }
        if _, ok := res.Plan.Plans[k]; !ok { t.Fatalf("missing strategy %s", k) }
    }
    if len(res.Metrics) != 3 { t.Fatalf("metrics count = %d", len(res.Metrics)) }
    for _, key := range []string{"day1", "day2"} {
        if _, ok := res.Plan.Plans["popularity"][key]; !ok { t.Fatalf("popularity missing %s", key) }
    }
    // preference ranks area A first, popularity area B first
    if got := res.Plan.Plans["personalized"]["day1"][0].PlaceID; got != "c1" {
        t.Fatalf("personalized day1 cafe = %s", got)
    }
    if got := res.Plan.Plans["popularity"]["day1"][0].PlaceID; got != "c4" {
        t.Fatalf("popularity day1 cafe = %s", got)
    }

    // GET by id
    rr := httptest.NewRecorder()
    s.PlanByIDHandler(rr, adminReq(http.MethodGet, "/v1/plans/"+res.Plan.ID, nil))
    if rr.Code != 200 { t.Fatalf("get plan: %d", rr.Code) }

    // list filtered by user
    rr = httptest.NewRecorder()
    s.PlansHandler(rr, adminReq(http.MethodGet, "/v1/plans?userId=u1", nil))
    if rr.Code != 200 { t.Fatalf("list plans: %d", rr.Code) }
    var lres struct{ Items []model.Plan `json:"items"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &lres); err != nil { t.Fatal(err) }
    if len(lres.Items) != 1 || lres.Items[0].ID != res.Plan.ID { t.Fatalf("list items = %+v", lres.Items) }

    // assembly metrics recorded per strategy
    rr = httptest.NewRecorder()
    s.PlanMetricsHandler(rr, adminReq(http.MethodGet, "/v1/admin/plan-metrics?userId=u1", nil))
    if rr.Code != 200 { t.Fatalf("plan metrics: %d", rr.Code) }
    var mres struct{ Strategies map[string]model.StrategyMetrics `json:"strategies"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &mres); err != nil { t.Fatal(err) }
    if len(mres.Strategies) != 3 { t.Fatalf("strategies = %v", mres.Strategies) }
}

func TestPlanCreatedEnqueuesWebhook(t *testing.T) {
    s := newTestServer(t)
    subBody := []byte(`{"url":"https://example.invalid/webhook","events":["plan.created"],"secret":"shh"}`)
    rr := httptest.NewRecorder()
    s.SubscriptionsHandler(rr, adminReq(http.MethodPost, "/v1/subscriptions", subBody))
    if rr.Code != http.StatusCreated { t.Fatalf("create sub: %d", rr.Code) }

    seedPlaces(t, s)
    seedSurvey(t, s, "u1")
    seedScores(t, s, "u1", "popularity", true)
    seedScores(t, s, "u1", "preference", false)
    createPlan(t, s, "u1")

    rr = httptest.NewRecorder()
    s.WebhookDeliveriesHandler(rr, adminReq(http.MethodGet, "/v1/admin/webhook-deliveries?limit=5", nil))
    if rr.Code != 200 { t.Fatalf("deliveries: %d", rr.Code) }
    var dres struct{ Items []map[string]any `json:"items"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &dres); err != nil { t.Fatalf("decode deliveries: %v", err) }
    if len(dres.Items) == 0 { t.Fatalf("expected at least one delivery") }
    if et, ok := dres.Items[0]["eventType"].(string); ok && et == "" {
        t.Fatalf("eventType should not be empty")
    }
}

func TestSubscriptionValidation(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.SubscriptionsHandler(rr, adminReq(http.MethodPost, "/v1/subscriptions", []byte(`{"url":"ftp://x","events":["plan.created"]}`)))
    if rr.Code != 400 { t.Fatalf("want 400, got %d", rr.Code) }
    rr = httptest.NewRecorder()
    s.SubscriptionsHandler(rr, adminReq(http.MethodPost, "/v1/subscriptions", []byte(`{"url":"https://x","events":["route.done"]}`)))
    if rr.Code != 400 { t.Fatalf("want 400, got %d", rr.Code) }
}

func TestEvaluateBaselines(t *testing.T) {
    s := newTestServer(t)
    seedPlaces(t, s)
    seedSurvey(t, s, "u1")
    seedScores(t, s, "u1", "popularity", true)
    seedScores(t, s, "u1", "preference", false)

    rr := httptest.NewRecorder()
    s.EvaluateHandler(rr, adminReq(http.MethodPost, "/v1/admin/evaluate", []byte(`{"userIds":["u1"]}`)))
    if rr.Code != 200 { t.Fatalf("evaluate: %d %s", rr.Code, rr.Body.String()) }
    var res struct {
        Results []struct {
            UserID  string `json:"userId"`
            Variant string `json:"variant"`
        } `json:"results"`
    }
    if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil { t.Fatal(err) }
    if len(res.Results) != 2 { t.Fatalf("results = %+v", res.Results) }
    if res.Results[0].Variant != "preference" || res.Results[1].Variant != "review" {
        t.Fatalf("variant order = %+v", res.Results)
    }
}

// sseRecorder is a minimal ResponseWriter that implements http.Flusher
// and captures writes for SSE tests.
type sseRecorder struct {
    hdr  http.Header
    buf  bytes.Buffer
    code int
}

func (r *sseRecorder) Header() http.Header { if r.hdr == nil { r.hdr = http.Header{} }; return r.hdr }
func (r *sseRecorder) WriteHeader(c int) { r.code = c }
func (r *sseRecorder) Write(p []byte) (int, error) { return r.buf.Write(p) }
func (r *sseRecorder) Flush() {}

func TestPlanEventsSSE(t *testing.T) {
    s := newTestServer(t)
    seedPlaces(t, s)
    seedSurvey(t, s, "u1")
    seedScores(t, s, "u1", "popularity", true)
    seedScores(t, s, "u1", "preference", false)
    res := createPlan(t, s, "u1")
    pid := res.Plan.ID

    // Prepare SSE request with cancelable context
    sseReq := httptest.NewRequest(http.MethodGet, "/v1/plans/"+pid+"/events/stream", nil)
    ctx, cancel := context.WithTimeout(context.Background(), time.Second)
    defer cancel()
    sseReq = sseReq.WithContext(ctx)
    sseReq.Header.Set("X-Tenant-Id", "t_test")
    sseReq.Header.Set("X-Role", "admin")

    rec := &sseRecorder{}
    done := make(chan struct{})
    go func() {
        s.PlanByIDHandler(rec, sseReq)
        close(done)
    }()

    // Give handler time to subscribe and send heartbeat
    time.Sleep(50 * time.Millisecond)
    // Publish an event
    s.Broker.Publish(pid, SSEEvent{Type: "plan.updated", Data: map[string]any{"planId": pid}})

    // Wait up to 500ms for the event to appear in buffer
    deadline := time.Now().Add(500 * time.Millisecond)
    for time.Now().Before(deadline) {
        if bytes.Contains(rec.buf.Bytes(), []byte("event: plan.updated")) {
            break
        }
        time.Sleep(10 * time.Millisecond)
    }
    if !bytes.Contains(rec.buf.Bytes(), []byte("event: plan.updated")) {
        t.Fatalf("SSE did not contain expected event. Body: %s", rec.buf.String())
    }
    // Ensure handler exits on context cancel
    cancel()
    select {
    case <-done:
    case <-time.After(200 * time.Millisecond):
        t.Fatal("handler did not exit after cancel")
    }
}
