package store

import (
    "context"
    "crypto/sha256"
    "database/sql"
    "encoding/hex"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "tripnav/internal/model"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        return nil, err
    }
    return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies *.sql files in lexical order (dev helper, not a real
// migration tool: no version table, files must be idempotent).
func (p *Postgres) MigrateDir(dir string) error {
    entries, err := os.ReadDir(dir)
    if err != nil { return err }
    var files []string
    for _, e := range entries {
        if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") { files = append(files, e.Name()) }
    }
    sort.Strings(files)
    for _, f := range files {
        b, err := os.ReadFile(filepath.Join(dir, f))
        if err != nil { return err }
        if _, err := p.db.Exec(string(b)); err != nil {
            return fmt.Errorf("migrate %s: %w", f, err)
        }
    }
    return nil
}

// Places

func (p *Postgres) UpsertPlaces(ctx context.Context, tenantID string, places []model.Place) (int, int, error) {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return 0, 0, err }
    defer func(){ _ = tx.Rollback() }()

    created, updated := 0, 0
    for _, pl := range places {
        var exists string
        err = tx.QueryRowContext(ctx, `SELECT id FROM places WHERE tenant_id=$1 AND id=$2`, tenantID, pl.ID).Scan(&exists)
        switch {
        case err == nil:
            updated++
        case errors.Is(err, sql.ErrNoRows):
            created++
        default:
            return 0, 0, err
        }
        _, err = tx.ExecContext(ctx, `INSERT INTO places (tenant_id, id, name, category, lat, lng, price, description)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
            ON CONFLICT (tenant_id, id) DO UPDATE SET name=$3, category=$4, lat=$5, lng=$6, price=$7, description=$8`,
            tenantID, pl.ID, pl.Name, string(pl.Category), pl.Lat, pl.Lng, pl.Price, nullIfEmpty(pl.Description))
        if err != nil { return 0, 0, err }
    }
    if err := tx.Commit(); err != nil { return 0, 0, err }
    return created, updated, nil
}

func (p *Postgres) ListPlaces(ctx context.Context, tenantID string) (map[string]model.Place, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id, name, category, lat, lng, price, COALESCE(description,'') FROM places WHERE tenant_id=$1`, tenantID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := map[string]model.Place{}
    for rows.Next() {
        var pl model.Place
        var cat string
        var price sql.NullFloat64
        if err := rows.Scan(&pl.ID, &pl.Name, &cat, &pl.Lat, &pl.Lng, &price, &pl.Description); err != nil { return nil, err }
        pl.Category = model.Category(cat)
        if price.Valid { v := price.Float64; pl.Price = &v }
        out[pl.ID] = pl
    }
    return out, rows.Err()
}

func (p *Postgres) GetPlace(ctx context.Context, tenantID, id string) (model.Place, error) {
    var pl model.Place
    var cat string
    var price sql.NullFloat64
    err := p.db.QueryRowContext(ctx, `SELECT id, name, category, lat, lng, price, COALESCE(description,'') FROM places WHERE tenant_id=$1 AND id=$2`, tenantID, id).
        Scan(&pl.ID, &pl.Name, &cat, &pl.Lat, &pl.Lng, &price, &pl.Description)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) { return model.Place{}, ErrNotFound }
        return model.Place{}, err
    }
    pl.Category = model.Category(cat)
    if price.Valid { v := price.Float64; pl.Price = &v }
    return pl, nil
}

// Scores

func (p *Postgres) SaveScores(ctx context.Context, tenantID, userID, kind string, scores model.ScoreSet) error {
    js, err := json.Marshal(scores)
    if err != nil { return err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO user_scores (tenant_id, user_id, kind, scores, updated_at) VALUES ($1,$2,$3,$4,now())
        ON CONFLICT (tenant_id, user_id, kind) DO UPDATE SET scores=$4, updated_at=now()`, tenantID, userID, kind, js)
    return err
}

func (p *Postgres) GetScores(ctx context.Context, tenantID, userID, kind string) (model.ScoreSet, error) {
    var js []byte
    err := p.db.QueryRowContext(ctx, `SELECT scores FROM user_scores WHERE tenant_id=$1 AND user_id=$2 AND kind=$3`, tenantID, userID, kind).Scan(&js)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) { return nil, ErrNotFound }
        return nil, err
    }
    var out model.ScoreSet
    if err := json.Unmarshal(js, &out); err != nil { return nil, err }
    return out, nil
}

// Survey intake

func (p *Postgres) SaveUserInfo(ctx context.Context, tenantID string, info model.UserInfo) error {
    js, err := json.Marshal(info)
    if err != nil { return err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO user_info (tenant_id, user_id, info, updated_at) VALUES ($1,$2,$3,now())
        ON CONFLICT (tenant_id, user_id) DO UPDATE SET info=$3, updated_at=now()`, tenantID, info.UserID, js)
    return err
}

func (p *Postgres) GetUserInfo(ctx context.Context, tenantID, userID string) (model.UserInfo, error) {
    var js []byte
    err := p.db.QueryRowContext(ctx, `SELECT info FROM user_info WHERE tenant_id=$1 AND user_id=$2`, tenantID, userID).Scan(&js)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) { return model.UserInfo{}, ErrNotFound }
        return model.UserInfo{}, err
    }
    var out model.UserInfo
    if err := json.Unmarshal(js, &out); err != nil { return model.UserInfo{}, err }
    return out, nil
}

// Plans

func (p *Postgres) CreatePlan(ctx context.Context, plan model.Plan) (model.Plan, error) {
    if plan.ID == "" { plan.ID = uuid.New().String() }
    if plan.CreatedAt == "" { plan.CreatedAt = time.Now().UTC().Format(time.RFC3339) }
    order, _ := json.Marshal(plan.PlanOrder)
    body, err := json.Marshal(plan.Plans)
    if err != nil { return model.Plan{}, err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO plans (id, tenant_id, user_id, plan_order, plans, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
        plan.ID, plan.TenantID, plan.UserID, order, body, plan.CreatedAt)
    if err != nil { return model.Plan{}, err }
    return plan, nil
}

func (p *Postgres) GetPlan(ctx context.Context, tenantID, id string) (model.Plan, error) {
    var pl model.Plan
    var order, body []byte
    err := p.db.QueryRowContext(ctx, `SELECT id, user_id, plan_order, plans, created_at FROM plans WHERE tenant_id=$1 AND id=$2`, tenantID, id).
        Scan(&pl.ID, &pl.UserID, &order, &body, &pl.CreatedAt)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) { return model.Plan{}, ErrNotFound }
        return model.Plan{}, err
    }
    pl.TenantID = tenantID
    _ = json.Unmarshal(order, &pl.PlanOrder)
    if err := json.Unmarshal(body, &pl.Plans); err != nil { return model.Plan{}, err }
    return pl, nil
}

func (p *Postgres) ListPlans(ctx context.Context, tenantID, userID, cursor string, limit int) ([]model.Plan, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    base := `SELECT id, user_id, plan_order, plans, created_at FROM plans WHERE tenant_id=$1`
    args := []any{tenantID}
    idx := 2
    if userID != "" { base += ` AND user_id=$` + fmt.Sprint(idx); args = append(args, userID); idx++ }
    if cursor != "" { base += ` AND id > $` + fmt.Sprint(idx); args = append(args, cursor); idx++ }
    base += ` ORDER BY id LIMIT $` + fmt.Sprint(idx)
    args = append(args, limit)
    rows, err := p.db.QueryContext(ctx, base, args...)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Plan{}
    var last string
    for rows.Next() {
        var pl model.Plan
        var order, body []byte
        if err := rows.Scan(&pl.ID, &pl.UserID, &order, &body, &pl.CreatedAt); err != nil { return nil, "", err }
        pl.TenantID = tenantID
        _ = json.Unmarshal(order, &pl.PlanOrder)
        _ = json.Unmarshal(body, &pl.Plans)
        out = append(out, pl)
        last = pl.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

// Subscriptions

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    id := uuid.New().String()
    ev, _ := json.Marshal(req.Events)
    _, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`, id, req.TenantID, req.URL, ev, req.Secret)
    if err != nil { return model.Subscription{}, err }
    return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND events @> $2::jsonb`, tenantID, fmt.Sprintf("[%q]", eventType))
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Subscription{}
    for rows.Next() {
        var s model.Subscription
        var ev []byte
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil { return nil, err }
        s.TenantID = tenantID
        _ = json.Unmarshal(ev, &s.Events)
        out = append(out, s)
    }
    return out, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    var out []model.Subscription
    var last string
    for rows.Next() {
        var s model.Subscription
        var ev []byte
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil { return nil, "", err }
        s.TenantID = tenantID
        _ = json.Unmarshal(ev, &s.Events)
        out = append(out, s)
        last = s.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    _, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    return err
}

// Webhook deliveries

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    id := uuid.New().String()
    dk := computeDedupKey(payload)
    _, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now(),$8)
        ON CONFLICT (tenant_id, event_type, url, dedup_key) DO NOTHING`, id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload, dk)
    if err != nil { return "", err }
    return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id, COALESCE(subscription_id,''), event_type, url, COALESCE(secret,''), COALESCE(dedup_key,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []WebhookDelivery{}
    for rows.Next() {
        var d WebhookDelivery
        var payload []byte
        if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.DedupKey, &payload, &d.Status, &d.Attempts); err != nil { return nil, err }
        d.Payload = payload
        out = append(out, d)
    }
    return out, nil
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    if !success {
        if nextAttemptAt == nil { t := time.Now().Add(1 * time.Minute); nextAttemptAt = &t }
        _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`,
            id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
        return err
    }
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
    return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
    return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    q := `SELECT id::text, event_type, status, attempts, next_attempt_at, COALESCE(last_error,''), url FROM webhook_deliveries WHERE tenant_id=$1`
    var rows *sql.Rows
    var err error
    if status != "" {
        q += ` AND status=$2 ORDER BY id LIMIT $3`
        rows, err = p.db.QueryContext(ctx, q, tenantID, status, limit)
    } else {
        q += ` ORDER BY id LIMIT $2`
        rows, err = p.db.QueryContext(ctx, q, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []map[string]any{}
    var last string
    for rows.Next() {
        var id, typ, st, lastErr, url string
        var attempts int
        var nextAt sql.NullTime
        if err := rows.Scan(&id, &typ, &st, &attempts, &nextAt, &lastErr, &url); err != nil { return nil, "", err }
        m := map[string]any{"id": id, "eventType": typ, "status": st, "attempts": attempts, "url": url}
        if nextAt.Valid { m["nextAttemptAt"] = nextAt.Time }
        if lastErr != "" { m["lastError"] = lastErr }
        out = append(out, m)
        last = id
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now() WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    return err
}

func computeDedupKey(payload []byte) string {
    // try to parse JSON and use id
    var m map[string]any
    if json.Unmarshal(payload, &m) == nil {
        if v, ok := m["id"].(string); ok && v != "" {
            return v
        }
    }
    sum := sha256.Sum256(payload)
    return hex.EncodeToString(sum[:8])
}

// Helpers
func nullIfEmpty(s string) any { if s == "" { return nil }; return s }
