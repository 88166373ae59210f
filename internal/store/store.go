package store

import (
    "context"
    "errors"
    "time"

    "tripnav/internal/model"
)

// Score kinds persisted per user.
const (
    ScoreKindPopularity = "popularity"
    ScoreKindPreference = "preference"
)

// Store is the persistence interface used by the API server.
type Store interface {
    // Places (reference catalog)
    UpsertPlaces(ctx context.Context, tenantID string, places []model.Place) (created, updated int, err error)
    ListPlaces(ctx context.Context, tenantID string) (map[string]model.Place, error)
    GetPlace(ctx context.Context, tenantID, id string) (model.Place, error)

    // Scores per user: popularity (global ranking) and preference
    SaveScores(ctx context.Context, tenantID, userID, kind string, scores model.ScoreSet) error
    GetScores(ctx context.Context, tenantID, userID, kind string) (model.ScoreSet, error)

    // Survey intake
    SaveUserInfo(ctx context.Context, tenantID string, info model.UserInfo) error
    GetUserInfo(ctx context.Context, tenantID, userID string) (model.UserInfo, error)

    // Plans
    CreatePlan(ctx context.Context, plan model.Plan) (model.Plan, error)
    GetPlan(ctx context.Context, tenantID, id string) (model.Plan, error)
    ListPlans(ctx context.Context, tenantID, userID, cursor string, limit int) ([]model.Plan, string, error)

    // Subscriptions
    CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
    GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
    ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
    DeleteSubscription(ctx context.Context, tenantID, id string) error

    // Webhook deliveries
    EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
    FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
    MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
    FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
    ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error)
    RetryWebhookDelivery(ctx context.Context, tenantID, id string) error
}

var ErrNotFound = errors.New("not found")
