package store

// WebhookDelivery is one queued outbound delivery as handed to the worker.
// DedupKey collapses repeat enqueues of the same event to the same endpoint;
// both stores enforce uniqueness on (tenant, event type, url, dedup key).
type WebhookDelivery struct {
    ID             string
    TenantID       string
    SubscriptionID string
    EventType      string
    URL            string
    Secret         string
    DedupKey       string
    Payload        []byte
    Status         string
    Attempts       int
}
