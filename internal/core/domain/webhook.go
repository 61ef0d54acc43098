package domain

import "strings"

// WebhookAction is derived from the suffix of a partner topic.
type WebhookAction string

const (
	WebhookStarted   WebhookAction = "started"
	WebhookCompleted WebhookAction = "completed"
	WebhookFailed    WebhookAction = "failed"
	WebhookUnknown   WebhookAction = "unknown"
)

// WebhookPayload is the partner push body.
type WebhookPayload struct {
	Topic string      `json:"topic"`
	Data  WebhookData `json:"data"`
}

// WebhookData carries the transaction fields of a push.
type WebhookData struct {
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	ID            string `json:"id"`
	FailureReason string `json:"failureReason,omitempty"`
}

// ActionForTopic maps e.g. "transaction.completed" to WebhookCompleted.
func ActionForTopic(topic string) WebhookAction {
	t := strings.ToLower(strings.TrimSpace(topic))
	switch {
	case strings.HasSuffix(t, "started"):
		return WebhookStarted
	case strings.HasSuffix(t, "completed"):
		return WebhookCompleted
	case strings.HasSuffix(t, "failed"):
		return WebhookFailed
	default:
		return WebhookUnknown
	}
}
