package domain

import "github.com/google/uuid"

// BuildIdempotencyKey scopes a client Idempotency-Key to its actor.
func BuildIdempotencyKey(actorID uuid.UUID, key string) string {
	return "idem:" + actorID.String() + ":" + key
}

// BuildWebhookKey identifies one delivered webhook by its signature.
func BuildWebhookKey(partner, signature string) string {
	return "webhook:" + partner + ":" + signature
}
