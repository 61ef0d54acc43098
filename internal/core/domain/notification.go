package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NotificationAction is the user-facing verb attached to a notification.
type NotificationAction string

const (
	ActionSendMoney    NotificationAction = "send_money"
	ActionReceiveMoney NotificationAction = "receive_money"
	ActionTopup        NotificationAction = "topup"
	ActionPayment      NotificationAction = "payment"
)

// Notification is an outbound, fire-and-forget message for one actor.
type Notification struct {
	ActorID uuid.UUID      `json:"actor_id"`
	Type    string         `json:"type"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

// Topic returns the per-actor delivery topic.
func (n Notification) Topic() string {
	return fmt.Sprintf("pliz/%s/notifications", n.ActorID)
}

// NewTransactionNotification builds the message for a transaction event.
func NewTransactionNotification(actorID uuid.UUID, action NotificationAction, txn *Transaction) Notification {
	status := strings.ToLower(string(txn.Status))
	return Notification{
		ActorID: actorID,
		Type:    "transaction",
		Title:   transactionTitle(action, txn.Status),
		Message: fmt.Sprintf("%s %s %s (%s)", action, txn.Amount.StringFixed(2), DefaultCurrency, status),
		Data: map[string]any{
			"action":   string(action),
			"status":   status,
			"order_id": txn.OrderID,
			"amount":   txn.Amount.StringFixed(2),
		},
	}
}

func transactionTitle(action NotificationAction, status TransactionStatus) string {
	switch status {
	case TransactionStatusSuccess:
		if action == ActionReceiveMoney {
			return "Money received"
		}
		return "Transaction successful"
	case TransactionStatusFailed, TransactionStatusCancelled:
		return "Transaction failed"
	default:
		return "Transaction pending"
	}
}
