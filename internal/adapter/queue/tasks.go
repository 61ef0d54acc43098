package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pliz-ledger/internal/core/domain"
	"pliz-ledger/internal/core/ports"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Task types
const (
	TypeDeliverNotification = "notification:deliver"
)

const QueueNotifications = "notifications"

func NewDeliverNotificationTask(n domain.Notification) (*asynq.Task, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDeliverNotification, data,
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	), nil
}

// Enqueuer is the subset of *asynq.Client used to schedule work.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsyncNotifier hands notifications to the worker instead of delivering
// them inline.
type AsyncNotifier struct {
	client Enqueuer
	log    zerolog.Logger
}

var _ ports.Notifier = (*AsyncNotifier)(nil)

func NewAsyncNotifier(client Enqueuer, log zerolog.Logger) *AsyncNotifier {
	return &AsyncNotifier{client: client, log: log}
}

func (n *AsyncNotifier) Notify(ctx context.Context, note domain.Notification) error {
	task, err := NewDeliverNotificationTask(note)
	if err != nil {
		return fmt.Errorf("build notification task: %w", err)
	}

	info, err := n.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}

	n.log.Debug().
		Str("task_id", info.ID).
		Str("topic", note.Topic()).
		Msg("notification enqueued")
	return nil
}

// Handler delivers queued notifications through the real notifier.
type Handler struct {
	notifier ports.Notifier
	log      zerolog.Logger
}

func NewHandler(notifier ports.Notifier, log zerolog.Logger) *Handler {
	return &Handler{notifier: notifier, log: log}
}

func (h *Handler) HandleDeliverNotification(ctx context.Context, t *asynq.Task) error {
	var n domain.Notification
	if err := json.Unmarshal(t.Payload(), &n); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if err := h.notifier.Notify(ctx, n); err != nil {
		h.log.Warn().Err(err).Str("topic", n.Topic()).Msg("notification delivery failed, will retry")
		return err
	}
	return nil
}
