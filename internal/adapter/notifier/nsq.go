package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pliz-ledger/internal/core/domain"
	"pliz-ledger/internal/core/ports"

	"github.com/nsqio/go-nsq"
	"github.com/rs/zerolog"
)

// Envelope is what subscribers of the NSQ topic receive. Topic carries
// the per-actor route since NSQ topic names cannot contain slashes.
type Envelope struct {
	Topic        string              `json:"topic"`
	Notification domain.Notification `json:"notification"`
	SentAt       time.Time           `json:"sent_at"`
}

// Publisher is the subset of *nsq.Producer the notifier needs.
type Publisher interface {
	Publish(topic string, body []byte) error
	Stop()
}

// NSQNotifier publishes notifications to a single NSQ topic.
type NSQNotifier struct {
	publisher Publisher
	topic     string
	log       zerolog.Logger
}

var _ ports.Notifier = (*NSQNotifier)(nil)

// NewNSQNotifier connects to nsqd and pings it before returning.
func NewNSQNotifier(addr, topic string, log zerolog.Logger) (*NSQNotifier, error) {
	cfg := nsq.NewConfig()
	producer, err := nsq.NewProducer(addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create NSQ producer: %w", err)
	}
	producer.SetLogger(nsqLogger{log: log}, nsq.LogLevelWarning)

	if err := producer.Ping(); err != nil {
		producer.Stop()
		return nil, fmt.Errorf("failed to ping NSQ daemon: %w", err)
	}

	return NewNSQNotifierWithPublisher(producer, topic, log), nil
}

// NewNSQNotifierWithPublisher wraps an existing publisher.
func NewNSQNotifierWithPublisher(p Publisher, topic string, log zerolog.Logger) *NSQNotifier {
	return &NSQNotifier{publisher: p, topic: topic, log: log}
}

func (n *NSQNotifier) Notify(ctx context.Context, note domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(Envelope{Topic: note.Topic(), Notification: note, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := n.publisher.Publish(n.topic, body); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	n.log.Debug().
		Str("topic", note.Topic()).
		Str("actor_id", note.ActorID.String()).
		Msg("notification published")
	return nil
}

// nsqLogger forwards go-nsq's internal log lines to zerolog.
type nsqLogger struct {
	log zerolog.Logger
}

func (l nsqLogger) Output(_ int, s string) error {
	l.log.Warn().Str("source", "nsq").Msg(s)
	return nil
}

// Close stops the producer.
func (n *NSQNotifier) Close() {
	n.publisher.Stop()
}
