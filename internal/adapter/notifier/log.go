package notifier

import (
	"context"

	"pliz-ledger/internal/core/domain"
	"pliz-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// LogNotifier writes notifications to the log. Used when no broker is
// configured.
type LogNotifier struct {
	log zerolog.Logger
}

var _ ports.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, note domain.Notification) error {
	n.log.Info().
		Str("topic", note.Topic()).
		Str("type", note.Type).
		Str("title", note.Title).
		Interface("data", note.Data).
		Msg(note.Message)
	return nil
}
