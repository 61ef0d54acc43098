package gateway

import (
	"pliz-ledger/internal/core/domain"

	"github.com/rs/zerolog"
)

// normalize maps a partner status onto the closed enum. Unknown values
// stay PENDING so the reconciliation poller asks again later.
func normalize(log zerolog.Logger, raw string) domain.TransactionStatus {
	status, ok := domain.NormalizeStatus(raw)
	if !ok {
		log.Warn().Str("raw_status", raw).Msg("unknown partner status, treating as pending")
		return domain.TransactionStatusPending
	}
	return status
}

// lift copies selected keys from a nested object to the top level of raw.
func lift(raw map[string]any, from string, keys ...string) {
	nested, ok := raw[from].(map[string]any)
	if !ok {
		return
	}
	for _, k := range keys {
		if v, ok := nested[k]; ok {
			if _, exists := raw[k]; !exists {
				raw[k] = v
			}
		}
	}
}

func stringOf(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
