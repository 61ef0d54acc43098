package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pliz-ledger/internal/core/domain"
	"pliz-ledger/internal/core/ports"
	"pliz-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

const defaultWebhookDedupeTTL = 24 * time.Hour

// WebhookIngestor implements ports.WebhookService. It verifies partner
// pushes and feeds them to Resolve.
type WebhookIngestor struct {
	secrets  map[string]string
	sigSvc   ports.SignatureService
	txRepo   ports.TransactionRepository
	resolver resolver
	cache    ports.IdempotencyCache
	ttl      time.Duration
	log      zerolog.Logger
}

// NewWebhookIngestor creates a new WebhookIngestor. secrets maps a
// partner id to its webhook secret. cache may be nil.
func NewWebhookIngestor(
	secrets map[string]string,
	sigSvc ports.SignatureService,
	txRepo ports.TransactionRepository,
	settlement ports.SettlementService,
	cache ports.IdempotencyCache,
	ttl time.Duration,
	log zerolog.Logger,
) *WebhookIngestor {
	normalized := make(map[string]string, len(secrets))
	for partner, secret := range secrets {
		normalized[strings.ToLower(partner)] = secret
	}
	if ttl <= 0 {
		ttl = defaultWebhookDedupeTTL
	}
	return &WebhookIngestor{
		secrets:  normalized,
		sigSvc:   sigSvc,
		txRepo:   txRepo,
		resolver: settlement,
		cache:    cache,
		ttl:      ttl,
		log:      log,
	}
}

// Handle verifies and processes one delivery. A nil error means the
// partner should get 200, whatever the business outcome was.
func (s *WebhookIngestor) Handle(ctx context.Context, d ports.WebhookDelivery) error {
	partner := strings.ToLower(d.Partner)
	log := s.log.With().Str("partner", partner).Logger()

	secret := s.secrets[partner]
	if secret == "" || d.Signature == "" {
		log.Warn().Msg("webhook rejected: no secret or signature")
		return apperror.ErrMissingSignature()
	}
	if !s.sigSvc.Verify(secret, d.Body, d.Signature) {
		log.Warn().Msg("webhook rejected: signature mismatch")
		return apperror.ErrInvalidSignature()
	}

	dedupeKey := domain.BuildWebhookKey(partner, strings.ToLower(d.Signature))
	if s.seen(ctx, dedupeKey) {
		log.Info().Msg("duplicate webhook ignored")
		return nil
	}

	var payload domain.WebhookPayload
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		return apperror.Validation("malformed webhook payload")
	}
	if payload.Data.Reference == "" {
		return apperror.Validation("webhook reference is required")
	}
	topic := payload.Topic
	if topic == "" {
		topic = d.HeaderTopic
	}
	log = log.With().Str("order_id", payload.Data.Reference).Str("topic", topic).Logger()

	txn, err := s.txRepo.GetByOrderID(ctx, payload.Data.Reference)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("load transaction: %w", err))
	}
	if txn == nil {
		return apperror.ErrNotFound("transaction")
	}
	if !strings.EqualFold(txn.PartnerName(), partner) {
		log.Warn().Str("routed_via", txn.PartnerName()).Msg("webhook reference not routed through this partner")
		return apperror.ErrNotFound("transaction")
	}

	res := ports.Resolution{
		OrderID:    txn.OrderID,
		ExternalID: payload.Data.ID,
		Data:       rawData(d.Body),
		Source:     "webhook",
	}

	switch domain.ActionForTopic(topic) {
	case domain.WebhookStarted:
		log.Info().Msg("partner started processing")
		s.remember(ctx, dedupeKey)
		return nil
	case domain.WebhookCompleted:
		res.Status = domain.TransactionStatusSuccess
	case domain.WebhookFailed:
		res.Status = domain.TransactionStatusFailed
		res.FailureReason = payload.Data.FailureReason
	default:
		log.Warn().Msg("unhandled webhook topic")
		return nil
	}

	result, err := s.resolver.Resolve(ctx, res)
	if err != nil {
		if code := apperror.CodeOf(err); strings.HasPrefix(code, "PAY_") {
			log.Warn().Err(err).Msg("webhook not applied")
			return nil
		}
		return err
	}

	s.remember(ctx, dedupeKey)
	log.Info().
		Str("status", string(result.Transaction.Status)).
		Bool("already_final", result.AlreadyFinal).
		Msg("webhook processed")
	return nil
}

func (s *WebhookIngestor) seen(ctx context.Context, key string) bool {
	if s.cache == nil {
		return false
	}
	v, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("webhook dedupe lookup failed")
		return false
	}
	return v != nil
}

func (s *WebhookIngestor) remember(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, []byte("1"), s.ttl); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to record webhook in redis")
	}
}

// rawData returns the "data" object of the body as a generic map.
func rawData(body []byte) map[string]any {
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}
	return envelope.Data
}
