package service

import (
	"context"
	"fmt"
	"time"

	"pliz-ledger/internal/core/domain"
	"pliz-ledger/internal/core/ports"
	"pliz-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PendingParams describes a transaction about to be recorded.
type PendingParams struct {
	SenderWalletID   *uuid.UUID
	ReceiverWalletID *uuid.UUID
	Type             domain.TransactionType
	Amount           decimal.Decimal
	QuotedFee        decimal.Decimal // held back until the fee is charged
	Description      string
	OrderID          string // generated when empty
	Partner          string
	MerchantID       *uuid.UUID
	BankID           *uuid.UUID
	AdditionalData   map[string]any
}

// TransactionManager owns the transaction lifecycle.
type TransactionManager struct {
	txRepo     ports.TransactionRepository
	eventRepo  ports.EventRepository
	walletRepo ports.WalletRepository
	notifier   ports.Notifier
	log        zerolog.Logger
	now        func() time.Time
}

// NewTransactionManager creates a new TransactionManager.
func NewTransactionManager(
	txRepo ports.TransactionRepository,
	eventRepo ports.EventRepository,
	walletRepo ports.WalletRepository,
	notifier ports.Notifier,
	log zerolog.Logger,
) *TransactionManager {
	return &TransactionManager{
		txRepo:     txRepo,
		eventRepo:  eventRepo,
		walletRepo: walletRepo,
		notifier:   notifier,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreatePending inserts a PENDING transaction. The repository reports
// domain.ErrDuplicateOrderID when the order id is taken.
func (m *TransactionManager) CreatePending(ctx context.Context, tx pgx.Tx, p PendingParams) (*domain.Transaction, error) {
	if !domain.IsPositive(p.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}
	if !p.Type.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown transaction type %q", p.Type))
	}

	now := m.now()
	orderID := p.OrderID
	if orderID == "" {
		orderID = domain.NewOrderID(p.Partner, now)
	}

	txn := &domain.Transaction{
		ID:               uuid.New(),
		OrderID:          orderID,
		SenderWalletID:   p.SenderWalletID,
		ReceiverWalletID: p.ReceiverWalletID,
		Type:             p.Type,
		Amount:           domain.RoundMoney(p.Amount),
		Status:           domain.TransactionStatusPending,
		FeeApplied:       decimal.Zero,
		QuotedFee:        domain.RoundMoney(p.QuotedFee),
		AdditionalData:   p.AdditionalData,
		MerchantID:       p.MerchantID,
		BankID:           p.BankID,
		Description:      p.Description,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if p.Partner != "" {
		partner := p.Partner
		txn.Partner = &partner
	}

	if err := m.txRepo.Create(ctx, tx, txn); err != nil {
		return nil, err
	}

	m.log.Debug().
		Str("order_id", txn.OrderID).
		Str("type", string(txn.Type)).
		Str("amount", txn.Amount.String()).
		Msg("pending transaction recorded")

	return txn, nil
}

// Transition moves txn to next with a compare-and-set and writes the
// audit event in the same database transaction.
func (m *TransactionManager) Transition(ctx context.Context, tx pgx.Tx, txn *domain.Transaction, next domain.TransactionStatus, reason string) error {
	from := txn.Status
	if !from.CanTransition(next) {
		return apperror.ErrInvalidTransition(string(from), string(next))
	}

	ok, err := m.txRepo.CompareAndSetStatus(ctx, tx, txn.ID, from, next)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if !ok {
		// another finalizer won the race
		return apperror.ErrInvalidTransition(string(from), string(next))
	}

	event := &domain.TransactionEvent{
		ID:            uuid.New(),
		TransactionID: txn.ID,
		FromStatus:    from,
		ToStatus:      next,
		Reason:        reason,
		CreatedAt:     m.now(),
	}
	if err := m.eventRepo.Create(ctx, tx, event); err != nil {
		return fmt.Errorf("record transition: %w", err)
	}

	txn.Status = next
	txn.UpdatedAt = event.CreatedAt

	m.log.Info().
		Str("order_id", txn.OrderID).
		Str("from", string(from)).
		Str("to", string(next)).
		Str("reason", reason).
		Msg("transaction status changed")

	return nil
}

// AttachExternalReference stores the partner reference once.
func (m *TransactionManager) AttachExternalReference(ctx context.Context, tx pgx.Tx, txn *domain.Transaction, ref string) error {
	if ref == "" {
		return nil
	}
	if txn.ExternalReference != nil && *txn.ExternalReference == ref {
		return nil
	}
	if err := m.txRepo.SetExternalReference(ctx, tx, txn.ID, ref); err != nil {
		return fmt.Errorf("set external reference: %w", err)
	}
	txn.ExternalReference = &ref
	return nil
}

// MergeAdditionalData merges data into the transaction's JSON document.
// Existing keys are overwritten.
func (m *TransactionManager) MergeAdditionalData(ctx context.Context, tx pgx.Tx, txn *domain.Transaction, data map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	if err := m.txRepo.MergeAdditionalData(ctx, tx, txn.ID, data); err != nil {
		return fmt.Errorf("merge additional data: %w", err)
	}
	if txn.AdditionalData == nil {
		txn.AdditionalData = make(map[string]any, len(data))
	}
	for k, v := range data {
		txn.AdditionalData[k] = v
	}
	return nil
}

// Announce notifies the parties of txn. Call it after commit; failures
// are logged and dropped.
func (m *TransactionManager) Announce(ctx context.Context, txn *domain.Transaction) {
	if m.notifier == nil {
		return
	}

	type party struct {
		walletID *uuid.UUID
		action   domain.NotificationAction
	}
	var parties []party
	switch txn.Type {
	case domain.TransactionTypeTransfer:
		parties = []party{{txn.SenderWalletID, domain.ActionSendMoney}, {txn.ReceiverWalletID, domain.ActionReceiveMoney}}
	case domain.TransactionTypeTopup:
		parties = []party{{txn.ReceiverWalletID, domain.ActionTopup}}
	case domain.TransactionTypePayment:
		parties = []party{{txn.SenderWalletID, domain.ActionPayment}, {txn.ReceiverWalletID, domain.ActionReceiveMoney}}
	}

	for _, p := range parties {
		if p.walletID == nil {
			continue
		}
		wallet, err := m.walletRepo.GetByID(ctx, *p.walletID)
		if err != nil || wallet == nil {
			m.log.Warn().Err(err).Str("order_id", txn.OrderID).Str("wallet_id", p.walletID.String()).Msg("notification skipped: wallet lookup failed")
			continue
		}
		if wallet.OwnerType != domain.OwnerTypeUser && wallet.OwnerType != domain.OwnerTypeMerchant {
			continue
		}
		n := domain.NewTransactionNotification(wallet.OwnerID, p.action, txn)
		if err := m.notifier.Notify(ctx, n); err != nil {
			m.log.Warn().Err(err).Str("order_id", txn.OrderID).Str("topic", n.Topic()).Msg("failed to send notification")
		}
	}
}
