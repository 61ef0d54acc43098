package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"pliz-ledger/internal/core/domain"
	"pliz-ledger/internal/core/ports"
	"pliz-ledger/pkg/apperror"
	"pliz-ledger/pkg/retry"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	orderIDAttempts = 3
)

// Settlement stages, logged as "stage".
const (
	stageFundsChecked   = "FUNDS_CHECKED"
	stagePendingRecord  = "PENDING_RECORDED"
	stageExternalCall   = "EXTERNAL_CALL"
	stageLedgerApplied  = "LEDGER_APPLIED"
	stageFinalized      = "FINALIZED"
	stageAwaitingResult = "AWAITING_PARTNER"
)

// SettlementDeps groups the collaborators of the settlement service.
type SettlementDeps struct {
	Actors       ports.ActorRepository
	Wallets      ports.WalletRepository
	Merchants    ports.MerchantRepository
	Banks        ports.BankRepository
	Transactions ports.TransactionRepository
	Entries      ports.LedgerRepository
	Checks       ports.StatusCheckRepository
	Gateways     ports.GatewayRegistry
	Processors   ports.MerchantProcessorRegistry
	Transactor   ports.DBTransactor
	Ledger       *LedgerService
	Manager      *TransactionManager
	Fees         *FeeEngine
}

// SettlementConfig tunes partner calls and lock retries. Retry.Retryable
// classifies storage errors worth another attempt.
type SettlementConfig struct {
	GatewayTimeout time.Duration
	Retry          retry.Config
}

// SettlementServiceImpl implements ports.SettlementService.
type SettlementServiceImpl struct {
	SettlementDeps
	cfg     SettlementConfig
	retrier *retry.Retrier
	log     zerolog.Logger
	now     func() time.Time
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(deps SettlementDeps, cfg SettlementConfig, log zerolog.Logger) *SettlementServiceImpl {
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 15 * time.Second
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = func(error) bool { return false }
	}
	return &SettlementServiceImpl{
		SettlementDeps: deps,
		cfg:            cfg,
		retrier:        retry.New(cfg.Retry, log),
		log:            log,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// SendMoney moves money to another Pliz wallet, or out through a partner.
func (s *SettlementServiceImpl) SendMoney(ctx context.Context, req ports.SendMoneyRequest) (*ports.SettlementResult, error) {
	if !domain.IsPositive(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}
	actor, wallet, err := s.payer(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	if req.Partner != "" {
		return s.sendViaPartner(ctx, actor, wallet, req)
	}

	receiver, err := s.resolveReceiver(ctx, req.Receiver)
	if err != nil {
		return nil, err
	}
	if receiver.ID == wallet.ID {
		return nil, apperror.Validation("cannot send money to your own wallet")
	}

	return s.settleDirect(ctx, actor, wallet, PendingParams{
		SenderWalletID:   &wallet.ID,
		ReceiverWalletID: &receiver.ID,
		Type:             domain.TransactionTypeTransfer,
		Amount:           req.Amount,
		Description:      "Transfer to " + req.Receiver,
	})
}

func (s *SettlementServiceImpl) sendViaPartner(ctx context.Context, actor *domain.Actor, wallet *domain.Wallet, req ports.SendMoneyRequest) (*ports.SettlementResult, error) {
	partner := strings.ToLower(strings.TrimSpace(req.Partner))
	gw, err := s.Gateways.Get(partner)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Receiver) == "" {
		return nil, apperror.Validation("receiver is required")
	}
	bankID, err := s.bankFor(ctx, partner)
	if err != nil {
		return nil, err
	}

	params := PendingParams{
		SenderWalletID: &wallet.ID,
		Type:           domain.TransactionTypeTransfer,
		Amount:         req.Amount,
		Description:    "Transfer to " + req.Receiver + " via " + partner,
		Partner:        partner,
		BankID:         bankID,
		AdditionalData: map[string]any{"destination": req.Receiver},
	}
	fee, err := s.Fees.QuoteFee(ctx, actor, params.Type, params.Amount, nil, bankID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	txn, err := s.reserve(ctx, &wallet.ID, fee, params)
	if err != nil {
		return nil, err
	}

	log := s.stageLog(txn, stageExternalCall)
	gctx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	res, callErr := gw.InitiateTransfer(gctx, ports.GatewayTransferRequest{
		OrderID:     txn.OrderID,
		Amount:      txn.Amount,
		Destination: req.Receiver,
	})
	cancel()

	return s.afterPartnerCall(ctx, log, txn, actor, res, callErr, true)
}

// PayMerchant pays a merchant by code, directly or through its processor.
func (s *SettlementServiceImpl) PayMerchant(ctx context.Context, req ports.PayMerchantRequest) (*ports.SettlementResult, error) {
	if !domain.IsPositive(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}
	if missing := domain.MissingMerchantDetails(req.MerchantCode, req.Details); len(missing) > 0 {
		return nil, apperror.ErrMissingMerchantDetails(missing)
	}
	actor, wallet, err := s.payer(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}

	merchant, err := s.Merchants.GetByCode(ctx, req.MerchantCode)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load merchant: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrNotFound("merchant")
	}
	if merchant.WalletID == wallet.ID {
		return nil, apperror.Validation("cannot pay your own merchant account")
	}

	params := PendingParams{
		SenderWalletID:   &wallet.ID,
		ReceiverWalletID: &merchant.WalletID,
		Type:             domain.TransactionTypePayment,
		Amount:           req.Amount,
		Description:      "Payment to " + merchant.BusinessName,
		MerchantID:       &merchant.ID,
		AdditionalData:   detailsData(req.Details),
	}
	if merchant.IsDirect() {
		return s.settleDirect(ctx, actor, wallet, params)
	}

	processor, err := s.Processors.Get(*merchant.Processor)
	if err != nil {
		return nil, err
	}
	params.Partner = processor.Name()

	fee, err := s.Fees.QuoteFee(ctx, actor, params.Type, params.Amount, params.MerchantID, nil)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	txn, err := s.reserve(ctx, &wallet.ID, fee, params)
	if err != nil {
		return nil, err
	}

	log := s.stageLog(txn, stageExternalCall)
	gctx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	res, callErr := processor.ProcessPayment(gctx, ports.MerchantPaymentRequest{
		OrderID:      txn.OrderID,
		MerchantCode: merchant.MerchantCode,
		Amount:       txn.Amount,
		Details:      req.Details,
	})
	cancel()

	return s.afterPartnerCall(ctx, log, txn, actor, res, callErr, false)
}

// ChargeCustomer lets a merchant debit a customer identified by phone.
func (s *SettlementServiceImpl) ChargeCustomer(ctx context.Context, req ports.ChargeCustomerRequest) (*ports.SettlementResult, error) {
	if !domain.IsPositive(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}

	merchantActor, err := s.activeActor(ctx, req.MerchantActorID)
	if err != nil {
		return nil, err
	}
	if !merchantActor.IsMerchant() {
		return nil, apperror.ErrForbidden("only merchants can charge customers")
	}
	merchant, err := s.Merchants.GetByActorID(ctx, merchantActor.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load merchant: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrNotFound("merchant")
	}

	customer, err := s.Actors.GetByPhone(ctx, req.CustomerPhone)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load customer: %w", err))
	}
	if customer == nil {
		return nil, apperror.ErrNotFound("customer")
	}
	if !customer.IsActive {
		return nil, apperror.ErrInactiveActor()
	}
	wallet, err := s.walletOf(ctx, customer)
	if err != nil {
		return nil, err
	}
	if wallet.ID == merchant.WalletID {
		return nil, apperror.Validation("cannot charge your own wallet")
	}

	desc := req.Description
	if desc == "" {
		desc = "Payment to " + merchant.BusinessName
	}
	return s.settleDirect(ctx, customer, wallet, PendingParams{
		SenderWalletID:   &wallet.ID,
		ReceiverWalletID: &merchant.WalletID,
		Type:             domain.TransactionTypePayment,
		Amount:           req.Amount,
		Description:      desc,
		MerchantID:       &merchant.ID,
		AdditionalData:   map[string]any{"initiated_by": "merchant"},
	})
}

// TopUp credits the actor's wallet from a partner account.
func (s *SettlementServiceImpl) TopUp(ctx context.Context, req ports.TopUpRequest) (*ports.SettlementResult, error) {
	if !domain.IsPositive(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}
	actor, wallet, err := s.payer(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	partner := strings.ToLower(strings.TrimSpace(req.Partner))
	gw, err := s.Gateways.Get(partner)
	if err != nil {
		return nil, err
	}
	bankID, err := s.bankFor(ctx, partner)
	if err != nil {
		return nil, err
	}

	txn, err := s.reserve(ctx, nil, decimal.Zero, PendingParams{
		ReceiverWalletID: &wallet.ID,
		Type:             domain.TransactionTypeTopup,
		Amount:           req.Amount,
		Description:      "Top-up via " + partner,
		Partner:          partner,
		BankID:           bankID,
		AdditionalData:   map[string]any{"source": req.Detail},
	})
	if err != nil {
		return nil, err
	}

	log := s.stageLog(txn, stageExternalCall)
	gctx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	res, callErr := gw.InitiateTopUp(gctx, ports.GatewayTopUpRequest{
		OrderID:     txn.OrderID,
		Amount:      txn.Amount,
		SourcePhone: req.Detail,
	})
	cancel()

	result, err := s.afterPartnerCall(ctx, log, txn, actor, res, callErr, false)
	if err != nil {
		return nil, err
	}
	if res != nil {
		result.PaymentURL = paymentURL(res.Raw)
	}
	return result, nil
}

// GetBalance returns the ledger balance and what is spendable now.
func (s *SettlementServiceImpl) GetBalance(ctx context.Context, actorID uuid.UUID) (*domain.Balance, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	wallet, err := s.walletOf(ctx, actor)
	if err != nil {
		return nil, err
	}

	balance, err := s.Ledger.CurrentBalance(ctx, wallet.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("read balance: %w", err))
	}

	dbTx, err := s.Transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	reserved, err := s.Transactions.SumPendingOutbound(ctx, dbTx, wallet.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum reservations: %w", err))
	}

	return &domain.Balance{
		WalletID:  wallet.ID,
		Currency:  wallet.Currency,
		Balance:   balance,
		Available: balance.Sub(reserved),
	}, nil
}

// GetTransactionHistory pages the actor's transactions, newest first.
func (s *SettlementServiceImpl) GetTransactionHistory(ctx context.Context, params ports.HistoryParams) ([]domain.Transaction, int64, error) {
	actor, err := s.actor(ctx, params.ActorID)
	if err != nil {
		return nil, 0, err
	}
	wallet, err := s.walletOf(ctx, actor)
	if err != nil {
		return nil, 0, err
	}

	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}

	txns, total, err := s.Transactions.ListByWallet(ctx, ports.TransactionListParams{
		WalletID: wallet.ID,
		Status:   params.Status,
		Type:     params.Type,
		Page:     params.Page,
		PageSize: params.PageSize,
	})
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, total, nil
}

// GetTransactionDetail returns a transaction the actor is party to, with
// the actor's ledger entries for it.
func (s *SettlementServiceImpl) GetTransactionDetail(ctx context.Context, orderID string, actorID uuid.UUID) (*ports.TransactionDetail, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	wallet, err := s.walletOf(ctx, actor)
	if err != nil {
		return nil, err
	}

	txn, err := s.Transactions.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load transaction: %w", err))
	}
	if txn == nil || !txn.InvolvesWallet(wallet.ID) {
		return nil, apperror.ErrNotFound("transaction")
	}

	entries, err := s.Entries.ListByTransaction(ctx, txn.ID, wallet.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list entries: %w", err))
	}
	return &ports.TransactionDetail{Transaction: txn, Entries: entries}, nil
}

// Resolve applies an asynchronous partner outcome. It is shared by the
// webhook ingestor and the reconciliation poller.
func (s *SettlementServiceImpl) Resolve(ctx context.Context, res ports.Resolution) (*ports.ResolveResult, error) {
	log := s.log.With().Str("order_id", res.OrderID).Str("source", res.Source).Logger()

	if res.Status == domain.TransactionStatusPending || res.Status == "" {
		return s.touch(ctx, res.OrderID)
	}
	if !res.Status.IsTerminal() {
		return nil, apperror.Validation(fmt.Sprintf("unknown status %q", res.Status))
	}

	alreadyFinal := false
	txn, err := s.apply(ctx, res.OrderID, res.Status == domain.TransactionStatusSuccess, func(tx pgx.Tx, txn *domain.Transaction) error {
		if txn.IsTerminal() {
			alreadyFinal = true
			return s.Checks.UpdateStatusByOrderID(ctx, tx, txn.OrderID, txn.Status)
		}
		if res.ExternalID != "" {
			if err := s.Manager.AttachExternalReference(ctx, tx, txn, res.ExternalID); err != nil {
				return err
			}
		}
		if err := s.Manager.MergeAdditionalData(ctx, tx, txn, res.Data); err != nil {
			return err
		}

		if res.Status == domain.TransactionStatusSuccess {
			actor, err := s.feePayer(ctx, txn)
			if err != nil {
				return err
			}
			if err := s.complete(ctx, tx, txn, actor, false, "confirmed by "+res.Source); err != nil {
				return err
			}
		} else if err := s.fail(ctx, tx, txn, res.Status, res.FailureReason); err != nil {
			return err
		}
		return s.Checks.UpdateStatusByOrderID(ctx, tx, txn.OrderID, txn.Status)
	})
	if err != nil {
		log.Error().Err(err).Str("status", string(res.Status)).Msg("resolve failed")
		return nil, s.classify(err)
	}

	if alreadyFinal {
		log.Info().Str("status", string(txn.Status)).Msg("transaction already final, resolution ignored")
		return &ports.ResolveResult{Transaction: txn, AlreadyFinal: true}, nil
	}

	log.Info().Str("status", string(txn.Status)).Str("stage", stageFinalized).Msg("transaction resolved")
	s.Manager.Announce(ctx, txn)
	return &ports.ResolveResult{Transaction: txn}, nil
}

// --- flows ---

// settleDirect runs a movement with no external party: reserve, then
// debit, credit, fee and SUCCESS in one atomic unit.
func (s *SettlementServiceImpl) settleDirect(ctx context.Context, actor *domain.Actor, wallet *domain.Wallet, params PendingParams) (*ports.SettlementResult, error) {
	fee, err := s.Fees.QuoteFee(ctx, actor, params.Type, params.Amount, params.MerchantID, params.BankID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	txn, err := s.reserve(ctx, &wallet.ID, fee, params)
	if err != nil {
		return nil, err
	}

	final, err := s.apply(ctx, txn.OrderID, true, func(tx pgx.Tx, txn *domain.Transaction) error {
		return s.complete(ctx, tx, txn, actor, true, "settled")
	})
	if err != nil {
		return nil, s.abort(ctx, txn, err)
	}

	s.stageLog(final, stageFinalized).Info().Str("fee", final.FeeApplied.String()).Msg("settlement completed")
	s.Manager.Announce(ctx, final)
	return &ports.SettlementResult{Transaction: final, Fee: final.FeeApplied}, nil
}

// afterPartnerCall applies the partner's answer. debitOnPending applies
// the principal debit when the partner accepted but has not settled.
func (s *SettlementServiceImpl) afterPartnerCall(ctx context.Context, log *zerolog.Logger, txn *domain.Transaction, actor *domain.Actor, res *ports.GatewayResult, callErr error, debitOnPending bool) (*ports.SettlementResult, error) {
	// The partner may have acted; finish recording even if the caller left.
	ctx = context.WithoutCancel(ctx)

	switch {
	case callErr != nil && !ports.IsUncertainOutcome(callErr):
		log.Warn().Err(callErr).Msg("partner call failed")
		s.markFailed(ctx, txn.OrderID, callErr.Error())
		return nil, apperror.ErrPaymentProcessing(callErr)

	case callErr != nil:
		log.Warn().Err(callErr).Msg("partner outcome unknown, awaiting reconciliation")
		final, err := s.apply(ctx, txn.OrderID, false, func(tx pgx.Tx, txn *domain.Transaction) error {
			return s.register(ctx, tx, txn, txn.OrderID)
		})
		if err != nil {
			return nil, s.classify(err)
		}
		return &ports.SettlementResult{Transaction: final}, nil

	case res == nil:
		s.markFailed(ctx, txn.OrderID, "empty partner response")
		return nil, apperror.ErrPaymentProcessing(errors.New("empty partner response"))

	case res.Status == domain.TransactionStatusFailed || res.Status == domain.TransactionStatusCancelled:
		log.Warn().Str("partner_status", string(res.Status)).Msg("partner declined")
		s.markFailed(ctx, txn.OrderID, "declined by partner")
		return nil, apperror.ErrPaymentProcessing(fmt.Errorf("partner %s declined %s", txn.PartnerName(), txn.OrderID))
	}

	ref := res.ExternalID
	if ref == "" {
		ref = txn.OrderID
	}

	if res.Status == domain.TransactionStatusSuccess {
		final, err := s.apply(ctx, txn.OrderID, true, func(tx pgx.Tx, txn *domain.Transaction) error {
			if err := s.record(ctx, tx, txn, res); err != nil {
				return err
			}
			return s.complete(ctx, tx, txn, actor, false, "confirmed by partner")
		})
		if err != nil {
			return nil, s.escalate(ctx, txn, ref, err)
		}
		s.stageLog(final, stageFinalized).Info().Str("fee", final.FeeApplied.String()).Msg("settlement completed")
		s.Manager.Announce(ctx, final)
		return &ports.SettlementResult{Transaction: final, Fee: final.FeeApplied}, nil
	}

	final, err := s.apply(ctx, txn.OrderID, false, func(tx pgx.Tx, txn *domain.Transaction) error {
		if err := s.record(ctx, tx, txn, res); err != nil {
			return err
		}
		if debitOnPending {
			if err := s.applyPrincipal(ctx, tx, txn); err != nil {
				return err
			}
		}
		return s.register(ctx, tx, txn, ref)
	})
	if err != nil {
		return nil, s.escalate(ctx, txn, ref, err)
	}
	s.stageLog(final, stageAwaitingResult).Info().Msg("partner accepted, awaiting settlement")
	s.Manager.Announce(ctx, final)
	return &ports.SettlementResult{Transaction: final}, nil
}

// --- phases ---

// reserve checks funds under the payer wallet lock and records the
// PENDING transaction. Generated order ids are retried on collision.
func (s *SettlementServiceImpl) reserve(ctx context.Context, payerWalletID *uuid.UUID, fee decimal.Decimal, params PendingParams) (*domain.Transaction, error) {
	attempts := 1
	if params.OrderID == "" {
		attempts = orderIDAttempts
	}

	params.QuotedFee = fee

	var lastErr error
	for i := 0; i < attempts; i++ {
		var txn *domain.Transaction
		err := s.inTx(ctx, func(tx pgx.Tx) error {
			if payerWalletID != nil {
				if err := s.checkFunds(ctx, tx, *payerWalletID, params.Amount.Add(fee)); err != nil {
					return err
				}
			}
			created, err := s.Manager.CreatePending(ctx, tx, params)
			if err != nil {
				return err
			}
			txn = created
			return nil
		})
		if err == nil {
			s.stageLog(txn, stagePendingRecord).Debug().Msg("reservation recorded")
			return txn, nil
		}
		if !errors.Is(err, domain.ErrDuplicateOrderID) {
			return nil, s.classify(err)
		}
		lastErr = err
		s.log.Warn().Int("attempt", i+1).Msg("order id collision, regenerating")
	}
	return nil, apperror.InternalError(fmt.Errorf("reserve: %w", lastErr))
}

func (s *SettlementServiceImpl) checkFunds(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, needed decimal.Decimal) error {
	w, err := s.Wallets.GetByIDForUpdate(ctx, tx, walletID)
	if err != nil {
		return fmt.Errorf("lock wallet: %w", err)
	}
	if w == nil {
		return apperror.ErrNotFound("wallet")
	}

	balance, err := s.Ledger.BalanceInTx(ctx, tx, walletID)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	reserved, err := s.Transactions.SumPendingOutbound(ctx, tx, walletID)
	if err != nil {
		return fmt.Errorf("sum reservations: %w", err)
	}

	available := balance.Sub(reserved)
	if available.LessThan(needed) {
		s.log.Info().
			Str("wallet_id", walletID.String()).
			Str("available", available.String()).
			Str("needed", needed.String()).
			Msg("insufficient funds")
		return apperror.ErrInsufficientFunds()
	}

	s.log.Debug().Str("wallet_id", walletID.String()).Str("stage", stageFundsChecked).Msg("funds checked")
	return nil
}

// apply re-locks the transaction and its wallets and runs fn in one
// database transaction, retried on lock conflicts.
func (s *SettlementServiceImpl) apply(ctx context.Context, orderID string, withPlatform bool, fn func(tx pgx.Tx, txn *domain.Transaction) error) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		txn, err := s.Transactions.GetByOrderIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("lock transaction: %w", err)
		}
		if txn == nil {
			return apperror.ErrNotFound("transaction")
		}
		if err := s.lockWallets(ctx, tx, txn, withPlatform); err != nil {
			return err
		}
		if err := fn(tx, txn); err != nil {
			return err
		}
		out = txn
		return nil
	})
	return out, err
}

// lockWallets locks every wallet txn touches in ascending id order.
func (s *SettlementServiceImpl) lockWallets(ctx context.Context, tx pgx.Tx, txn *domain.Transaction, withPlatform bool) error {
	var ids []uuid.UUID
	for _, id := range []*uuid.UUID{txn.SenderWalletID, txn.ReceiverWalletID} {
		if id != nil {
			ids = append(ids, *id)
		}
	}
	if withPlatform {
		platform, err := s.Wallets.GetPlatform(ctx)
		if err != nil {
			return fmt.Errorf("load platform wallet: %w", err)
		}
		if platform != nil {
			ids = append(ids, platform.ID)
		}
	}

	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	ids = slices.Compact(ids)

	for _, id := range ids {
		w, err := s.Wallets.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("lock wallet %s: %w", id, err)
		}
		if w == nil {
			return apperror.ErrNotFound("wallet")
		}
	}
	return nil
}

func (s *SettlementServiceImpl) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return s.retrier.Do(ctx, func(ctx context.Context) error {
		dbTx, err := s.Transactor.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		if err := fn(dbTx); err != nil {
			return err
		}
		if err := dbTx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// --- ledger effects, called inside apply ---

// complete applies whatever principal movement and fee are still missing
// and finalizes SUCCESS. With enforceFunds the payer may not go negative.
func (s *SettlementServiceImpl) complete(ctx context.Context, tx pgx.Tx, txn *domain.Transaction, actor *domain.Actor, enforceFunds bool, reason string) error {
	if err := s.applyPrincipal(ctx, tx, txn); err != nil {
		return err
	}

	if txn.FeeApplied.IsZero() {
		if payer := txn.FeePayer(); payer != nil {
			if _, err := s.Fees.ApplyFee(ctx, tx, FeeInput{
				Actor:      actor,
				WalletID:   *payer,
				Txn:        txn,
				MerchantID: txn.MerchantID,
				BankID:     txn.BankID,
			}); err != nil {
				return err
			}
		}
	}

	if enforceFunds && txn.SenderWalletID != nil {
		balance, err := s.Ledger.BalanceInTx(ctx, tx, *txn.SenderWalletID)
		if err != nil {
			return fmt.Errorf("read balance: %w", err)
		}
		if balance.IsNegative() {
			return apperror.ErrInsufficientFunds()
		}
	}

	return s.Manager.Transition(ctx, tx, txn, domain.TransactionStatusSuccess, reason)
}

// applyPrincipal debits the sender and credits the receiver once.
func (s *SettlementServiceImpl) applyPrincipal(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error {
	if txn.LedgerApplied {
		return nil
	}
	if txn.SenderWalletID != nil {
		if _, err := s.Ledger.Debit(ctx, tx, *txn.SenderWalletID, txn.Amount, &txn.ID, txn.Description); err != nil {
			return fmt.Errorf("debit sender: %w", err)
		}
	}
	if txn.ReceiverWalletID != nil {
		if _, err := s.Ledger.Credit(ctx, tx, *txn.ReceiverWalletID, txn.Amount, &txn.ID, txn.Description); err != nil {
			return fmt.Errorf("credit receiver: %w", err)
		}
	}
	if err := s.Transactions.MarkLedgerApplied(ctx, tx, txn.ID); err != nil {
		return fmt.Errorf("mark ledger applied: %w", err)
	}
	txn.LedgerApplied = true
	s.stageLog(txn, stageLedgerApplied).Debug().Msg("principal applied")
	return nil
}

// fail reverses an applied principal and finalizes status.
func (s *SettlementServiceImpl) fail(ctx context.Context, tx pgx.Tx, txn *domain.Transaction, status domain.TransactionStatus, reason string) error {
	if txn.LedgerApplied {
		desc := "Reversal of " + txn.OrderID
		if txn.SenderWalletID != nil {
			if _, err := s.Ledger.Credit(ctx, tx, *txn.SenderWalletID, txn.Amount, &txn.ID, desc); err != nil {
				return fmt.Errorf("reverse debit: %w", err)
			}
		}
		if txn.ReceiverWalletID != nil {
			if _, err := s.Ledger.Debit(ctx, tx, *txn.ReceiverWalletID, txn.Amount, &txn.ID, desc); err != nil {
				return fmt.Errorf("reverse credit: %w", err)
			}
		}
	}
	if reason != "" {
		if err := s.Manager.MergeAdditionalData(ctx, tx, txn, map[string]any{"failure_reason": reason}); err != nil {
			return err
		}
	}
	return s.Manager.Transition(ctx, tx, txn, status, reason)
}

func (s *SettlementServiceImpl) record(ctx context.Context, tx pgx.Tx, txn *domain.Transaction, res *ports.GatewayResult) error {
	if err := s.Manager.AttachExternalReference(ctx, tx, txn, res.ExternalID); err != nil {
		return err
	}
	return s.Manager.MergeAdditionalData(ctx, tx, txn, res.Raw)
}

func (s *SettlementServiceImpl) register(ctx context.Context, tx pgx.Tx, txn *domain.Transaction, ref string) error {
	check := &domain.TransactionStatusCheck{
		ID:                uuid.New(),
		OrderID:           txn.OrderID,
		ExternalReference: ref,
		Partner:           txn.PartnerName(),
		TransactionType:   txn.Type,
		Status:            domain.TransactionStatusPending,
		CreatedAt:         s.now(),
	}
	if err := s.Checks.Register(ctx, tx, check); err != nil {
		return fmt.Errorf("register status check: %w", err)
	}
	return nil
}

// --- failure handling ---

// abort finalizes FAILED after an error in a flow with no external effect.
func (s *SettlementServiceImpl) abort(ctx context.Context, txn *domain.Transaction, err error) error {
	appErr := s.classify(err)
	s.stageLog(txn, stageFinalized).Warn().Err(err).Msg("settlement aborted")
	s.markFailed(ctx, txn.OrderID, appErr.Message)
	return appErr
}

// escalate keeps a transaction the partner already accepted PENDING and
// hands it to reconciliation.
func (s *SettlementServiceImpl) escalate(ctx context.Context, txn *domain.Transaction, ref string, err error) error {
	ctx = context.WithoutCancel(ctx)
	s.stageLog(txn, stageAwaitingResult).Error().Err(err).Msg("could not apply partner result, left for reconciliation")
	if regErr := s.inTx(ctx, func(tx pgx.Tx) error {
		return s.register(ctx, tx, txn, ref)
	}); regErr != nil {
		s.stageLog(txn, stageAwaitingResult).Error().Err(regErr).Msg("failed to register status check")
	}
	return s.classify(err)
}

// markFailed finalizes FAILED in a fresh transaction. Errors are logged.
func (s *SettlementServiceImpl) markFailed(ctx context.Context, orderID, reason string) {
	ctx = context.WithoutCancel(ctx)
	txn, err := s.apply(ctx, orderID, false, func(tx pgx.Tx, txn *domain.Transaction) error {
		if txn.IsTerminal() {
			return nil
		}
		return s.fail(ctx, tx, txn, domain.TransactionStatusFailed, reason)
	})
	if err != nil {
		s.log.Error().Err(err).Str("order_id", orderID).Msg("failed to mark transaction failed")
		return
	}
	s.Manager.Announce(ctx, txn)
}

func (s *SettlementServiceImpl) classify(err error) *apperror.AppError {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if s.cfg.Retry.Retryable(err) {
		return apperror.ErrLockTimeout(err)
	}
	return apperror.InternalError(err)
}

func (s *SettlementServiceImpl) touch(ctx context.Context, orderID string) (*ports.ResolveResult, error) {
	txn, err := s.Transactions.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("transaction")
	}
	check, err := s.Checks.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load status check: %w", err))
	}
	if check != nil {
		if err := s.Checks.Touch(ctx, check.ID, s.now()); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("touch status check: %w", err))
		}
	}
	return &ports.ResolveResult{Transaction: txn, AlreadyFinal: txn.IsTerminal()}, nil
}

// --- lookups ---

func (s *SettlementServiceImpl) actor(ctx context.Context, id uuid.UUID) (*domain.Actor, error) {
	actor, err := s.Actors.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load actor: %w", err))
	}
	if actor == nil {
		return nil, apperror.ErrNotFound("actor")
	}
	return actor, nil
}

func (s *SettlementServiceImpl) activeActor(ctx context.Context, id uuid.UUID) (*domain.Actor, error) {
	actor, err := s.actor(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsActive {
		return nil, apperror.ErrInactiveActor()
	}
	return actor, nil
}

func (s *SettlementServiceImpl) payer(ctx context.Context, actorID uuid.UUID) (*domain.Actor, *domain.Wallet, error) {
	actor, err := s.activeActor(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	wallet, err := s.walletOf(ctx, actor)
	if err != nil {
		return nil, nil, err
	}
	return actor, wallet, nil
}

func (s *SettlementServiceImpl) walletOf(ctx context.Context, actor *domain.Actor) (*domain.Wallet, error) {
	ownerType := domain.OwnerTypeUser
	if actor.IsMerchant() {
		ownerType = domain.OwnerTypeMerchant
	}
	wallet, err := s.Wallets.GetByOwner(ctx, ownerType, actor.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// resolveReceiver finds a wallet by username, then by phone number.
func (s *SettlementServiceImpl) resolveReceiver(ctx context.Context, receiver string) (*domain.Wallet, error) {
	receiver = strings.TrimSpace(receiver)
	if receiver == "" {
		return nil, apperror.Validation("receiver is required")
	}

	actor, err := s.Actors.GetByUsername(ctx, receiver)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load receiver: %w", err))
	}
	if actor == nil {
		if actor, err = s.Actors.GetByPhone(ctx, receiver); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("load receiver: %w", err))
		}
	}
	if actor != nil {
		if !actor.IsActive {
			return nil, apperror.ErrInactiveActor()
		}
		return s.walletOf(ctx, actor)
	}

	wallet, err := s.Wallets.GetByPhone(ctx, receiver)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load receiver wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("receiver")
	}
	return wallet, nil
}

// feePayer returns the actor owning the wallet charged for txn's fee.
func (s *SettlementServiceImpl) feePayer(ctx context.Context, txn *domain.Transaction) (*domain.Actor, error) {
	walletID := txn.FeePayer()
	if walletID == nil {
		return nil, nil
	}
	wallet, err := s.Wallets.GetByID(ctx, *walletID)
	if err != nil {
		return nil, fmt.Errorf("load payer wallet: %w", err)
	}
	if wallet == nil || (wallet.OwnerType != domain.OwnerTypeUser && wallet.OwnerType != domain.OwnerTypeMerchant) {
		return nil, nil
	}
	actor, err := s.Actors.GetByID(ctx, wallet.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("load payer: %w", err)
	}
	return actor, nil
}

func (s *SettlementServiceImpl) bankFor(ctx context.Context, partner string) (*uuid.UUID, error) {
	bank, err := s.Banks.GetByPartnerCode(ctx, partner)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load bank: %w", err))
	}
	if bank == nil {
		return nil, nil
	}
	return &bank.ID, nil
}

func (s *SettlementServiceImpl) stageLog(txn *domain.Transaction, stage string) *zerolog.Logger {
	l := s.log.With().Str("order_id", txn.OrderID).Str("type", string(txn.Type)).Str("stage", stage)
	if p := txn.PartnerName(); p != "" {
		l = l.Str("partner", p)
	}
	logger := l.Logger()
	return &logger
}

func detailsData(details map[string]string) map[string]any {
	if len(details) == 0 {
		return nil
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		out[k] = v
	}
	return map[string]any{"details": out}
}

// paymentURL extracts the checkout link some partners return for top-ups.
func paymentURL(raw map[string]any) string {
	for _, key := range []string{"urlTransaction", "payment_url"} {
		if v, ok := raw[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
