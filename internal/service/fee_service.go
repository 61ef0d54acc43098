package service

import (
	"context"
	"errors"
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

// ErrNoPlatformWallet is returned when fees cannot be collected.
var ErrNoPlatformWallet = errors.New("platform wallet not configured")

// FeeInput describes who pays a fee and for what.
type FeeInput struct {
	Actor      *domain.Actor
	WalletID   uuid.UUID
	Txn        *domain.Transaction
	MerchantID *uuid.UUID
	BankID     *uuid.UUID
}

// FeeEngine resolves tariffs and moves collected fees.
type FeeEngine struct {
	feeRepo      ports.FeeRepository
	walletRepo   ports.WalletRepository
	merchantRepo ports.MerchantRepository
	bankRepo     ports.BankRepository
	txRepo       ports.TransactionRepository
	ledger       *LedgerService
	log          zerolog.Logger
	now          func() time.Time
}

// NewFeeEngine creates a new FeeEngine.
func NewFeeEngine(
	feeRepo ports.FeeRepository,
	walletRepo ports.WalletRepository,
	merchantRepo ports.MerchantRepository,
	bankRepo ports.BankRepository,
	txRepo ports.TransactionRepository,
	ledger *LedgerService,
	log zerolog.Logger,
) *FeeEngine {
	return &FeeEngine{
		feeRepo:      feeRepo,
		walletRepo:   walletRepo,
		merchantRepo: merchantRepo,
		bankRepo:     bankRepo,
		txRepo:       txRepo,
		ledger:       ledger,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// QuoteFee returns the fee ApplyFee would charge, without side effects.
func (e *FeeEngine) QuoteFee(ctx context.Context, actor *domain.Actor, txType domain.TransactionType, amount decimal.Decimal, merchantID, bankID *uuid.UUID) (decimal.Decimal, error) {
	if actor != nil && actor.IsSubscribed {
		return decimal.Zero, nil
	}
	rule, err := e.resolveRule(ctx, txType, amount, merchantID, bankID)
	if err != nil {
		return decimal.Zero, err
	}
	if rule == nil {
		return decimal.Zero, nil
	}
	return rule.Compute(amount), nil
}

// ApplyFee charges the payer, credits the platform wallet and pays out
// stakeholder shares. It returns the fee charged.
func (e *FeeEngine) ApplyFee(ctx context.Context, tx pgx.Tx, in FeeInput) (decimal.Decimal, error) {
	txn := in.Txn
	fee, err := e.QuoteFee(ctx, in.Actor, txn.Type, txn.Amount, in.MerchantID, in.BankID)
	if err != nil {
		return decimal.Zero, err
	}
	if !domain.IsPositive(fee) {
		return decimal.Zero, nil
	}

	platform, err := e.walletRepo.GetPlatform(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load platform wallet: %w", err)
	}
	if platform == nil {
		return decimal.Zero, ErrNoPlatformWallet
	}
	if _, err := e.walletRepo.GetByIDForUpdate(ctx, tx, platform.ID); err != nil {
		return decimal.Zero, fmt.Errorf("lock platform wallet: %w", err)
	}

	desc := "Fee for " + txn.OrderID
	if _, err := e.ledger.Debit(ctx, tx, in.WalletID, fee, &txn.ID, desc); err != nil {
		return decimal.Zero, fmt.Errorf("debit fee: %w", err)
	}
	if _, err := e.ledger.Credit(ctx, tx, platform.ID, fee, &txn.ID, desc); err != nil {
		return decimal.Zero, fmt.Errorf("credit fee: %w", err)
	}
	if err := e.txRepo.SetFeeApplied(ctx, tx, txn.ID, fee); err != nil {
		return decimal.Zero, fmt.Errorf("record fee: %w", err)
	}
	txn.FeeApplied = fee

	if err := e.distribute(ctx, tx, txn, platform.ID, fee, in.MerchantID, in.BankID); err != nil {
		return decimal.Zero, err
	}

	e.log.Info().
		Str("order_id", txn.OrderID).
		Str("wallet_id", in.WalletID.String()).
		Str("fee", fee.String()).
		Msg("fee applied")

	return fee, nil
}

// AddDistributionRule validates and stores a distribution rule.
func (e *FeeEngine) AddDistributionRule(ctx context.Context, rule *domain.FeeDistributionRule) error {
	if err := ValidateDistributionRule(rule); err != nil {
		return err
	}
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = e.now()
	}
	if err := e.feeRepo.CreateDistributionRule(ctx, rule); err != nil {
		return apperror.InternalError(fmt.Errorf("create distribution rule: %w", err))
	}
	return nil
}

// ValidateDistributionRule checks the percentages of a rule.
func ValidateDistributionRule(rule *domain.FeeDistributionRule) error {
	if err := rule.Validate(); err != nil {
		return apperror.Validation(err.Error())
	}
	return nil
}

func (e *FeeEngine) resolveRule(ctx context.Context, txType domain.TransactionType, amount decimal.Decimal, merchantID, bankID *uuid.UUID) (*domain.FeeRule, error) {
	rules, err := e.feeRepo.ListFeeRules(ctx, txType, amount)
	if err != nil {
		return nil, fmt.Errorf("list fee rules: %w", err)
	}
	return domain.SelectFeeRule(rules, merchantID, bankID), nil
}

func (e *FeeEngine) distribute(ctx context.Context, tx pgx.Tx, txn *domain.Transaction, platformID uuid.UUID, fee decimal.Decimal, merchantID, bankID *uuid.UUID) error {
	rules, err := e.feeRepo.ListDistributionRules(ctx, txn.Type)
	if err != nil {
		return fmt.Errorf("list distribution rules: %w", err)
	}
	rule := domain.SelectDistributionRule(rules, merchantID, bankID)

	for _, share := range rule.Shares(fee, merchantID, bankID) {
		dist := &domain.FeeDistribution{
			ID:            uuid.New(),
			TransactionID: txn.ID,
			ActorType:     share.Type,
			ActorID:       share.ActorID,
			Amount:        share.Amount,
			CreatedAt:     e.now(),
		}
		if err := e.feeRepo.CreateDistribution(ctx, tx, dist); err != nil {
			return fmt.Errorf("record fee distribution: %w", err)
		}
		if share.Type == domain.StakeholderProvider {
			continue
		}

		walletID, err := e.stakeholderWallet(ctx, share)
		if err != nil {
			return err
		}
		if walletID == nil {
			e.log.Warn().
				Str("order_id", txn.OrderID).
				Str("stakeholder", string(share.Type)).
				Msg("fee share kept on platform wallet: stakeholder has no wallet")
			continue
		}
		if _, err := e.walletRepo.GetByIDForUpdate(ctx, tx, *walletID); err != nil {
			return fmt.Errorf("lock stakeholder wallet: %w", err)
		}

		desc := "Fee share for " + txn.OrderID
		if _, err := e.ledger.Debit(ctx, tx, platformID, share.Amount, &txn.ID, desc); err != nil {
			return fmt.Errorf("debit fee share: %w", err)
		}
		if _, err := e.ledger.Credit(ctx, tx, *walletID, share.Amount, &txn.ID, desc); err != nil {
			return fmt.Errorf("credit fee share: %w", err)
		}
	}
	return nil
}

func (e *FeeEngine) stakeholderWallet(ctx context.Context, share domain.FeeShare) (*uuid.UUID, error) {
	if share.ActorID == nil {
		return nil, nil
	}
	switch share.Type {
	case domain.StakeholderMerchant:
		m, err := e.merchantRepo.GetByID(ctx, *share.ActorID)
		if err != nil {
			return nil, fmt.Errorf("load merchant: %w", err)
		}
		if m == nil {
			return nil, nil
		}
		return &m.WalletID, nil
	case domain.StakeholderBank:
		b, err := e.bankRepo.GetByID(ctx, *share.ActorID)
		if err != nil {
			return nil, fmt.Errorf("load bank: %w", err)
		}
		if b == nil {
			return nil, nil
		}
		return b.WalletID, nil
	}
	return nil, nil
}
