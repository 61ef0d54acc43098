package postgres

import (
	"context"
	"fmt"

	"pliz-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	feeRuleColumns = `r.id, r.transaction_type, r.min_amount, r.max_amount, r.merchant_id, r.bank_id,
		r.percentage, r.fixed_amount, r.is_active, r.tariff_grid_id, r.created_at`
	distributionRuleColumns = `id, transaction_type, merchant_id, bank_id, provider_percentage, bank_percentage,
		merchant_percentage, is_active, created_at`
)

// FeeRepo implements ports.FeeRepository.
type FeeRepo struct {
	pool Pool
}

// NewFeeRepo creates a new FeeRepo.
func NewFeeRepo(pool Pool) *FeeRepo {
	return &FeeRepo{pool: pool}
}

// ListFeeRules returns active rules whose range covers amount. Rules
// attached to an inactive tariff grid are excluded.
func (r *FeeRepo) ListFeeRules(ctx context.Context, txType domain.TransactionType, amount decimal.Decimal) ([]domain.FeeRule, error) {
	query := `SELECT ` + feeRuleColumns + ` FROM fee_rules r
		LEFT JOIN tariff_grids g ON g.id = r.tariff_grid_id
		WHERE r.transaction_type = $1 AND r.is_active = TRUE
		AND (r.tariff_grid_id IS NULL OR g.is_active = TRUE)
		AND (r.min_amount IS NULL OR r.min_amount <= $2)
		AND (r.max_amount IS NULL OR r.max_amount > $2)
		ORDER BY r.created_at`

	rows, err := r.pool.Query(ctx, query, txType, amount)
	if err != nil {
		return nil, fmt.Errorf("list fee rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.FeeRule
	for rows.Next() {
		var f domain.FeeRule
		err := rows.Scan(&f.ID, &f.TransactionType, &f.MinAmount, &f.MaxAmount, &f.MerchantID, &f.BankID,
			&f.Percentage, &f.FixedAmount, &f.IsActive, &f.TariffGridID, &f.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan fee rule: %w", err)
		}
		rules = append(rules, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fee rules: %w", err)
	}
	return rules, nil
}

// ListDistributionRules returns active distribution rules for a type.
func (r *FeeRepo) ListDistributionRules(ctx context.Context, txType domain.TransactionType) ([]domain.FeeDistributionRule, error) {
	query := `SELECT ` + distributionRuleColumns + ` FROM fee_distribution_rules
		WHERE transaction_type = $1 AND is_active = TRUE ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, txType)
	if err != nil {
		return nil, fmt.Errorf("list distribution rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.FeeDistributionRule
	for rows.Next() {
		var d domain.FeeDistributionRule
		err := rows.Scan(&d.ID, &d.TransactionType, &d.MerchantID, &d.BankID, &d.ProviderPercentage,
			&d.BankPercentage, &d.MerchantPercentage, &d.IsActive, &d.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan distribution rule: %w", err)
		}
		rules = append(rules, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distribution rules: %w", err)
	}
	return rules, nil
}

// CreateFeeRule inserts a fee rule.
func (r *FeeRepo) CreateFeeRule(ctx context.Context, f *domain.FeeRule) error {
	query := `INSERT INTO fee_rules (id, transaction_type, min_amount, max_amount, merchant_id, bank_id,
		percentage, fixed_amount, is_active, tariff_grid_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query, f.ID, f.TransactionType, f.MinAmount, f.MaxAmount, f.MerchantID, f.BankID,
		f.Percentage, f.FixedAmount, f.IsActive, f.TariffGridID, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert fee rule: %w", err)
	}
	return nil
}

// CreateDistributionRule validates then inserts a distribution rule.
func (r *FeeRepo) CreateDistributionRule(ctx context.Context, d *domain.FeeDistributionRule) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("insert distribution rule: %w", err)
	}

	query := `INSERT INTO fee_distribution_rules (` + distributionRuleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query, d.ID, d.TransactionType, d.MerchantID, d.BankID, d.ProviderPercentage,
		d.BankPercentage, d.MerchantPercentage, d.IsActive, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert distribution rule: %w", err)
	}
	return nil
}

// CreateDistribution records one paid-out share in the caller's transaction.
func (r *FeeRepo) CreateDistribution(ctx context.Context, tx pgx.Tx, d *domain.FeeDistribution) error {
	query := `INSERT INTO fee_distributions (id, transaction_id, actor_type, actor_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(ctx, query, d.ID, d.TransactionID, d.ActorType, d.ActorID, d.Amount, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert fee distribution: %w", err)
	}
	return nil
}

// ListDistributions returns the shares paid for a transaction.
func (r *FeeRepo) ListDistributions(ctx context.Context, transactionID uuid.UUID) ([]domain.FeeDistribution, error) {
	query := `SELECT id, transaction_id, actor_type, actor_id, amount, created_at
		FROM fee_distributions WHERE transaction_id = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list fee distributions: %w", err)
	}
	defer rows.Close()

	var out []domain.FeeDistribution
	for rows.Next() {
		var d domain.FeeDistribution
		if err := rows.Scan(&d.ID, &d.TransactionID, &d.ActorType, &d.ActorID, &d.Amount, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan fee distribution: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
