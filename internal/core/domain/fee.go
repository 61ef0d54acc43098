package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FeeRule is one tariff line. MinAmount is inclusive, MaxAmount exclusive;
// either bound may be open.
type FeeRule struct {
	ID              uuid.UUID        `json:"id"`
	TransactionType TransactionType  `json:"transaction_type"`
	MinAmount       *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount       *decimal.Decimal `json:"max_amount,omitempty"`
	MerchantID      *uuid.UUID       `json:"merchant_id,omitempty"`
	BankID          *uuid.UUID       `json:"bank_id,omitempty"`
	Percentage      decimal.Decimal  `json:"percentage"`
	FixedAmount     decimal.Decimal  `json:"fixed_amount"`
	IsActive        bool             `json:"is_active"`
	TariffGridID    *uuid.UUID       `json:"tariff_grid_id,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Covers reports whether amount falls in [MinAmount, MaxAmount).
func (r *FeeRule) Covers(amount decimal.Decimal) bool {
	if r.MinAmount != nil && amount.LessThan(*r.MinAmount) {
		return false
	}
	if r.MaxAmount != nil && !amount.LessThan(*r.MaxAmount) {
		return false
	}
	return true
}

// Compute returns round(amount*pct/100 + fixed, 2).
func (r *FeeRule) Compute(amount decimal.Decimal) decimal.Decimal {
	fee := amount.Mul(r.Percentage).Div(hundred).Add(r.FixedAmount)
	return RoundMoney(fee)
}

func (r *FeeRule) isGlobal() bool {
	return r.MerchantID == nil && r.BankID == nil
}

// SelectFeeRule picks the most specific rule: merchant, then bank, then global.
// Candidates are expected to be active and to cover the amount already.
func SelectFeeRule(candidates []FeeRule, merchantID, bankID *uuid.UUID) *FeeRule {
	if merchantID != nil {
		for i := range candidates {
			if candidates[i].MerchantID != nil && *candidates[i].MerchantID == *merchantID {
				return &candidates[i]
			}
		}
	}
	if bankID != nil {
		for i := range candidates {
			if candidates[i].BankID != nil && *candidates[i].BankID == *bankID {
				return &candidates[i]
			}
		}
	}
	for i := range candidates {
		if candidates[i].isGlobal() {
			return &candidates[i]
		}
	}
	return nil
}

// StakeholderType identifies who receives a share of a fee.
type StakeholderType string

const (
	StakeholderProvider StakeholderType = "provider"
	StakeholderBank     StakeholderType = "bank"
	StakeholderMerchant StakeholderType = "merchant"
)

var ErrDistributionOverAllocated = errors.New("distribution percentages exceed 100")
var ErrDistributionOutOfRange = errors.New("distribution percentage must be between 0 and 100")

// FeeDistributionRule splits a collected fee between stakeholders.
type FeeDistributionRule struct {
	ID                 uuid.UUID       `json:"id"`
	TransactionType    TransactionType `json:"transaction_type"`
	MerchantID         *uuid.UUID      `json:"merchant_id,omitempty"`
	BankID             *uuid.UUID      `json:"bank_id,omitempty"`
	ProviderPercentage decimal.Decimal `json:"provider_percentage"`
	BankPercentage     decimal.Decimal `json:"bank_percentage"`
	MerchantPercentage decimal.Decimal `json:"merchant_percentage"`
	IsActive           bool            `json:"is_active"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Validate checks each percentage is in [0,100] and the total is at most 100.
func (r *FeeDistributionRule) Validate() error {
	pcts := []decimal.Decimal{r.ProviderPercentage, r.BankPercentage, r.MerchantPercentage}
	total := decimal.Zero
	for _, p := range pcts {
		if p.IsNegative() || p.GreaterThan(hundred) {
			return ErrDistributionOutOfRange
		}
		total = total.Add(p)
	}
	if total.GreaterThan(hundred) {
		return ErrDistributionOverAllocated
	}
	return nil
}

// FeeShare is one computed slice of a fee.
type FeeShare struct {
	Type    StakeholderType
	ActorID *uuid.UUID
	Amount  decimal.Decimal
}

// Shares splits fee according to the rule. Bank and merchant shares are
// only produced when the corresponding party is known. A nil rule sends
// the whole fee to the provider.
func (r *FeeDistributionRule) Shares(fee decimal.Decimal, merchantID, bankID *uuid.UUID) []FeeShare {
	if r == nil {
		return []FeeShare{{Type: StakeholderProvider, Amount: fee}}
	}

	var shares []FeeShare
	add := func(t StakeholderType, actor *uuid.UUID, pct decimal.Decimal) {
		amount := RoundMoney(fee.Mul(pct).Div(hundred))
		if IsPositive(amount) {
			shares = append(shares, FeeShare{Type: t, ActorID: actor, Amount: amount})
		}
	}

	add(StakeholderProvider, nil, r.ProviderPercentage)
	if bankID != nil {
		add(StakeholderBank, bankID, r.BankPercentage)
	}
	if merchantID != nil {
		add(StakeholderMerchant, merchantID, r.MerchantPercentage)
	}
	return shares
}

// SelectDistributionRule applies the same specificity order as SelectFeeRule.
func SelectDistributionRule(candidates []FeeDistributionRule, merchantID, bankID *uuid.UUID) *FeeDistributionRule {
	if merchantID != nil {
		for i := range candidates {
			if candidates[i].MerchantID != nil && *candidates[i].MerchantID == *merchantID {
				return &candidates[i]
			}
		}
	}
	if bankID != nil {
		for i := range candidates {
			if candidates[i].BankID != nil && *candidates[i].BankID == *bankID {
				return &candidates[i]
			}
		}
	}
	for i := range candidates {
		if candidates[i].MerchantID == nil && candidates[i].BankID == nil {
			return &candidates[i]
		}
	}
	return nil
}

// FeeDistribution is the audit row for one paid-out share.
type FeeDistribution struct {
	ID            uuid.UUID       `json:"id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	ActorType     StakeholderType `json:"actor_type"`
	ActorID       *uuid.UUID      `json:"actor_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"created_at"`
}
