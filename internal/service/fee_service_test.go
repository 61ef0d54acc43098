package service

import (
	"testing"
	"time"

	"pliz-ledger/internal/adapter/storage/memory"
	"pliz-ledger/internal/core/domain"
	"pliz-ledger/internal/core/ports"
	"pliz-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestFeeEngine_QuoteFeeTiers(t *testing.T) {
	h := newHarness(t)
	h.feeRule(domain.FeeRule{TransactionType: domain.TransactionTypeTransfer, MaxAmount: decPtr("1000"), FixedAmount: dec("25")})
	h.feeRule(domain.FeeRule{TransactionType: domain.TransactionTypeTransfer, MinAmount: decPtr("1000"), MaxAmount: decPtr("10000"), Percentage: dec("1.5")})
	h.feeRule(domain.FeeRule{TransactionType: domain.TransactionTypeTransfer, MinAmount: decPtr("10000"), Percentage: dec("1"), FixedAmount: dec("50")})

	tests := []struct {
		amount string
		want   string
	}{
		{"999.99", "25"},
		{"1000", "15.00"},
		{"3333.33", "50.00"},
		{"10000", "150.00"},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			fee, err := h.fees.QuoteFee(h.ctx, nil, domain.TransactionTypeTransfer, dec(tt.amount), nil, nil)
			require.NoError(t, err)
			assertDecimal(t, tt.want, fee)
		})
	}

	fee, err := h.fees.QuoteFee(h.ctx, nil, domain.TransactionTypeTopup, dec("500"), nil, nil)
	require.NoError(t, err)
	assert.True(t, fee.IsZero(), "no rule for the type means no fee")
}

func TestFeeEngine_QuoteFeeSpecificity(t *testing.T) {
	h := newHarness(t)
	merchantID, bankID := uuid.New(), uuid.New()
	h.feeRule(domain.FeeRule{TransactionType: domain.TransactionTypePayment, FixedAmount: dec("10")})
	h.feeRule(domain.FeeRule{TransactionType: domain.TransactionTypePayment, BankID: &bankID, FixedAmount: dec("5")})
	h.feeRule(domain.FeeRule{TransactionType: domain.TransactionTypePayment, MerchantID: &merchantID, FixedAmount: dec("1")})

	quote := func(m, b *uuid.UUID) decimal.Decimal {
		fee, err := h.fees.QuoteFee(h.ctx, nil, domain.TransactionTypePayment, dec("100"), m, b)
		require.NoError(t, err)
		return fee
	}

	other := uuid.New()
	assertDecimal(t, "1", quote(&merchantID, &bankID))
	assertDecimal(t, "5", quote(&other, &bankID))
	assertDecimal(t, "10", quote(&other, nil))
	assertDecimal(t, "10", quote(nil, nil))
}

func TestFeeEngine_InactiveTariffGridIsIgnored(t *testing.T) {
	h := newHarness(t)
	grid := uuid.New()
	h.store.SetTariffGridActive(grid, true)
	h.feeRule(domain.FeeRule{TransactionType: domain.TransactionTypeTransfer, TariffGridID: &grid, FixedAmount: dec("7")})

	fee, err := h.fees.QuoteFee(h.ctx, nil, domain.TransactionTypeTransfer, dec("100"), nil, nil)
	require.NoError(t, err)
	assertDecimal(t, "7", fee)

	h.store.SetTariffGridActive(grid, false)
	fee, err = h.fees.QuoteFee(h.ctx, nil, domain.TransactionTypeTransfer, dec("100"), nil, nil)
	require.NoError(t, err)
	assert.True(t, fee.IsZero())
}

func TestFeeEngine_SubscribedActorIsExempt(t *testing.T) {
	h := newHarness(t)
	h.feeRule(domain.FeeRule{TransactionType: domain.TransactionTypeTransfer, FixedAmount: dec("7")})

	fee, err := h.fees.QuoteFee(h.ctx, &domain.Actor{IsSubscribed: true}, domain.TransactionTypeTransfer, dec("100"), nil, nil)
	require.NoError(t, err)
	assert.True(t, fee.IsZero())
}

func TestFeeEngine_BankShareMovesToBankWallet(t *testing.T) {
	h := newHarness(t)
	alice, aliceWallet := h.user("alice", "+2250700000001", "2000")

	bankWallet := &domain.Wallet{ID: uuid.New(), OwnerType: domain.OwnerTypeBank, OwnerID: uuid.New(), Currency: domain.DefaultCurrency}
	require.NoError(t, h.store.Wallets().Create(h.ctx, bankWallet))
	bank := &domain.Bank{ID: uuid.New(), Name: "Ecobank", PartnerCode: "ecobank", WalletID: &bankWallet.ID, CreatedAt: time.Now()}
	require.NoError(t, h.store.Banks().Create(h.ctx, bank))

	h.feeRule(domain.FeeRule{TransactionType: domain.TransactionTypeTransfer, Percentage: dec("2")})
	require.NoError(t, h.fees.AddDistributionRule(h.ctx, &domain.FeeDistributionRule{
		TransactionType:    domain.TransactionTypeTransfer,
		BankID:             &bank.ID,
		ProviderPercentage: dec("60"),
		BankPercentage:     dec("40"),
		IsActive:           true,
	}))

	gw := h.gateway("ecobank")
	gw.result = &ports.GatewayResult{Status: domain.TransactionStatusSuccess, ExternalID: "eco-1"}

	res, err := h.settlement.SendMoney(h.ctx, ports.SendMoneyRequest{ActorID: alice.ID, Receiver: "CI0001234567", Amount: dec("1000"), Partner: "ecobank"})
	require.NoError(t, err)

	txn := h.txn(res.Transaction.OrderID)
	require.NotNil(t, txn.BankID)
	assert.Equal(t, bank.ID, *txn.BankID)
	assertDecimal(t, "20.00", txn.FeeApplied)
	assertDecimal(t, "980.00", h.balance(aliceWallet.ID))
	assertDecimal(t, "12.00", h.balance(h.platform.ID))
	assertDecimal(t, "8.00", h.balance(bankWallet.ID))

	dists, err := h.store.Fees().ListDistributions(h.ctx, txn.ID)
	require.NoError(t, err)
	require.Len(t, dists, 2)
	byType := map[domain.StakeholderType]decimal.Decimal{}
	for _, d := range dists {
		byType[d.ActorType] = d.Amount
	}
	assertDecimal(t, "12.00", byType[domain.StakeholderProvider])
	assertDecimal(t, "8.00", byType[domain.StakeholderBank])
	h.assertChain(aliceWallet.ID, h.platform.ID, bankWallet.ID)
}

func TestFeeEngine_ShareWithoutWalletStaysOnPlatform(t *testing.T) {
	h := newHarness(t)
	alice, _ := h.user("alice", "+2250700000001", "2000")
	bank := &domain.Bank{ID: uuid.New(), Name: "Ecobank", PartnerCode: "ecobank", CreatedAt: time.Now()}
	require.NoError(t, h.store.Banks().Create(h.ctx, bank))

	h.feeRule(domain.FeeRule{TransactionType: domain.TransactionTypeTransfer, FixedAmount: dec("10")})
	require.NoError(t, h.fees.AddDistributionRule(h.ctx, &domain.FeeDistributionRule{
		TransactionType:    domain.TransactionTypeTransfer,
		ProviderPercentage: dec("50"),
		BankPercentage:     dec("50"),
		IsActive:           true,
	}))
	gw := h.gateway("ecobank")
	gw.result = &ports.GatewayResult{Status: domain.TransactionStatusSuccess}

	_, err := h.settlement.SendMoney(h.ctx, ports.SendMoneyRequest{ActorID: alice.ID, Receiver: "CI0001234567", Amount: dec("100"), Partner: "ecobank"})
	require.NoError(t, err)
	assertDecimal(t, "10", h.balance(h.platform.ID))
}

func TestFeeEngine_ApplyFeeWithoutPlatformWallet(t *testing.T) {
	s := memory.NewStore()
	log := newTestLogger()
	ledger := NewLedgerService(s.Ledger(), log)
	fees := NewFeeEngine(s.Fees(), s.Wallets(), s.Merchants(), s.Banks(), s.Transactions(), ledger, log)
	rule := domain.FeeRule{ID: uuid.New(), TransactionType: domain.TransactionTypeTransfer, FixedAmount: dec("1"), IsActive: true}
	require.NoError(t, s.Fees().CreateFeeRule(t.Context(), &rule))

	tx, err := s.Begin(t.Context())
	require.NoError(t, err)
	defer tx.Rollback(t.Context()) //nolint:errcheck

	_, err = fees.ApplyFee(t.Context(), tx, FeeInput{
		WalletID: uuid.New(),
		Txn:      &domain.Transaction{ID: uuid.New(), Type: domain.TransactionTypeTransfer, Amount: dec("100")},
	})
	assert.ErrorIs(t, err, ErrNoPlatformWallet)
}

func TestFeeEngine_AddDistributionRuleValidates(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		rule domain.FeeDistributionRule
	}{
		{"over allocated", domain.FeeDistributionRule{ProviderPercentage: dec("80"), BankPercentage: dec("30")}},
		{"negative", domain.FeeDistributionRule{ProviderPercentage: dec("-1")}},
		{"above hundred", domain.FeeDistributionRule{MerchantPercentage: dec("101")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := tt.rule
			rule.TransactionType = domain.TransactionTypePayment
			err := h.fees.AddDistributionRule(h.ctx, &rule)
			assert.Equal(t, "PAY_002", apperror.CodeOf(err))
		})
	}

	ok := &domain.FeeDistributionRule{TransactionType: domain.TransactionTypePayment, ProviderPercentage: dec("100"), IsActive: true}
	require.NoError(t, h.fees.AddDistributionRule(h.ctx, ok))
	assert.NotEqual(t, uuid.Nil, ok.ID)
	assert.False(t, ok.CreatedAt.IsZero())
}
