package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"pliz-ledger/internal/core/domain"
	"pliz-ledger/internal/core/ports"
	"pliz-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMoney_InternalTransferConservesMoney(t *testing.T) {
	h := newHarness(t)
	alice, aliceWallet := h.user("alice", "+2250700000001", "1000")
	_, bobWallet := h.user("bob", "+2250700000002", "")

	res, err := h.settlement.SendMoney(h.ctx, ports.SendMoneyRequest{
		ActorID:  alice.ID,
		Receiver: "bob",
		Amount:   dec("300"),
	})
	require.NoError(t, err)

	txn := res.Transaction
	assert.Equal(t, domain.TransactionStatusSuccess, txn.Status)
	assert.True(t, txn.LedgerApplied)
	assert.True(t, strings.HasPrefix(txn.OrderID, "PLZ-"), txn.OrderID)
	assertDecimal(t, "0", res.Fee)

	assertDecimal(t, "700", h.balance(aliceWallet.ID))
	assertDecimal(t, "300", h.balance(bobWallet.ID))
	assertDecimal(t, "1000", h.balance(aliceWallet.ID).Add(h.balance(bobWallet.ID)))

	aliceEntries, err := h.store.Ledger().ListByTransaction(h.ctx, txn.ID, aliceWallet.ID)
	require.NoError(t, err)
	bobEntries, err := h.store.Ledger().ListByTransaction(h.ctx, txn.ID, bobWallet.ID)
	require.NoError(t, err)
	require.Len(t, aliceEntries, 1)
	require.Len(t, bobEntries, 1)
	assert.Equal(t, domain.DirectionDebit, aliceEntries[0].Direction)
	assert.Equal(t, domain.DirectionCredit, bobEntries[0].Direction)
	h.assertChain(aliceWallet.ID, bobWallet.ID)

	events, err := h.store.Events().ListByTransaction(h.ctx, txn.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.TransactionStatusPending, events[0].FromStatus)
	assert.Equal(t, domain.TransactionStatusSuccess, events[0].ToStatus)

	assert.Equal(t, 2, h.notifier.count(), "sender and receiver are notified")
}

func TestSendMoney_GlobalPercentageFee(t *testing.T) {
	h := newHarness(t)
	alice, aliceWallet := h.user("alice", "+2250700000001", "1000")
	_, bobWallet := h.user("bob", "+2250700000002", "")
	h.feeRule(domain.FeeRule{TransactionType: domain.TransactionTypeTransfer, Percentage: dec("1")})

	res, err := h.settlement.SendMoney(h.ctx, ports.SendMoneyRequest{ActorID: alice.ID, Receiver: "bob", Amount: dec("300")})
	require.NoError(t, err)

	assertDecimal(t, "3.00", res.Fee)
	assertDecimal(t, "3.00", h.txn(res.Transaction.OrderID).FeeApplied)
	assertDecimal(t, "697.00", h.balance(aliceWallet.ID))
	assertDecimal(t, "300", h.balance(bobWallet.ID))
	assertDecimal(t, "3.00", h.balance(h.platform.ID))

	dists, err := h.store.Fees().ListDistributions(h.ctx, res.Transaction.ID)
	require.NoError(t, err)
	require.Len(t, dists, 1)
	assert.Equal(t, domain.StakeholderProvider, dists[0].ActorType)
	assertDecimal(t, "3.00", dists[0].Amount)
	h.assertChain(aliceWallet.ID, h.platform.ID)
}

func TestSendMoney_SubscribedActorPaysNoFee(t *testing.T) {
	h := newHarness(t)
	alice, aliceWallet := h.user("alice", "+2250700000001", "1000", subscribed)
	h.user("bob", "+2250700000002", "")
	h.feeRule(domain.FeeRule{TransactionType: domain.TransactionTypeTransfer, Percentage: dec("1")})

	res, err := h.settlement.SendMoney(h.ctx, ports.SendMoneyRequest{ActorID: alice.ID, Receiver: "bob", Amount: dec("300")})
	require.NoError(t, err)

	assertDecimal(t, "0", res.Fee)
	assertDecimal(t, "700", h.balance(aliceWallet.ID))
	assertDecimal(t, "0", h.balance(h.platform.ID))
}

func TestSendMoney_InsufficientFundsWritesNothing(t *testing.T) {
	tests := []struct {
		name    string
		balance string
		fee     bool
	}{
		{"amount above balance", "100", false},
		{"fee pushes above balance", "300", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			alice, aliceWallet := h.user("alice", "+2250700000001", tt.balance)
			_, bobWallet := h.user("bob", "+2250700000002", "")
			if tt.fee {
				h.feeRule(domain.FeeRule{TransactionType: domain.TransactionTypeTransfer, Percentage: dec("1")})
			}
			before := len(h.entries(aliceWallet.ID))

			_, err := h.settlement.SendMoney(h.ctx, ports.SendMoneyRequest{ActorID: alice.ID, Receiver: "bob", Amount: dec("300")})

			assert.True(t, apperror.Is(err, "PAY_001"), "got %v", err)
			assert.Len(t, h.entries(aliceWallet.ID), before)
			assert.Empty(t, h.entries(bobWallet.ID))

			_, total, err := h.store.Transactions().ListByWallet(h.ctx, ports.TransactionListParams{WalletID: aliceWallet.ID, Page: 1, PageSize: 10})
			require.NoError(t, err)
			assert.Zero(t, total, "no transaction row is written")
		})
	}
}

func TestSendMoney_Validation(t *testing.T) {
	h := newHarness(t)
	alice, _ := h.user("alice", "+2250700000001", "1000")
	carol, _ := h.user("carol", "+2250700000003", "1000", inactive)

	tests := []struct {
		name string
		req  ports.SendMoneyRequest
		code string
	}{
		{"zero amount", ports.SendMoneyRequest{ActorID: alice.ID, Receiver: "bob", Amount: dec("0")}, "PAY_002"},
		{"negative amount", ports.SendMoneyRequest{ActorID: alice.ID, Receiver: "bob", Amount: dec("-5")}, "PAY_002"},
		{"unknown receiver", ports.SendMoneyRequest{ActorID: alice.ID, Receiver: "nobody", Amount: dec("5")}, "PAY_004"},
		{"self transfer", ports.SendMoneyRequest{ActorID: alice.ID, Receiver: "alice", Amount: dec("5")}, "PAY_002"},
		{"inactive sender", ports.SendMoneyRequest{ActorID: carol.ID, Receiver: "alice", Amount: dec("5")}, "PAY_008"},
		{"unknown sender", ports.SendMoneyRequest{ActorID: uuid.New(), Receiver: "alice", Amount: dec("5")}, "PAY_004"},
		{"unknown partner", ports.SendMoneyRequest{ActorID: alice.ID, Receiver: "+2250102030405", Amount: dec("5"), Partner: "paypal"}, "CFG_001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.settlement.SendMoney(h.ctx, tt.req)
			assert.Equal(t, tt.code, apperror.CodeOf(err), "got %v", err)
		})
	}
}

func TestSendMoney_ReceiverByPhone(t *testing.T) {
	h := newHarness(t)
	alice, _ := h.user("alice", "+2250700000001", "1000")
	_, bobWallet := h.user("bob", "+2250700000002", "")

	_, err := h.settlement.SendMoney(h.ctx, ports.SendMoneyRequest{ActorID: alice.ID, Receiver: "+2250700000002", Amount: dec("50")})
	require.NoError(t, err)
	assertDecimal(t, "50", h.balance(bobWallet.ID))
}

func TestSendMoney_ConcurrentSendsNeverOverdraw(t *testing.T) {
	h := newHarness(t)
	alice, aliceWallet := h.user("alice", "+2250700000001", "1000")
	_, bobWallet := h.user("bob", "+2250700000002", "")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.settlement.SendMoney(h.ctx, ports.SendMoneyRequest{ActorID: alice.ID, Receiver: "bob", Amount: dec("150")})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if apperror.Is(err, "PAY_001") {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 6, succeeded)
	assert.Equal(t, 4, rejected)
	assertDecimal(t, "100", h.balance(aliceWallet.ID))
	assertDecimal(t, "900", h.balance(bobWallet.ID))
	h.assertChain(aliceWallet.ID, bobWallet.ID)
}

func TestSendMoney_ViaPartnerSuccess(t *testing.T) {
	h := newHarness(t)
	alice, aliceWallet := h.user("alice", "+2250700000001", "1000")
	gw := h.gateway("djamo")
	gw.result = &ports.GatewayResult{Status: domain.TransactionStatusSuccess, ExternalID: "dj-1", Raw: map[string]any{"id": "dj-1"}}
	h.feeRule(domain.FeeRule{TransactionType: domain.TransactionTypeTransfer, Percentage: dec("2")})

	res, err := h.settlement.SendMoney(h.ctx, ports.SendMoneyRequest{ActorID: alice.ID, Receiver: "+2250102030405", Amount: dec("200"), Partner: "DJAMO"})
	require.NoError(t, err)

	txn := h.txn(res.Transaction.OrderID)
	assert.Equal(t, domain.TransactionStatusSuccess, txn.Status)
	assert.True(t, strings.HasPrefix(txn.OrderID, "DJAMO-"), txn.OrderID)
	require.NotNil(t, txn.ExternalReference)
	assert.Equal(t, "dj-1", *txn.ExternalReference)
	assert.Equal(t, "+2250102030405", txn.AdditionalData["destination"])
	assertDecimal(t, "796.00", h.balance(aliceWallet.ID))
	assertDecimal(t, "4.00", h.balance(h.platform.ID))
}

func TestSendMoney_ViaPartnerPendingThenFailedIsReversed(t *testing.T) {
	h := newHarness(t)
	alice, aliceWallet := h.user("alice", "+2250700000001", "1000")
	gw := h.gateway("djamo")
	gw.result = &ports.GatewayResult{Status: domain.TransactionStatusPending, ExternalID: "dj-2"}
	h.feeRule(domain.FeeRule{TransactionType: domain.TransactionTypeTransfer, Percentage: dec("1")})

	res, err := h.settlement.SendMoney(h.ctx, ports.SendMoneyRequest{ActorID: alice.ID, Receiver: "+2250102030405", Amount: dec("400"), Partner: "djamo"})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, res.Transaction.Status)

	assertDecimal(t, "600", h.balance(aliceWallet.ID))
	assertDecimal(t, "0", h.balance(h.platform.ID), "fee waits for confirmation")

	check, err := h.store.StatusChecks().GetByOrderID(h.ctx, res.Transaction.OrderID)
	require.NoError(t, err)
	require.NotNil(t, check)
	assert.Equal(t, "dj-2", check.ExternalReference)
	assert.Equal(t, "djamo", check.Partner)

	out, err := h.settlement.Resolve(h.ctx, ports.Resolution{
		OrderID:       res.Transaction.OrderID,
		Status:        domain.TransactionStatusFailed,
		FailureReason: "recipient unknown",
		Source:        "webhook",
	})
	require.NoError(t, err)
	assert.False(t, out.AlreadyFinal)

	txn := h.txn(res.Transaction.OrderID)
	assert.Equal(t, domain.TransactionStatusFailed, txn.Status)
	assert.Equal(t, "recipient unknown", txn.AdditionalData["failure_reason"])
	assertDecimal(t, "1000", h.balance(aliceWallet.ID))
	assertDecimal(t, "0", h.balance(h.platform.ID))
	h.assertChain(aliceWallet.ID)

	check, err = h.store.StatusChecks().GetByOrderID(h.ctx, res.Transaction.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, check.Status)
}

func TestSendMoney_ViaPartnerPendingThenSuccessAppliesFee(t *testing.T) {
	h := newHarness(t)
	alice, aliceWallet := h.user("alice", "+2250700000001", "1000")
	gw := h.gateway("djamo")
	gw.result = &ports.GatewayResult{Status: domain.TransactionStatusPending, ExternalID: "dj-3"}
	h.feeRule(domain.FeeRule{TransactionType: domain.TransactionTypeTransfer, Percentage: dec("1")})

	res, err := h.settlement.SendMoney(h.ctx, ports.SendMoneyRequest{ActorID: alice.ID, Receiver: "+2250102030405", Amount: dec("400"), Partner: "djamo"})
	require.NoError(t, err)

	_, err = h.settlement.Resolve(h.ctx, ports.Resolution{OrderID: res.Transaction.OrderID, Status: domain.TransactionStatusSuccess, Source: "poller"})
	require.NoError(t, err)

	assertDecimal(t, "596.00", h.balance(aliceWallet.ID))
	assertDecimal(t, "4.00", h.balance(h.platform.ID))
	assertDecimal(t, "4.00", h.txn(res.Transaction.OrderID).FeeApplied)
}

func TestSendMoney_PendingFeeStaysReservedUntilConfirmed(t *testing.T) {
	h := newHarness(t)
	alice, aliceWallet := h.user("alice", "+2250700000001", "100")
	h.user("bob", "+2250700000002", "")
	gw := h.gateway("djamo")
	gw.result = &ports.GatewayResult{Status: domain.TransactionStatusPending, ExternalID: "dj-fee"}
	h.feeRule(domain.FeeRule{TransactionType: domain.TransactionTypeTransfer, Percentage: dec("1")})

	res, err := h.settlement.SendMoney(h.ctx, ports.SendMoneyRequest{ActorID: alice.ID, Receiver: "+2250102030405", Amount: dec("99"), Partner: "djamo"})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, res.Transaction.Status)
	assertDecimal(t, "1", h.balance(aliceWallet.ID))
	assertDecimal(t, "0.99", h.txn(res.Transaction.OrderID).QuotedFee)

	bal, err := h.settlement.GetBalance(h.ctx, alice.ID)
	require.NoError(t, err)
	assertDecimal(t, "0.01", bal.Available, "unpaid fee is held back")

	_, err = h.settlement.SendMoney(h.ctx, ports.SendMoneyRequest{ActorID: alice.ID, Receiver: "bob", Amount: dec("0.99")})
	assert.Equal(t, "PAY_001", apperror.CodeOf(err))

	_, err = h.settlement.Resolve(h.ctx, ports.Resolution{OrderID: res.Transaction.OrderID, Status: domain.TransactionStatusSuccess, Source: "poller"})
	require.NoError(t, err)
	assertDecimal(t, "0.01", h.balance(aliceWallet.ID))
	assertDecimal(t, "0.99", h.balance(h.platform.ID))
	h.assertChain(aliceWallet.ID)
}

func TestSendMoney_CallerCancelledMidCallAwaitsReconciliation(t *testing.T) {
	h := newHarness(t)
	alice, aliceWallet := h.user("alice", "+2250700000001", "1000")
	ctx, cancel := context.WithCancel(h.ctx)
	defer cancel()
	gw := h.gateway("samirpay")
	gw.onCall = cancel
	gw.err = context.Canceled

	res, err := h.settlement.SendMoney(ctx, ports.SendMoneyRequest{ActorID: alice.ID, Receiver: "+2250102030405", Amount: dec("250"), Partner: "samirpay"})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, res.Transaction.Status)

	check, err := h.store.StatusChecks().GetByOrderID(h.ctx, res.Transaction.OrderID)
	require.NoError(t, err)
	require.NotNil(t, check, "an uncertain outcome is handed to reconciliation")
	assert.Equal(t, res.Transaction.OrderID, check.ExternalReference)

	cancelled, err := h.recon.ExpireStale(h.ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, cancelled, "tracked transactions are never expired")
	assert.Equal(t, domain.TransactionStatusPending, h.txn(res.Transaction.OrderID).Status)

	bal, err := h.settlement.GetBalance(h.ctx, alice.ID)
	require.NoError(t, err)
	assertDecimal(t, "750", bal.Available)
	assertDecimal(t, "1000", h.balance(aliceWallet.ID))
}

func TestSendMoney_ViaPartnerTimeoutStaysPending(t *testing.T) {
	h := newHarness(t)
	alice, aliceWallet := h.user("alice", "+2250700000001", "1000")
	gw := h.gateway("samirpay")
	gw.err = timeoutErr{}

	res, err := h.settlement.SendMoney(h.ctx, ports.SendMoneyRequest{ActorID: alice.ID, Receiver: "+2250102030405", Amount: dec("250"), Partner: "samirpay"})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, res.Transaction.Status)
	assert.False(t, res.Transaction.LedgerApplied)

	check, err := h.store.StatusChecks().GetByOrderID(h.ctx, res.Transaction.OrderID)
	require.NoError(t, err)
	require.NotNil(t, check)
	assert.Equal(t, res.Transaction.OrderID, check.ExternalReference, "order id stands in for the missing partner reference")

	bal, err := h.settlement.GetBalance(h.ctx, alice.ID)
	require.NoError(t, err)
	assertDecimal(t, "1000", bal.Balance)
	assertDecimal(t, "750", bal.Available, "pending amount stays reserved")
	assertDecimal(t, "1000", h.balance(aliceWallet.ID))
}

func TestSendMoney_ViaPartnerErrorFails(t *testing.T) {
	h := newHarness(t)
	alice, aliceWallet := h.user("alice", "+2250700000001", "1000")
	gw := h.gateway("djamo")
	gw.err = errors.New("HTTP 500 from partner")

	_, err := h.settlement.SendMoney(h.ctx, ports.SendMoneyRequest{ActorID: alice.ID, Receiver: "+2250102030405", Amount: dec("250"), Partner: "djamo"})
	assert.Equal(t, "PAY_010", apperror.CodeOf(err))

	txns, _, err := h.store.Transactions().ListByWallet(h.ctx, ports.TransactionListParams{WalletID: aliceWallet.ID, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, domain.TransactionStatusFailed, txns[0].Status)
	assertDecimal(t, "1000", h.balance(aliceWallet.ID))

	bal, err := h.settlement.GetBalance(h.ctx, alice.ID)
	require.NoError(t, err)
	assertDecimal(t, "1000", bal.Available, "failed transaction releases the reservation")
}

func TestPayMerchant_MerchantFeeRuleBeatsGlobal(t *testing.T) {
	h := newHarness(t)
	alice, aliceWallet := h.user("alice", "+2250700000001", "1000")
	_, shop := h.merchant("boutique", nil)
	h.feeRule(domain.FeeRule{TransactionType: domain.TransactionTypePayment, Percentage: dec("1")})
	h.feeRule(domain.FeeRule{TransactionType: domain.TransactionTypePayment, MerchantID: &shop.ID, Percentage: dec("0.5")})

	res, err := h.settlement.PayMerchant(h.ctx, ports.PayMerchantRequest{ActorID: alice.ID, MerchantCode: "Boutique", Amount: dec("300")})
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionStatusSuccess, res.Transaction.Status)
	assertDecimal(t, "1.50", res.Fee)
	assertDecimal(t, "698.50", h.balance(aliceWallet.ID))
	assertDecimal(t, "300", h.balance(shop.WalletID))
	assertDecimal(t, "1.50", h.balance(h.platform.ID))
}

func TestPayMerchant_FeeShareReachesMerchantWallet(t *testing.T) {
	h := newHarness(t)
	alice, _ := h.user("alice", "+2250700000001", "1000")
	_, shop := h.merchant("boutique", nil)
	h.feeRule(domain.FeeRule{TransactionType: domain.TransactionTypePayment, Percentage: dec("2")})
	require.NoError(t, h.fees.AddDistributionRule(h.ctx, &domain.FeeDistributionRule{
		TransactionType:    domain.TransactionTypePayment,
		ProviderPercentage: dec("75"),
		MerchantPercentage: dec("25"),
		IsActive:           true,
	}))

	res, err := h.settlement.PayMerchant(h.ctx, ports.PayMerchantRequest{ActorID: alice.ID, MerchantCode: "boutique", Amount: dec("500")})
	require.NoError(t, err)

	assertDecimal(t, "10.00", res.Fee)
	assertDecimal(t, "502.50", h.balance(shop.WalletID))
	assertDecimal(t, "7.50", h.balance(h.platform.ID))

	dists, err := h.store.Fees().ListDistributions(h.ctx, res.Transaction.ID)
	require.NoError(t, err)
	require.Len(t, dists, 2)
	h.assertChain(shop.WalletID, h.platform.ID)
}

func TestPayMerchant_MissingDetails(t *testing.T) {
	h := newHarness(t)
	alice, _ := h.user("alice", "+2250700000001", "1000")

	_, err := h.settlement.PayMerchant(h.ctx, ports.PayMerchantRequest{ActorID: alice.ID, MerchantCode: "rapido", Amount: dec("100")})
	assert.Equal(t, "PAY_009", apperror.CodeOf(err))
}

func TestPayMerchant_ExternalProcessor(t *testing.T) {
	biller := "biller"

	t.Run("success", func(t *testing.T) {
		h := newHarness(t)
		alice, aliceWallet := h.user("alice", "+2250700000001", "1000")
		_, rapido := h.merchant("rapido", &biller)
		h.processors[biller] = &stubGateway{name: biller, result: &ports.GatewayResult{Status: domain.TransactionStatusSuccess, ExternalID: "b-1"}}

		res, err := h.settlement.PayMerchant(h.ctx, ports.PayMerchantRequest{
			ActorID: alice.ID, MerchantCode: "rapido", Amount: dec("100"),
			Details: map[string]string{"cardNumber": "4242"},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusSuccess, res.Transaction.Status)
		assertDecimal(t, "900", h.balance(aliceWallet.ID))
		assertDecimal(t, "100", h.balance(rapido.WalletID))

		details, ok := h.txn(res.Transaction.OrderID).AdditionalData["details"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "4242", details["cardNumber"])
	})

	t.Run("processor error", func(t *testing.T) {
		h := newHarness(t)
		alice, aliceWallet := h.user("alice", "+2250700000001", "1000")
		h.merchant("rapido", &biller)
		h.processors[biller] = &stubGateway{name: biller, err: errors.New("biller unavailable")}

		_, err := h.settlement.PayMerchant(h.ctx, ports.PayMerchantRequest{
			ActorID: alice.ID, MerchantCode: "rapido", Amount: dec("100"),
			Details: map[string]string{"cardNumber": "4242"},
		})
		assert.Equal(t, "PAY_010", apperror.CodeOf(err))
		assertDecimal(t, "1000", h.balance(aliceWallet.ID))
	})

	t.Run("pending keeps the reservation until resolved", func(t *testing.T) {
		h := newHarness(t)
		alice, aliceWallet := h.user("alice", "+2250700000001", "1000")
		_, rapido := h.merchant("rapido", &biller)
		h.processors[biller] = &stubGateway{name: biller, result: &ports.GatewayResult{Status: domain.TransactionStatusPending, ExternalID: "b-2"}}

		res, err := h.settlement.PayMerchant(h.ctx, ports.PayMerchantRequest{
			ActorID: alice.ID, MerchantCode: "rapido", Amount: dec("100"),
			Details: map[string]string{"cardNumber": "4242"},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusPending, res.Transaction.Status)

		bal, err := h.settlement.GetBalance(h.ctx, alice.ID)
		require.NoError(t, err)
		assertDecimal(t, "900", bal.Available)
		assertDecimal(t, "1000", bal.Balance)

		_, err = h.settlement.Resolve(h.ctx, ports.Resolution{OrderID: res.Transaction.OrderID, Status: domain.TransactionStatusSuccess, Source: "webhook"})
		require.NoError(t, err)
		assertDecimal(t, "900", h.balance(aliceWallet.ID))
		assertDecimal(t, "100", h.balance(rapido.WalletID))
	})

	t.Run("unknown processor", func(t *testing.T) {
		h := newHarness(t)
		alice, _ := h.user("alice", "+2250700000001", "1000")
		h.merchant("rapido", &biller)

		_, err := h.settlement.PayMerchant(h.ctx, ports.PayMerchantRequest{
			ActorID: alice.ID, MerchantCode: "rapido", Amount: dec("100"),
			Details: map[string]string{"cardNumber": "4242"},
		})
		assert.Equal(t, "CFG_001", apperror.CodeOf(err))
	})
}

func TestChargeCustomer(t *testing.T) {
	h := newHarness(t)
	customer, customerWallet := h.user("alice", "+2250700000001", "1000")
	shopActor, shop := h.merchant("boutique", nil)
	h.feeRule(domain.FeeRule{TransactionType: domain.TransactionTypePayment, Percentage: dec("1")})

	res, err := h.settlement.ChargeCustomer(h.ctx, ports.ChargeCustomerRequest{
		MerchantActorID: shopActor.ID,
		CustomerPhone:   "+2250700000001",
		Amount:          dec("200"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusSuccess, res.Transaction.Status)
	assertDecimal(t, "798.00", h.balance(customerWallet.ID), "customer pays the fee")
	assertDecimal(t, "200", h.balance(shop.WalletID))

	_, err = h.settlement.ChargeCustomer(h.ctx, ports.ChargeCustomerRequest{
		MerchantActorID: customer.ID,
		CustomerPhone:   "+2250700000001",
		Amount:          dec("10"),
	})
	assert.Equal(t, "PAY_008", apperror.CodeOf(err), "only merchants may charge")

	_, err = h.settlement.ChargeCustomer(h.ctx, ports.ChargeCustomerRequest{
		MerchantActorID: shopActor.ID,
		CustomerPhone:   "+2259999999999",
		Amount:          dec("10"),
	})
	assert.Equal(t, "PAY_004", apperror.CodeOf(err))
}

func TestTopUp_PendingThenPollerCreditsOnce(t *testing.T) {
	h := newHarness(t)
	alice, aliceWallet := h.user("alice", "+2250700000001", "")
	gw := h.gateway("djamo")
	gw.result = &ports.GatewayResult{
		Status:     domain.TransactionStatusPending,
		ExternalID: "dj-top-1",
		Raw:        map[string]any{"id": "dj-top-1", "urlTransaction": "https://pay.djamo.test/t/1"},
	}
	h.feeRule(domain.FeeRule{TransactionType: domain.TransactionTypeTopup, Percentage: dec("1")})

	res, err := h.settlement.TopUp(h.ctx, ports.TopUpRequest{ActorID: alice.ID, Partner: "djamo", Amount: dec("5000"), Detail: "+2250700000001"})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, res.Transaction.Status)
	assert.Equal(t, "https://pay.djamo.test/t/1", res.PaymentURL)
	assertDecimal(t, "0", h.balance(aliceWallet.ID), "no credit before confirmation")

	check, err := h.store.StatusChecks().GetByOrderID(h.ctx, res.Transaction.OrderID)
	require.NoError(t, err)
	require.NotNil(t, check)
	assert.Equal(t, domain.TransactionStatusPending, check.Status)

	gw.status = domain.TransactionStatusSuccess
	report, err := h.recon.RunOnce(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Advanced)
	assert.Equal(t, []string{"dj-top-1"}, gw.queries)

	txn := h.txn(res.Transaction.OrderID)
	assert.Equal(t, domain.TransactionStatusSuccess, txn.Status)
	assertDecimal(t, "4950.00", h.balance(aliceWallet.ID), "credited once, fee charged to the receiver")
	assertDecimal(t, "50.00", h.balance(h.platform.ID))
	assertDecimal(t, "50.00", txn.FeeApplied)

	report, err = h.recon.RunOnce(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Checked, "settled checks are not polled again")
	assertDecimal(t, "4950.00", h.balance(aliceWallet.ID))
	h.assertChain(aliceWallet.ID, h.platform.ID)
}

func TestTopUp_ImmediateSuccess(t *testing.T) {
	h := newHarness(t)
	alice, aliceWallet := h.user("alice", "+2250700000001", "")
	gw := h.gateway("mtn_money")
	gw.result = &ports.GatewayResult{Status: domain.TransactionStatusSuccess, ExternalID: "mtn-1", Raw: map[string]any{"payment_url": "https://mtn.test/p"}}

	res, err := h.settlement.TopUp(h.ctx, ports.TopUpRequest{ActorID: alice.ID, Partner: "mtn_money", Amount: dec("1000")})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusSuccess, res.Transaction.Status)
	assert.Equal(t, "https://mtn.test/p", res.PaymentURL)
	assertDecimal(t, "1000", h.balance(aliceWallet.ID))
	assert.Nil(t, res.Transaction.SenderWalletID)
}

func TestTopUp_Declined(t *testing.T) {
	h := newHarness(t)
	alice, aliceWallet := h.user("alice", "+2250700000001", "")
	gw := h.gateway("djamo")
	gw.result = &ports.GatewayResult{Status: domain.TransactionStatusFailed}

	_, err := h.settlement.TopUp(h.ctx, ports.TopUpRequest{ActorID: alice.ID, Partner: "djamo", Amount: dec("1000")})
	assert.Equal(t, "PAY_010", apperror.CodeOf(err))
	assertDecimal(t, "0", h.balance(aliceWallet.ID))
}

func TestResolve_IsIdempotentAndMonotonic(t *testing.T) {
	h := newHarness(t)
	alice, aliceWallet := h.user("alice", "+2250700000001", "")
	gw := h.gateway("djamo")
	gw.result = &ports.GatewayResult{Status: domain.TransactionStatusPending, ExternalID: "dj-9"}
	h.feeRule(domain.FeeRule{TransactionType: domain.TransactionTypeTopup, FixedAmount: dec("10")})

	res, err := h.settlement.TopUp(h.ctx, ports.TopUpRequest{ActorID: alice.ID, Partner: "djamo", Amount: dec("500")})
	require.NoError(t, err)
	orderID := res.Transaction.OrderID

	first, err := h.settlement.Resolve(h.ctx, ports.Resolution{OrderID: orderID, Status: domain.TransactionStatusSuccess, Source: "webhook"})
	require.NoError(t, err)
	assert.False(t, first.AlreadyFinal)
	entries := len(h.entries(aliceWallet.ID))

	for _, status := range []domain.TransactionStatus{domain.TransactionStatusSuccess, domain.TransactionStatusFailed, domain.TransactionStatusCancelled} {
		again, err := h.settlement.Resolve(h.ctx, ports.Resolution{OrderID: orderID, Status: status, Source: "webhook"})
		require.NoError(t, err)
		assert.True(t, again.AlreadyFinal)
		assert.Equal(t, domain.TransactionStatusSuccess, again.Transaction.Status)
	}

	assert.Len(t, h.entries(aliceWallet.ID), entries, "no second credit or fee")
	assertDecimal(t, "490", h.balance(aliceWallet.ID))
	assertDecimal(t, "10", h.balance(h.platform.ID))
}

func TestResolve_PendingOnlyTouchesCheck(t *testing.T) {
	h := newHarness(t)
	alice, _ := h.user("alice", "+2250700000001", "")
	gw := h.gateway("djamo")
	gw.result = &ports.GatewayResult{Status: domain.TransactionStatusPending, ExternalID: "dj-5"}

	res, err := h.settlement.TopUp(h.ctx, ports.TopUpRequest{ActorID: alice.ID, Partner: "djamo", Amount: dec("500")})
	require.NoError(t, err)

	out, err := h.settlement.Resolve(h.ctx, ports.Resolution{OrderID: res.Transaction.OrderID, Status: domain.TransactionStatusPending, Source: "webhook"})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, out.Transaction.Status)

	check, err := h.store.StatusChecks().GetByOrderID(h.ctx, res.Transaction.OrderID)
	require.NoError(t, err)
	assert.NotNil(t, check.LastCheckedAt)

	_, err = h.settlement.Resolve(h.ctx, ports.Resolution{OrderID: "PLZ-20240101-000-000-AAA", Status: domain.TransactionStatusSuccess})
	assert.Equal(t, "PAY_004", apperror.CodeOf(err))
}

func TestGetTransactionHistoryAndDetail(t *testing.T) {
	h := newHarness(t)
	alice, aliceWallet := h.user("alice", "+2250700000001", "1000")
	bob, _ := h.user("bob", "+2250700000002", "")
	carol, _ := h.user("carol", "+2250700000003", "")

	var last *domain.Transaction
	for i := 0; i < 3; i++ {
		res, err := h.settlement.SendMoney(h.ctx, ports.SendMoneyRequest{ActorID: alice.ID, Receiver: "bob", Amount: dec("10")})
		require.NoError(t, err)
		last = res.Transaction
	}

	page, total, err := h.settlement.GetTransactionHistory(h.ctx, ports.HistoryParams{ActorID: alice.ID, Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, page, 2)

	success := domain.TransactionStatusSuccess
	_, total, err = h.settlement.GetTransactionHistory(h.ctx, ports.HistoryParams{ActorID: bob.ID, Status: &success})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	detail, err := h.settlement.GetTransactionDetail(h.ctx, last.OrderID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, last.ID, detail.Transaction.ID)
	require.Len(t, detail.Entries, 1)
	assert.Equal(t, aliceWallet.ID, detail.Entries[0].WalletID)

	_, err = h.settlement.GetTransactionDetail(h.ctx, last.OrderID, carol.ID)
	assert.Equal(t, "PAY_004", apperror.CodeOf(err), "non-parties cannot see the transaction")
}
