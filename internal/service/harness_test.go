package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"pliz-ledger/internal/adapter/storage/memory"
	"pliz-ledger/internal/core/domain"
	"pliz-ledger/internal/core/ports"
	"pliz-ledger/pkg/apperror"
	"pliz-ledger/pkg/retry"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// mockTx implements pgx.Tx for mock-backed tests.
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

// stubGateway is a scripted partner.
type stubGateway struct {
	name string

	mu        sync.Mutex
	result    *ports.GatewayResult
	err       error
	status    domain.TransactionStatus
	queryErr  error
	initCalls int
	queries   []string
	onCall    func() // runs inside every initiation call
}

func (g *stubGateway) Name() string { return g.name }

func (g *stubGateway) InitiateTopUp(ctx context.Context, req ports.GatewayTopUpRequest) (*ports.GatewayResult, error) {
	return g.initiate()
}

func (g *stubGateway) InitiateTransfer(ctx context.Context, req ports.GatewayTransferRequest) (*ports.GatewayResult, error) {
	return g.initiate()
}

func (g *stubGateway) ProcessPayment(ctx context.Context, req ports.MerchantPaymentRequest) (*ports.GatewayResult, error) {
	return g.initiate()
}

func (g *stubGateway) QueryStatus(ctx context.Context, externalRef string) (domain.TransactionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queries = append(g.queries, externalRef)
	return g.status, g.queryErr
}

func (g *stubGateway) initiate() (*ports.GatewayResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initCalls++
	if g.onCall != nil {
		g.onCall()
	}
	return g.result, g.err
}

type stubRegistry map[string]*stubGateway

func (r stubRegistry) Get(partner string) (ports.PartnerGateway, error) {
	g, ok := r[partner]
	if !ok {
		return nil, apperror.ErrUnknownPartner(partner)
	}
	return g, nil
}

type stubProcessors map[string]*stubGateway

func (r stubProcessors) Get(processor string) (ports.MerchantProcessor, error) {
	g, ok := r[processor]
	if !ok {
		return nil, apperror.ErrUnknownPartner(processor)
	}
	return g, nil
}

// timeoutErr looks like a client timeout.
type timeoutErr struct{}

func (timeoutErr) Error() string { return "partner timed out" }
func (timeoutErr) Timeout() bool { return true }

// recordingNotifier keeps every notification.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (n *recordingNotifier) Notify(ctx context.Context, msg domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// harness wires the services over the in-memory store.
type harness struct {
	t          *testing.T
	ctx        context.Context
	store      *memory.Store
	ledger     *LedgerService
	manager    *TransactionManager
	fees       *FeeEngine
	settlement *SettlementServiceImpl
	recon      *ReconciliationServiceImpl
	notifier   *recordingNotifier
	gateways   stubRegistry
	processors stubProcessors
	platform   *domain.Wallet
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s := memory.NewStore()
	log := newTestLogger()

	h := &harness{
		t:          t,
		ctx:        context.Background(),
		store:      s,
		notifier:   &recordingNotifier{},
		gateways:   stubRegistry{},
		processors: stubProcessors{},
	}
	h.ledger = NewLedgerService(s.Ledger(), log)
	h.manager = NewTransactionManager(s.Transactions(), s.Events(), s.Wallets(), h.notifier, log)
	h.fees = NewFeeEngine(s.Fees(), s.Wallets(), s.Merchants(), s.Banks(), s.Transactions(), h.ledger, log)
	h.settlement = NewSettlementService(SettlementDeps{
		Actors:       s.Actors(),
		Wallets:      s.Wallets(),
		Merchants:    s.Merchants(),
		Banks:        s.Banks(),
		Transactions: s.Transactions(),
		Entries:      s.Ledger(),
		Checks:       s.StatusChecks(),
		Gateways:     h.gateways,
		Processors:   h.processors,
		Transactor:   s,
		Ledger:       h.ledger,
		Manager:      h.manager,
		Fees:         h.fees,
	}, SettlementConfig{
		GatewayTimeout: time.Second,
		Retry:          retry.Config{MaxRetries: 0},
	}, log)
	h.recon = NewReconciliationService(s.StatusChecks(), s.Transactions(), h.gateways, h.settlement,
		h.manager, s, ReconciliationConfig{BatchSize: 10, QueryTimeout: time.Second}, log)

	h.platform = &domain.Wallet{
		ID:         uuid.New(),
		OwnerType:  domain.OwnerTypePlatform,
		OwnerID:    uuid.New(),
		Currency:   domain.DefaultCurrency,
		IsPlatform: true,
	}
	require.NoError(t, s.Wallets().Create(h.ctx, h.platform))
	return h
}

func (h *harness) gateway(name string) *stubGateway {
	g := &stubGateway{name: name}
	h.gateways[name] = g
	return g
}

// user creates an active actor with a wallet opened at balance.
func (h *harness) user(username, phone, balance string, opts ...func(*domain.Actor)) (*domain.Actor, *domain.Wallet) {
	return h.actor(domain.ActorTypeUser, username, phone, balance, opts...)
}

func subscribed(a *domain.Actor) { a.IsSubscribed = true }
func inactive(a *domain.Actor)   { a.IsActive = false }

func (h *harness) actor(actorType domain.ActorType, username, phone, balance string, opts ...func(*domain.Actor)) (*domain.Actor, *domain.Wallet) {
	h.t.Helper()
	actor := &domain.Actor{
		ID:          uuid.New(),
		Type:        actorType,
		Username:    username,
		PhoneNumber: phone,
		IsActive:    true,
		CreatedAt:   time.Now(),
	}
	for _, opt := range opts {
		opt(actor)
	}
	require.NoError(h.t, h.store.Actors().Create(h.ctx, actor))

	ownerType := domain.OwnerTypeUser
	if actorType == domain.ActorTypeMerchant {
		ownerType = domain.OwnerTypeMerchant
	}
	wallet := &domain.Wallet{
		ID:          uuid.New(),
		OwnerType:   ownerType,
		OwnerID:     actor.ID,
		PhoneNumber: phone,
		Currency:    domain.DefaultCurrency,
		CreatedAt:   time.Now(),
	}
	require.NoError(h.t, h.store.Wallets().Create(h.ctx, wallet))
	h.fund(wallet.ID, balance)
	return actor, wallet
}

func (h *harness) fund(walletID uuid.UUID, balance string) {
	h.t.Helper()
	if balance == "" || dec(balance).IsZero() {
		return
	}
	tx, err := h.store.Begin(h.ctx)
	require.NoError(h.t, err)
	require.NoError(h.t, h.ledger.Initialize(h.ctx, tx, walletID, dec(balance), "opening balance"))
	require.NoError(h.t, tx.Commit(h.ctx))
}

// merchant creates a merchant actor, its wallet and its merchant profile.
func (h *harness) merchant(code string, processor *string) (*domain.Actor, *domain.Merchant) {
	h.t.Helper()
	actor, wallet := h.actor(domain.ActorTypeMerchant, code+"-shop", "+22500"+code, "")
	m := &domain.Merchant{
		ID:           uuid.New(),
		ActorID:      &actor.ID,
		WalletID:     wallet.ID,
		MerchantCode: code,
		BusinessName: code + " shop",
		Processor:    processor,
		CreatedAt:    time.Now(),
	}
	require.NoError(h.t, h.store.Merchants().Create(h.ctx, m))
	return actor, m
}

func (h *harness) feeRule(rule domain.FeeRule) {
	h.t.Helper()
	rule.ID = uuid.New()
	rule.IsActive = true
	rule.CreatedAt = time.Now()
	require.NoError(h.t, h.store.Fees().CreateFeeRule(h.ctx, &rule))
}

func (h *harness) balance(walletID uuid.UUID) decimal.Decimal {
	h.t.Helper()
	b, err := h.ledger.CurrentBalance(h.ctx, walletID)
	require.NoError(h.t, err)
	return b
}

func (h *harness) entries(walletID uuid.UUID) []domain.BalanceHistoryEntry {
	h.t.Helper()
	entries, err := h.store.Ledger().ListByWallet(h.ctx, walletID)
	require.NoError(h.t, err)
	return entries
}

func (h *harness) txn(orderID string) *domain.Transaction {
	h.t.Helper()
	txn, err := h.store.Transactions().GetByOrderID(h.ctx, orderID)
	require.NoError(h.t, err)
	require.NotNil(h.t, txn)
	return txn
}

// assertChain checks every wallet's history links before to after.
func (h *harness) assertChain(walletIDs ...uuid.UUID) {
	h.t.Helper()
	for _, id := range walletIDs {
		entries := h.entries(id)
		for i := 1; i < len(entries); i++ {
			require.True(h.t, entries[i-1].BalanceAfter.Equal(entries[i].BalanceBefore),
				"wallet %s entry %d breaks the chain", id, i)
			require.Equal(h.t, entries[i-1].Sequence+1, entries[i].Sequence)
		}
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

// pending records a PENDING transaction without touching the ledger.
func (h *harness) pending(p PendingParams) *domain.Transaction {
	h.t.Helper()
	tx, err := h.store.Begin(h.ctx)
	require.NoError(h.t, err)
	txn, err := h.manager.CreatePending(h.ctx, tx, p)
	require.NoError(h.t, err)
	require.NoError(h.t, tx.Commit(h.ctx))
	return txn
}
