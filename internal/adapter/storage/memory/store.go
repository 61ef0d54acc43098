// Package memory is an in-process implementation of the storage ports.
// It backs the "memory" database driver and the settlement scenario
// tests. Transactions are serialized: Begin takes a store-wide lock
// that stands in for row locks, and Rollback restores a snapshot, so
// writes made outside a transaction while one is open are discarded if
// it rolls back.
package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"pliz-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrNotInTransaction is returned when a tx-scoped method receives a
// transaction that is not an open transaction of this store.
var ErrNotInTransaction = errors.New("memory: not inside an open transaction")

type state struct {
	actors        map[uuid.UUID]domain.Actor
	wallets       map[uuid.UUID]domain.Wallet
	merchants     map[uuid.UUID]domain.Merchant
	banks         map[uuid.UUID]domain.Bank
	transactions  map[uuid.UUID]domain.Transaction
	ledger        map[uuid.UUID][]domain.BalanceHistoryEntry
	events        []domain.TransactionEvent
	grids         map[uuid.UUID]bool
	feeRules      []domain.FeeRule
	distRules     []domain.FeeDistributionRule
	distributions []domain.FeeDistribution
	checks        map[uuid.UUID]domain.TransactionStatusCheck
}

func newState() state {
	return state{
		actors:       make(map[uuid.UUID]domain.Actor),
		wallets:      make(map[uuid.UUID]domain.Wallet),
		merchants:    make(map[uuid.UUID]domain.Merchant),
		banks:        make(map[uuid.UUID]domain.Bank),
		transactions: make(map[uuid.UUID]domain.Transaction),
		ledger:       make(map[uuid.UUID][]domain.BalanceHistoryEntry),
		grids:        make(map[uuid.UUID]bool),
		checks:       make(map[uuid.UUID]domain.TransactionStatusCheck),
	}
}

func (s state) clone() state {
	ledger := make(map[uuid.UUID][]domain.BalanceHistoryEntry, len(s.ledger))
	for k, v := range s.ledger {
		ledger[k] = slices.Clone(v)
	}
	return state{
		actors:        maps.Clone(s.actors),
		wallets:       maps.Clone(s.wallets),
		merchants:     maps.Clone(s.merchants),
		banks:         maps.Clone(s.banks),
		transactions:  maps.Clone(s.transactions),
		ledger:        ledger,
		events:        slices.Clone(s.events),
		grids:         maps.Clone(s.grids),
		feeRules:      slices.Clone(s.feeRules),
		distRules:     slices.Clone(s.distRules),
		distributions: slices.Clone(s.distributions),
		checks:        maps.Clone(s.checks),
	}
}

// Store holds all tables. Use the accessor methods to obtain the
// repository views.
type Store struct {
	mu    sync.RWMutex
	data  state
	txSem chan struct{}
	now   func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		data:  newState(),
		txSem: make(chan struct{}, 1),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Begin implements ports.DBTransactor. It blocks until no other
// transaction is open or ctx is done.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	select {
	case s.txSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	return &Tx{store: s, snapshot: snapshot}, nil
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(context.Context) error { return nil }

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "memory" }

func (s *Store) checkTx(tx pgx.Tx) error {
	t, ok := tx.(*Tx)
	if !ok || t.store != s || t.done {
		return ErrNotInTransaction
	}
	return nil
}

// write runs fn under the data lock after validating tx.
func (s *Store) write(tx pgx.Tx, fn func(d *state) error) error {
	if err := s.checkTx(tx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.data)
}

func (s *Store) read(fn func(d *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.data)
}

// SetTariffGridActive creates or toggles a tariff grid.
func (s *Store) SetTariffGridActive(id uuid.UUID, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.grids[id] = active
}

// Repository views.

func (s *Store) Actors() *ActorRepo             { return &ActorRepo{s: s} }
func (s *Store) Wallets() *WalletRepo           { return &WalletRepo{s: s} }
func (s *Store) Merchants() *MerchantRepo       { return &MerchantRepo{s: s} }
func (s *Store) Banks() *BankRepo               { return &BankRepo{s: s} }
func (s *Store) Transactions() *TransactionRepo { return &TransactionRepo{s: s} }
func (s *Store) Ledger() *LedgerRepo            { return &LedgerRepo{s: s} }
func (s *Store) Events() *EventRepo             { return &EventRepo{s: s} }
func (s *Store) Fees() *FeeRepo                 { return &FeeRepo{s: s} }
func (s *Store) StatusChecks() *StatusCheckRepo { return &StatusCheckRepo{s: s} }
