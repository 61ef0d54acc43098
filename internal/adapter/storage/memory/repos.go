package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"pliz-ledger/internal/core/domain"
	"pliz-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ActorRepo implements ports.ActorRepository.
type ActorRepo struct{ s *Store }

func (r *ActorRepo) Create(ctx context.Context, a *domain.Actor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.data.actors {
		if strings.EqualFold(existing.Username, a.Username) || existing.PhoneNumber == a.PhoneNumber {
			return fmt.Errorf("insert actor: username or phone already exists")
		}
	}
	r.s.data.actors[a.ID] = *a
	return nil
}

func (r *ActorRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Actor, error) {
	return r.find(func(a domain.Actor) bool { return a.ID == id }), nil
}

func (r *ActorRepo) GetByUsername(ctx context.Context, username string) (*domain.Actor, error) {
	return r.find(func(a domain.Actor) bool { return strings.EqualFold(a.Username, username) }), nil
}

func (r *ActorRepo) GetByPhone(ctx context.Context, phone string) (*domain.Actor, error) {
	return r.find(func(a domain.Actor) bool { return a.PhoneNumber == phone }), nil
}

func (r *ActorRepo) find(match func(domain.Actor) bool) *domain.Actor {
	var out *domain.Actor
	r.s.read(func(d *state) {
		for _, a := range d.actors {
			if match(a) {
				out = &a
				return
			}
		}
	})
	return out
}

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct{ s *Store }

func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.data.wallets {
		if w.IsPlatform && existing.IsPlatform {
			return fmt.Errorf("insert wallet: platform wallet already exists")
		}
		if existing.OwnerType == w.OwnerType && existing.OwnerID == w.OwnerID {
			return fmt.Errorf("insert wallet: owner already has a wallet")
		}
	}
	r.s.data.wallets[w.ID] = *w
	return nil
}

func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	return r.find(func(w domain.Wallet) bool { return w.ID == id }), nil
}

func (r *WalletRepo) GetByOwner(ctx context.Context, ownerType domain.OwnerType, ownerID uuid.UUID) (*domain.Wallet, error) {
	return r.find(func(w domain.Wallet) bool { return w.OwnerType == ownerType && w.OwnerID == ownerID }), nil
}

func (r *WalletRepo) GetByPhone(ctx context.Context, phone string) (*domain.Wallet, error) {
	return r.find(func(w domain.Wallet) bool { return w.PhoneNumber != "" && w.PhoneNumber == phone }), nil
}

func (r *WalletRepo) GetPlatform(ctx context.Context) (*domain.Wallet, error) {
	return r.find(func(w domain.Wallet) bool { return w.IsPlatform }), nil
}

// GetByIDForUpdate needs no extra locking: the open transaction already
// excludes every other writer.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	if err := r.s.checkTx(tx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *WalletRepo) find(match func(domain.Wallet) bool) *domain.Wallet {
	var out *domain.Wallet
	r.s.read(func(d *state) {
		for _, w := range d.wallets {
			if match(w) {
				out = &w
				return
			}
		}
	})
	return out
}

// MerchantRepo implements ports.MerchantRepository.
type MerchantRepo struct{ s *Store }

func (r *MerchantRepo) Create(ctx context.Context, m *domain.Merchant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.data.merchants {
		if strings.EqualFold(existing.MerchantCode, m.MerchantCode) {
			return fmt.Errorf("insert merchant: code %q already exists", m.MerchantCode)
		}
	}
	r.s.data.merchants[m.ID] = *m
	return nil
}

func (r *MerchantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	return r.find(func(m domain.Merchant) bool { return m.ID == id }), nil
}

func (r *MerchantRepo) GetByCode(ctx context.Context, code string) (*domain.Merchant, error) {
	return r.find(func(m domain.Merchant) bool { return strings.EqualFold(m.MerchantCode, code) }), nil
}

func (r *MerchantRepo) GetByActorID(ctx context.Context, actorID uuid.UUID) (*domain.Merchant, error) {
	return r.find(func(m domain.Merchant) bool { return m.ActorID != nil && *m.ActorID == actorID }), nil
}

func (r *MerchantRepo) find(match func(domain.Merchant) bool) *domain.Merchant {
	var out *domain.Merchant
	r.s.read(func(d *state) {
		for _, m := range d.merchants {
			if match(m) {
				out = &m
				return
			}
		}
	})
	return out
}

// BankRepo implements ports.BankRepository.
type BankRepo struct{ s *Store }

func (r *BankRepo) Create(ctx context.Context, b *domain.Bank) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.banks[b.ID] = *b
	return nil
}

func (r *BankRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Bank, error) {
	return r.find(func(b domain.Bank) bool { return b.ID == id }), nil
}

func (r *BankRepo) GetByPartnerCode(ctx context.Context, code string) (*domain.Bank, error) {
	return r.find(func(b domain.Bank) bool { return b.PartnerCode == code }), nil
}

func (r *BankRepo) find(match func(domain.Bank) bool) *domain.Bank {
	var out *domain.Bank
	r.s.read(func(d *state) {
		for _, b := range d.banks {
			if match(b) {
				out = &b
				return
			}
		}
	})
	return out
}

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct{ s *Store }

func (r *LedgerRepo) Latest(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (*domain.BalanceHistoryEntry, error) {
	if err := r.s.checkTx(tx); err != nil {
		return nil, err
	}
	var out *domain.BalanceHistoryEntry
	r.s.read(func(d *state) {
		chain := d.ledger[walletID]
		if len(chain) > 0 {
			e := chain[len(chain)-1]
			out = &e
		}
	})
	return out, nil
}

func (r *LedgerRepo) CurrentBalance(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	balance := decimal.Zero
	r.s.read(func(d *state) {
		chain := d.ledger[walletID]
		if len(chain) > 0 {
			balance = chain[len(chain)-1].BalanceAfter
		}
	})
	return balance, nil
}

func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.BalanceHistoryEntry) error {
	return r.s.write(tx, func(d *state) error {
		chain := d.ledger[e.WalletID]
		var next int64 = 1
		if len(chain) > 0 {
			next = chain[len(chain)-1].Sequence + 1
		}
		if e.Sequence != next {
			return fmt.Errorf("append balance entry: sequence %d, want %d", e.Sequence, next)
		}
		d.ledger[e.WalletID] = append(chain, *e)
		return nil
	})
}

func (r *LedgerRepo) ListByTransaction(ctx context.Context, transactionID, walletID uuid.UUID) ([]domain.BalanceHistoryEntry, error) {
	var out []domain.BalanceHistoryEntry
	r.s.read(func(d *state) {
		for _, e := range d.ledger[walletID] {
			if e.TransactionID != nil && *e.TransactionID == transactionID {
				out = append(out, e)
			}
		}
	})
	return out, nil
}

func (r *LedgerRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.BalanceHistoryEntry, error) {
	var out []domain.BalanceHistoryEntry
	r.s.read(func(d *state) { out = slices.Clone(d.ledger[walletID]) })
	return out, nil
}

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct{ s *Store }

func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	return r.s.write(tx, func(d *state) error {
		for _, existing := range d.transactions {
			if existing.OrderID == t.OrderID {
				return domain.ErrDuplicateOrderID
			}
		}
		stored := *t
		stored.AdditionalData = maps.Clone(t.AdditionalData)
		d.transactions[t.ID] = stored
		return nil
	})
}

func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return r.find(func(t domain.Transaction) bool { return t.ID == id }), nil
}

func (r *TransactionRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.Transaction, error) {
	return r.find(func(t domain.Transaction) bool { return t.OrderID == orderID }), nil
}

func (r *TransactionRepo) GetByOrderIDForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (*domain.Transaction, error) {
	if err := r.s.checkTx(tx); err != nil {
		return nil, err
	}
	return r.GetByOrderID(ctx, orderID)
}

func (r *TransactionRepo) CompareAndSetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.TransactionStatus) (bool, error) {
	var swapped bool
	err := r.update(tx, id, func(t *domain.Transaction) {
		if t.Status == from {
			t.Status = to
			swapped = true
		}
	})
	return swapped, err
}

func (r *TransactionRepo) MarkLedgerApplied(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	return r.update(tx, id, func(t *domain.Transaction) { t.LedgerApplied = true })
}

func (r *TransactionRepo) SetFeeApplied(ctx context.Context, tx pgx.Tx, id uuid.UUID, fee decimal.Decimal) error {
	return r.update(tx, id, func(t *domain.Transaction) { t.FeeApplied = fee })
}

func (r *TransactionRepo) SetExternalReference(ctx context.Context, tx pgx.Tx, id uuid.UUID, ref string) error {
	return r.update(tx, id, func(t *domain.Transaction) { t.ExternalReference = &ref })
}

func (r *TransactionRepo) MergeAdditionalData(ctx context.Context, tx pgx.Tx, id uuid.UUID, data map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	return r.update(tx, id, func(t *domain.Transaction) {
		merged := maps.Clone(t.AdditionalData)
		if merged == nil {
			merged = make(map[string]any, len(data))
		}
		maps.Copy(merged, data)
		t.AdditionalData = merged
	})
}

func (r *TransactionRepo) SumPendingOutbound(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (decimal.Decimal, error) {
	if err := r.s.checkTx(tx); err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	r.s.read(func(d *state) {
		for _, t := range d.transactions {
			if t.SenderWalletID != nil && *t.SenderWalletID == walletID {
				total = total.Add(t.Reserved())
			}
		}
	})
	return total, nil
}

func (r *TransactionRepo) ListByWallet(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	matches := r.filter(func(t domain.Transaction) bool {
		if !t.InvolvesWallet(params.WalletID) {
			return false
		}
		if params.Status != nil && t.Status != *params.Status {
			return false
		}
		return params.Type == nil || t.Type == *params.Type
	})
	slices.SortFunc(matches, func(a, b domain.Transaction) int { return b.CreatedAt.Compare(a.CreatedAt) })

	total := int64(len(matches))
	start := (params.Page - 1) * params.PageSize
	if start < 0 || start >= len(matches) {
		return []domain.Transaction{}, total, nil
	}
	end := min(start+params.PageSize, len(matches))
	return matches[start:end], total, nil
}

func (r *TransactionRepo) ListStalePending(ctx context.Context, before time.Time, limit int) ([]domain.Transaction, error) {
	tracked := make(map[string]bool)
	r.s.read(func(d *state) {
		for _, c := range d.checks {
			tracked[c.OrderID] = true
		}
	})
	matches := r.filter(func(t domain.Transaction) bool {
		return t.Status == domain.TransactionStatusPending && !t.LedgerApplied &&
			t.CreatedAt.Before(before) && !tracked[t.OrderID]
	})
	slices.SortFunc(matches, func(a, b domain.Transaction) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (r *TransactionRepo) update(tx pgx.Tx, id uuid.UUID, fn func(t *domain.Transaction)) error {
	return r.s.write(tx, func(d *state) error {
		t, ok := d.transactions[id]
		if !ok {
			return fmt.Errorf("transaction %s not found", id)
		}
		fn(&t)
		t.UpdatedAt = r.s.now()
		d.transactions[id] = t
		return nil
	})
}

func (r *TransactionRepo) find(match func(domain.Transaction) bool) *domain.Transaction {
	found := r.filter(match)
	if len(found) == 0 {
		return nil
	}
	return &found[0]
}

func (r *TransactionRepo) filter(match func(domain.Transaction) bool) []domain.Transaction {
	var out []domain.Transaction
	r.s.read(func(d *state) {
		for _, t := range d.transactions {
			if match(t) {
				t.AdditionalData = maps.Clone(t.AdditionalData)
				out = append(out, t)
			}
		}
	})
	return out
}

// EventRepo implements ports.EventRepository.
type EventRepo struct{ s *Store }

func (r *EventRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.TransactionEvent) error {
	return r.s.write(tx, func(d *state) error {
		d.events = append(d.events, *e)
		return nil
	})
}

func (r *EventRepo) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]domain.TransactionEvent, error) {
	var out []domain.TransactionEvent
	r.s.read(func(d *state) {
		for _, e := range d.events {
			if e.TransactionID == transactionID {
				out = append(out, e)
			}
		}
	})
	return out, nil
}

// FeeRepo implements ports.FeeRepository.
type FeeRepo struct{ s *Store }

func (r *FeeRepo) ListFeeRules(ctx context.Context, txType domain.TransactionType, amount decimal.Decimal) ([]domain.FeeRule, error) {
	var out []domain.FeeRule
	r.s.read(func(d *state) {
		for _, rule := range d.feeRules {
			if rule.TransactionType != txType || !rule.IsActive || !rule.Covers(amount) {
				continue
			}
			if rule.TariffGridID != nil && !d.grids[*rule.TariffGridID] {
				continue
			}
			out = append(out, rule)
		}
	})
	slices.SortStableFunc(out, func(a, b domain.FeeRule) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (r *FeeRepo) ListDistributionRules(ctx context.Context, txType domain.TransactionType) ([]domain.FeeDistributionRule, error) {
	var out []domain.FeeDistributionRule
	r.s.read(func(d *state) {
		for _, rule := range d.distRules {
			if rule.TransactionType == txType && rule.IsActive {
				out = append(out, rule)
			}
		}
	})
	return out, nil
}

func (r *FeeRepo) CreateFeeRule(ctx context.Context, rule *domain.FeeRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.feeRules = append(r.s.data.feeRules, *rule)
	return nil
}

func (r *FeeRepo) CreateDistributionRule(ctx context.Context, rule *domain.FeeDistributionRule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("insert distribution rule: %w", err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.distRules = append(r.s.data.distRules, *rule)
	return nil
}

func (r *FeeRepo) CreateDistribution(ctx context.Context, tx pgx.Tx, dist *domain.FeeDistribution) error {
	return r.s.write(tx, func(d *state) error {
		d.distributions = append(d.distributions, *dist)
		return nil
	})
}

func (r *FeeRepo) ListDistributions(ctx context.Context, transactionID uuid.UUID) ([]domain.FeeDistribution, error) {
	var out []domain.FeeDistribution
	r.s.read(func(d *state) {
		for _, dist := range d.distributions {
			if dist.TransactionID == transactionID {
				out = append(out, dist)
			}
		}
	})
	return out, nil
}

// StatusCheckRepo implements ports.StatusCheckRepository.
type StatusCheckRepo struct{ s *Store }

func (r *StatusCheckRepo) Register(ctx context.Context, tx pgx.Tx, c *domain.TransactionStatusCheck) error {
	return r.s.write(tx, func(d *state) error {
		for id, existing := range d.checks {
			if existing.ExternalReference == c.ExternalReference {
				existing.OrderID = c.OrderID
				existing.Partner = c.Partner
				existing.Status = c.Status
				d.checks[id] = existing
				return nil
			}
		}
		d.checks[c.ID] = *c
		return nil
	})
}

func (r *StatusCheckRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.TransactionStatusCheck, error) {
	var out *domain.TransactionStatusCheck
	r.s.read(func(d *state) {
		for _, c := range d.checks {
			if c.OrderID == orderID {
				out = &c
				return
			}
		}
	})
	return out, nil
}

func (r *StatusCheckRepo) UpdateStatusByOrderID(ctx context.Context, tx pgx.Tx, orderID string, status domain.TransactionStatus) error {
	return r.s.write(tx, func(d *state) error {
		for id, c := range d.checks {
			if c.OrderID == orderID {
				c.Status = status
				d.checks[id] = c
			}
		}
		return nil
	})
}

func (r *StatusCheckRepo) ListPending(ctx context.Context, limit int) ([]domain.TransactionStatusCheck, error) {
	var out []domain.TransactionStatusCheck
	r.s.read(func(d *state) {
		for _, c := range d.checks {
			if c.Status == domain.TransactionStatusPending {
				out = append(out, c)
			}
		}
	})
	slices.SortFunc(out, func(a, b domain.TransactionStatusCheck) int {
		switch {
		case a.LastCheckedAt == nil && b.LastCheckedAt != nil:
			return -1
		case a.LastCheckedAt != nil && b.LastCheckedAt == nil:
			return 1
		case a.LastCheckedAt != nil && b.LastCheckedAt != nil:
			if c := a.LastCheckedAt.Compare(*b.LastCheckedAt); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *StatusCheckRepo) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.data.checks[id]
	if !ok {
		return fmt.Errorf("status check %s not found", id)
	}
	c.LastCheckedAt = &at
	r.s.data.checks[id] = c
	return nil
}

var (
	_ ports.ActorRepository       = (*ActorRepo)(nil)
	_ ports.WalletRepository      = (*WalletRepo)(nil)
	_ ports.MerchantRepository    = (*MerchantRepo)(nil)
	_ ports.BankRepository        = (*BankRepo)(nil)
	_ ports.LedgerRepository      = (*LedgerRepo)(nil)
	_ ports.TransactionRepository = (*TransactionRepo)(nil)
	_ ports.EventRepository       = (*EventRepo)(nil)
	_ ports.FeeRepository         = (*FeeRepo)(nil)
	_ ports.StatusCheckRepository = (*StatusCheckRepo)(nil)
	_ ports.DBTransactor          = (*Store)(nil)
	_ ports.HealthChecker         = (*Store)(nil)
)
