package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrOpen            = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config holds breaker thresholds.
type Config struct {
	Name             string
	MaxRequests      uint32        // probes allowed while half-open
	Interval         time.Duration // counter reset period while closed
	Timeout          time.Duration // open -> half-open delay
	FailureThreshold uint32
	SuccessThreshold uint32
	IsFailure        func(err error) bool
}

// DefaultConfig returns thresholds suited to partner HTTP calls.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      1,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 1,
		IsFailure: func(err error) bool {
			return err != nil
		},
	}
}

type counts struct {
	requests             uint32
	consecutiveSuccesses uint32
	consecutiveFailures  uint32
}

// Breaker guards calls to a single downstream.
type Breaker struct {
	config Config
	log    zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	state  State
	counts counts
	expiry time.Time
}

// New creates a closed breaker.
func New(config Config, log zerolog.Logger) *Breaker {
	if config.IsFailure == nil {
		config.IsFailure = DefaultConfig(config.Name).IsFailure
	}
	b := &Breaker{config: config, log: log, now: time.Now, state: StateClosed}
	b.expiry = b.now().Add(config.Interval)
	return b
}

// Execute runs fn unless the breaker is open.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn(ctx)
	b.after(err)
	return err
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	switch b.state {
	case StateClosed:
		if b.expiry.Before(now) {
			b.counts = counts{}
			b.expiry = now.Add(b.config.Interval)
		}
	case StateOpen:
		if !b.expiry.Before(now) {
			return ErrOpen
		}
		b.setState(StateHalfOpen)
		b.counts = counts{}
	case StateHalfOpen:
		if b.counts.requests >= b.config.MaxRequests {
			return ErrTooManyRequests
		}
	}
	b.counts.requests++
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.config.IsFailure(err) {
		b.counts.consecutiveFailures++
		b.counts.consecutiveSuccesses = 0
		if b.state == StateHalfOpen ||
			(b.state == StateClosed && b.counts.consecutiveFailures >= b.config.FailureThreshold) {
			b.setState(StateOpen)
			b.expiry = b.now().Add(b.config.Timeout)
		}
		return
	}

	b.counts.consecutiveSuccesses++
	b.counts.consecutiveFailures = 0
	if b.state == StateHalfOpen && b.counts.consecutiveSuccesses >= b.config.SuccessThreshold {
		b.setState(StateClosed)
		b.counts = counts{}
		b.expiry = b.now().Add(b.config.Interval)
	}
}

func (b *Breaker) setState(s State) {
	if b.state == s {
		return
	}
	b.log.Warn().
		Str("breaker", b.config.Name).
		Str("from", b.state.String()).
		Str("to", s.String()).
		Msg("circuit breaker state changed")
	b.state = s
}

// Manager hands out one breaker per name.
type Manager struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	config   func(name string) Config
	log      zerolog.Logger
}

// NewManager creates a Manager that builds breakers with DefaultConfig.
func NewManager(log zerolog.Logger) *Manager {
	return NewManagerWithConfig(DefaultConfig, log)
}

// NewManagerWithConfig creates a Manager that builds breakers with config.
func NewManagerWithConfig(config func(name string) Config, log zerolog.Logger) *Manager {
	return &Manager{breakers: make(map[string]*Breaker), config: config, log: log}
}

// Get returns the breaker for name, creating it on first use.
func (m *Manager) Get(name string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.breakers[name]; ok {
		return b
	}
	b := New(m.config(name), m.log)
	m.breakers[name] = b
	return b
}

// Execute runs fn behind the named breaker.
func (m *Manager) Execute(ctx context.Context, name string, fn func(context.Context) error) error {
	return m.Get(name).Execute(ctx, fn)
}
