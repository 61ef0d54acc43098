// Package app wires configuration into the storage, gateway, notifier
// and service graph shared by the binaries under cmd/.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"pliz-ledger/config"
	"pliz-ledger/internal/adapter/gateway"
	"pliz-ledger/internal/adapter/notifier"
	"pliz-ledger/internal/adapter/queue"
	"pliz-ledger/internal/adapter/storage/memory"
	pgStorage "pliz-ledger/internal/adapter/storage/postgres"
	redisStorage "pliz-ledger/internal/adapter/storage/redis"
	"pliz-ledger/internal/core/ports"
	"pliz-ledger/internal/service"
	"pliz-ledger/pkg/circuitbreaker"
	"pliz-ledger/pkg/logger"
	"pliz-ledger/pkg/retry"

	"github.com/hibiken/asynq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// App is the assembled service graph.
type App struct {
	Config *config.Config
	Log    zerolog.Logger

	Redis          *goredis.Client
	Settlement     *service.SettlementServiceImpl
	Reconciliation *service.ReconciliationServiceImpl
	Webhooks       *service.WebhookIngestor
	Tokens         *service.JWTTokenService
	Notifier       ports.Notifier
	HealthCheckers []ports.HealthChecker

	// Worker is nil unless queue.enabled is set.
	Worker *queue.Server

	closers []func()
}

// repositories is one storage backend seen through the ports.
type repositories struct {
	actors       ports.ActorRepository
	wallets      ports.WalletRepository
	merchants    ports.MerchantRepository
	banks        ports.BankRepository
	transactions ports.TransactionRepository
	entries      ports.LedgerRepository
	events       ports.EventRepository
	fees         ports.FeeRepository
	checks       ports.StatusCheckRepository
	transactor   ports.DBTransactor
	health       ports.HealthChecker
}

// Build connects every dependency named by cfg. On error, whatever was
// already opened is closed.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}
	built, err := a.build(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	return built, nil
}

func (a *App) build(ctx context.Context) (*App, error) {
	cfg, log := a.Config, a.Log

	repos, err := a.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	a.Redis, err = redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = a.Redis.Close() })
	a.HealthCheckers = []ports.HealthChecker{repos.health, redisStorage.NewHealthCheck(a.Redis)}

	if err := a.openNotifier(); err != nil {
		return nil, err
	}

	breakers := circuitbreaker.NewManagerWithConfig(gateway.BreakerConfig, logger.Component(log, "breaker"))
	gwOpts := gateway.Options{
		Timeout:    cfg.Settlement.GatewayTimeout,
		Currency:   cfg.Settlement.PlatformCurrency,
		HTTPClient: &http.Client{Timeout: cfg.Settlement.GatewayTimeout + 5*time.Second},
		Breakers:   breakers,
		Log:        log,
	}
	partners, err := gateway.NewRegistry(cfg.Partners, gwOpts)
	if err != nil {
		return nil, fmt.Errorf("build partner registry: %w", err)
	}
	processors, err := gateway.NewMerchantRegistry(cfg.Merchants, gwOpts)
	if err != nil {
		return nil, fmt.Errorf("build merchant registry: %w", err)
	}
	log.Info().Strs("partners", partners.Names()).Msg("partner gateways registered")

	svcLog := logger.Component(log, "settlement")
	ledger := service.NewLedgerService(repos.entries, logger.Component(log, "ledger"))
	manager := service.NewTransactionManager(repos.transactions, repos.events, repos.wallets, a.Notifier, logger.Component(log, "transactions"))
	fees := service.NewFeeEngine(repos.fees, repos.wallets, repos.merchants, repos.banks, repos.transactions, ledger, logger.Component(log, "fees"))

	a.Settlement = service.NewSettlementService(service.SettlementDeps{
		Actors:       repos.actors,
		Wallets:      repos.wallets,
		Merchants:    repos.merchants,
		Banks:        repos.banks,
		Transactions: repos.transactions,
		Entries:      repos.entries,
		Checks:       repos.checks,
		Gateways:     partners,
		Processors:   processors,
		Transactor:   repos.transactor,
		Ledger:       ledger,
		Manager:      manager,
		Fees:         fees,
	}, service.SettlementConfig{
		GatewayTimeout: cfg.Settlement.GatewayTimeout,
		Retry: retry.Config{
			MaxRetries: cfg.Settlement.MaxRetries,
			BaseDelay:  cfg.Settlement.RetryBaseDelay,
			MaxDelay:   2 * time.Second,
			Multiplier: 2.0,
			Jitter:     true,
			Retryable:  pgStorage.IsRetryable,
		},
	}, svcLog)

	a.Reconciliation = service.NewReconciliationService(
		repos.checks,
		repos.transactions,
		partners,
		a.Settlement,
		manager,
		repos.transactor,
		service.ReconciliationConfig{
			BatchSize:    cfg.Reconciliation.BatchSize,
			QueryTimeout: cfg.Reconciliation.QueryTimeout,
		},
		logger.Component(log, "reconciliation"),
	)

	secrets := make(map[string]string, len(cfg.Partners))
	for id, p := range cfg.Partners {
		secrets[id] = p.WebhookSecret
	}
	a.Webhooks = service.NewWebhookIngestor(
		secrets,
		service.NewHMACSignatureService(),
		repos.transactions,
		a.Settlement,
		redisStorage.NewIdempotencyCache(a.Redis),
		0,
		logger.Component(log, "webhook"),
	)

	a.Tokens = service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	return a, nil
}

func (a *App) openStorage(ctx context.Context) (repositories, error) {
	if a.Config.Database.Driver == "memory" {
		a.Log.Warn().Msg("using in-memory storage, data is lost on exit")
		s := memory.NewStore()
		return repositories{
			actors:       s.Actors(),
			wallets:      s.Wallets(),
			merchants:    s.Merchants(),
			banks:        s.Banks(),
			transactions: s.Transactions(),
			entries:      s.Ledger(),
			events:       s.Events(),
			fees:         s.Fees(),
			checks:       s.StatusChecks(),
			transactor:   s,
			health:       s,
		}, nil
	}

	pool, err := pgStorage.NewPool(ctx, a.Config.Database, a.Log)
	if err != nil {
		return repositories{}, fmt.Errorf("connect postgres: %w", err)
	}
	a.closers = append(a.closers, pool.Close)

	return repositories{
		actors:       pgStorage.NewActorRepo(pool),
		wallets:      pgStorage.NewWalletRepo(pool),
		merchants:    pgStorage.NewMerchantRepo(pool),
		banks:        pgStorage.NewBankRepo(pool),
		transactions: pgStorage.NewTransactionRepo(pool),
		entries:      pgStorage.NewLedgerRepo(pool),
		events:       pgStorage.NewEventRepo(pool),
		fees:         pgStorage.NewFeeRepo(pool),
		checks:       pgStorage.NewStatusCheckRepo(pool),
		transactor:   pgStorage.NewTransactor(pool),
		health:       pgStorage.NewHealthCheck(pool),
	}, nil
}

// openNotifier picks the delivery adapter. With the queue enabled,
// settlement only enqueues and the worker publishes through the base
// notifier.
func (a *App) openNotifier() error {
	cfg := a.Config
	log := logger.Component(a.Log, "notifier")

	var base ports.Notifier
	switch cfg.Notifier.Driver {
	case "nsq":
		n, err := notifier.NewNSQNotifier(cfg.Notifier.NSQDAddr, cfg.Notifier.Topic, log)
		if err != nil {
			return fmt.Errorf("connect nsqd: %w", err)
		}
		a.closers = append(a.closers, n.Close)
		base = n
	default:
		base = notifier.NewLogNotifier(log)
	}

	if !cfg.Queue.Enabled {
		a.Notifier = base
		return nil
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	client := asynq.NewClient(redisOpt)
	a.closers = append(a.closers, func() { _ = client.Close() })

	qlog := logger.Component(a.Log, "queue")
	a.Notifier = queue.NewAsyncNotifier(client, qlog)
	a.Worker = queue.NewServer(redisOpt, cfg.Queue.Concurrency, queue.NewHandler(base, qlog), qlog)
	return nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
