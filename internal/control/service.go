package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/purity/internal/api"
	"github.com/vietddude/purity/internal/compliance/emitter"
	"github.com/vietddude/purity/internal/compliance/enforcer"
	"github.com/vietddude/purity/internal/compliance/exposure"
	"github.com/vietddude/purity/internal/compliance/filter"
	"github.com/vietddude/purity/internal/compliance/freeze"
	"github.com/vietddude/purity/internal/compliance/health"
	"github.com/vietddude/purity/internal/compliance/metrics"
	"github.com/vietddude/purity/internal/compliance/quorum"
	"github.com/vietddude/purity/internal/compliance/recovery"
	"github.com/vietddude/purity/internal/compliance/scoring"
	"github.com/vietddude/purity/internal/compliance/validator"
	"github.com/vietddude/purity/internal/compliance/watchlist"
	"github.com/vietddude/purity/internal/core/config"
	"github.com/vietddude/purity/internal/core/domain"
	"github.com/vietddude/purity/internal/core/worker"
	"github.com/vietddude/purity/internal/infra/feed"
	"github.com/vietddude/purity/internal/infra/ledger"
	redisclient "github.com/vietddude/purity/internal/infra/redis"
	"github.com/vietddude/purity/internal/infra/storage"
	"github.com/vietddude/purity/internal/infra/storage/memory"
	"github.com/vietddude/purity/internal/infra/storage/postgres"
)

// Service is the main application struct that owns the enforcer and every
// loop around it.
type Service struct {
	cfg *config.AppConfig

	enforcer      *enforcer.Enforcer
	watchlist     *watchlist.Watchlist
	freezes       *freeze.Ledger
	graph         *exposure.Graph
	store         storage.Store
	audit         emitter.Emitter
	redistributor *recovery.Redistributor
	sweeper       *recovery.Sweeper
	pruner        *worker.Pruner
	feed          *feed.Consumer

	healthMon  *health.Monitor
	httpServer *api.Server
	grpcServer *health.GRPCServer

	db          *postgres.DB
	redisClient *redisclient.Client
	log         *slog.Logger

	wg sync.WaitGroup
}

// NewService creates a new Service with all dependencies initialized.
func NewService(ctx context.Context, cfg *config.AppConfig) (*Service, error) {
	s := &Service{cfg: cfg, log: slog.Default()}

	// 1. Initialize Storage
	if err := s.initStorage(ctx); err != nil {
		return nil, err
	}

	// 2. Audit sink and ledger collaborator
	audit, err := newAuditEmitter(cfg.Audit)
	if err != nil {
		s.closeInfra()
		return nil, err
	}
	s.audit = audit

	var ledgerClient ledger.Ledger
	if cfg.Ledger.URL != "" {
		ledgerClient = ledger.NewHTTPClient(cfg.Ledger.URL, cfg.Ledger.Timeout)
		s.log.Info("Using HTTP ledger", "url", cfg.Ledger.URL)
	} else {
		ledgerClient = ledger.NewMemory()
		s.log.Info("Using in-memory ledger")
	}

	// 3. Compliance state
	s.watchlist = watchlist.New(cfg.Privileged, cfg.Policy.ViolationLookback)
	s.freezes = freeze.NewLedger()
	s.graph = exposure.NewGraph(cfg.Window.MaxEdges, cfg.Window.MaxAge)
	var exchanges filter.Filter = filter.NewDirectory(cfg.ExchangeAccounts)
	s.log.Info("Loaded exchange accounts into directory", "count", exchanges.Size())

	scorer, err := scoring.New(cfg.Scorer)
	if err != nil {
		s.closeInfra()
		return nil, fmt.Errorf("failed to build scorer: %w", err)
	}
	voters, err := quorum.NewVoters(cfg.Voters, s.watchlist)
	if err != nil {
		s.closeInfra()
		return nil, fmt.Errorf("failed to build voters: %w", err)
	}

	// 4. Redistribution
	s.redistributor = recovery.NewRedistributor(
		ledgerClient,
		s.freezes,
		recovery.BackoffFromConfig(cfg.Redistribution, classifyLedgerError),
		s.audit,
		recovery.WithCompletion(enforcer.RedistributionCompleted(s.watchlist, s.store, s.log)),
		recovery.WithCallTimeout(cfg.Policy.LedgerTimeout),
	)
	s.sweeper = recovery.NewSweeper(s.freezes, s.redistributor, cfg.Redistribution.SweepInterval)

	// 5. Enforcer
	s.enforcer, err = enforcer.New(cfg.Policy, enforcer.Deps{
		Validator:     validator.New(cfg.Policy.PegValue, cfg.Policy.Origins()),
		Tracer:        exposure.NewTracer(cfg.Policy.TraceHopLimit, cfg.Policy.TraceNodeCap, exchanges, s.watchlist),
		Graph:         s.graph,
		Scorer:        scorer,
		Voters:        voters,
		Watchlist:     s.watchlist,
		Freezes:       s.freezes,
		Ledger:        ledgerClient,
		Store:         s.store,
		Audit:         s.audit,
		Redistributor: s.redistributor,
		HistoryWindow: cfg.Window.MaxAge,
		Logger:        s.log,
	})
	if err != nil {
		s.closeInfra()
		return nil, err
	}
	if err := s.enforcer.Restore(ctx); err != nil {
		s.closeInfra()
		return nil, err
	}

	// 6. Workers
	s.pruner = worker.NewPruner(s.graph, cfg.Window.PruneInterval)
	if len(cfg.Feed.Brokers) > 0 {
		s.feed, err = feed.NewConsumer(feed.Config{
			Brokers:  cfg.Feed.Brokers,
			Topic:    cfg.Feed.Topic,
			Group:    cfg.Feed.Group,
			Encoding: feed.Encoding(cfg.Feed.Encoding),
		})
		if err != nil {
			s.closeInfra()
			return nil, err
		}
		s.log.Info("Kafka feed configured", "topic", cfg.Feed.Topic, "group", cfg.Feed.Group)
	}

	// 7. Health and HTTP
	s.healthMon = health.NewMonitor(s.freezes, s.graph)
	if s.db != nil {
		s.healthMon.Register("postgres", s.db, true)
	}
	if s.redisClient != nil {
		s.healthMon.Register("redis", s.redisClient, false)
	}

	handler := api.NewHandler(s.enforcer, s.store.Decisions, s.freezes, s.watchlist, exchanges, s.log)
	s.httpServer = api.NewServer(api.NewRouter(handler, s.healthMon), cfg.Server.Port)
	if cfg.Server.GRPCPort > 0 {
		s.grpcServer = health.NewGRPCServer(s.healthMon, cfg.Server.GRPCPort)
	}

	return s, nil
}

func (s *Service) initStorage(ctx context.Context) error {
	if s.cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, s.cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to migrate db: %w", err)
		}
		s.db = db
		s.store = db.Store()
		s.log.Info("Using PostgreSQL storage")
	} else {
		s.store = memory.NewMemoryStorage().Store()
		s.log.Info("Using Memory storage")
	}

	if s.cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(s.cfg.Redis)
		if err != nil {
			s.log.Warn("Failed to connect to Redis, decision cache disabled", "error", err)
			return nil
		}
		s.redisClient = client
		s.store.Decisions = redisclient.NewCachedDecisions(s.store.Decisions, client, s.cfg.Redis.TTL)
		s.log.Info("Redis decision cache enabled")
	}
	return nil
}

func newAuditEmitter(cfg config.AuditConfig) (emitter.Emitter, error) {
	var e emitter.Emitter
	switch cfg.Sink {
	case "", "log":
		e = emitter.NewLogEmitter(slog.Default())
	case "kafka":
		sc := sarama.NewConfig()
		sc.ClientID = "purity"
		k, err := emitter.NewKafkaEmitter(cfg.Brokers, cfg.Topic, sc)
		if err != nil {
			return nil, fmt.Errorf("failed to create audit producer: %w", err)
		}
		e = k
	default:
		return nil, fmt.Errorf("unknown audit sink %q", cfg.Sink)
	}
	if cfg.Chain {
		return emitter.NewChainEmitter(e, "")
	}
	return e, nil
}

// classifyLedgerError stops retrying requests the ledger refused outright.
func classifyLedgerError(err error) recovery.FailureCategory {
	if errors.Is(err, ledger.ErrRejected) {
		return recovery.CategoryPermanent
	}
	return recovery.DefaultClassifier(err)
}

// Enforcer returns the enforcer.
func (s *Service) Enforcer() *enforcer.Enforcer { return s.enforcer }

// Freezes returns the freeze ledger.
func (s *Service) Freezes() *freeze.Ledger { return s.freezes }

// Start starts the servers and background loops. It returns once they are
// running; they stop when ctx is done or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	s.goLoop(func() {
		s.log.Info("HTTP server listening", "port", s.cfg.Server.Port)
		if err := s.httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server failed", "error", err)
		}
	})

	if s.grpcServer != nil {
		s.goLoop(func() {
			if err := s.grpcServer.Start(ctx); err != nil {
				s.log.Error("gRPC health server failed", "error", err)
			}
		})
	}

	if s.db != nil {
		s.db.StartMetricsCollector(ctx)
	}

	s.goLoop(func() { s.pruner.Start(ctx) })
	s.goLoop(func() { s.sweeper.Start(ctx) })

	if s.feed != nil {
		s.log.Info("Starting feed workers", "workers", s.cfg.Workers)
		s.goLoop(func() {
			if err := s.consume(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error("Feed consumer stopped", "error", err)
			}
		})
	}
	return nil
}

func (s *Service) goLoop(fn func()) {
	s.wg.Go(fn)
}

// consume drains the feed batch by batch. Each batch is fanned out over
// the worker pool and committed once every record has a decision.
func (s *Service) consume(ctx context.Context) error {
	workers := max(s.cfg.Workers, 1)
	for {
		batch, err := s.feed.Poll(ctx)
		if err != nil {
			if errors.Is(err, feed.ErrClosed) {
				return nil
			}
			return err
		}
		if len(batch) == 0 {
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for _, tx := range batch {
			g.Go(func() error {
				return s.enforceRecord(gctx, tx)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if err := s.feed.Commit(ctx); err != nil {
			s.log.Warn("Failed to commit feed offsets", "error", err)
		}
	}
}

// enforceRecord only fails the batch on cancellation; a malformed record is
// dropped at ingress.
func (s *Service) enforceRecord(ctx context.Context, tx domain.TransactionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d, err := s.enforcer.Enforce(ctx, tx)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedTransaction) {
			metrics.FeedRecords.WithLabelValues("malformed").Inc()
			s.log.Warn("Dropping malformed transaction", "tx_id", tx.ID, "error", err)
			return nil
		}
		return err
	}
	metrics.FeedRecords.WithLabelValues("decided").Inc()
	s.log.Debug("Feed transaction decided", "tx_id", tx.ID, "decision", d.Kind, "reason", d.Reason)
	return nil
}

// Stop stops the service.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("Stopping service...")

	var errs []error
	if err := s.httpServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.feed != nil {
		_ = s.feed.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		s.enforcer.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("timed out waiting for workers: %w", ctx.Err()))
	}

	if err := s.audit.Close(); err != nil {
		errs = append(errs, fmt.Errorf("audit sink: %w", err))
	}
	s.closeInfra()
	return errors.Join(errs...)
}

func (s *Service) closeInfra() {
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("Failed to close database", "error", err)
		}
	}
}

// CheckHealth returns the current health report.
func (s *Service) CheckHealth(ctx context.Context) health.HealthReport {
	return s.healthMon.CheckHealth(ctx)
}

// Drain waits up to timeout for in-flight redistributions.
func (s *Service) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.enforcer.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Sweep retries every pending redistribution once and returns how many
// completed.
func (s *Service) Sweep(ctx context.Context) int {
	return s.sweeper.Sweep(ctx)
}
