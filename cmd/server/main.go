package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"kycgate/internal/audit"
	auditkafka "kycgate/internal/audit/kafka"
	httpapi "kycgate/internal/http"
	identityHandler "kycgate/internal/identity/handler"
	identityService "kycgate/internal/identity/service"
	userStore "kycgate/internal/identity/store/user"
	"kycgate/internal/kyc/blob"
	"kycgate/internal/kyc/classifier"
	kycHandler "kycgate/internal/kyc/handler"
	"kycgate/internal/kyc/lock"
	kycMetrics "kycgate/internal/kyc/metrics"
	kycService "kycgate/internal/kyc/service"
	documentStore "kycgate/internal/kyc/store/document"
	"kycgate/internal/platform/config"
	"kycgate/internal/platform/httpserver"
	"kycgate/internal/platform/logger"
	"kycgate/internal/platform/metrics"
	"kycgate/internal/platform/postgres"
	platformredis "kycgate/internal/platform/redis"
)

// lockTTL is how long a Redis lease survives without a refresh. Holders
// refresh it every lockTTL/3, so only a dead or partitioned holder lets it lapse.
const lockTTL = 30 * time.Second

type userRepository interface {
	identityService.UserStore
	kycService.UserStore
}

type infra struct {
	db    *sql.DB
	redis *platformredis.Client
	sink  *auditkafka.Sink
}

func (i *infra) close(log *slog.Logger) {
	if i.sink != nil {
		i.sink.Close()
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Error("failed to close redis", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Error("failed to close database", "error", err)
		}
	}
}

// main wires dependencies, recovers interrupted verifications and runs the
// HTTP server until SIGINT or SIGTERM.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("kycgate exited with error", "error", err)
		os.Exit(1)
	}
}

// app is the wired process: HTTP handler, verification pipeline and the
// infrastructure clients they share.
type app struct {
	router  http.Handler
	kyc     *kycService.Service
	auditor *audit.Publisher
	deps    *infra
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log, prometheus.DefaultRegisterer)
	if a != nil {
		defer a.deps.close(log)
	}
	if err != nil {
		return err
	}

	recovered, err := a.kyc.RecoverInterrupted(ctx)
	if err != nil {
		return err
	}
	if recovered > 0 {
		log.Warn("recovered interrupted verifications", "users", recovered)
	}

	srv := httpserver.New(cfg.Addr, a.router)

	auditCtx, stopAudit := context.WithCancel(context.Background())
	defer stopAudit()
	auditDone := make(chan struct{})
	if a.deps.sink != nil {
		go func() {
			defer close(auditDone)
			_ = audit.NewWorker(a.deps.sink, a.auditor.Stream(), log).Run(auditCtx)
		}()
	} else {
		close(auditDone)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting kycgate", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := a.kyc.Shutdown(shutdownCtx); err != nil {
			log.Warn("verification pool did not drain", "error", err)
		}
		stopAudit()
		select {
		case <-auditDone:
		case <-shutdownCtx.Done():
			log.Warn("audit stream did not flush before shutdown deadline")
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// newApp connects the configured backends and wires services and handlers.
// On error the returned app, when non-nil, still owns the opened clients.
func newApp(ctx context.Context, cfg config.Server, log *slog.Logger, reg prometheus.Registerer) (*app, error) {
	deps := &infra{}
	a := &app{deps: deps}

	var (
		users     userRepository
		documents kycService.DocumentStore
		storeTx   kycService.StoreTx
	)
	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return a, err
		}
		deps.db = db
		if err := postgres.Migrate(ctx, db); err != nil {
			return a, err
		}
		users = userStore.NewPostgres(db)
		documents = documentStore.NewPostgres(db)
		storeTx = newKycPostgresTx(db)
		log.Info("using postgres stores")
	} else {
		users = userStore.New()
		documents = documentStore.New()
		storeTx = kycService.NewShardedTx()
		log.Info("using in-memory stores")
	}

	var (
		locker       lock.Locker
		leaseRefresh time.Duration
	)
	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return a, err
	}
	if redisClient != nil {
		deps.redis = redisClient
		redisLocker := lock.NewRedis(redisClient, lockTTL)
		locker = redisLocker
		leaseRefresh = redisLocker.TTL() / 3
		log.Info("using redis verification locks")
	} else {
		locker = lock.NewMemory()
	}

	sink, err := auditkafka.New(ctx, cfg.Kafka)
	if err != nil {
		return a, err
	}
	auditOpts := []audit.Option{audit.WithLogger(log)}
	if sink != nil {
		deps.sink = sink
		auditOpts = append(auditOpts, audit.WithStream(0))
	}
	a.auditor = audit.NewPublisher(audit.NewInMemoryStore(), auditOpts...)

	blobs, err := blob.New(ctx, cfg.Storage)
	if err != nil {
		return a, err
	}

	httpMetrics := metrics.NewWithRegisterer(reg)
	identity := identityService.New(users,
		identityService.WithAuditPublisher(a.auditor),
		identityService.WithLogger(log),
		identityService.WithMetrics(httpMetrics),
	)
	a.kyc = kycService.New(users, documents, blobs,
		classifier.NewSimulated(cfg.KYC.ClassifyDelay, cfg.KYC.RejectMarkers),
		locker,
		kycService.WithStoreTx(storeTx),
		kycService.WithAuditPublisher(a.auditor),
		kycService.WithLogger(log),
		kycService.WithMetrics(kycMetrics.NewWithRegisterer(reg)),
		kycService.WithClassifyTimeout(cfg.KYC.ClassifyTimeout),
		kycService.WithWorkers(cfg.KYC.Workers),
		kycService.WithLeaseRefresh(leaseRefresh),
	)

	a.router = httpapi.NewRouter(httpapi.Config{
		Logger:       log,
		Metrics:      httpMetrics,
		HealthChecks: deps.healthChecks(),
		Handlers: []httpapi.RouteRegistrar{
			identityHandler.New(identity, log),
			kycHandler.New(a.kyc, log, cfg.KYC.MaxUploadBytes),
		},
	})
	return a, nil
}

func (i *infra) healthChecks() []httpapi.HealthCheck {
	var checks []httpapi.HealthCheck
	if i.db != nil {
		checks = append(checks, httpapi.HealthCheck{Name: "postgres", Check: i.db.PingContext})
	}
	if i.redis != nil {
		checks = append(checks, httpapi.HealthCheck{Name: "redis", Check: i.redis.Health})
	}
	return checks
}
