// Command server runs the custom-domain lifecycle API and its reconciliation
// scheduler in one process. Business logic lives in the internal packages;
// main only wires dependencies and owns the process lifecycle.
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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"linkforge/internal/domains/certs"
	"linkforge/internal/domains/eligibility"
	"linkforge/internal/domains/handler"
	"linkforge/internal/domains/metrics"
	"linkforge/internal/domains/probe"
	"linkforge/internal/domains/quota"
	"linkforge/internal/domains/scheduler"
	"linkforge/internal/domains/service"
	domainstore "linkforge/internal/domains/store/domain"
	"linkforge/internal/events"
	"linkforge/internal/plans"
	"linkforge/internal/platform/config"
	"linkforge/internal/platform/httpserver"
	"linkforge/internal/platform/logger"
	"linkforge/internal/platform/middleware/ratelimit"
	platformredis "linkforge/internal/platform/redis"
	admin "linkforge/pkg/platform/middleware/admin"
	request "linkforge/pkg/platform/middleware/request"
	"linkforge/pkg/platform/middleware/requesttime"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	// Storage
	db, err := sql.Open("pgx", cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return err
	}

	store := domainstore.NewPostgres(db)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	// Eligibility cache (optional)
	rdb, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	var cache eligibility.Cache
	if rdb != nil {
		defer rdb.Close()
		cache = rdb.Client
	} else {
		log.Warn("redis not configured, eligibility checks hit the database directly")
	}
	eligible := eligibility.NewChecker(store, cache, cfg.Redis.CacheTTL, log)

	// Lifecycle event pipeline
	var sink events.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := events.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer kafkaSink.Close()
		sink = kafkaSink
	} else {
		log.Warn("kafka not configured, lifecycle events go to the log")
		sink = events.LogSink{Logger: log}
	}
	publisher := events.NewPublisher(1024, log)
	worker := events.NewWorker(sink, publisher.Inbox(), log)

	// Certificate provisioner
	var provisioner certs.Provisioner
	if cfg.ACME.Email != "" {
		provisioner, err = certs.NewACME(certs.Config{
			Email:    cfg.ACME.Email,
			CacheDir: cfg.ACME.CacheDir,
			Timeout:  cfg.Lifecycle.CertificateTimeout,
		})
		if err != nil {
			return err
		}
	} else {
		log.Warn("ACME not configured, certificate issuance is simulated")
		provisioner = &certs.Static{}
	}

	m := metrics.New()
	checker := quota.NewChecker(plans.NewStaticCatalog(nil), plans.FixedResolver{Plan: plans.ParsePlan(cfg.DefaultPlan)}, store)

	svc := service.New(store, checker,
		probe.NewDNS(cfg.Lifecycle.ProbeTimeout),
		provisioner,
		service.Policy{
			ReservationWindow:     cfg.Lifecycle.ReservationWindow,
			MaxVerifyAttempts:     cfg.Lifecycle.MaxVerifyAttempts,
			ReconfirmInterval:     cfg.Lifecycle.ReconfirmInterval,
			DeleteRetentionWindow: cfg.Lifecycle.DeleteRetentionWindow,
			AutoSuspendCritical:   cfg.Lifecycle.AutoSuspendCritical,
		},
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithEventPublisher(publisher),
		service.WithEligibilityInvalidator(eligible),
	)

	reconciler := scheduler.New(store, svc, scheduler.Config{
		TickInterval:      cfg.Scheduler.TickInterval,
		Workers:           cfg.Scheduler.Workers,
		ScanLimit:         cfg.Scheduler.ScanLimit,
		VerifyBackoffBase: cfg.Lifecycle.VerifyBackoffBase,
		VerifyBackoffCap:  cfg.Lifecycle.VerifyBackoffCap,
		SSLRenewalWindow:  cfg.Lifecycle.SSLRenewalWindow,
		RescoreInterval:   cfg.Lifecycle.RescoreInterval,
	}, scheduler.WithLogger(log), scheduler.WithMetrics(m))

	// HTTP surface
	h := handler.New(svc, eligible, log)

	var limiterStore ratelimit.BucketStore
	if rdb != nil {
		limiterStore = ratelimit.NewRedis(rdb.Client)
	} else {
		limiterStore = ratelimit.NewInMemory()
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(request.Middleware)
	router.Use(requesttime.Middleware)
	router.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(limiterStore, cfg.RateLimit.Limit, cfg.RateLimit.Window, log))
		h.Register(r)
	})
	router.Route("/admin", func(r chi.Router) {
		r.Use(admin.RequireAdminToken(cfg.AdminToken, log))
		r.Use(handler.AsAdmin)
		h.RegisterAdmin(r)
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return worker.Run(gctx)
	})

	g.Go(func() error {
		return reconciler.Run(gctx)
	})

	g.Go(func() error {
		log.Info("linkforge server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
