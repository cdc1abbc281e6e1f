// Package scheduler drives the reconciliation loop. Every tick it scans the
// store for domains needing action and pushes them through the state machine
// with bounded concurrency. The scheduler never mutates domain state itself;
// it only invokes service operations, so invariants stay enforced in one
// place no matter how many scheduler instances run.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"linkforge/internal/domains/metrics"
	"linkforge/internal/domains/models"
	id "linkforge/pkg/domain"
	dErrors "linkforge/pkg/domain-errors"
	"linkforge/pkg/requestcontext"
)

// Store provides the reconciliation scans.
type Store interface {
	DueForVerification(ctx context.Context, now time.Time, limit int) ([]*models.Domain, error)
	DueForReconfirmation(ctx context.Context, now time.Time, limit int) ([]*models.Domain, error)
	DueForRenewal(ctx context.Context, now time.Time, renewalWindow time.Duration, limit int) ([]*models.Domain, error)
	ExpiredReservations(ctx context.Context, now time.Time, limit int) ([]*models.Domain, error)
	DueForRescore(ctx context.Context, interval time.Duration, now time.Time, limit int) ([]*models.Domain, error)
}

// Engine is the slice of the lifecycle service the scheduler drives.
type Engine interface {
	Verify(ctx context.Context, domainID id.DomainID) (*models.Domain, error)
	Reconfirm(ctx context.Context, domainID id.DomainID) (*models.Domain, error)
	ProvisionCertificate(ctx context.Context, domainID id.DomainID) (*models.Domain, error)
	ExpireReservation(ctx context.Context, domainID id.DomainID) error
	Rescore(ctx context.Context, domainID id.DomainID) (*models.Domain, error)
}

// Config is the tick and retry policy.
type Config struct {
	TickInterval      time.Duration
	Workers           int
	ScanLimit         int
	VerifyBackoffBase time.Duration
	VerifyBackoffCap  time.Duration
	SSLRenewalWindow  time.Duration
	RescoreInterval   time.Duration
}

// Scheduler owns the reconciliation loop.
type Scheduler struct {
	store   Store
	engine  Engine
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(s *Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// New constructs a scheduler.
func New(store Store, engine Engine, cfg Config, opts ...Option) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.ScanLimit <= 0 {
		cfg.ScanLimit = 500
	}
	s := &Scheduler{
		store:  store,
		engine: engine,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks until the context is cancelled. Each tick observes one pinned
// clock so all of its scans agree on "now".
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "reconciliation scheduler started",
		"tick_interval", s.cfg.TickInterval,
		"workers", s.cfg.Workers,
		"scan_limit", s.cfg.ScanLimit,
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(requestcontext.WithTime(ctx, time.Now().UTC()))
		}
	}
}

// Tick runs all five scans once. Exported so tests and ops tooling can drive
// the loop without waiting for the ticker.
func (s *Scheduler) Tick(ctx context.Context) {
	now := requestcontext.Now(ctx)
	s.verificationScan(ctx, now)
	s.reconfirmationScan(ctx, now)
	s.renewalScan(ctx, now)
	s.reclaimScan(ctx, now)
	s.rescoreScan(ctx, now)
}

// verificationScan probes RESERVED and PENDING domains whose retry backoff
// has elapsed. Jitter spreads retries so one tick does not thundering-herd
// the resolver after an outage.
func (s *Scheduler) verificationScan(ctx context.Context, now time.Time) {
	start := time.Now()
	candidates, err := s.store.DueForVerification(ctx, now, s.cfg.ScanLimit)
	if err != nil {
		s.logger.ErrorContext(ctx, "verification scan failed", "error", err)
		return
	}

	due := candidates[:0]
	for _, d := range candidates {
		if s.verifyDue(d, now) {
			due = append(due, d)
		}
	}
	s.observeScan("verification", start, len(due))

	s.dispatch(ctx, "verify", due, func(ctx context.Context, domainID id.DomainID) error {
		_, err := s.engine.Verify(ctx, domainID)
		return err
	})
}

func (s *Scheduler) verifyDue(d *models.Domain, now time.Time) bool {
	if d.VerificationAttempts == 0 || d.LastVerificationAttempt == nil {
		return true
	}
	delay := models.JitteredBackoffDelay(d.VerificationAttempts, s.cfg.VerifyBackoffBase, s.cfg.VerifyBackoffCap)
	return !now.Before(d.LastVerificationAttempt.Add(delay))
}

func (s *Scheduler) reconfirmationScan(ctx context.Context, now time.Time) {
	start := time.Now()
	due, err := s.store.DueForReconfirmation(ctx, now, s.cfg.ScanLimit)
	if err != nil {
		s.logger.ErrorContext(ctx, "reconfirmation scan failed", "error", err)
		return
	}
	s.observeScan("reconfirmation", start, len(due))

	s.dispatch(ctx, "reconfirm", due, func(ctx context.Context, domainID id.DomainID) error {
		_, err := s.engine.Reconfirm(ctx, domainID)
		return err
	})
}

func (s *Scheduler) renewalScan(ctx context.Context, now time.Time) {
	start := time.Now()
	due, err := s.store.DueForRenewal(ctx, now, s.cfg.SSLRenewalWindow, s.cfg.ScanLimit)
	if err != nil {
		s.logger.ErrorContext(ctx, "renewal scan failed", "error", err)
		return
	}
	s.observeScan("renewal", start, len(due))

	s.dispatch(ctx, "renew certificate", due, func(ctx context.Context, domainID id.DomainID) error {
		_, err := s.engine.ProvisionCertificate(ctx, domainID)
		return err
	})
}

func (s *Scheduler) reclaimScan(ctx context.Context, now time.Time) {
	start := time.Now()
	due, err := s.store.ExpiredReservations(ctx, now, s.cfg.ScanLimit)
	if err != nil {
		s.logger.ErrorContext(ctx, "reclaim scan failed", "error", err)
		return
	}
	s.observeScan("reclaim", start, len(due))

	s.dispatch(ctx, "expire reservation", due, func(ctx context.Context, domainID id.DomainID) error {
		return s.engine.ExpireReservation(ctx, domainID)
	})
}

func (s *Scheduler) rescoreScan(ctx context.Context, now time.Time) {
	start := time.Now()
	due, err := s.store.DueForRescore(ctx, s.cfg.RescoreInterval, now, s.cfg.ScanLimit)
	if err != nil {
		s.logger.ErrorContext(ctx, "rescore scan failed", "error", err)
		return
	}
	s.observeScan("rescore", start, len(due))

	s.dispatch(ctx, "rescore", due, func(ctx context.Context, domainID id.DomainID) error {
		_, err := s.engine.Rescore(ctx, domainID)
		return err
	})
}

// dispatch fans a batch out over the bounded worker pool. Individual failures
// never abort the batch.
func (s *Scheduler) dispatch(ctx context.Context, action string, batch []*models.Domain, op func(context.Context, id.DomainID) error) {
	if len(batch) == 0 {
		return
	}
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.Workers)
	for _, d := range batch {
		group.Go(func() error {
			if err := op(ctx, d.ID); err != nil && !benign(err) {
				s.logger.WarnContext(ctx, "reconciliation action failed",
					"action", action,
					"domain_id", d.ID,
					"domain_name", d.DomainName,
					"error", err,
				)
			}
			return nil
		})
	}
	_ = group.Wait()
}

// benign errors are expected outcomes of racing scans, not faults: another
// worker won the write, the domain vanished mid-scan, the attempt budget ran
// out between scan and dispatch, or the CA asked us to come back later.
func benign(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeVersionConflict) ||
		dErrors.HasCode(err, dErrors.CodeNotFound) ||
		dErrors.HasCode(err, dErrors.CodeVerificationExhausted) ||
		dErrors.HasCode(err, dErrors.CodeCertificateTransient) ||
		dErrors.HasCode(err, dErrors.CodeNotVerified)
}

func (s *Scheduler) observeScan(scan string, start time.Time, matched int) {
	if s.metrics != nil {
		s.metrics.ObserveScan(scan, start, matched)
	}
}
