// Package service implements the domain lifecycle state machine. All domain
// mutations flow through it: the HTTP handlers, the admin surface, and the
// reconciliation scheduler are thin callers, so every invariant is enforced
// in exactly one place.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"linkforge/internal/domains/certs"
	"linkforge/internal/domains/metrics"
	"linkforge/internal/domains/models"
	"linkforge/internal/domains/probe"
	"linkforge/internal/domains/risk"
	"linkforge/internal/events"
	id "linkforge/pkg/domain"
	dErrors "linkforge/pkg/domain-errors"
	"linkforge/pkg/platform/circuit"
	"linkforge/pkg/platform/middleware/request"
	"linkforge/pkg/platform/sentinel"
	"linkforge/pkg/requestcontext"
)

// Store persists domain records with optimistic concurrency.
type Store interface {
	Insert(ctx context.Context, d *models.Domain) error
	FindByID(ctx context.Context, domainID id.DomainID) (*models.Domain, error)
	FindByName(ctx context.Context, name string) (*models.Domain, error)
	ListByOwner(ctx context.Context, owner id.Owner) ([]*models.Domain, error)
	Update(ctx context.Context, d *models.Domain) error
}

// QuotaChecker guards reservations and transfers against plan limits.
type QuotaChecker interface {
	Check(ctx context.Context, owner id.Owner) error
}

// EventPublisher receives lifecycle notifications. Emission is best-effort.
type EventPublisher interface {
	Emit(ctx context.Context, event events.Event) error
}

// ReputationFeed is consulted during rescoring.
type ReputationFeed interface {
	Contains(ctx context.Context, hostname string) (bool, error)
}

// EligibilityInvalidator drops cached serving verdicts after state changes.
type EligibilityInvalidator interface {
	Invalidate(ctx context.Context, hostname string)
}

// Policy is the timing and safety configuration of the state machine.
type Policy struct {
	ReservationWindow     time.Duration
	MaxVerifyAttempts     int
	ReconfirmInterval     time.Duration
	DeleteRetentionWindow time.Duration
	AutoSuspendCritical   bool
}

// Service is the domain lifecycle state machine.
type Service struct {
	store       Store
	quota       QuotaChecker
	prober      probe.Prober
	provisioner certs.Provisioner
	reputation  ReputationFeed
	policy      Policy

	logger      *slog.Logger
	metrics     *metrics.Metrics
	publisher   EventPublisher
	eligibility EligibilityInvalidator
	tracer      trace.Tracer

	// caBreaker trips after repeated transient CA failures so issuance
	// attempts across all domains back off together. One probe per open
	// interval keeps checking whether the CA recovered.
	caBreaker *circuit.Breaker
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithEligibilityInvalidator(inv EligibilityInvalidator) Option {
	return func(s *Service) {
		s.eligibility = inv
	}
}

func WithReputationFeed(feed ReputationFeed) Option {
	return func(s *Service) {
		s.reputation = feed
	}
}

// WithCertificateBreaker replaces the CA circuit breaker, mainly for tests
// that need a controlled clock.
func WithCertificateBreaker(b *circuit.Breaker) Option {
	return func(s *Service) {
		s.caBreaker = b
	}
}

// New constructs the state machine service.
func New(store Store, quota QuotaChecker, prober probe.Prober, provisioner certs.Provisioner, policy Policy, opts ...Option) *Service {
	s := &Service{
		store:       store,
		quota:       quota,
		prober:      prober,
		provisioner: provisioner,
		reputation:  risk.NullFeed{},
		policy:      policy,
		logger:      slog.Default(),
		tracer:      otel.Tracer("linkforge/internal/domains/service"),
		caBreaker: circuit.New("certificate-authority",
			circuit.WithFailureThreshold(5),
			circuit.WithSuccessThreshold(2),
			circuit.WithOpenInterval(time.Minute)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// startSpan opens a tracing span named after the lifecycle operation.
func (s *Service) startSpan(ctx context.Context, op string, domainID id.DomainID) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, op)
	if !domainID.IsNil() {
		span.SetAttributes(attribute.String("domain.id", domainID.String()))
	}
	return ctx, span
}

// authorize rejects mutations by non-admin actors on domains they do not own.
// Internal callers (the scheduler) carry no actor and pass.
func (s *Service) authorize(ctx context.Context, d *models.Domain) error {
	actor := requestcontext.Actor(ctx)
	if actor == (requestcontext.ActorInfo{}) || actor.Admin {
		return nil
	}
	if actor.OwnerID != d.Owner.ID {
		return dErrors.New(dErrors.CodeForbidden, "domain belongs to another owner")
	}
	return nil
}

// authorizeOwner rejects operations performed on behalf of an owner other
// than the acting one, for operations that name an owner instead of loading a
// domain.
func (s *Service) authorizeOwner(ctx context.Context, owner id.Owner) error {
	actor := requestcontext.Actor(ctx)
	if actor == (requestcontext.ActorInfo{}) || actor.Admin {
		return nil
	}
	if actor.OwnerID != owner.ID {
		return dErrors.New(dErrors.CodeForbidden, "acting on behalf of another owner")
	}
	return nil
}

// emit publishes a lifecycle event when a publisher is configured.
func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	event.RequestID = request.GetRequestID(ctx)
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "emit lifecycle event failed", "event_type", event.Type, "error", err)
	}
}

func (s *Service) invalidate(ctx context.Context, hostname string) {
	if s.eligibility != nil {
		s.eligibility.Invalidate(ctx, hostname)
	}
}

// storeError translates store sentinels into coded domain errors.
func storeError(err error, context string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "domain not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeDuplicateDomain, "domain name is already registered")
	case errors.Is(err, sentinel.ErrVersionConflict):
		return dErrors.New(dErrors.CodeVersionConflict, "domain was modified concurrently, retry")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, context)
	}
}

// load fetches a live domain or a coded NotFound. Deleted records are
// indistinguishable from absent ones to callers.
func (s *Service) load(ctx context.Context, domainID id.DomainID) (*models.Domain, error) {
	d, err := s.store.FindByID(ctx, domainID)
	if err != nil {
		return nil, storeError(err, "load domain")
	}
	if d.IsDeleted() {
		return nil, dErrors.New(dErrors.CodeNotFound, "domain not found")
	}
	return d, nil
}
