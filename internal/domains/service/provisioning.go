package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"linkforge/internal/domains/certs"
	"linkforge/internal/domains/models"
	"linkforge/internal/events"
	id "linkforge/pkg/domain"
	dErrors "linkforge/pkg/domain-errors"
	"linkforge/pkg/requestcontext"
)

// ProvisionCertificate issues or renews the domain's certificate. Only
// VERIFIED domains qualify. The outcome always persists: success activates
// the certificate, a transient CA failure leaves it PENDING for the renewal
// scan, a permanent one parks it in ERROR until the owner remediates.
//
// Errors: CodeNotFound, CodeNotVerified, CodeCertificateTransient,
// CodeCertificatePermanent, CodeVersionConflict.
func (s *Service) ProvisionCertificate(ctx context.Context, domainID id.DomainID) (*models.Domain, error) {
	ctx, span := s.startSpan(ctx, "domains.ProvisionCertificate", domainID)
	defer span.End()

	d, err := s.load(ctx, domainID)
	if err != nil {
		return nil, err
	}
	if err := d.CanProvisionCertificate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)

	// An open breaker means the CA has been failing across domains. Defer
	// without spending a call; the renewal scan retries after the interval.
	if s.caBreaker.IsOpen() {
		provErr := dErrors.New(dErrors.CodeCertificateTransient, "certificate authority circuit open")
		d.ApplySSLTransientFailure(dErrors.MessageOf(provErr), now)
		if err := s.store.Update(ctx, d); err != nil {
			return nil, s.updateError(ctx, err, "record deferred certificate issuance")
		}
		if s.metrics != nil {
			s.metrics.CertificateFailures.WithLabelValues("transient").Inc()
		}
		return d, provErr
	}

	start := time.Now()
	cert, provErr := s.provisioner.Provision(ctx, d.DomainName)
	if s.metrics != nil {
		s.metrics.ObserveProvision(start)
	}

	if provErr == nil || !certs.IsTransient(provErr) {
		// Permanent rejections are CA verdicts, so they still count as the CA
		// being reachable.
		if _, change := s.caBreaker.RecordSuccess(); change.Closed {
			s.logger.InfoContext(ctx, "certificate authority circuit closed")
		}
	} else {
		if _, change := s.caBreaker.RecordFailure(); change.Opened {
			s.logger.WarnContext(ctx, "certificate authority circuit opened",
				"reason", provErr.Error(),
			)
		}
	}

	if provErr == nil {
		span.SetAttributes(attribute.String("ssl.provider", cert.Provider))
		d.ApplySSLIssued(cert.Provider, cert.ExpiresAt, now)
		if err := s.store.Update(ctx, d); err != nil {
			return nil, s.updateError(ctx, err, "record issued certificate")
		}

		s.logger.InfoContext(ctx, "certificate issued",
			"domain_id", d.ID,
			"domain_name", d.DomainName,
			"provider", cert.Provider,
			"expires_at", cert.ExpiresAt,
		)
		if s.metrics != nil {
			s.metrics.CertificatesIssued.Inc()
		}
		s.invalidate(ctx, d.DomainName)
		s.emit(ctx, events.Event{
			Type:       events.TypeSSLIssued,
			DomainID:   d.ID,
			DomainName: d.DomainName,
			Owner:      d.Owner,
			Status:     string(d.Status),
		})
		return d, nil
	}

	reason := dErrors.MessageOf(provErr)
	if reason == "" {
		reason = provErr.Error()
	}
	if certs.IsTransient(provErr) {
		d.ApplySSLTransientFailure(reason, now)
		if err := s.store.Update(ctx, d); err != nil {
			return nil, s.updateError(ctx, err, "record transient certificate failure")
		}
		s.logger.WarnContext(ctx, "certificate issuance deferred",
			"domain_id", d.ID,
			"domain_name", d.DomainName,
			"reason", reason,
		)
		if s.metrics != nil {
			s.metrics.CertificateFailures.WithLabelValues("transient").Inc()
		}
		return d, provErr
	}

	d.ApplySSLPermanentFailure(reason, now)
	if err := s.store.Update(ctx, d); err != nil {
		return nil, s.updateError(ctx, err, "record permanent certificate failure")
	}
	s.logger.ErrorContext(ctx, "certificate issuance rejected",
		"domain_id", d.ID,
		"domain_name", d.DomainName,
		"reason", reason,
	)
	if s.metrics != nil {
		s.metrics.CertificateFailures.WithLabelValues("permanent").Inc()
	}
	s.emit(ctx, events.Event{
		Type:       events.TypeSSLError,
		DomainID:   d.ID,
		DomainName: d.DomainName,
		Owner:      d.Owner,
		Status:     string(d.Status),
		Reason:     reason,
	})
	return d, provErr
}
