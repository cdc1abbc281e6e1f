package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"linkforge/internal/domains/models"
	"linkforge/internal/domains/probe"
	"linkforge/internal/events"
	id "linkforge/pkg/domain"
	dErrors "linkforge/pkg/domain-errors"
	"linkforge/pkg/requestcontext"
)

// Verify runs one ownership probe against the domain's DNS challenge and
// applies the outcome. Matched transitions to VERIFIED, schedules the first
// reconfirmation, and kicks off certificate issuance. Every non-matched
// outcome counts one attempt; the budget's last failure lands in ERROR.
//
// Concurrent calls cannot double-count: the losing write fails with
// CodeVersionConflict and changes nothing.
//
// Errors: CodeNotFound, CodeVerificationExhausted, CodeVersionConflict.
func (s *Service) Verify(ctx context.Context, domainID id.DomainID) (*models.Domain, error) {
	ctx, span := s.startSpan(ctx, "domains.Verify", domainID)
	defer span.End()

	d, err := s.load(ctx, domainID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, d); err != nil {
		return nil, err
	}
	if err := d.CanVerify(); err != nil {
		return nil, err
	}

	result := s.checkDNS(ctx, d)
	span.SetAttributes(attribute.String("probe.outcome", string(result.Outcome)))

	now := requestcontext.Now(ctx)
	if result.Outcome == probe.Matched {
		wasVerified := d.Status == models.StatusVerified
		d.ApplyVerificationSuccess(now, s.policy.ReconfirmInterval)
		if err := s.store.Update(ctx, d); err != nil {
			return nil, s.updateError(ctx, err, "verify domain")
		}
		if !wasVerified {
			s.logger.InfoContext(ctx, "domain verified",
				"domain_id", d.ID,
				"domain_name", d.DomainName,
				"attempts", d.VerificationAttempts,
			)
			if s.metrics != nil {
				s.metrics.DomainsVerified.Inc()
			}
			s.invalidate(ctx, d.DomainName)
			s.emit(ctx, events.Event{
				Type:       events.TypeDomainVerified,
				DomainID:   d.ID,
				DomainName: d.DomainName,
				Owner:      d.Owner,
				Status:     string(d.Status),
			})
			s.provisionAfterVerify(ctx, d)
		}
		return d, nil
	}

	if d.Status == models.StatusVerified {
		// A mismatch on a verified domain is lost DNS control, the same
		// regression the reconfirmation scan detects. It never re-enters
		// the retry loop toward first verification.
		return s.recordControlRegression(ctx, d, result.Detail, now)
	}

	exhausted := d.ApplyVerificationFailure(result.Detail, s.policy.MaxVerifyAttempts, now)
	if err := s.store.Update(ctx, d); err != nil {
		return nil, s.updateError(ctx, err, "record verification failure")
	}

	s.logger.InfoContext(ctx, "domain verification failed",
		"domain_id", d.ID,
		"domain_name", d.DomainName,
		"attempts", d.VerificationAttempts,
		"exhausted", exhausted,
		"reason", result.Detail,
	)
	if s.metrics != nil {
		s.metrics.VerificationFailures.Inc()
		if exhausted {
			s.metrics.VerificationsExhausted.Inc()
		}
	}
	if exhausted {
		s.invalidate(ctx, d.DomainName)
		s.emit(ctx, events.Event{
			Type:       events.TypeVerificationFailed,
			DomainID:   d.ID,
			DomainName: d.DomainName,
			Owner:      d.Owner,
			Status:     string(d.Status),
			Reason:     result.Detail,
		})
	}
	return d, nil
}

// Reconfirm re-proves DNS control for a VERIFIED domain. Success pushes the
// next deadline forward; failure is a control regression and drops the domain
// straight to ERROR, downgrading an ACTIVE certificate in the same write.
func (s *Service) Reconfirm(ctx context.Context, domainID id.DomainID) (*models.Domain, error) {
	ctx, span := s.startSpan(ctx, "domains.Reconfirm", domainID)
	defer span.End()

	d, err := s.load(ctx, domainID)
	if err != nil {
		return nil, err
	}
	if err := d.CanReconfirm(); err != nil {
		return nil, err
	}

	result := s.checkDNS(ctx, d)
	span.SetAttributes(attribute.String("probe.outcome", string(result.Outcome)))

	now := requestcontext.Now(ctx)
	if result.Outcome == probe.Matched {
		d.ApplyReconfirmationSuccess(now, s.policy.ReconfirmInterval)
		if err := s.store.Update(ctx, d); err != nil {
			return nil, s.updateError(ctx, err, "reconfirm domain")
		}
		return d, nil
	}

	return s.recordControlRegression(ctx, d, result.Detail, now)
}

// recordControlRegression drops a VERIFIED domain to ERROR after a failed
// probe, downgrading an ACTIVE certificate in the same write.
func (s *Service) recordControlRegression(ctx context.Context, d *models.Domain, detail string, now time.Time) (*models.Domain, error) {
	d.ApplyReconfirmationFailure(detail, now)
	if err := s.store.Update(ctx, d); err != nil {
		return nil, s.updateError(ctx, err, "record lost dns control")
	}

	s.logger.WarnContext(ctx, "domain lost dns control",
		"domain_id", d.ID,
		"domain_name", d.DomainName,
		"reason", detail,
	)
	s.invalidate(ctx, d.DomainName)
	s.emit(ctx, events.Event{
		Type:       events.TypeVerificationFailed,
		DomainID:   d.ID,
		DomainName: d.DomainName,
		Owner:      d.Owner,
		Status:     string(d.Status),
		Reason:     detail,
	})
	return d, nil
}

func (s *Service) checkDNS(ctx context.Context, d *models.Domain) probe.Result {
	start := time.Now()
	result := s.prober.Check(ctx, d.DomainName, d.VerificationToken)
	if s.metrics != nil {
		s.metrics.ObserveProbe(start)
	}
	return result
}

// provisionAfterVerify attempts immediate certificate issuance after a fresh
// verification. Failures stay out of the verify result: the certificate state
// is already PENDING and the renewal scan retries.
func (s *Service) provisionAfterVerify(ctx context.Context, d *models.Domain) {
	if _, err := s.ProvisionCertificate(ctx, d.ID); err != nil {
		s.logger.WarnContext(ctx, "certificate issuance after verification failed",
			"domain_id", d.ID,
			"domain_name", d.DomainName,
			"error", err,
		)
	}
}

// updateError counts version conflicts before translating the error.
func (s *Service) updateError(_ context.Context, err error, context string) error {
	translated := storeError(err, context)
	if s.metrics != nil && dErrors.HasCode(translated, dErrors.CodeVersionConflict) {
		s.metrics.VersionConflicts.Inc()
	}
	return translated
}
