package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"linkforge/internal/domains/models"
	"linkforge/internal/domains/risk"
	"linkforge/internal/events"
	id "linkforge/pkg/domain"
	dErrors "linkforge/pkg/domain-errors"
	"linkforge/pkg/requestcontext"
)

// Blacklist suspends the domain immediately. The eligibility cache is
// invalidated in the same call, so the serving path stops on the next
// request, not at cache expiry.
//
// Admin-only; the handler layer enforces the token, this layer enforces the
// actor flag as a second gate.
func (s *Service) Blacklist(ctx context.Context, domainID id.DomainID, reason string) (*models.Domain, error) {
	ctx, span := s.startSpan(ctx, "domains.Blacklist", domainID)
	defer span.End()

	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "blacklist reason is required")
	}

	d, err := s.load(ctx, domainID)
	if err != nil {
		return nil, err
	}
	if err := d.CanBlacklist(); err != nil {
		return nil, err
	}

	d.ApplyBlacklist(reason, requestcontext.Now(ctx))
	if err := s.store.Update(ctx, d); err != nil {
		return nil, s.updateError(ctx, err, "blacklist domain")
	}

	s.logger.WarnContext(ctx, "domain blacklisted",
		"domain_id", d.ID,
		"domain_name", d.DomainName,
		"reason", reason,
	)
	if s.metrics != nil {
		s.metrics.DomainsBlacklisted.Inc()
	}
	s.invalidate(ctx, d.DomainName)
	s.emit(ctx, events.Event{
		Type:       events.TypeDomainBlacklisted,
		DomainID:   d.ID,
		DomainName: d.DomainName,
		Owner:      d.Owner,
		Status:     string(d.Status),
		Reason:     reason,
	})
	return d, nil
}

// Unblacklist restores the domain to its pre-suspension status. A downgraded
// certificate is not resurrected; the renewal scan reissues it once the
// domain is VERIFIED again.
func (s *Service) Unblacklist(ctx context.Context, domainID id.DomainID) (*models.Domain, error) {
	ctx, span := s.startSpan(ctx, "domains.Unblacklist", domainID)
	defer span.End()

	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	d, err := s.load(ctx, domainID)
	if err != nil {
		return nil, err
	}
	if err := d.CanUnblacklist(); err != nil {
		return nil, err
	}

	d.ApplyUnblacklist(requestcontext.Now(ctx))
	if err := s.store.Update(ctx, d); err != nil {
		return nil, s.updateError(ctx, err, "unblacklist domain")
	}

	s.logger.InfoContext(ctx, "domain unblacklisted",
		"domain_id", d.ID,
		"domain_name", d.DomainName,
		"restored_status", d.Status,
	)
	s.invalidate(ctx, d.DomainName)
	s.emit(ctx, events.Event{
		Type:       events.TypeDomainUnblacklisted,
		DomainID:   d.ID,
		DomainName: d.DomainName,
		Owner:      d.Owner,
		Status:     string(d.Status),
	})
	return d, nil
}

// Rescore recomputes the domain's abuse risk from current signals. When the
// auto-suspension policy is enabled, a CRITICAL result suspends the domain in
// the same write.
func (s *Service) Rescore(ctx context.Context, domainID id.DomainID) (*models.Domain, error) {
	ctx, span := s.startSpan(ctx, "domains.Rescore", domainID)
	defer span.End()

	d, err := s.load(ctx, domainID)
	if err != nil {
		return nil, err
	}
	if d.Status == models.StatusSuspended {
		return d, nil
	}

	signals, err := s.gatherSignals(ctx, d)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	score, classification := risk.Score(d, signals, now)
	span.SetAttributes(
		attribute.Float64("risk.score", score),
		attribute.String("risk.classification", string(classification)),
	)
	d.ApplyRiskScore(score, classification, now)

	suspended := false
	if classification == models.RiskCritical && s.policy.AutoSuspendCritical && d.CanBlacklist() == nil {
		d.ApplyBlacklist("automatic suspension: critical abuse risk", now)
		suspended = true
	}

	if err := s.store.Update(ctx, d); err != nil {
		return nil, s.updateError(ctx, err, "rescore domain")
	}

	if s.metrics != nil {
		s.metrics.RiskClassifications.WithLabelValues(string(classification)).Inc()
	}
	if suspended {
		s.logger.WarnContext(ctx, "domain auto-suspended at critical risk",
			"domain_id", d.ID,
			"domain_name", d.DomainName,
			"risk_score", score,
		)
		s.invalidate(ctx, d.DomainName)
		s.emit(ctx, events.Event{
			Type:       events.TypeDomainSuspendedForRisk,
			DomainID:   d.ID,
			DomainName: d.DomainName,
			Owner:      d.Owner,
			Status:     string(d.Status),
			Reason:     d.BlacklistReason,
		})
	}
	return d, nil
}

// gatherSignals collects the behavioral inputs to the scorer. Owner history
// is approximated by the owner's currently blacklisted domains.
func (s *Service) gatherSignals(ctx context.Context, d *models.Domain) (risk.Signals, error) {
	var signals risk.Signals

	listed, err := s.reputation.Contains(ctx, d.DomainName)
	if err != nil {
		// A feed outage must not stall rescoring; score without it.
		s.logger.WarnContext(ctx, "reputation feed lookup failed",
			"domain_name", d.DomainName,
			"error", err,
		)
	} else {
		signals.OnReputationFeed = listed
	}

	owned, err := s.store.ListByOwner(ctx, d.Owner)
	if err != nil {
		return signals, storeError(err, "list owner domains for rescoring")
	}
	for _, other := range owned {
		if other.Blacklisted && other.ID != d.ID {
			signals.OwnerBlacklistEvents++
		}
	}
	return signals, nil
}

func requireAdmin(ctx context.Context) error {
	actor := requestcontext.Actor(ctx)
	if actor == (requestcontext.ActorInfo{}) || actor.Admin {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "admin access required")
}
