package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"linkforge/internal/domains/models"
	"linkforge/internal/events"
	id "linkforge/pkg/domain"
	dErrors "linkforge/pkg/domain-errors"
	"linkforge/pkg/requestcontext"
)

// Reserve creates a RESERVED domain for the owner. The name is normalized and
// validated, quota is checked before any write, and the fresh verification
// token is returned on the record for the owner to publish in DNS.
//
// Errors: CodeInvalidHostname, CodeQuotaExceeded, CodeDuplicateDomain.
func (s *Service) Reserve(ctx context.Context, rawName string, owner id.Owner) (*models.Domain, error) {
	ctx, span := s.startSpan(ctx, "domains.Reserve", id.DomainID{})
	defer span.End()

	name := models.NormalizeHostname(rawName)
	if err := models.ValidateHostname(name); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("domain.name", name))

	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if err := s.authorizeOwner(ctx, owner); err != nil {
		return nil, err
	}
	if err := s.quota.Check(ctx, owner); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	d, err := models.NewReservation(id.NewDomainID(), name, owner, models.NewVerificationToken(), s.policy.ReservationWindow, now)
	if err != nil {
		return nil, err
	}

	if err := s.store.Insert(ctx, d); err != nil {
		return nil, storeError(err, "reserve domain")
	}

	s.logger.InfoContext(ctx, "domain reserved",
		"domain_id", d.ID,
		"domain_name", d.DomainName,
		"owner_id", owner.ID,
		"reserved_until", d.ReservedUntil,
	)
	if s.metrics != nil {
		s.metrics.DomainsReserved.Inc()
	}
	s.emit(ctx, events.Event{
		Type:       events.TypeDomainReserved,
		DomainID:   d.ID,
		DomainName: d.DomainName,
		Owner:      d.Owner,
		Status:     string(d.Status),
	})
	return d, nil
}

// Get returns a live domain. The caller must own it unless they are an admin.
func (s *Service) Get(ctx context.Context, domainID id.DomainID) (*models.Domain, error) {
	d, err := s.load(ctx, domainID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// ListByOwner returns the owner's live domains.
func (s *Service) ListByOwner(ctx context.Context, owner id.Owner) ([]*models.Domain, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if err := s.authorizeOwner(ctx, owner); err != nil {
		return nil, err
	}
	domains, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, storeError(err, "list domains")
	}
	return domains, nil
}

// Delete soft-deletes the domain. The name stays held for the retention
// window; quota is freed immediately.
func (s *Service) Delete(ctx context.Context, domainID id.DomainID) error {
	ctx, span := s.startSpan(ctx, "domains.Delete", domainID)
	defer span.End()

	d, err := s.load(ctx, domainID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, d); err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	d.ApplySoftDelete(s.policy.DeleteRetentionWindow, now)
	if err := s.store.Update(ctx, d); err != nil {
		return storeError(err, "delete domain")
	}

	s.logger.InfoContext(ctx, "domain deleted",
		"domain_id", d.ID,
		"domain_name", d.DomainName,
		"name_retained_until", d.NameRetainedUntil,
	)
	if s.metrics != nil {
		s.metrics.DomainsDeleted.Inc()
	}
	s.invalidate(ctx, d.DomainName)
	s.emit(ctx, events.Event{
		Type:       events.TypeDomainDeleted,
		DomainID:   d.ID,
		DomainName: d.DomainName,
		Owner:      d.Owner,
		Status:     string(d.Status),
	})
	return nil
}

// TransferOwnership moves the domain to a new owner without disturbing its
// verification or certificate state. The new owner's quota must have room
// when the domain occupies a slot.
func (s *Service) TransferOwnership(ctx context.Context, domainID id.DomainID, newOwner id.Owner, migrateLinks bool) (*models.Domain, error) {
	ctx, span := s.startSpan(ctx, "domains.TransferOwnership", domainID)
	defer span.End()

	d, err := s.load(ctx, domainID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, d); err != nil {
		return nil, err
	}
	if err := d.CanTransferTo(newOwner); err != nil {
		return nil, err
	}
	if d.Owner == newOwner {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "domain already belongs to that owner")
	}
	if d.CountsTowardQuota() {
		if err := s.quota.Check(ctx, newOwner); err != nil {
			return nil, err
		}
	}

	previous := d.Owner
	now := requestcontext.Now(ctx)
	d.ApplyTransfer(newOwner, migrateLinks, now)
	if err := s.store.Update(ctx, d); err != nil {
		return nil, storeError(err, "transfer domain")
	}

	s.logger.InfoContext(ctx, "domain transferred",
		"domain_id", d.ID,
		"domain_name", d.DomainName,
		"previous_owner_id", previous.ID,
		"new_owner_id", newOwner.ID,
		"migrate_links", migrateLinks,
	)
	s.emit(ctx, events.Event{
		Type:          events.TypeDomainTransferred,
		DomainID:      d.ID,
		DomainName:    d.DomainName,
		Owner:         d.Owner,
		Status:        string(d.Status),
		PreviousOwner: &previous,
		MigrateLinks:  migrateLinks,
	})
	return d, nil
}

// ResetVerification issues a fresh token and returns an ERROR domain to
// RESERVED for another verification run. Only ERROR domains qualify; the
// reset and the new token land in one atomic write.
func (s *Service) ResetVerification(ctx context.Context, domainID id.DomainID) (*models.Domain, error) {
	ctx, span := s.startSpan(ctx, "domains.ResetVerification", domainID)
	defer span.End()

	d, err := s.load(ctx, domainID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, d); err != nil {
		return nil, err
	}
	if err := d.CanResetVerification(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	d.ApplyVerificationReset(models.NewVerificationToken(), s.policy.ReservationWindow, now)
	if err := s.store.Update(ctx, d); err != nil {
		return nil, storeError(err, "reset verification")
	}

	s.logger.InfoContext(ctx, "domain verification reset",
		"domain_id", d.ID,
		"domain_name", d.DomainName,
		"reserved_until", d.ReservedUntil,
	)
	s.emit(ctx, events.Event{
		Type:       events.TypeVerificationReset,
		DomainID:   d.ID,
		DomainName: d.DomainName,
		Owner:      d.Owner,
		Status:     string(d.Status),
	})
	return d, nil
}

// ExpireReservation reclaims a RESERVED domain whose window has passed. The
// scheduler drives this; the record soft-deletes so the name frees up after
// the retention window.
func (s *Service) ExpireReservation(ctx context.Context, domainID id.DomainID) error {
	ctx, span := s.startSpan(ctx, "domains.ExpireReservation", domainID)
	defer span.End()

	d, err := s.load(ctx, domainID)
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)
	if !d.ReservationExpired(now) {
		return dErrors.New(dErrors.CodeInvalidInput, "reservation has not expired")
	}

	d.ApplySoftDelete(s.policy.DeleteRetentionWindow, now)
	if err := s.store.Update(ctx, d); err != nil {
		return storeError(err, "expire reservation")
	}

	s.logger.InfoContext(ctx, "reservation expired",
		"domain_id", d.ID,
		"domain_name", d.DomainName,
	)
	if s.metrics != nil {
		s.metrics.ReservationsExpired.Inc()
	}
	s.emit(ctx, events.Event{
		Type:       events.TypeReservationExpired,
		DomainID:   d.ID,
		DomainName: d.DomainName,
		Owner:      d.Owner,
		Status:     string(d.Status),
	})
	return nil
}
