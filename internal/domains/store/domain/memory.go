// Package domain persists the Domain aggregate. Two implementations share one
// contract: the in-memory store for tests and development, and PostgreSQL for
// production.
//
// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested record does not exist
// - Return ErrConflict when a unique index (name, token) would be violated
// - Return ErrVersionConflict when an update's expected version is stale
// - Return wrapped errors with context for infrastructure failures
package domain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"linkforge/internal/domains/models"
	id "linkforge/pkg/domain"
	"linkforge/pkg/platform/sentinel"
	"linkforge/pkg/requestcontext"
)

// InMemoryStore keeps domain records in memory for tests/dev. Records are
// cloned on the way in and out so callers never alias stored state.
type InMemoryStore struct {
	mu      sync.RWMutex
	domains map[id.DomainID]*models.Domain
}

// NewMemory constructs an empty in-memory domain store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{domains: make(map[id.DomainID]*models.Domain)}
}

func (s *InMemoryStore) Insert(ctx context.Context, d *models.Domain) error {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.domains {
		if existing.DomainName == d.DomainName && nameHeld(existing, now) {
			return fmt.Errorf("domain name %q already registered: %w", d.DomainName, sentinel.ErrConflict)
		}
		if existing.VerificationToken == d.VerificationToken && !existing.IsDeleted() {
			return fmt.Errorf("verification token collision: %w", sentinel.ErrConflict)
		}
	}

	s.domains[d.ID] = clone(d)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, domainID id.DomainID) (*models.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.domains[domainID]; ok {
		return clone(d), nil
	}
	return nil, fmt.Errorf("domain not found: %w", sentinel.ErrNotFound)
}

// FindByName resolves a live (non-deleted) record by its normalized hostname.
func (s *InMemoryStore) FindByName(_ context.Context, name string) (*models.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.domains {
		if d.DomainName == name && !d.IsDeleted() {
			return clone(d), nil
		}
	}
	return nil, fmt.Errorf("domain not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindByToken(_ context.Context, token string) (*models.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.domains {
		if d.VerificationToken == token && !d.IsDeleted() {
			return clone(d), nil
		}
	}
	return nil, fmt.Errorf("domain not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListByOwner(_ context.Context, owner id.Owner) ([]*models.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*models.Domain
	for _, d := range s.domains {
		if d.Owner == owner && !d.IsDeleted() {
			result = append(result, clone(d))
		}
	}
	return result, nil
}

func (s *InMemoryStore) CountActiveByOwner(_ context.Context, owner id.Owner) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, d := range s.domains {
		if d.Owner == owner && d.CountsTowardQuota() {
			count++
		}
	}
	return count, nil
}

// Update persists the record if the caller's Version matches the stored one,
// then increments Version on both the stored copy and the caller's record.
func (s *InMemoryStore) Update(_ context.Context, d *models.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.domains[d.ID]
	if !ok {
		return fmt.Errorf("domain not found: %w", sentinel.ErrNotFound)
	}
	if current.Version != d.Version {
		return fmt.Errorf("domain %s expected version %d, have %d: %w",
			d.ID, d.Version, current.Version, sentinel.ErrVersionConflict)
	}

	d.Version++
	s.domains[d.ID] = clone(d)
	return nil
}

// DueForVerification returns RESERVED and PENDING candidates for the probe
// scan. Backoff eligibility is the scheduler's call, not the store's.
func (s *InMemoryStore) DueForVerification(_ context.Context, now time.Time, limit int) ([]*models.Domain, error) {
	return s.scan(limit, func(d *models.Domain) bool {
		if d.IsDeleted() || d.Blacklisted {
			return false
		}
		if d.Status == models.StatusReserved {
			return !d.ReservationExpired(now)
		}
		return d.Status == models.StatusPending
	})
}

func (s *InMemoryStore) DueForReconfirmation(_ context.Context, now time.Time, limit int) ([]*models.Domain, error) {
	return s.scan(limit, func(d *models.Domain) bool {
		return !d.IsDeleted() && !d.Blacklisted &&
			d.Status == models.StatusVerified &&
			d.NextReconfirmationDue != nil && !now.Before(*d.NextReconfirmationDue)
	})
}

func (s *InMemoryStore) DueForRenewal(_ context.Context, now time.Time, renewalWindow time.Duration, limit int) ([]*models.Domain, error) {
	return s.scan(limit, func(d *models.Domain) bool {
		return !d.Blacklisted && d.SSLRenewalDue(renewalWindow, now)
	})
}

func (s *InMemoryStore) ExpiredReservations(_ context.Context, now time.Time, limit int) ([]*models.Domain, error) {
	return s.scan(limit, func(d *models.Domain) bool {
		return !d.IsDeleted() && d.ReservationExpired(now)
	})
}

func (s *InMemoryStore) DueForRescore(_ context.Context, interval time.Duration, now time.Time, limit int) ([]*models.Domain, error) {
	return s.scan(limit, func(d *models.Domain) bool {
		return d.RescoreDue(interval, now)
	})
}

func (s *InMemoryStore) scan(limit int, match func(*models.Domain) bool) ([]*models.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*models.Domain
	for _, d := range s.domains {
		if !match(d) {
			continue
		}
		result = append(result, clone(d))
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// nameHeld reports whether a record still blocks its name: live records
// always do, deleted ones until the retention deadline passes.
func nameHeld(d *models.Domain, now time.Time) bool {
	if !d.IsDeleted() {
		return true
	}
	return d.NameRetainedUntil != nil && now.Before(*d.NameRetainedUntil)
}

func clone(d *models.Domain) *models.Domain {
	c := *d
	c.LastVerificationAttempt = cloneTime(d.LastVerificationAttempt)
	c.NextReconfirmationDue = cloneTime(d.NextReconfirmationDue)
	c.ReservedUntil = cloneTime(d.ReservedUntil)
	c.SSLIssuedAt = cloneTime(d.SSLIssuedAt)
	c.SSLExpiresAt = cloneTime(d.SSLExpiresAt)
	c.RiskScoredAt = cloneTime(d.RiskScoredAt)
	c.LastUsed = cloneTime(d.LastUsed)
	c.DeletedAt = cloneTime(d.DeletedAt)
	c.NameRetainedUntil = cloneTime(d.NameRetainedUntil)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
