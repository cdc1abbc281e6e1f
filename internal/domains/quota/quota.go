// Package quota enforces per-owner custom domain allowances.
package quota

import (
	"context"

	"linkforge/internal/plans"
	id "linkforge/pkg/domain"
	dErrors "linkforge/pkg/domain-errors"
)

// HasCapacity reports whether an owner holding activeCount domains may
// reserve one more under the given quota.
func HasCapacity(activeCount, quota int) bool {
	return activeCount < quota
}

// ActiveCounter counts the domains that occupy quota for an owner.
// Deleted domains and domains in ERROR or SUSPENDED status are excluded.
type ActiveCounter interface {
	CountActiveByOwner(ctx context.Context, owner id.Owner) (int, error)
}

// Checker resolves an owner's plan and verifies headroom before a reservation.
type Checker struct {
	catalog  plans.Catalog
	resolver plans.Resolver
	counter  ActiveCounter
}

func NewChecker(catalog plans.Catalog, resolver plans.Resolver, counter ActiveCounter) *Checker {
	return &Checker{catalog: catalog, resolver: resolver, counter: counter}
}

// Check returns nil when the owner may reserve another domain, or a
// quota_exceeded error carrying the plan's limit when they may not.
func (c *Checker) Check(ctx context.Context, owner id.Owner) error {
	plan, err := c.resolver.PlanFor(ctx, owner)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "resolving owner plan")
	}

	limit := c.catalog.QuotaFor(plan)
	if limit <= 0 {
		return dErrors.Newf(dErrors.CodeQuotaExceeded, "plan %q does not include custom domains", plan)
	}

	active, err := c.counter.CountActiveByOwner(ctx, owner)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "counting active domains")
	}
	if !HasCapacity(active, limit) {
		return dErrors.Newf(dErrors.CodeQuotaExceeded, "plan %q allows %d custom domains, %d in use", plan, limit, active)
	}
	return nil
}
