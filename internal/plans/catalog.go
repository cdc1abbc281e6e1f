// Package plans exposes the billing catalog's custom-domain allowances.
// The catalog itself lives in the billing system; this is the consumed view.
package plans

import (
	"context"
	"strings"
	"sync"

	id "linkforge/pkg/domain"
)

// Plan names the known subscription tiers.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanStarter  Plan = "starter"
	PlanPro      Plan = "pro"
	PlanBusiness Plan = "business"
)

// defaultQuotas maps each plan to its customDomainQuota.
var defaultQuotas = map[Plan]int{
	PlanFree:     0,
	PlanStarter:  1,
	PlanPro:      5,
	PlanBusiness: 25,
}

// Catalog answers quota questions for plans.
type Catalog interface {
	// QuotaFor returns the number of custom domains the plan permits.
	// Unknown plans get the free allowance.
	QuotaFor(plan Plan) int
}

// Resolver maps an owner to their current plan. Backed by the billing system
// in production; the in-memory implementation serves tests and development.
type Resolver interface {
	PlanFor(ctx context.Context, owner id.Owner) (Plan, error)
}

// StaticCatalog is the built-in plan table.
type StaticCatalog struct {
	quotas map[Plan]int
}

// NewStaticCatalog returns a catalog with the default quotas, optionally
// overridden per plan.
func NewStaticCatalog(overrides map[Plan]int) *StaticCatalog {
	quotas := make(map[Plan]int, len(defaultQuotas))
	for plan, quota := range defaultQuotas {
		quotas[plan] = quota
	}
	for plan, quota := range overrides {
		quotas[plan] = quota
	}
	return &StaticCatalog{quotas: quotas}
}

func (c *StaticCatalog) QuotaFor(plan Plan) int {
	if quota, ok := c.quotas[Plan(strings.ToLower(string(plan)))]; ok {
		return quota
	}
	return c.quotas[PlanFree]
}

// InMemoryResolver assigns plans to owners directly. Owners without an
// assignment default to the free plan.
type InMemoryResolver struct {
	mu    sync.RWMutex
	plans map[id.OwnerID]Plan
}

func NewInMemoryResolver() *InMemoryResolver {
	return &InMemoryResolver{plans: make(map[id.OwnerID]Plan)}
}

// Assign sets the owner's plan.
func (r *InMemoryResolver) Assign(ownerID id.OwnerID, plan Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[ownerID] = plan
}

func (r *InMemoryResolver) PlanFor(_ context.Context, owner id.Owner) (Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if plan, ok := r.plans[owner.ID]; ok {
		return plan, nil
	}
	return PlanFree, nil
}

// FixedResolver resolves every owner to the same plan. Deployments without a
// billing collaborator run with this until per-owner plan lookups exist.
type FixedResolver struct {
	Plan Plan
}

func (r FixedResolver) PlanFor(context.Context, id.Owner) (Plan, error) {
	return ParsePlan(string(r.Plan)), nil
}

// ParsePlan normalizes a plan name, falling back to free for unknown values.
func ParsePlan(s string) Plan {
	plan := Plan(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := defaultQuotas[plan]; ok {
		return plan
	}
	return PlanFree
}
