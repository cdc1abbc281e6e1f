package plans

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "linkforge/pkg/domain"
)

func TestStaticCatalogDefaults(t *testing.T) {
	catalog := NewStaticCatalog(nil)

	assert.Equal(t, 0, catalog.QuotaFor(PlanFree))
	assert.Equal(t, 1, catalog.QuotaFor(PlanStarter))
	assert.Equal(t, 5, catalog.QuotaFor(PlanPro))
	assert.Equal(t, 25, catalog.QuotaFor(PlanBusiness))
}

func TestStaticCatalogUnknownPlanGetsFreeQuota(t *testing.T) {
	catalog := NewStaticCatalog(nil)

	assert.Equal(t, 0, catalog.QuotaFor(Plan("enterprise")))
	assert.Equal(t, 0, catalog.QuotaFor(Plan("")))
}

func TestStaticCatalogOverrides(t *testing.T) {
	catalog := NewStaticCatalog(map[Plan]int{PlanFree: 1, PlanPro: 10})

	assert.Equal(t, 1, catalog.QuotaFor(PlanFree))
	assert.Equal(t, 10, catalog.QuotaFor(PlanPro))
	assert.Equal(t, 25, catalog.QuotaFor(PlanBusiness))
}

func TestStaticCatalogIsCaseInsensitive(t *testing.T) {
	catalog := NewStaticCatalog(nil)

	assert.Equal(t, 5, catalog.QuotaFor(Plan("Pro")))
	assert.Equal(t, 25, catalog.QuotaFor(Plan("BUSINESS")))
}

func TestInMemoryResolver(t *testing.T) {
	resolver := NewInMemoryResolver()
	owner := id.Owner{ID: id.NewOwnerID(), Type: id.OwnerTypeUser}

	plan, err := resolver.PlanFor(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, PlanFree, plan, "unassigned owners default to free")

	resolver.Assign(owner.ID, PlanBusiness)

	plan, err = resolver.PlanFor(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, PlanBusiness, plan)
}
