package domain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkforge/internal/domains/models"
	id "linkforge/pkg/domain"
	"linkforge/pkg/platform/sentinel"
	"linkforge/pkg/requestcontext"
)

var storeNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func storeCtx(now time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), now)
}

func reservation(t *testing.T, name string) *models.Domain {
	t.Helper()
	owner := id.Owner{ID: id.NewOwnerID(), Type: id.OwnerTypeUser}
	d, err := models.NewReservation(id.NewDomainID(), name, owner, models.NewVerificationToken(), 24*time.Hour, storeNow)
	require.NoError(t, err)
	return d
}

func TestMemoryInsertAndFind(t *testing.T) {
	store := NewMemory()
	ctx := storeCtx(storeNow)
	d := reservation(t, "links.example.com")

	require.NoError(t, store.Insert(ctx, d))

	byID, err := store.FindByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.DomainName, byID.DomainName)

	byName, err := store.FindByName(ctx, "links.example.com")
	require.NoError(t, err)
	assert.Equal(t, d.ID, byName.ID)

	byToken, err := store.FindByToken(ctx, d.VerificationToken)
	require.NoError(t, err)
	assert.Equal(t, d.ID, byToken.ID)
}

func TestMemoryFindMissingReturnsNotFound(t *testing.T) {
	store := NewMemory()
	ctx := storeCtx(storeNow)

	_, err := store.FindByID(ctx, id.NewDomainID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	_, err = store.FindByName(ctx, "missing.example.com")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemoryInsertDuplicateNameConflicts(t *testing.T) {
	store := NewMemory()
	ctx := storeCtx(storeNow)

	require.NoError(t, store.Insert(ctx, reservation(t, "links.example.com")))

	err := store.Insert(ctx, reservation(t, "links.example.com"))
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestMemoryDeletedNameHeldUntilRetentionPasses(t *testing.T) {
	store := NewMemory()
	ctx := storeCtx(storeNow)
	d := reservation(t, "links.example.com")
	require.NoError(t, store.Insert(ctx, d))

	d.ApplySoftDelete(30*24*time.Hour, storeNow)
	require.NoError(t, store.Update(ctx, d))

	err := store.Insert(ctx, reservation(t, "links.example.com"))
	assert.ErrorIs(t, err, sentinel.ErrConflict, "name is held during retention")

	afterRetention := storeCtx(storeNow.Add(31 * 24 * time.Hour))
	assert.NoError(t, store.Insert(afterRetention, reservation(t, "links.example.com")))
}

func TestMemoryDeletedDomainInvisibleByName(t *testing.T) {
	store := NewMemory()
	ctx := storeCtx(storeNow)
	d := reservation(t, "links.example.com")
	require.NoError(t, store.Insert(ctx, d))

	d.ApplySoftDelete(30*24*time.Hour, storeNow)
	require.NoError(t, store.Update(ctx, d))

	_, err := store.FindByName(ctx, "links.example.com")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	// The record itself stays reachable by id.
	byID, err := store.FindByID(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, byID.IsDeleted())
}

func TestMemoryUpdateBumpsVersion(t *testing.T) {
	store := NewMemory()
	ctx := storeCtx(storeNow)
	d := reservation(t, "links.example.com")
	require.NoError(t, store.Insert(ctx, d))

	d.ApplyVerificationSuccess(storeNow, 24*time.Hour)
	require.NoError(t, store.Update(ctx, d))
	assert.Equal(t, int64(2), d.Version)

	stored, err := store.FindByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, models.StatusVerified, stored.Status)
}

func TestMemoryUpdateStaleVersionConflicts(t *testing.T) {
	store := NewMemory()
	ctx := storeCtx(storeNow)
	d := reservation(t, "links.example.com")
	require.NoError(t, store.Insert(ctx, d))

	first, err := store.FindByID(ctx, d.ID)
	require.NoError(t, err)
	second, err := store.FindByID(ctx, d.ID)
	require.NoError(t, err)

	first.ApplyVerificationFailure("probe timeout", 5, storeNow)
	require.NoError(t, store.Update(ctx, first))

	second.ApplyVerificationFailure("probe timeout", 5, storeNow)
	err = store.Update(ctx, second)
	assert.ErrorIs(t, err, sentinel.ErrVersionConflict)

	stored, err := store.FindByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.VerificationAttempts, "losing write is discarded")
}

func TestMemoryReadsDoNotAliasStoredState(t *testing.T) {
	store := NewMemory()
	ctx := storeCtx(storeNow)
	d := reservation(t, "links.example.com")
	require.NoError(t, store.Insert(ctx, d))

	read, err := store.FindByID(ctx, d.ID)
	require.NoError(t, err)
	read.Status = models.StatusSuspended

	stored, err := store.FindByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReserved, stored.Status)
}

func TestMemoryCountActiveByOwner(t *testing.T) {
	store := NewMemory()
	ctx := storeCtx(storeNow)
	owner := id.Owner{ID: id.NewOwnerID(), Type: id.OwnerTypeTeam}

	for _, name := range []string{"a.example.com", "b.example.com", "c.example.com"} {
		d, err := models.NewReservation(id.NewDomainID(), name, owner, models.NewVerificationToken(), 24*time.Hour, storeNow)
		require.NoError(t, err)
		require.NoError(t, store.Insert(ctx, d))
	}

	// A deleted domain frees its slot.
	d, err := store.FindByName(ctx, "c.example.com")
	require.NoError(t, err)
	d.ApplySoftDelete(30*24*time.Hour, storeNow)
	require.NoError(t, store.Update(ctx, d))

	count, err := store.CountActiveByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMemoryListByOwnerExcludesDeleted(t *testing.T) {
	store := NewMemory()
	ctx := storeCtx(storeNow)
	owner := id.Owner{ID: id.NewOwnerID(), Type: id.OwnerTypeUser}

	kept, err := models.NewReservation(id.NewDomainID(), "kept.example.com", owner, models.NewVerificationToken(), 24*time.Hour, storeNow)
	require.NoError(t, err)
	require.NoError(t, store.Insert(ctx, kept))

	gone, err := models.NewReservation(id.NewDomainID(), "gone.example.com", owner, models.NewVerificationToken(), 24*time.Hour, storeNow)
	require.NoError(t, err)
	require.NoError(t, store.Insert(ctx, gone))
	gone.ApplySoftDelete(30*24*time.Hour, storeNow)
	require.NoError(t, store.Update(ctx, gone))

	list, err := store.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "kept.example.com", list[0].DomainName)
}

func TestMemoryDueForVerificationScan(t *testing.T) {
	store := NewMemory()
	ctx := storeCtx(storeNow)

	fresh := reservation(t, "fresh.example.com")
	require.NoError(t, store.Insert(ctx, fresh))

	expired := reservation(t, "expired.example.com")
	past := storeNow.Add(-time.Hour)
	expired.ReservedUntil = &past
	require.NoError(t, store.Insert(ctx, expired))

	verified := reservation(t, "done.example.com")
	verified.ApplyVerificationSuccess(storeNow, 24*time.Hour)
	require.NoError(t, store.Insert(ctx, verified))

	due, err := store.DueForVerification(ctx, storeNow, 100)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "fresh.example.com", due[0].DomainName)
}

func TestMemoryDueForReconfirmationScan(t *testing.T) {
	store := NewMemory()
	ctx := storeCtx(storeNow)

	overdue := reservation(t, "overdue.example.com")
	overdue.ApplyVerificationSuccess(storeNow.Add(-48*time.Hour), 24*time.Hour)
	require.NoError(t, store.Insert(ctx, overdue))

	current := reservation(t, "current.example.com")
	current.ApplyVerificationSuccess(storeNow, 24*time.Hour)
	require.NoError(t, store.Insert(ctx, current))

	due, err := store.DueForReconfirmation(ctx, storeNow, 100)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "overdue.example.com", due[0].DomainName)
}

func TestMemoryDueForRenewalScan(t *testing.T) {
	store := NewMemory()
	ctx := storeCtx(storeNow)
	window := 30 * 24 * time.Hour

	pending := reservation(t, "pending.example.com")
	pending.ApplyVerificationSuccess(storeNow, 24*time.Hour)
	require.NoError(t, store.Insert(ctx, pending))

	nearExpiry := reservation(t, "near.example.com")
	nearExpiry.ApplyVerificationSuccess(storeNow, 24*time.Hour)
	nearExpiry.ApplySSLIssued("letsencrypt", storeNow.Add(10*24*time.Hour), storeNow)
	require.NoError(t, store.Insert(ctx, nearExpiry))

	healthy := reservation(t, "healthy.example.com")
	healthy.ApplyVerificationSuccess(storeNow, 24*time.Hour)
	healthy.ApplySSLIssued("letsencrypt", storeNow.Add(80*24*time.Hour), storeNow)
	require.NoError(t, store.Insert(ctx, healthy))

	due, err := store.DueForRenewal(ctx, storeNow, window, 100)
	require.NoError(t, err)
	names := []string{}
	for _, d := range due {
		names = append(names, d.DomainName)
	}
	assert.ElementsMatch(t, []string{"pending.example.com", "near.example.com"}, names)
}

func TestMemoryExpiredReservationsScan(t *testing.T) {
	store := NewMemory()
	ctx := storeCtx(storeNow)

	expired := reservation(t, "expired.example.com")
	past := storeNow.Add(-time.Minute)
	expired.ReservedUntil = &past
	require.NoError(t, store.Insert(ctx, expired))

	fresh := reservation(t, "fresh.example.com")
	require.NoError(t, store.Insert(ctx, fresh))

	due, err := store.ExpiredReservations(ctx, storeNow, 100)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "expired.example.com", due[0].DomainName)
}

func TestMemoryDueForRescoreScan(t *testing.T) {
	store := NewMemory()
	ctx := storeCtx(storeNow)
	interval := 6 * time.Hour

	never := reservation(t, "never.example.com")
	require.NoError(t, store.Insert(ctx, never))

	stale := reservation(t, "stale.example.com")
	stale.ApplyRiskScore(10, models.RiskLow, storeNow.Add(-12*time.Hour))
	require.NoError(t, store.Insert(ctx, stale))

	recent := reservation(t, "recent.example.com")
	recent.ApplyRiskScore(10, models.RiskLow, storeNow.Add(-time.Hour))
	require.NoError(t, store.Insert(ctx, recent))

	due, err := store.DueForRescore(ctx, interval, storeNow, 100)
	require.NoError(t, err)
	names := []string{}
	for _, d := range due {
		names = append(names, d.DomainName)
	}
	assert.ElementsMatch(t, []string{"never.example.com", "stale.example.com"}, names)
}

func TestMemoryScanHonorsLimit(t *testing.T) {
	store := NewMemory()
	ctx := storeCtx(storeNow)

	for _, name := range []string{"a.example.com", "b.example.com", "c.example.com"} {
		require.NoError(t, store.Insert(ctx, reservation(t, name)))
	}

	due, err := store.DueForVerification(ctx, storeNow, 2)
	require.NoError(t, err)
	assert.Len(t, due, 2)
}
