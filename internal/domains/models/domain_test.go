package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "linkforge/pkg/domain"
	dErrors "linkforge/pkg/domain-errors"
)

var (
	testNow    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testWindow = 24 * time.Hour
)

func newTestOwner() id.Owner {
	return id.Owner{ID: id.NewOwnerID(), Type: id.OwnerTypeUser}
}

func newReserved(t *testing.T) *Domain {
	t.Helper()
	d, err := NewReservation(id.NewDomainID(), "go.acme.com", newTestOwner(), NewVerificationToken(), testWindow, testNow)
	require.NoError(t, err)
	return d
}

func newVerified(t *testing.T) *Domain {
	t.Helper()
	d := newReserved(t)
	d.ApplyVerificationSuccess(testNow, testWindow)
	return d
}

func TestNewReservation(t *testing.T) {
	t.Run("starts RESERVED with a reservation deadline", func(t *testing.T) {
		d := newReserved(t)
		assert.Equal(t, StatusReserved, d.Status)
		require.NotNil(t, d.ReservedUntil)
		assert.Equal(t, testNow.Add(testWindow), *d.ReservedUntil)
		assert.Equal(t, SSLNone, d.SSLStatus)
		assert.Equal(t, int64(1), d.Version)
	})

	t.Run("rejects invalid hostname", func(t *testing.T) {
		_, err := NewReservation(id.NewDomainID(), "not_a_host!", newTestOwner(), "tok", testWindow, testNow)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidHostname))
	})

	t.Run("rejects zero owner", func(t *testing.T) {
		_, err := NewReservation(id.NewDomainID(), "go.acme.com", id.Owner{}, "tok", testWindow, testNow)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestVerificationSuccess(t *testing.T) {
	t.Run("transitions RESERVED to VERIFIED and clears the reservation", func(t *testing.T) {
		d := newReserved(t)
		d.ApplyVerificationSuccess(testNow, 24*time.Hour)

		assert.Equal(t, StatusVerified, d.Status)
		assert.Nil(t, d.ReservedUntil)
		assert.Equal(t, SSLPending, d.SSLStatus)
		require.NotNil(t, d.NextReconfirmationDue)
		assert.Equal(t, testNow.Add(24*time.Hour), *d.NextReconfirmationDue)
	})

	t.Run("is idempotent on an already-verified domain", func(t *testing.T) {
		d := newVerified(t)
		d.ApplySSLIssued("letsencrypt", testNow.Add(90*24*time.Hour), testNow)
		attempts := d.VerificationAttempts

		later := testNow.Add(time.Hour)
		d.ApplyVerificationSuccess(later, 24*time.Hour)

		assert.Equal(t, StatusVerified, d.Status)
		assert.Equal(t, attempts, d.VerificationAttempts)
		assert.Equal(t, SSLActive, d.SSLStatus, "active certificate must survive a reverify")
		assert.Equal(t, later.Add(24*time.Hour), *d.NextReconfirmationDue)
	})
}

func TestVerificationFailure(t *testing.T) {
	t.Run("soft failure moves to PENDING and counts the attempt", func(t *testing.T) {
		d := newReserved(t)
		exhausted := d.ApplyVerificationFailure("NXDOMAIN", 5, testNow)

		assert.False(t, exhausted)
		assert.Equal(t, StatusPending, d.Status)
		assert.Equal(t, 1, d.VerificationAttempts)
		assert.Equal(t, "NXDOMAIN", d.VerificationError)
		assert.Nil(t, d.ReservedUntil)
	})

	t.Run("exhausts on the Nth failure, not before", func(t *testing.T) {
		d := newReserved(t)
		for i := 1; i < 5; i++ {
			exhausted := d.ApplyVerificationFailure("record mismatch", 5, testNow)
			assert.False(t, exhausted, "attempt %d must not exhaust", i)
			assert.Equal(t, StatusPending, d.Status)
		}

		exhausted := d.ApplyVerificationFailure("record mismatch", 5, testNow)
		assert.True(t, exhausted)
		assert.Equal(t, StatusError, d.Status)
		assert.Equal(t, 5, d.VerificationAttempts)
		assert.NotEmpty(t, d.VerificationError)
	})

	t.Run("verify is rejected once exhausted", func(t *testing.T) {
		d := newReserved(t)
		d.Status = StatusError
		err := d.CanVerify()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeVerificationExhausted))
	})
}

func TestReconfirmation(t *testing.T) {
	t.Run("success advances the deadline", func(t *testing.T) {
		d := newVerified(t)
		later := testNow.Add(24 * time.Hour)
		d.ApplyReconfirmationSuccess(later, 24*time.Hour)

		assert.Equal(t, StatusVerified, d.Status)
		assert.Equal(t, later.Add(24*time.Hour), *d.NextReconfirmationDue)
	})

	t.Run("failure regresses straight to ERROR and downgrades SSL", func(t *testing.T) {
		d := newVerified(t)
		d.ApplySSLIssued("letsencrypt", testNow.Add(90*24*time.Hour), testNow)
		require.Equal(t, SSLActive, d.SSLStatus)

		d.ApplyReconfirmationFailure("CNAME no longer matches", testNow)

		assert.Equal(t, StatusError, d.Status)
		assert.NotEqual(t, SSLActive, d.SSLStatus)
		assert.Equal(t, SSLExpired, d.SSLStatus)
		assert.Equal(t, "CNAME no longer matches", d.VerificationError)
	})

	t.Run("only verified domains reconfirm", func(t *testing.T) {
		d := newReserved(t)
		require.Error(t, d.CanReconfirm())
	})
}

func TestVerificationReset(t *testing.T) {
	d := newReserved(t)
	oldToken := d.VerificationToken
	for i := 0; i < 5; i++ {
		d.ApplyVerificationFailure("mismatch", 5, testNow)
	}
	require.Equal(t, StatusError, d.Status)
	require.NoError(t, d.CanResetVerification())

	d.ApplyVerificationReset(NewVerificationToken(), testWindow, testNow)

	assert.Equal(t, StatusReserved, d.Status)
	assert.NotEqual(t, oldToken, d.VerificationToken)
	assert.Zero(t, d.VerificationAttempts)
	assert.Empty(t, d.VerificationError)
	require.NotNil(t, d.ReservedUntil)

	t.Run("reset is rejected outside ERROR", func(t *testing.T) {
		require.Error(t, d.CanResetVerification())
	})
}

func TestSSLStatusCoupling(t *testing.T) {
	t.Run("issuance requires VERIFIED", func(t *testing.T) {
		d := newReserved(t)
		err := d.CanProvisionCertificate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotVerified))
	})

	t.Run("never ACTIVE outside VERIFIED", func(t *testing.T) {
		d := newVerified(t)
		d.ApplySSLIssued("letsencrypt", testNow.Add(90*24*time.Hour), testNow)

		d.ApplyBlacklist("abuse", testNow)
		assert.NotEqual(t, SSLActive, d.SSLStatus)
		assert.Equal(t, StatusSuspended, d.Status)
	})

	t.Run("transient failure parks issuance in PENDING", func(t *testing.T) {
		d := newVerified(t)
		d.ApplySSLTransientFailure("acme rate limited", testNow)
		assert.Equal(t, SSLPending, d.SSLStatus)
		assert.Equal(t, "acme rate limited", d.SSLError)
	})

	t.Run("permanent failure terminates the sub-workflow", func(t *testing.T) {
		d := newVerified(t)
		d.ApplySSLPermanentFailure("CAA forbids issuance", testNow)
		assert.Equal(t, SSLError, d.SSLStatus)
	})
}

func TestSSLRenewalDue(t *testing.T) {
	window := 30 * 24 * time.Hour

	t.Run("pending issuance is always due", func(t *testing.T) {
		d := newVerified(t)
		assert.True(t, d.SSLRenewalDue(window, testNow))
	})

	t.Run("active certificate due only inside the renewal window", func(t *testing.T) {
		d := newVerified(t)
		d.ApplySSLIssued("letsencrypt", testNow.Add(90*24*time.Hour), testNow)
		assert.False(t, d.SSLRenewalDue(window, testNow))
		assert.True(t, d.SSLRenewalDue(window, testNow.Add(61*24*time.Hour)))
	})

	t.Run("unverified domains never renew", func(t *testing.T) {
		d := newReserved(t)
		assert.False(t, d.SSLRenewalDue(window, testNow))
	})
}

func TestBlacklist(t *testing.T) {
	t.Run("restores the pre-suspension status", func(t *testing.T) {
		d := newVerified(t)
		require.NoError(t, d.CanBlacklist())
		d.ApplyBlacklist("phishing", testNow)

		assert.Equal(t, StatusSuspended, d.Status)
		assert.True(t, d.Blacklisted)
		assert.False(t, d.IsEligibleToServe())

		require.NoError(t, d.CanUnblacklist())
		d.ApplyUnblacklist(testNow)
		assert.Equal(t, StatusVerified, d.Status)
		assert.False(t, d.Blacklisted)
		assert.Empty(t, d.BlacklistReason)
	})

	t.Run("double suspension is rejected", func(t *testing.T) {
		d := newVerified(t)
		d.ApplyBlacklist("spam", testNow)
		require.Error(t, d.CanBlacklist())
	})
}

func TestTransfer(t *testing.T) {
	d := newVerified(t)
	team := id.Owner{ID: id.NewOwnerID(), Type: id.OwnerTypeTeam}
	require.NoError(t, d.CanTransferTo(team))

	statusBefore := d.Status
	attemptsBefore := d.VerificationAttempts
	d.ApplyTransfer(team, true, testNow)

	assert.Equal(t, team, d.Owner)
	assert.Equal(t, statusBefore, d.Status, "transfer must not reset verification")
	assert.Equal(t, attemptsBefore, d.VerificationAttempts)
	assert.True(t, d.PendingLinkMigration)
}

func TestSoftDelete(t *testing.T) {
	d := newVerified(t)
	d.ApplySSLIssued("letsencrypt", testNow.Add(90*24*time.Hour), testNow)
	retention := 30 * 24 * time.Hour

	d.ApplySoftDelete(retention, testNow)

	assert.True(t, d.IsDeleted())
	assert.False(t, d.IsEligibleToServe())
	assert.False(t, d.CountsTowardQuota())
	require.NotNil(t, d.NameRetainedUntil)
	assert.Equal(t, testNow.Add(retention), *d.NameRetainedUntil)
	assert.NotEqual(t, SSLActive, d.SSLStatus)
}

func TestQuotaAccounting(t *testing.T) {
	d := newReserved(t)
	assert.True(t, d.CountsTowardQuota(), "reservations count immediately")

	d.ApplyBlacklist("abuse", testNow)
	assert.False(t, d.CountsTowardQuota(), "suspended domains do not count")
}

func TestReservationExpiry(t *testing.T) {
	d := newReserved(t)
	assert.False(t, d.ReservationExpired(testNow))
	assert.True(t, d.ReservationExpired(testNow.Add(testWindow+time.Minute)))

	d2 := newVerified(t)
	assert.False(t, d2.ReservationExpired(testNow.Add(48*time.Hour)), "verified domains never expire by reservation")
}
