package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	t.Run("verification edges", func(t *testing.T) {
		assert.True(t, StatusReserved.CanTransitionTo(StatusVerified))
		assert.True(t, StatusReserved.CanTransitionTo(StatusPending))
		assert.True(t, StatusPending.CanTransitionTo(StatusVerified))
		assert.True(t, StatusPending.CanTransitionTo(StatusError))
		assert.True(t, StatusVerified.CanTransitionTo(StatusError))
		assert.True(t, StatusError.CanTransitionTo(StatusReserved))
	})

	t.Run("forbidden edges", func(t *testing.T) {
		assert.False(t, StatusVerified.CanTransitionTo(StatusPending),
			"a verified domain regresses to ERROR, never back into the retry loop")
		assert.False(t, StatusVerified.CanTransitionTo(StatusReserved))
		assert.False(t, StatusError.CanTransitionTo(StatusVerified),
			"ERROR requires a reset before another verification run")
		assert.False(t, StatusError.CanTransitionTo(StatusPending))
	})

	t.Run("suspension reaches and leaves every state", func(t *testing.T) {
		for _, s := range []DomainStatus{StatusReserved, StatusPending, StatusVerified, StatusError} {
			assert.True(t, s.CanTransitionTo(StatusSuspended))
			assert.True(t, StatusSuspended.CanTransitionTo(s))
		}
	})
}

func TestStatusIsValid(t *testing.T) {
	for _, s := range []DomainStatus{StatusReserved, StatusPending, StatusVerified, StatusError, StatusSuspended} {
		assert.True(t, s.IsValid())
	}
	assert.False(t, DomainStatus("ACTIVE").IsValid())
	assert.False(t, DomainStatus("").IsValid())
}

func TestApplyRefusesEdgesOutsideTheTable(t *testing.T) {
	d := newVerified(t)

	// A probe mismatch on a verified domain must travel the regression edge
	// to ERROR; pushing it back into the retry loop is not a legal move.
	assert.Panics(t, func() {
		d.ApplyVerificationFailure("challenge record removed", 10, testNow)
	})
}
