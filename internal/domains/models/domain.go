package models

import (
	"fmt"
	"time"

	id "linkforge/pkg/domain"
	dErrors "linkforge/pkg/domain-errors"
)

// Domain is the aggregate root for a customer-attached hostname.
//
// Invariants:
//   - DomainName is normalized, syntactically valid, and globally unique among
//     live records (the store's unique index is the final arbiter)
//   - VerificationToken is unique and immutable until a verification reset
//     atomically replaces it
//   - Owner is never zero past construction
//   - SSLStatus may only be ACTIVE while Status is VERIFIED; every transition
//     out of VERIFIED downgrades an ACTIVE certificate to EXPIRED
//   - ReservedUntil is set only while RESERVED and cleared on any transition
//     out of it
//   - Version increments on every persisted mutation (optimistic concurrency)
//
// Mutation happens exclusively through the Can*/Apply* pairs below, driven by
// the domains service. Stores persist whatever state the service hands them;
// the scheduler never touches fields directly.
type Domain struct {
	ID         id.DomainID  `json:"id"`
	DomainName string       `json:"domain_name"`
	Owner      id.Owner     `json:"owner"`
	Status     DomainStatus `json:"status"`

	// Verification
	VerificationToken       string     `json:"-"` // DNS challenge value; exposed only to the owner via a dedicated field
	VerificationAttempts    int        `json:"verification_attempts"`
	LastVerificationAttempt *time.Time `json:"last_verification_attempt,omitempty"`
	VerificationError       string     `json:"verification_error,omitempty"`
	NextReconfirmationDue   *time.Time `json:"next_reconfirmation_due,omitempty"`
	ReservedUntil           *time.Time `json:"reserved_until,omitempty"`

	// TLS
	SSLStatus    SSLStatus  `json:"ssl_status"`
	SSLProvider  string     `json:"ssl_provider,omitempty"`
	SSLIssuedAt  *time.Time `json:"ssl_issued_at,omitempty"`
	SSLExpiresAt *time.Time `json:"ssl_expires_at,omitempty"`
	SSLError     string     `json:"ssl_error,omitempty"`

	// Risk / abuse
	RiskScore          float64            `json:"risk_score"`
	RiskClassification RiskClassification `json:"risk_classification"`
	RiskScoredAt       *time.Time         `json:"risk_scored_at,omitempty"`
	Blacklisted        bool               `json:"blacklisted"`
	BlacklistReason    string             `json:"blacklist_reason,omitempty"`
	// statusBeforeSuspension lets unblacklist restore the prior state.
	StatusBeforeSuspension DomainStatus `json:"-"`

	// Usage counters, written by the serving path and read-only here.
	TotalRedirects int64      `json:"total_redirects"`
	LastUsed       *time.Time `json:"last_used,omitempty"`

	// Transfer bookkeeping: set when a transfer requested link migration and
	// the redirect-record collaborator has not confirmed it yet.
	PendingLinkMigration bool `json:"pending_link_migration,omitempty"`

	// Soft delete. A deleted name stays unavailable until NameRetainedUntil.
	DeletedAt         *time.Time `json:"deleted_at,omitempty"`
	NameRetainedUntil *time.Time `json:"-"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewReservation constructs a RESERVED domain. The name must already be
// normalized; syntax is validated here so the invariant holds regardless of
// entry point.
func NewReservation(domainID id.DomainID, name string, owner id.Owner, token string, window time.Duration, now time.Time) (*Domain, error) {
	if err := ValidateHostname(name); err != nil {
		return nil, err
	}
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "verification token cannot be empty")
	}
	reservedUntil := now.Add(window)
	return &Domain{
		ID:                 domainID,
		DomainName:         name,
		Owner:              owner,
		Status:             StatusReserved,
		VerificationToken:  token,
		ReservedUntil:      &reservedUntil,
		SSLStatus:          SSLNone,
		RiskClassification: RiskLow,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// IsDeleted reports whether the record was soft-deleted.
func (d *Domain) IsDeleted() bool { return d.DeletedAt != nil }

// CountsTowardQuota reports whether the domain occupies a slot of its owner's
// plan: RESERVED, PENDING, and VERIFIED records all count (reservations count
// immediately to close the parallel-reservation loophole).
func (d *Domain) CountsTowardQuota() bool {
	if d.IsDeleted() {
		return false
	}
	switch d.Status {
	case StatusReserved, StatusPending, StatusVerified:
		return true
	default:
		return false
	}
}

// IsEligibleToServe is the read contract of the redirect-serving path.
func (d *Domain) IsEligibleToServe() bool {
	return !d.IsDeleted() &&
		!d.Blacklisted &&
		d.Status == StatusVerified &&
		d.SSLStatus == SSLActive
}

// ReservationExpired reports whether an unverified reservation is reclaimable.
func (d *Domain) ReservationExpired(now time.Time) bool {
	return d.Status == StatusReserved && d.ReservedUntil != nil && now.After(*d.ReservedUntil)
}

// setStatus moves the lifecycle status along an edge of the transition table.
// Leaving VERIFIED downgrades an ACTIVE certificate here, so no Apply method
// can break the coupling on its own. An edge outside the table means a Can*
// guard admitted a state its Apply cannot express; that is a programming
// error, not an input error.
func (d *Domain) setStatus(target DomainStatus) {
	if d.Status == target {
		return
	}
	if !d.Status.CanTransitionTo(target) {
		panic(fmt.Sprintf("domain status: no %s -> %s transition", d.Status, target))
	}
	if d.Status == StatusVerified {
		d.downgradeSSL()
	}
	d.Status = target
}

// ---------------------------------------------------------------------------
// Verification
// ---------------------------------------------------------------------------

// CanVerify checks that a verification probe result may be applied.
// VERIFIED is allowed: a matching probe on a verified domain is the idempotent
// no-op path that only refreshes the reconfirmation deadline.
func (d *Domain) CanVerify() error {
	if d.IsDeleted() {
		return dErrors.New(dErrors.CodeNotFound, "domain is deleted")
	}
	switch d.Status {
	case StatusReserved, StatusPending, StatusVerified:
		return nil
	case StatusError:
		return dErrors.New(dErrors.CodeVerificationExhausted, "verification attempts exhausted; reset to retry")
	default:
		return dErrors.New(dErrors.CodeInvariantViolation, "domain is suspended")
	}
}

// ApplyVerificationSuccess transitions to VERIFIED and schedules the first
// reconfirmation. Certificate issuance moves to PENDING unless one is already
// active. Calling this on an already-VERIFIED domain only advances the
// reconfirmation deadline.
func (d *Domain) ApplyVerificationSuccess(now time.Time, reconfirmInterval time.Duration) {
	due := now.Add(reconfirmInterval)
	d.NextReconfirmationDue = &due
	d.VerificationError = ""

	if d.Status == StatusVerified {
		d.UpdatedAt = now
		return
	}

	d.setStatus(StatusVerified)
	d.ReservedUntil = nil
	if d.SSLStatus != SSLActive {
		d.SSLStatus = SSLPending
	}
	d.UpdatedAt = now
}

// ApplyVerificationFailure records a failed probe. Every probe error counts
// identically; only the reason text distinguishes cause. Returns true when
// this failure exhausted the attempt budget and the domain moved to ERROR.
func (d *Domain) ApplyVerificationFailure(reason string, maxAttempts int, now time.Time) (exhausted bool) {
	d.VerificationAttempts++
	d.LastVerificationAttempt = &now
	d.VerificationError = reason
	d.UpdatedAt = now

	if d.VerificationAttempts >= maxAttempts {
		d.setStatus(StatusError)
		d.ReservedUntil = nil
		return true
	}

	d.setStatus(StatusPending)
	d.ReservedUntil = nil
	return false
}

// CanReconfirm checks that a periodic re-proof may be applied.
func (d *Domain) CanReconfirm() error {
	if d.IsDeleted() {
		return dErrors.New(dErrors.CodeNotFound, "domain is deleted")
	}
	if d.Status != StatusVerified {
		return dErrors.New(dErrors.CodeInvalidInput, "only verified domains are reconfirmed")
	}
	return nil
}

// ApplyReconfirmationSuccess pushes the next reconfirmation deadline forward.
func (d *Domain) ApplyReconfirmationSuccess(now time.Time, reconfirmInterval time.Duration) {
	due := now.Add(reconfirmInterval)
	d.NextReconfirmationDue = &due
	d.VerificationError = ""
	d.UpdatedAt = now
}

// ApplyReconfirmationFailure treats lost DNS control as a regression: the
// domain drops straight to ERROR (no PENDING retry loop) because serving
// traffic depends on continued control, and an ACTIVE certificate is
// downgraded in the same write.
func (d *Domain) ApplyReconfirmationFailure(reason string, now time.Time) {
	d.setStatus(StatusError)
	d.VerificationError = reason
	d.LastVerificationAttempt = &now
	d.NextReconfirmationDue = nil
	d.UpdatedAt = now
}

// CanResetVerification checks the manual recovery path out of ERROR.
func (d *Domain) CanResetVerification() error {
	if d.IsDeleted() {
		return dErrors.New(dErrors.CodeNotFound, "domain is deleted")
	}
	if d.Status != StatusError {
		return dErrors.New(dErrors.CodeInvalidInput, "only domains in ERROR can reset verification")
	}
	return nil
}

// ApplyVerificationReset issues a fresh token and returns the domain to
// RESERVED with a new reservation window. The old token is invalidated by the
// same write, keeping token regeneration atomic.
func (d *Domain) ApplyVerificationReset(newToken string, window time.Duration, now time.Time) {
	reservedUntil := now.Add(window)
	d.setStatus(StatusReserved)
	d.VerificationToken = newToken
	d.VerificationAttempts = 0
	d.VerificationError = ""
	d.LastVerificationAttempt = nil
	d.NextReconfirmationDue = nil
	d.ReservedUntil = &reservedUntil
	d.UpdatedAt = now
}

// ---------------------------------------------------------------------------
// TLS
// ---------------------------------------------------------------------------

// CanProvisionCertificate gates issuance/renewal on verified DNS control.
func (d *Domain) CanProvisionCertificate() error {
	if d.IsDeleted() {
		return dErrors.New(dErrors.CodeNotFound, "domain is deleted")
	}
	if d.Status != StatusVerified {
		return dErrors.New(dErrors.CodeNotVerified, "certificates require a verified domain")
	}
	return nil
}

// ApplySSLIssued records a freshly issued or renewed certificate.
func (d *Domain) ApplySSLIssued(provider string, expiresAt, now time.Time) {
	d.SSLStatus = SSLActive
	d.SSLProvider = provider
	d.SSLIssuedAt = &now
	d.SSLExpiresAt = &expiresAt
	d.SSLError = ""
	d.UpdatedAt = now
}

// ApplySSLTransientFailure leaves the certificate in PENDING for the
// scheduler's renewal scan to retry.
func (d *Domain) ApplySSLTransientFailure(reason string, now time.Time) {
	if d.SSLStatus != SSLActive {
		d.SSLStatus = SSLPending
	}
	d.SSLError = reason
	d.UpdatedAt = now
}

// ApplySSLPermanentFailure terminates the SSL sub-workflow until the owner
// remediates. An ACTIVE certificate stays active until it expires.
func (d *Domain) ApplySSLPermanentFailure(reason string, now time.Time) {
	if d.SSLStatus != SSLActive {
		d.SSLStatus = SSLError
	}
	d.SSLError = reason
	d.UpdatedAt = now
}

// SSLRenewalDue reports whether issuance or renewal work is pending: a
// certificate inside the renewal window, a PENDING issuance to retry, or an
// EXPIRED certificate on a still-verified domain (e.g. after unblacklist).
func (d *Domain) SSLRenewalDue(renewalWindow time.Duration, now time.Time) bool {
	if d.Status != StatusVerified || d.IsDeleted() {
		return false
	}
	switch d.SSLStatus {
	case SSLPending, SSLExpired:
		return true
	case SSLActive:
		return d.SSLExpiresAt != nil && now.After(d.SSLExpiresAt.Add(-renewalWindow))
	default:
		return false
	}
}

// downgradeSSL enforces the coupling invariant: no ACTIVE certificate outside
// VERIFIED. Non-active states are left as they are.
func (d *Domain) downgradeSSL() {
	if d.SSLStatus == SSLActive {
		d.SSLStatus = SSLExpired
	}
}

// ---------------------------------------------------------------------------
// Blacklist / suspension
// ---------------------------------------------------------------------------

// CanBlacklist checks the admin suspension path.
func (d *Domain) CanBlacklist() error {
	if d.IsDeleted() {
		return dErrors.New(dErrors.CodeNotFound, "domain is deleted")
	}
	if d.Status == StatusSuspended {
		return dErrors.New(dErrors.CodeInvariantViolation, "domain is already suspended")
	}
	return nil
}

// ApplyBlacklist suspends the domain and removes it from the serving view in
// the same write.
func (d *Domain) ApplyBlacklist(reason string, now time.Time) {
	d.StatusBeforeSuspension = d.Status
	d.setStatus(StatusSuspended)
	d.Blacklisted = true
	d.BlacklistReason = reason
	d.ReservedUntil = nil
	d.UpdatedAt = now
}

// CanUnblacklist checks the admin restore path.
func (d *Domain) CanUnblacklist() error {
	if d.IsDeleted() {
		return dErrors.New(dErrors.CodeNotFound, "domain is deleted")
	}
	if d.Status != StatusSuspended {
		return dErrors.New(dErrors.CodeInvariantViolation, "domain is not suspended")
	}
	return nil
}

// ApplyUnblacklist restores the pre-suspension status. The certificate stays
// downgraded; the renewal scan reissues once the domain is VERIFIED again.
func (d *Domain) ApplyUnblacklist(now time.Time) {
	restored := d.StatusBeforeSuspension
	if restored == "" || restored == StatusSuspended {
		restored = StatusError
	}
	d.setStatus(restored)
	d.StatusBeforeSuspension = ""
	d.Blacklisted = false
	d.BlacklistReason = ""
	d.UpdatedAt = now
}

// ---------------------------------------------------------------------------
// Ownership / deletion / risk
// ---------------------------------------------------------------------------

// CanTransferTo validates the transfer target. Status and verification are
// untouched by transfers.
func (d *Domain) CanTransferTo(newOwner id.Owner) error {
	if d.IsDeleted() {
		return dErrors.New(dErrors.CodeNotFound, "domain is deleted")
	}
	return newOwner.Validate()
}

// ApplyTransfer reassigns ownership. When migrateLinks is requested the
// redirect-record migration is an external collaborator action; the pending
// flag stays set until that collaborator confirms.
func (d *Domain) ApplyTransfer(newOwner id.Owner, migrateLinks bool, now time.Time) {
	d.Owner = newOwner
	if migrateLinks {
		d.PendingLinkMigration = true
	}
	d.UpdatedAt = now
}

// ApplySoftDelete detaches the domain. The name stays reserved until the
// retention deadline to prevent rapid re-registration races.
func (d *Domain) ApplySoftDelete(retention time.Duration, now time.Time) {
	deletedAt := now
	retainedUntil := now.Add(retention)
	d.DeletedAt = &deletedAt
	d.NameRetainedUntil = &retainedUntil
	d.ReservedUntil = nil
	d.downgradeSSL()
	d.UpdatedAt = now
}

// ApplyRiskScore records the periodic rescore result.
func (d *Domain) ApplyRiskScore(score float64, classification RiskClassification, now time.Time) {
	scoredAt := now
	d.RiskScore = score
	d.RiskClassification = classification
	d.RiskScoredAt = &scoredAt
	d.UpdatedAt = now
}

// RescoreDue reports whether the domain's risk score is stale.
func (d *Domain) RescoreDue(interval time.Duration, now time.Time) bool {
	if d.IsDeleted() || d.Status == StatusSuspended {
		return false
	}
	if d.RiskScoredAt == nil {
		return true
	}
	return now.Sub(*d.RiskScoredAt) >= interval
}
