// Package events carries domain lifecycle notifications to downstream
// consumers (email delivery, serving-path cache warmers, ops tooling).
//
// Emission is fire-and-forget: a failed or dropped notification never rolls
// back the state transition it describes.
package events

import (
	"time"

	id "linkforge/pkg/domain"
)

// Type names a lifecycle event. Values are stable API for consumers.
type Type string

const (
	TypeDomainReserved         Type = "domain_reserved"
	TypeDomainVerified         Type = "domain_verified"
	TypeVerificationFailed     Type = "domain_verification_failed"
	TypeVerificationReset      Type = "domain_verification_reset"
	TypeSSLIssued              Type = "domain_ssl_issued"
	TypeSSLError               Type = "domain_ssl_error"
	TypeDomainBlacklisted      Type = "domain_blacklisted"
	TypeDomainUnblacklisted    Type = "domain_unblacklisted"
	TypeDomainTransferred      Type = "domain_transferred"
	TypeDomainDeleted          Type = "domain_deleted"
	TypeReservationExpired     Type = "domain_reservation_expired"
	TypeDomainSuspendedForRisk Type = "domain_suspended_for_risk"
)

// Event is emitted from domain logic to capture lifecycle transitions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Type       Type        `json:"type"`
	Timestamp  time.Time   `json:"timestamp"`
	DomainID   id.DomainID `json:"domain_id"`
	DomainName string      `json:"domain_name"`
	Owner      id.Owner    `json:"owner"`
	Status     string      `json:"status"`
	Reason     string      `json:"reason,omitempty"`
	RequestID  string      `json:"request_id,omitempty"`
	// Transfer enrichment.
	PreviousOwner *id.Owner `json:"previous_owner,omitempty"`
	MigrateLinks  bool      `json:"migrate_links,omitempty"`
}
