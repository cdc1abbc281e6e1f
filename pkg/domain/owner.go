package domain

import (
	"strings"

	dErrors "linkforge/pkg/domain-errors"
)

// OwnerType distinguishes personal domains from team-owned domains.
// Invariant: the value must be one of the supported owner types.
type OwnerType string

const (
	OwnerTypeUser OwnerType = "USER"
	OwnerTypeTeam OwnerType = "TEAM"
)

// validOwnerTypes is the single source of truth for valid owner types.
var validOwnerTypes = map[OwnerType]bool{
	OwnerTypeUser: true,
	OwnerTypeTeam: true,
}

// ParseOwnerType constructs an OwnerType from external input. Matching is
// case-insensitive.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseOwnerType(s string) (OwnerType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "owner type cannot be empty")
	}
	t := OwnerType(strings.ToUpper(s))
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "owner type must be USER or TEAM")
	}
	return t, nil
}

// IsValid checks if the owner type is one of the supported enum values.
func (t OwnerType) IsValid() bool {
	return validOwnerTypes[t]
}

func (t OwnerType) String() string {
	return string(t)
}

// Owner pairs an owner identity with its type. A domain has exactly one
// owner at a time; ownership is transferable without resetting verification.
type Owner struct {
	ID   OwnerID   `json:"id"`
	Type OwnerType `json:"type"`
}

// IsZero reports whether the owner is unset.
func (o Owner) IsZero() bool {
	return o.ID.IsNil() && o.Type == ""
}

// Validate checks the owner pair at trust boundaries.
func (o Owner) Validate() error {
	if o.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "owner id is required")
	}
	if !o.Type.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "owner type must be USER or TEAM")
	}
	return nil
}
