package domain

import (
	"github.com/google/uuid"

	dErrors "linkforge/pkg/domain-errors"
)

// Typed IDs prevent cross-entity assignment at compile time. Construct via
// the Parse* functions at trust boundaries; direct casting bypasses validation.
type (
	// DomainID identifies a custom domain record.
	DomainID uuid.UUID

	// OwnerID identifies the user or team that owns a domain.
	OwnerID uuid.UUID
)

// ParseDomainID validates external input and returns a DomainID.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseDomainID(s string) (DomainID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return DomainID{}, err
	}
	return DomainID(u), nil
}

// ParseOwnerID validates external input and returns an OwnerID.
func ParseOwnerID(s string) (OwnerID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return OwnerID{}, err
	}
	return OwnerID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}

func (id DomainID) String() string { return uuid.UUID(id).String() }
func (id DomainID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id OwnerID) String() string { return uuid.UUID(id).String() }
func (id OwnerID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// NewDomainID returns a fresh random DomainID.
func NewDomainID() DomainID { return DomainID(uuid.New()) }

// NewOwnerID returns a fresh random OwnerID.
func NewOwnerID() OwnerID { return OwnerID(uuid.New()) }
