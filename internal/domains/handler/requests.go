package handler

import (
	"strings"

	id "linkforge/pkg/domain"
	dErrors "linkforge/pkg/domain-errors"
)

// ReserveRequest is the HTTP request body for POST /domains.
type ReserveRequest struct {
	DomainName string `json:"domain_name"`
	OwnerID    string `json:"owner_id"`
	OwnerType  string `json:"owner_type"`

	// Parsed values (populated by Validate)
	parsedOwner id.Owner
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *ReserveRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	// Size validation (fail fast)
	if len(r.DomainName) > 253 {
		return dErrors.New(dErrors.CodeValidation, "domain_name must be at most 253 characters")
	}

	// Required fields
	r.DomainName = strings.TrimSpace(r.DomainName)
	if r.DomainName == "" {
		return dErrors.New(dErrors.CodeValidation, "domain_name is required")
	}

	owner, err := parseOwner(r.OwnerID, r.OwnerType)
	if err != nil {
		return err
	}
	r.parsedOwner = owner

	return nil
}

// ParsedOwner returns the owner parsed during Validate.
func (r *ReserveRequest) ParsedOwner() id.Owner { return r.parsedOwner }

// TransferRequest is the HTTP request body for POST /domains/{domainID}/transfer.
type TransferRequest struct {
	NewOwnerID   string `json:"new_owner_id"`
	NewOwnerType string `json:"new_owner_type"`
	MigrateLinks bool   `json:"migrate_links"`

	parsedOwner id.Owner
}

// Validate validates and parses the request.
func (r *TransferRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	owner, err := parseOwner(r.NewOwnerID, r.NewOwnerType)
	if err != nil {
		return err
	}
	r.parsedOwner = owner

	return nil
}

// ParsedNewOwner returns the target owner parsed during Validate.
func (r *TransferRequest) ParsedNewOwner() id.Owner { return r.parsedOwner }

// BlacklistRequest is the HTTP request body for the admin blacklist endpoint.
type BlacklistRequest struct {
	Reason string `json:"reason"`
}

// Validate validates the request.
func (r *BlacklistRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	if len(r.Reason) > 500 {
		return dErrors.New(dErrors.CodeValidation, "reason must be at most 500 characters")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}

	return nil
}

func parseOwner(rawID, rawType string) (id.Owner, error) {
	ownerID, err := id.ParseOwnerID(strings.TrimSpace(rawID))
	if err != nil {
		return id.Owner{}, err
	}
	ownerType, err := id.ParseOwnerType(strings.TrimSpace(rawType))
	if err != nil {
		return id.Owner{}, err
	}
	owner := id.Owner{ID: ownerID, Type: ownerType}
	if err := owner.Validate(); err != nil {
		return id.Owner{}, err
	}
	return owner, nil
}
