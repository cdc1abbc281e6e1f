package handler

import (
	"time"

	"linkforge/internal/domains/models"
	"linkforge/internal/domains/probe"
)

// DomainResponse is the HTTP representation of a domain record.
type DomainResponse struct {
	ID         string        `json:"id"`
	DomainName string        `json:"domain_name"`
	Owner      OwnerResponse `json:"owner"`
	Status     string        `json:"status"`

	VerificationAttempts  int        `json:"verification_attempts"`
	VerificationError     string     `json:"verification_error,omitempty"`
	NextReconfirmationDue *time.Time `json:"next_reconfirmation_due,omitempty"`
	ReservedUntil         *time.Time `json:"reserved_until,omitempty"`

	SSLStatus    string     `json:"ssl_status"`
	SSLProvider  string     `json:"ssl_provider,omitempty"`
	SSLIssuedAt  *time.Time `json:"ssl_issued_at,omitempty"`
	SSLExpiresAt *time.Time `json:"ssl_expires_at,omitempty"`
	SSLError     string     `json:"ssl_error,omitempty"`

	RiskScore          float64 `json:"risk_score"`
	RiskClassification string  `json:"risk_classification"`
	Blacklisted        bool    `json:"blacklisted"`
	BlacklistReason    string  `json:"blacklist_reason,omitempty"`

	TotalRedirects int64      `json:"total_redirects"`
	LastUsed       *time.Time `json:"last_used,omitempty"`

	// DNSChallenge is present only on owner-facing responses for domains that
	// still need verification.
	DNSChallenge *DNSChallengeResponse `json:"dns_challenge,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OwnerResponse is the owner portion of a domain response.
type OwnerResponse struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// DNSChallengeResponse tells the owner which TXT record to publish.
type DNSChallengeResponse struct {
	RecordName  string `json:"record_name"`
	RecordType  string `json:"record_type"`
	RecordValue string `json:"record_value"`
}

// ListResponse is the HTTP response for GET /domains.
type ListResponse struct {
	Domains []*DomainResponse `json:"domains"`
	Count   int               `json:"count"`
}

// EligibilityResponse is the HTTP response for GET /serve/eligibility.
type EligibilityResponse struct {
	Hostname string `json:"hostname"`
	Eligible bool   `json:"eligible"`
}

// FromDomain converts a domain record to its HTTP representation. The
// verification token is never included; use FromDomainWithChallenge on
// owner-facing endpoints that hand out the DNS challenge.
func FromDomain(d *models.Domain) *DomainResponse {
	return &DomainResponse{
		ID:         d.ID.String(),
		DomainName: d.DomainName,
		Owner: OwnerResponse{
			ID:   d.Owner.ID.String(),
			Type: d.Owner.Type.String(),
		},
		Status:                string(d.Status),
		VerificationAttempts:  d.VerificationAttempts,
		VerificationError:     d.VerificationError,
		NextReconfirmationDue: d.NextReconfirmationDue,
		ReservedUntil:         d.ReservedUntil,
		SSLStatus:             string(d.SSLStatus),
		SSLProvider:           d.SSLProvider,
		SSLIssuedAt:           d.SSLIssuedAt,
		SSLExpiresAt:          d.SSLExpiresAt,
		SSLError:              d.SSLError,
		RiskScore:             d.RiskScore,
		RiskClassification:    string(d.RiskClassification),
		Blacklisted:           d.Blacklisted,
		BlacklistReason:       d.BlacklistReason,
		TotalRedirects:        d.TotalRedirects,
		LastUsed:              d.LastUsed,
		Version:               d.Version,
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}
}

// FromDomainWithChallenge is FromDomain plus the DNS challenge the owner must
// publish, included while the domain is not yet verified.
func FromDomainWithChallenge(d *models.Domain) *DomainResponse {
	resp := FromDomain(d)
	if d.VerificationToken != "" && d.Status != models.StatusVerified {
		resp.DNSChallenge = &DNSChallengeResponse{
			RecordName:  probe.ChallengeRecordName(d.DomainName),
			RecordType:  "TXT",
			RecordValue: d.VerificationToken,
		}
	}
	return resp
}

// FromDomains converts a slice of domain records for list responses.
func FromDomains(domains []*models.Domain) *ListResponse {
	out := make([]*DomainResponse, 0, len(domains))
	for _, d := range domains {
		out = append(out, FromDomain(d))
	}
	return &ListResponse{Domains: out, Count: len(out)}
}
