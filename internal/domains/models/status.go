package models

// DomainStatus is the lifecycle state of a custom domain.
//
// RESERVED  - name claimed, waiting for the first successful DNS probe
// PENDING   - at least one probe failed, retries remain
// VERIFIED  - DNS control proven; eligible for certificates and traffic
// ERROR     - verification exhausted or reconfirmation regressed; needs reset
// SUSPENDED - blacklisted by an admin; never serves regardless of SSL state
type DomainStatus string

const (
	StatusReserved  DomainStatus = "RESERVED"
	StatusPending   DomainStatus = "PENDING"
	StatusVerified  DomainStatus = "VERIFIED"
	StatusError     DomainStatus = "ERROR"
	StatusSuspended DomainStatus = "SUSPENDED"
)

// validStatusTransitions is the single source of truth for the state machine.
// SUSPENDED is reachable from every state (admin blacklist); the reverse edge
// restores whatever status the domain held before suspension.
var validStatusTransitions = map[DomainStatus][]DomainStatus{
	StatusReserved:  {StatusPending, StatusVerified, StatusError, StatusSuspended},
	StatusPending:   {StatusPending, StatusVerified, StatusError, StatusSuspended},
	StatusVerified:  {StatusVerified, StatusError, StatusSuspended},
	StatusError:     {StatusReserved, StatusSuspended},
	StatusSuspended: {StatusReserved, StatusPending, StatusVerified, StatusError},
}

// CanTransitionTo reports whether the edge from s to target exists.
func (s DomainStatus) CanTransitionTo(target DomainStatus) bool {
	for _, allowed := range validStatusTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsValid checks membership in the status enum.
func (s DomainStatus) IsValid() bool {
	_, ok := validStatusTransitions[s]
	return ok
}

func (s DomainStatus) String() string { return string(s) }

// SSLStatus tracks certificate provisioning independently of the lifecycle
// status, with one coupling invariant: ACTIVE requires status VERIFIED.
type SSLStatus string

const (
	SSLNone    SSLStatus = "NONE"
	SSLPending SSLStatus = "PENDING"
	SSLActive  SSLStatus = "ACTIVE"
	SSLError   SSLStatus = "ERROR"
	SSLExpired SSLStatus = "EXPIRED"
)

func (s SSLStatus) String() string { return string(s) }

// RiskClassification is the coarse abuse-likelihood bucket derived from the
// continuous risk score.
type RiskClassification string

const (
	RiskLow      RiskClassification = "LOW"
	RiskMedium   RiskClassification = "MEDIUM"
	RiskHigh     RiskClassification = "HIGH"
	RiskCritical RiskClassification = "CRITICAL"
)

func (c RiskClassification) String() string { return string(c) }
