// Package probe checks public DNS for domain ownership challenges.
package probe

import (
	"context"
	"net"
	"strings"
	"time"
)

// Outcome is the three-way result of a single ownership check.
type Outcome string

const (
	// Matched means the expected challenge value was found.
	Matched Outcome = "MATCHED"
	// NotMatched means records resolved but none carried the challenge.
	NotMatched Outcome = "NOT_MATCHED"
	// ProbeError covers everything else: NXDOMAIN, timeouts, refused
	// lookups. Callers count all non-Matched outcomes identically.
	ProbeError Outcome = "PROBE_ERROR"
)

// Result carries the outcome plus a human-readable detail for NotMatched and
// ProbeError, stored as the domain's verification error text.
type Result struct {
	Outcome Outcome
	Detail  string
}

// challengeLabel is the DNS label owners publish the TXT challenge under.
const challengeLabel = "_linkforge-challenge"

// ChallengeRecordName returns the fully qualified TXT record name an owner
// must publish the verification token under.
func ChallengeRecordName(domainName string) string {
	return challengeLabel + "." + domainName
}

// Prober performs one stateless ownership check.
type Prober interface {
	Check(ctx context.Context, domainName, expectedToken string) Result
}

// resolver is the subset of net.Resolver the probe uses.
type resolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// DNSProbe resolves the challenge TXT record through the system resolver.
type DNSProbe struct {
	resolver resolver
	timeout  time.Duration
}

// NewDNS constructs a probe with a bounded per-lookup timeout.
func NewDNS(timeout time.Duration) *DNSProbe {
	return &DNSProbe{
		resolver: &net.Resolver{},
		timeout:  timeout,
	}
}

func (p *DNSProbe) Check(ctx context.Context, domainName, expectedToken string) Result {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	records, err := p.resolver.LookupTXT(ctx, ChallengeRecordName(domainName))
	if err != nil {
		return Result{Outcome: ProbeError, Detail: "txt lookup failed: " + err.Error()}
	}
	for _, record := range records {
		if strings.TrimSpace(record) == expectedToken {
			return Result{Outcome: Matched}
		}
	}
	return Result{Outcome: NotMatched, Detail: "no txt record carries the expected challenge"}
}

// Static is a canned probe for tests and development.
type Static struct {
	Result Result
}

func (s Static) Check(context.Context, string, string) Result { return s.Result }
