// Package risk computes abuse-risk scores for custom domains.
//
// Scoring is a pure function over a domain's attributes and a Signals
// snapshot gathered by the caller. The scheduler rescores periodically;
// the serving path never scores.
package risk

import (
	"context"
	"time"

	"linkforge/internal/domains/models"
)

// Signals is the behavioral input to the scorer, gathered outside the
// domain record itself.
type Signals struct {
	// OwnerBlacklistEvents counts historical blacklist actions against
	// any domain of the same owner.
	OwnerBlacklistEvents int
	// OnReputationFeed is true when an external feed lists the hostname.
	OnReputationFeed bool
}

// ReputationFeed checks hostnames against an external abuse list.
type ReputationFeed interface {
	Contains(ctx context.Context, hostname string) (bool, error)
}

// NullFeed reports every hostname as clean. Used when no feed is configured.
type NullFeed struct{}

func (NullFeed) Contains(context.Context, string) (bool, error) { return false, nil }

// Score weights. The total is clamped to [0, 100].
const (
	reputationFeedWeight = 60
	blacklistEventWeight = 15
	maxBlacklistPenalty  = 45
	newDomainWeight      = 20
	youngDomainWeight    = 10
	highVolumeWeight     = 15
	burstVolumeWeight    = 10

	newDomainAge   = 7 * 24 * time.Hour
	youngDomainAge = 30 * 24 * time.Hour

	highVolumeRedirects  = 100_000
	burstVolumeRedirects = 10_000
)

// Score computes a 0-100 abuse-risk score and its classification.
//
// A reputation feed hit dominates the score. Owner history and domain
// youth add smaller penalties; raw redirect volume only matters for
// young domains, where sudden traffic is the abuse signature.
func Score(d *models.Domain, signals Signals, now time.Time) (float64, models.RiskClassification) {
	score := 0.0

	if signals.OnReputationFeed {
		score += reputationFeedWeight
	}

	penalty := signals.OwnerBlacklistEvents * blacklistEventWeight
	if penalty > maxBlacklistPenalty {
		penalty = maxBlacklistPenalty
	}
	score += float64(penalty)

	age := now.Sub(d.CreatedAt)
	switch {
	case age < newDomainAge:
		score += newDomainWeight
		if d.TotalRedirects >= burstVolumeRedirects {
			score += burstVolumeWeight
		}
	case age < youngDomainAge:
		score += youngDomainWeight
	}

	if d.TotalRedirects >= highVolumeRedirects && age < youngDomainAge {
		score += highVolumeWeight
	}

	if score > 100 {
		score = 100
	}
	return score, Classify(score)
}

// Classify buckets a continuous score into a coarse classification.
func Classify(score float64) models.RiskClassification {
	switch {
	case score < 25:
		return models.RiskLow
	case score < 50:
		return models.RiskMedium
	case score < 75:
		return models.RiskHigh
	default:
		return models.RiskCritical
	}
}
