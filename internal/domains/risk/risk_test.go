package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"linkforge/internal/domains/models"
)

var scoreNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func agedDomain(age time.Duration, redirects int64) *models.Domain {
	return &models.Domain{
		CreatedAt:      scoreNow.Add(-age),
		TotalRedirects: redirects,
	}
}

func TestClassifyThresholds(t *testing.T) {
	assert.Equal(t, models.RiskLow, Classify(0))
	assert.Equal(t, models.RiskLow, Classify(24.9))
	assert.Equal(t, models.RiskMedium, Classify(25))
	assert.Equal(t, models.RiskMedium, Classify(49.9))
	assert.Equal(t, models.RiskHigh, Classify(50))
	assert.Equal(t, models.RiskHigh, Classify(74.9))
	assert.Equal(t, models.RiskCritical, Classify(75))
	assert.Equal(t, models.RiskCritical, Classify(100))
}

func TestScoreEstablishedCleanDomainIsLow(t *testing.T) {
	d := agedDomain(180*24*time.Hour, 5_000_000)

	score, class := Score(d, Signals{}, scoreNow)

	assert.Equal(t, 0.0, score)
	assert.Equal(t, models.RiskLow, class)
}

func TestScoreReputationFeedHitDominates(t *testing.T) {
	d := agedDomain(180*24*time.Hour, 100)

	score, class := Score(d, Signals{OnReputationFeed: true}, scoreNow)

	assert.Equal(t, 60.0, score)
	assert.Equal(t, models.RiskHigh, class)
}

func TestScoreFeedHitOnNewDomainIsCritical(t *testing.T) {
	d := agedDomain(24*time.Hour, 0)

	score, class := Score(d, Signals{OnReputationFeed: true}, scoreNow)

	assert.Equal(t, 80.0, score)
	assert.Equal(t, models.RiskCritical, class)
}

func TestScoreOwnerHistoryPenaltyIsCapped(t *testing.T) {
	d := agedDomain(180*24*time.Hour, 0)

	score, _ := Score(d, Signals{OwnerBlacklistEvents: 2}, scoreNow)
	assert.Equal(t, 30.0, score)

	score, _ = Score(d, Signals{OwnerBlacklistEvents: 10}, scoreNow)
	assert.Equal(t, 45.0, score, "history penalty saturates")
}

func TestScoreBurstTrafficOnNewDomain(t *testing.T) {
	quiet := agedDomain(2*24*time.Hour, 100)
	bursty := agedDomain(2*24*time.Hour, 50_000)

	quietScore, _ := Score(quiet, Signals{}, scoreNow)
	burstyScore, _ := Score(bursty, Signals{}, scoreNow)

	assert.Equal(t, 20.0, quietScore)
	assert.Equal(t, 30.0, burstyScore)
}

func TestScoreVolumeIgnoredForEstablishedDomains(t *testing.T) {
	d := agedDomain(365*24*time.Hour, 10_000_000)

	score, _ := Score(d, Signals{}, scoreNow)

	assert.Equal(t, 0.0, score)
}

func TestScoreClampsAtHundred(t *testing.T) {
	d := agedDomain(time.Hour, 500_000)

	score, class := Score(d, Signals{OnReputationFeed: true, OwnerBlacklistEvents: 10}, scoreNow)

	assert.Equal(t, 100.0, score)
	assert.Equal(t, models.RiskCritical, class)
}
