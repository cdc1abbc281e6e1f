//go:build integration

package eligibility

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"linkforge/internal/domains/models"
	domainstore "linkforge/internal/domains/store/domain"
	id "linkforge/pkg/domain"
	"linkforge/pkg/requestcontext"
	"linkforge/pkg/testutil/containers"
)

type RedisEligibilitySuite struct {
	suite.Suite
	redis *containers.RedisContainer
	now   time.Time
}

func TestRedisEligibilitySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisEligibilitySuite))
}

func (s *RedisEligibilitySuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.now = time.Now().UTC()
}

func (s *RedisEligibilitySuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisEligibilitySuite) TestVerdictCachedAndInvalidated() {
	store := domainstore.NewMemory()
	ctx := requestcontext.WithTime(context.Background(), s.now)

	owner := id.Owner{ID: id.NewOwnerID(), Type: id.OwnerTypeUser}
	d, err := models.NewReservation(id.NewDomainID(), "links.example.com", owner, models.NewVerificationToken(), 24*time.Hour, s.now)
	s.Require().NoError(err)
	d.ApplyVerificationSuccess(s.now, 24*time.Hour)
	d.ApplySSLIssued("letsencrypt", s.now.Add(90*24*time.Hour), s.now)
	s.Require().NoError(store.Insert(ctx, d))

	checker := NewChecker(store, s.redis.Client, time.Minute, nil)

	eligible, err := checker.IsEligible(ctx, "links.example.com")
	s.Require().NoError(err)
	s.True(eligible)

	cached, err := s.redis.Client.Get(ctx, cacheKey("links.example.com")).Result()
	s.Require().NoError(err)
	s.Equal("1", cached)

	d.ApplyBlacklist("abuse", s.now)
	s.Require().NoError(store.Update(ctx, d))
	checker.Invalidate(ctx, "links.example.com")

	eligible, err = checker.IsEligible(ctx, "links.example.com")
	s.Require().NoError(err)
	s.False(eligible)
}
