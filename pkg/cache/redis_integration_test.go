//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"keohams/pkg/cache"
	"keohams/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.cache = cache.NewRedisCache(s.redis.Client, "verification:status", time.Minute)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestSetGetEvict() {
	ctx := context.Background()

	_, ok, err := s.cache.Get(ctx, "user-1")
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.cache.Set(ctx, "user-1", "KYC_VERIFIED"))

	val, ok, err := s.cache.Get(ctx, "user-1")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("KYC_VERIFIED", val)

	s.Require().NoError(s.cache.Evict(ctx, "user-1"))

	_, ok, err = s.cache.Get(ctx, "user-1")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *RedisCacheSuite) TestKeysArePrefixed() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, "user-2", "KYC_PENDING"))

	val, err := s.redis.Client.Get(ctx, "verification:status:user-2").Result()
	s.Require().NoError(err)
	s.Equal("KYC_PENDING", val)
}

func (s *RedisCacheSuite) TestEntriesExpire() {
	ctx := context.Background()
	short := cache.NewRedisCache(s.redis.Client, "verification:status", 50*time.Millisecond)

	s.Require().NoError(short.Set(ctx, "user-3", "UNVERIFIED"))
	time.Sleep(100 * time.Millisecond)

	_, ok, err := short.Get(ctx, "user-3")
	s.Require().NoError(err)
	s.False(ok)
}
