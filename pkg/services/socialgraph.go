package services

import (
	"context"
	"time"

	"socialfeed/pkg/model"
	"socialfeed/pkg/storage"

	"github.com/ServiceWeaver/weaver"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// SocialGraphService is the read-only port to the relational content store.
// Absent records are reported through the bool result.
type SocialGraphService interface {
	FindPost(ctx context.Context, postID int64) (model.Post, bool, error)
	FindFollowers(ctx context.Context, userID int64) ([]int64, error)
	FindUser(ctx context.Context, userID int64) (model.User, bool, error)
	FindUserByUsername(ctx context.Context, username string) (model.User, bool, error)
	FindFollowEdge(ctx context.Context, follower int64, subject int64) (model.FollowEdge, bool, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
}

type socialGraphService struct {
	weaver.Implements[SocialGraphService]
	weaver.WithConfig[socialGraphServiceOptions]
	pgPool      *pgxpool.Pool
	redisClient *redis.Client
	graph       *storage.CachedGraph
}

type socialGraphServiceOptions struct {
	PostgresURL          string `toml:"postgres_url"`
	PostgresMaxConns     int32  `toml:"postgres_max_conns"`
	RedisAddr            string `toml:"redis_address"`
	RedisPort            int    `toml:"redis_port"`
	MemCachedAddr        string `toml:"memcached_address"`
	MemCachedPort        int    `toml:"memcached_port"`
	FollowersCacheTTLSec int    `toml:"followers_cache_ttl_sec"`
	UsernameCacheTTLSec  int    `toml:"username_cache_ttl_sec"`
}

func (s *socialGraphService) Init(ctx context.Context) error {
	logger := s.Logger(ctx)

	var err error
	s.pgPool, err = storage.PostgresPool(ctx, s.Config().PostgresURL, s.Config().PostgresMaxConns)
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	s.redisClient, err = storage.RedisClient(ctx, s.Config().RedisAddr, s.Config().RedisPort)
	if err != nil {
		logger.Error(err.Error())
		s.pgPool.Close()
		return err
	}
	memCachedClient := storage.MemCachedClient(s.Config().MemCachedAddr, s.Config().MemCachedPort)

	s.graph = storage.NewCachedGraph(
		storage.NewPostgresGraph(s.pgPool),
		s.redisClient,
		memCachedClient,
		time.Duration(s.Config().FollowersCacheTTLSec)*time.Second,
		time.Duration(s.Config().UsernameCacheTTLSec)*time.Second,
		logger,
	)

	logger.Info("social graph service running!",
		"redis_addr", s.Config().RedisAddr, "redis_port", s.Config().RedisPort,
		"memcached_addr", s.Config().MemCachedAddr, "memcached_port", s.Config().MemCachedPort,
	)
	return nil
}

func (s *socialGraphService) Shutdown(ctx context.Context) error {
	s.pgPool.Close()
	return s.redisClient.Close()
}

func (s *socialGraphService) FindPost(ctx context.Context, postID int64) (model.Post, bool, error) {
	s.Logger(ctx).Debug("entering FindPost", "post_id", postID)
	return s.graph.FindPost(ctx, postID)
}

func (s *socialGraphService) FindFollowers(ctx context.Context, userID int64) ([]int64, error) {
	s.Logger(ctx).Debug("entering FindFollowers", "user_id", userID)
	return s.graph.FindFollowers(ctx, userID)
}

func (s *socialGraphService) FindUser(ctx context.Context, userID int64) (model.User, bool, error) {
	s.Logger(ctx).Debug("entering FindUser", "user_id", userID)
	return s.graph.FindUser(ctx, userID)
}

func (s *socialGraphService) FindUserByUsername(ctx context.Context, username string) (model.User, bool, error) {
	s.Logger(ctx).Debug("entering FindUserByUsername", "username", username)
	return s.graph.FindUserByUsername(ctx, username)
}

func (s *socialGraphService) FindFollowEdge(ctx context.Context, follower int64, subject int64) (model.FollowEdge, bool, error) {
	s.Logger(ctx).Debug("entering FindFollowEdge", "follower", follower, "subject", subject)
	return s.graph.FindFollowEdge(ctx, follower, subject)
}

func (s *socialGraphService) ListCategories(ctx context.Context) ([]model.Category, error) {
	s.Logger(ctx).Debug("entering ListCategories")
	return s.graph.ListCategories(ctx)
}
