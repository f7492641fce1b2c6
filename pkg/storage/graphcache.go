package storage

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"socialfeed/pkg/model"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"
)

// GraphSource is the uncached relational graph, implemented by PostgresGraph.
type GraphSource interface {
	FindPost(ctx context.Context, postID int64) (model.Post, bool, error)
	ListFollowers(ctx context.Context, userID int64) ([]Follower, error)
	FindUser(ctx context.Context, userID int64) (model.User, bool, error)
	FindUserByUsername(ctx context.Context, username string) (model.User, bool, error)
	FindFollowEdge(ctx context.Context, follower int64, subject int64) (model.FollowEdge, bool, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
}

type MemCache interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
}

// CachedGraph puts read-through caches in front of a GraphSource: follower
// lists in redis sorted sets and username lookups in memcached. Cache
// failures fall back to the source.
type CachedGraph struct {
	GraphSource
	redisClient     *redis.Client
	memCachedClient MemCache
	followersTTL    time.Duration
	usernameTTL     time.Duration
	logger          *slog.Logger
}

func NewCachedGraph(source GraphSource, redisClient *redis.Client, memCachedClient MemCache, followersTTL time.Duration, usernameTTL time.Duration, logger *slog.Logger) *CachedGraph {
	return &CachedGraph{
		GraphSource:     source,
		redisClient:     redisClient,
		memCachedClient: memCachedClient,
		followersTTL:    followersTTL,
		usernameTTL:     usernameTTL,
		logger:          logger,
	}
}

func followersKey(userID int64) string {
	return strconv.FormatInt(userID, 10) + ":followers"
}

// FindFollowers attempts to get the ids from redis if cached.
// Otherwise, it gets the followers from the source and updates redis with the ids.
func (g *CachedGraph) FindFollowers(ctx context.Context, userID int64) ([]int64, error) {
	key := followersKey(userID)
	numFollowers, err := g.redisClient.ZCard(ctx, key).Result()
	if err != nil {
		g.logger.Warn("error reading number of followers from cache", "user_id", userID, "msg", err.Error())
		numFollowers = 0
	}
	if numFollowers > 0 {
		ids, err := g.cachedFollowers(ctx, key)
		if err == nil {
			return ids, nil
		}
		g.logger.Warn("error reading followers from cache", "user_id", userID, "msg", err.Error())
	}

	followers, err := g.GraphSource.ListFollowers(ctx, userID)
	if err != nil {
		return nil, err
	}
	followerIDs := make([]int64, 0, len(followers))
	for _, f := range followers {
		followerIDs = append(followerIDs, f.UserID)
	}
	if len(followers) == 0 {
		return followerIDs, nil
	}

	_, err = g.redisClient.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, f := range followers {
			pipe.ZAddNX(ctx, key, redis.Z{
				Member: f.UserID,
				Score:  float64(f.Since.UnixMilli()),
			})
		}
		if g.followersTTL > 0 {
			pipe.Expire(ctx, key, g.followersTTL)
		}
		return nil
	})
	if err != nil {
		g.logger.Warn("error updating redis with followers from source", "user_id", userID, "msg", err.Error())
	}
	return followerIDs, nil
}

func (g *CachedGraph) cachedFollowers(ctx context.Context, key string) ([]int64, error) {
	result, err := g.redisClient.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	followerIDs := make([]int64, 0, len(result))
	for _, r := range result {
		followerID, err := strconv.ParseInt(r, 10, 64)
		if err != nil {
			return nil, err
		}
		followerIDs = append(followerIDs, followerID)
	}
	return followerIDs, nil
}

var cacheableUsername = regexp.MustCompile(`^\w{1,200}$`)

func usernameKey(username string) string {
	return "username:" + strings.ToLower(username)
}

// FindUserByUsername resolves usernames case-insensitively. Only found users
// are cached.
func (g *CachedGraph) FindUserByUsername(ctx context.Context, username string) (model.User, bool, error) {
	cacheable := cacheableUsername.MatchString(username)
	if cacheable {
		item, err := g.memCachedClient.Get(usernameKey(username))
		if err == nil {
			var user model.User
			jsonErr := json.Unmarshal(item.Value, &user)
			if jsonErr == nil {
				return user, true, nil
			}
			g.logger.Warn("error parsing user from memcached", "username", username, "msg", jsonErr.Error())
		} else if err != memcache.ErrCacheMiss {
			g.logger.Warn("error reading username from memcached", "username", username, "msg", err.Error())
		}
	}

	user, found, err := g.GraphSource.FindUserByUsername(ctx, username)
	if err != nil || !found || !cacheable {
		return user, found, err
	}

	userJSON, err := json.Marshal(user)
	if err != nil {
		g.logger.Error("error converting user to json", "user_id", user.UserID)
		return user, true, nil
	}
	err = g.memCachedClient.Set(&memcache.Item{
		Key:        usernameKey(username),
		Value:      userJSON,
		Expiration: int32(g.usernameTTL / time.Second),
	})
	if err != nil {
		g.logger.Warn("error writing username to memcached", "username", username, "msg", err.Error())
	}
	return user, true, nil
}
