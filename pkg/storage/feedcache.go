package storage

import (
	"context"
	"strconv"

	"socialfeed/pkg/errs"

	"github.com/redis/go-redis/v9"
)

// RedisFeedCache keeps one sorted set per user: members are post ids, scores
// are fan-out times.
type RedisFeedCache struct {
	client *redis.Client
}

func NewRedisFeedCache(client *redis.Client) *RedisFeedCache {
	return &RedisFeedCache{client: client}
}

func feedKey(userID int64) string {
	return strconv.FormatInt(userID, 10) + ":feed"
}

// Append inserts postID into the user's feed, overwriting the score of an
// existing entry.
func (c *RedisFeedCache) Append(ctx context.Context, userID int64, postID int64, score float64) error {
	err := c.client.ZAdd(ctx, feedKey(userID), redis.Z{
		Member: postID,
		Score:  score,
	}).Err()
	return errs.Upstream(err, "appending to feed cache")
}

// Range returns post ids newest first. start and stop are inclusive indexes
// and may be negative to count from the end of the feed.
func (c *RedisFeedCache) Range(ctx context.Context, userID int64, start int64, stop int64) ([]int64, error) {
	result, err := c.client.ZRevRange(ctx, feedKey(userID), start, stop).Result()
	if err != nil {
		return nil, errs.Upstream(err, "reading feed cache")
	}
	postIDs := make([]int64, 0, len(result))
	for _, r := range result {
		id, err := strconv.ParseInt(r, 10, 64)
		if err != nil {
			return nil, errs.Upstream(err, "parsing post id from feed cache")
		}
		postIDs = append(postIDs, id)
	}
	return postIDs, nil
}
