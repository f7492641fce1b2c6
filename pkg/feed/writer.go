// Package feed builds per-user feeds by fan-out on write: each new post is
// pushed into the cached feed of every follower of its author and tagged
// users, so reads are plain range scans.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"socialfeed/pkg/errs"
	sn_metrics "socialfeed/pkg/metrics"
	"socialfeed/pkg/model"

	"golang.org/x/sync/errgroup"
)

const DEFAULT_CONCURRENCY = 32

type Graph interface {
	FindPost(ctx context.Context, postID int64) (model.Post, bool, error)
	FindFollowers(ctx context.Context, userID int64) ([]int64, error)
}

type Cache interface {
	Append(ctx context.Context, userID int64, postID int64, score float64) error
	Range(ctx context.Context, userID int64, start int64, stop int64) ([]int64, error)
}

type Writer struct {
	graph       Graph
	cache       Cache
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

func NewWriter(graph Graph, cache Cache, logger *slog.Logger, concurrency int) *Writer {
	if concurrency <= 0 {
		concurrency = DEFAULT_CONCURRENCY
	}
	return &Writer{
		graph:       graph,
		cache:       cache,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Lookup returns the post or a NotFound error.
func (w *Writer) Lookup(ctx context.Context, postID int64) (model.Post, error) {
	post, found, err := w.graph.FindPost(ctx, postID)
	if err != nil {
		return model.Post{}, errs.Upstream(err, "reading post")
	}
	if !found {
		return model.Post{}, errs.NotFound("post %d", postID)
	}
	return post, nil
}

// ProcessPostCreation looks the post up and fans it out. Only a missing post
// or a failed lookup is reported; per-recipient failures are logged.
func (w *Writer) ProcessPostCreation(ctx context.Context, postID int64) error {
	post, err := w.Lookup(ctx, postID)
	if err != nil {
		return err
	}
	w.FanOut(ctx, post)
	return nil
}

// PrimaryAudience is the author followed by the tagged users, without duplicates.
func PrimaryAudience(post model.Post) []int64 {
	seen := map[int64]bool{post.PostedBy: true}
	audience := []int64{post.PostedBy}
	for _, u := range post.TaggedUsers {
		if !seen[u] {
			seen[u] = true
			audience = append(audience, u)
		}
	}
	return audience
}

// Recipients returns the deduplicated followers of the primary audience.
// A member whose followers cannot be read is skipped.
func (w *Writer) Recipients(ctx context.Context, post model.Post) []int64 {
	audience := PrimaryAudience(post)

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var recipients []int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, member := range audience {
		member := member
		g.Go(func() error {
			followers, err := w.graph.FindFollowers(gctx, member)
			if err != nil {
				w.logger.Error("error reading followers, skipping audience member", "post_id", post.PostID, "user_id", member, "msg", err.Error())
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			for _, f := range followers {
				if !seen[f] {
					seen[f] = true
					recipients = append(recipients, f)
				}
			}
			return nil
		})
	}
	g.Wait()
	return recipients
}

// FanOut appends post to the feed of every recipient. Appends run
// concurrently and a failed append never stops the others. It returns the
// number of feeds written.
func (w *Writer) FanOut(ctx context.Context, post model.Post) int {
	start := w.now()
	recipients := w.Recipients(ctx, post)
	score := float64(start.UnixMilli())

	var mu sync.Mutex
	delivered := 0

	g := new(errgroup.Group)
	g.SetLimit(w.concurrency)
	for _, userID := range recipients {
		userID := userID
		g.Go(func() error {
			if err := w.cache.Append(ctx, userID, post.PostID, score); err != nil {
				sn_metrics.FanOutFailures.Inc()
				w.logger.Warn("error appending post to feed", "post_id", post.PostID, "user_id", userID, "msg", err.Error())
				return nil
			}
			sn_metrics.FanOutDeliveries.Inc()
			mu.Lock()
			delivered++
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sn_metrics.FanOutAudienceSize.Put(float64(len(recipients)))
	sn_metrics.FanOutDurationMs.Put(float64(w.now().Sub(start).Milliseconds()))
	w.logger.Debug("fan-out done", "post_id", post.PostID, "recipients", len(recipients), "delivered", delivered)
	return delivered
}

// FetchFeed returns post ids newest first, using inclusive start/stop
// indexes; negative indexes count from the end.
func (w *Writer) FetchFeed(ctx context.Context, userID int64, start int64, stop int64) ([]int64, error) {
	return w.cache.Range(ctx, userID, start, stop)
}
