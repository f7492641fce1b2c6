package repost

import (
	"context"
	"log/slog"

	sn_metrics "socialfeed/pkg/metrics"
	"socialfeed/pkg/model"
)

const DEFAULT_MAX_DEPTH = 50

type PostFinder interface {
	FindPost(ctx context.Context, postID int64) (model.Post, bool, error)
}

// Resolver follows repost links back to the original post. The links are
// not guaranteed to form a chain: cycles and dangling references both
// resolve to nil.
type Resolver struct {
	posts    PostFinder
	maxDepth int
	logger   *slog.Logger
}

func NewResolver(posts PostFinder, maxDepth int, logger *slog.Logger) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DEFAULT_MAX_DEPTH
	}
	return &Resolver{posts: posts, maxDepth: maxDepth, logger: logger}
}

// ResolveOriginal returns the first post on the chain starting at postID
// that is not a repost, or nil when the chain is cyclic, dangling or longer
// than the configured depth. Only lookup failures are returned as errors.
func (r *Resolver) ResolveOriginal(ctx context.Context, postID int64) (*model.Post, error) {
	visited := make(map[int64]struct{})
	current := postID
	for hops := 0; hops <= r.maxDepth; hops++ {
		if _, seen := visited[current]; seen {
			sn_metrics.RepostCycles.Inc()
			r.logger.Warn("repost chain is cyclic", "post_id", postID, "revisited", current)
			return nil, nil
		}
		visited[current] = struct{}{}

		post, found, err := r.posts.FindPost(ctx, current)
		if err != nil {
			return nil, err
		}
		if !found {
			r.logger.Debug("repost chain is dangling", "post_id", postID, "missing", current)
			return nil, nil
		}
		if post.RepostOf == nil {
			return &post, nil
		}
		current = *post.RepostOf
	}
	sn_metrics.RepostCycles.Inc()
	r.logger.Warn("repost chain exceeds max depth", "post_id", postID, "max_depth", r.maxDepth)
	return nil, nil
}
