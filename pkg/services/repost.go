package services

import (
	"context"

	"socialfeed/pkg/model"
	"socialfeed/pkg/repost"

	"github.com/ServiceWeaver/weaver"
)

type RepostService interface {
	// ResolveOriginal reports false when the chain has no original.
	ResolveOriginal(ctx context.Context, reqID int64, postID int64) (model.Post, bool, error)
}

type repostService struct {
	weaver.Implements[RepostService]
	weaver.WithConfig[repostServiceOptions]
	socialGraphService weaver.Ref[SocialGraphService]
	resolver           *repost.Resolver
}

type repostServiceOptions struct {
	MaxDepth int `toml:"max_depth"`
}

func (r *repostService) Init(ctx context.Context) error {
	logger := r.Logger(ctx)
	r.resolver = repost.NewResolver(r.socialGraphService.Get(), r.Config().MaxDepth, logger)
	logger.Info("repost service running!", "max_depth", r.Config().MaxDepth)
	return nil
}

func (r *repostService) ResolveOriginal(ctx context.Context, reqID int64, postID int64) (model.Post, bool, error) {
	r.Logger(ctx).Debug("entering ResolveOriginal", "req_id", reqID, "post_id", postID)
	original, err := r.resolver.ResolveOriginal(ctx, postID)
	if err != nil || original == nil {
		return model.Post{}, false, err
	}
	return *original, true, nil
}
