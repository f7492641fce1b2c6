package mention

import (
	"context"
	"log/slog"

	"socialfeed/pkg/errs"
	sn_metrics "socialfeed/pkg/metrics"
	"socialfeed/pkg/model"

	"github.com/go-playground/validator/v10"
)

type PolicyStore interface {
	Get(ctx context.Context, userID int64) (model.MentionPolicy, bool, error)
	CreateIfAbsent(ctx context.Context, policy model.MentionPolicy) (model.MentionPolicy, bool, error)
	Apply(ctx context.Context, userID int64, patch model.PolicyPatch) (model.MentionPolicy, error)
}

type UserFinder interface {
	FindUser(ctx context.Context, userID int64) (model.User, bool, error)
}

// Policies reads and writes mention policies, creating them on first access.
type Policies struct {
	store    PolicyStore
	users    UserFinder
	validate *validator.Validate
	logger   *slog.Logger
}

func NewPolicies(store PolicyStore, users UserFinder, logger *slog.Logger) *Policies {
	return &Policies{
		store:    store,
		users:    users,
		validate: validator.New(),
		logger:   logger,
	}
}

// DefaultPolicy opens every content type to anyone for public users and
// closes them for private users.
func DefaultPolicy(user model.User) model.MentionPolicy {
	value := model.POLICY_NO_ONE
	if user.IsPublic {
		value = model.POLICY_ANYONE
	}
	return model.MentionPolicy{
		UserID:        user.UserID,
		CommentPolicy: value,
		StoryPolicy:   value,
		PostPolicy:    value,
	}
}

// GetOrCreate returns the stored policy. A missing policy is derived from the
// user's visibility at this moment and stored; later visibility changes do
// not touch it.
func (p *Policies) GetOrCreate(ctx context.Context, userID int64) (model.MentionPolicy, error) {
	policy, found, err := p.store.Get(ctx, userID)
	if err != nil {
		return model.MentionPolicy{}, err
	}
	if found {
		return policy, nil
	}

	user, found, err := p.users.FindUser(ctx, userID)
	if err != nil {
		return model.MentionPolicy{}, errs.Upstream(err, "reading user")
	}
	if !found {
		return model.MentionPolicy{}, errs.NotFound("user %d", userID)
	}
	policy, created, err := p.store.CreateIfAbsent(ctx, DefaultPolicy(user))
	if err != nil {
		return model.MentionPolicy{}, err
	}
	if created {
		sn_metrics.PoliciesCreated.Inc()
		p.logger.Debug("created mention policy", "user_id", userID, "is_public", user.IsPublic)
	}
	return policy, nil
}

func (p *Policies) Update(ctx context.Context, userID int64, patch model.PolicyPatch) (model.MentionPolicy, error) {
	if err := p.validate.Struct(patch); err != nil {
		return model.MentionPolicy{}, errs.Validation("mention policy update: %s", err.Error())
	}
	if _, err := p.GetOrCreate(ctx, userID); err != nil {
		return model.MentionPolicy{}, err
	}
	return p.store.Apply(ctx, userID, patch)
}

// For selects the policy value governing contentType. Bio mentions have no
// policy and are open to anyone.
func For(policy model.MentionPolicy, contentType model.ContentType) model.PolicyValue {
	switch contentType {
	case model.CONTENT_TYPE_STORY:
		return policy.StoryPolicy
	case model.CONTENT_TYPE_COMMENT:
		return policy.CommentPolicy
	case model.CONTENT_TYPE_POST:
		return policy.PostPolicy
	default:
		return model.POLICY_ANYONE
	}
}
