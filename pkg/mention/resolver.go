package mention

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"socialfeed/pkg/errs"
	sn_metrics "socialfeed/pkg/metrics"
	"socialfeed/pkg/model"
)

type Graph interface {
	FindUserByUsername(ctx context.Context, username string) (model.User, bool, error)
	FindFollowEdge(ctx context.Context, follower int64, subject int64) (model.FollowEdge, bool, error)
}

type Resolver struct {
	graph    Graph
	policies *Policies
	logger   *slog.Logger
}

func NewResolver(graph Graph, policies *Policies, logger *slog.Logger) *Resolver {
	return &Resolver{graph: graph, policies: policies, logger: logger}
}

type recipient struct {
	user    model.User
	found   bool
	allowed bool
}

// ExtractMentions returns one Mention per "@username" token in text that
// names an existing user, in text order. Mentions of the same user are not
// merged. Allowed reports whether the recipient's policy for contentType
// lets actorID mention them.
func (r *Resolver) ExtractMentions(ctx context.Context, text string, actorID int64, contentType model.ContentType) ([]model.Mention, error) {
	if !contentType.Valid() {
		return nil, errs.Validation("unknown content type %q", contentType)
	}
	if !utf8.ValidString(text) {
		return nil, errs.Validation("mention text is not valid utf-8")
	}

	label := sn_metrics.ContentTypeLabel{ContentType: string(contentType)}
	resolved := make(map[string]recipient)
	mentions := []model.Mention{}
	for _, token := range Scan(text) {
		key := strings.ToLower(token.Username)
		rcpt, ok := resolved[key]
		if !ok {
			rcpt = r.resolve(ctx, token.Username, actorID, contentType)
			resolved[key] = rcpt
		}
		if !rcpt.found {
			continue
		}
		sn_metrics.MentionsResolved.Get(label).Inc()
		if !rcpt.allowed {
			sn_metrics.MentionsDenied.Get(label).Inc()
		}
		mentions = append(mentions, model.Mention{
			SourceUserID:    actorID,
			MentionedUserID: rcpt.user.UserID,
			Username:        token.Username,
			StartOffset:     token.Start,
			EndOffset:       token.End,
			Allowed:         rcpt.allowed,
		})
	}
	return mentions, nil
}

// resolve looks the username up and evaluates the recipient's policy.
// Failures stay local to this recipient: an unresolvable username is
// skipped and a failed policy check denies the mention.
func (r *Resolver) resolve(ctx context.Context, username string, actorID int64, contentType model.ContentType) recipient {
	user, found, err := r.graph.FindUserByUsername(ctx, username)
	if err != nil {
		r.logger.Warn("error resolving mentioned username", "username", username, "msg", err.Error())
		return recipient{}
	}
	if !found {
		return recipient{}
	}
	allowed, err := r.permitted(ctx, actorID, user.UserID, contentType)
	if err != nil {
		r.logger.Warn("error evaluating mention policy, denying", "actor_id", actorID, "user_id", user.UserID, "msg", err.Error())
		allowed = false
	}
	return recipient{user: user, found: true, allowed: allowed}
}

func (r *Resolver) permitted(ctx context.Context, actorID int64, recipientID int64, contentType model.ContentType) (bool, error) {
	if contentType == model.CONTENT_TYPE_BIO {
		return true, nil
	}
	policy, err := r.policies.GetOrCreate(ctx, recipientID)
	if err != nil {
		return false, err
	}

	// "followers" checks for a close-friend edge from the recipient and
	// "friends" for a plain follow from the actor. The names look swapped
	// but this is the behavior clients depend on.
	switch For(policy, contentType) {
	case model.POLICY_ANYONE:
		return true, nil
	case model.POLICY_NO_ONE:
		return false, nil
	case model.POLICY_FOLLOWERS:
		edge, found, err := r.graph.FindFollowEdge(ctx, recipientID, actorID)
		if err != nil {
			return false, err
		}
		return found && edge.IsCloseFriend, nil
	default:
		_, found, err := r.graph.FindFollowEdge(ctx, actorID, recipientID)
		if err != nil {
			return false, err
		}
		return found, nil
	}
}
