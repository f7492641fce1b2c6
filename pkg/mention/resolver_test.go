package mention

import (
	"context"
	"testing"

	"socialfeed/pkg/errs"
	"socialfeed/pkg/model"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const actor int64 = 1

var (
	alice = model.User{UserID: 1, Username: "alice", IsPublic: true}
	bob   = model.User{UserID: 2, Username: "bob", IsPublic: true}
	carol = model.User{UserID: 3, Username: "Carol", IsPublic: false}
	dave  = model.User{UserID: 4, Username: "dave", IsPublic: true}
)

func newTestResolver() (*Resolver, *fakeGraph, *memPolicyStore) {
	graph := newFakeGraph(alice, bob, carol, dave)
	store := newMemPolicyStore()
	policies := NewPolicies(store, graph, discardLogger())
	return NewResolver(graph, policies, discardLogger()), graph, store
}

func TestExtractMentions_PublicAndPrivateRecipients(t *testing.T) {
	r, _, _ := newTestResolver()

	mentions, err := r.ExtractMentions(context.Background(), "hi @bob and @carol", actor, model.CONTENT_TYPE_POST)
	require.NoError(t, err)
	require.Len(t, mentions, 2)

	assert.Equal(t, model.Mention{SourceUserID: actor, MentionedUserID: 2, Username: "bob", StartOffset: 3, EndOffset: 7, Allowed: true}, mentions[0])
	assert.Equal(t, model.Mention{SourceUserID: actor, MentionedUserID: 3, Username: "carol", StartOffset: 12, EndOffset: 18, Allowed: false}, mentions[1])
}

func TestExtractMentions_UnknownUsernamesSkipped(t *testing.T) {
	r, _, _ := newTestResolver()

	mentions, err := r.ExtractMentions(context.Background(), "@nobody @bob", actor, model.CONTENT_TYPE_COMMENT)
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	assert.Equal(t, int64(2), mentions[0].MentionedUserID)
	assert.Equal(t, 8, mentions[0].StartOffset)
}

func TestExtractMentions_DuplicatesKeptAndResolvedOnce(t *testing.T) {
	r, graph, _ := newTestResolver()

	mentions, err := r.ExtractMentions(context.Background(), "@bob @BOB @bob", actor, model.CONTENT_TYPE_STORY)
	require.NoError(t, err)
	require.Len(t, mentions, 3)
	for _, m := range mentions {
		assert.Equal(t, int64(2), m.MentionedUserID)
		assert.True(t, m.Allowed)
	}
	assert.Equal(t, "BOB", mentions[1].Username)
	assert.Equal(t, 1, graph.usernameCalls["bob"])
}

func TestExtractMentions_BioIgnoresPolicy(t *testing.T) {
	r, _, store := newTestResolver()

	mentions, err := r.ExtractMentions(context.Background(), "fan of @carol", actor, model.CONTENT_TYPE_BIO)
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	assert.True(t, mentions[0].Allowed)
	assert.Zero(t, store.creates)
}

func TestExtractMentions_FollowersPolicyNeedsCloseFriendEdgeFromRecipient(t *testing.T) {
	r, graph, store := newTestResolver()
	store.policies[dave.UserID] = model.MentionPolicy{
		UserID: dave.UserID, CommentPolicy: model.POLICY_FOLLOWERS, StoryPolicy: model.POLICY_ANYONE, PostPolicy: model.POLICY_ANYONE,
	}
	ctx := context.Background()

	// actor follows dave: not enough
	graph.follow(actor, dave.UserID, true)
	mentions, err := r.ExtractMentions(ctx, "@dave", actor, model.CONTENT_TYPE_COMMENT)
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	assert.False(t, mentions[0].Allowed)

	graph.follow(dave.UserID, actor, false)
	mentions, err = r.ExtractMentions(ctx, "@dave", actor, model.CONTENT_TYPE_COMMENT)
	require.NoError(t, err)
	assert.False(t, mentions[0].Allowed)

	graph.follow(dave.UserID, actor, true)
	mentions, err = r.ExtractMentions(ctx, "@dave", actor, model.CONTENT_TYPE_COMMENT)
	require.NoError(t, err)
	assert.True(t, mentions[0].Allowed)
}

func TestExtractMentions_FriendsPolicyNeedsFollowFromActor(t *testing.T) {
	r, graph, store := newTestResolver()
	store.policies[dave.UserID] = model.MentionPolicy{
		UserID: dave.UserID, CommentPolicy: model.POLICY_ANYONE, StoryPolicy: model.POLICY_FRIENDS, PostPolicy: model.POLICY_NO_ONE,
	}
	ctx := context.Background()

	graph.follow(dave.UserID, actor, true)
	mentions, err := r.ExtractMentions(ctx, "@dave", actor, model.CONTENT_TYPE_STORY)
	require.NoError(t, err)
	assert.False(t, mentions[0].Allowed)

	graph.follow(actor, dave.UserID, false)
	mentions, err = r.ExtractMentions(ctx, "@dave", actor, model.CONTENT_TYPE_STORY)
	require.NoError(t, err)
	assert.True(t, mentions[0].Allowed)

	mentions, err = r.ExtractMentions(ctx, "@dave", actor, model.CONTENT_TYPE_POST)
	require.NoError(t, err)
	assert.False(t, mentions[0].Allowed)
}

func TestExtractMentions_CreatesPolicyOnFirstEvaluation(t *testing.T) {
	r, _, store := newTestResolver()

	_, err := r.ExtractMentions(context.Background(), "@bob @carol", actor, model.CONTENT_TYPE_POST)
	require.NoError(t, err)

	assert.Equal(t, model.POLICY_ANYONE, store.policies[bob.UserID].PostPolicy)
	assert.Equal(t, model.POLICY_NO_ONE, store.policies[carol.UserID].PostPolicy)
}

func TestExtractMentions_FailuresStayLocalToRecipient(t *testing.T) {
	r, graph, _ := newTestResolver()
	graph.failUsernames["carol"] = true

	mentions, err := r.ExtractMentions(context.Background(), "@carol @bob", actor, model.CONTENT_TYPE_POST)
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	assert.Equal(t, int64(2), mentions[0].MentionedUserID)
}

func TestExtractMentions_PolicyFailureDenies(t *testing.T) {
	r, _, store := newTestResolver()
	store.getErr = errs.Upstream(errors.New("server selection timeout"), "reading mention policy")

	mentions, err := r.ExtractMentions(context.Background(), "@bob", actor, model.CONTENT_TYPE_POST)
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	assert.False(t, mentions[0].Allowed)
}

func TestExtractMentions_RejectsBadInput(t *testing.T) {
	r, _, _ := newTestResolver()
	ctx := context.Background()

	_, err := r.ExtractMentions(ctx, "@bob", actor, model.ContentType("reel"))
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = r.ExtractMentions(ctx, "@bob \xff", actor, model.CONTENT_TYPE_POST)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestExtractMentions_NoMentions(t *testing.T) {
	r, _, _ := newTestResolver()

	mentions, err := r.ExtractMentions(context.Background(), "nothing to see", actor, model.CONTENT_TYPE_POST)
	require.NoError(t, err)
	assert.Empty(t, mentions)
	assert.NotNil(t, mentions)
}

func TestExtractMentions_PrivateUserOptsIn(t *testing.T) {
	r, _, _ := newTestResolver()
	ctx := context.Background()

	mentions, err := r.ExtractMentions(ctx, "@carol", dave.UserID, model.CONTENT_TYPE_COMMENT)
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	assert.False(t, mentions[0].Allowed)

	_, err = r.policies.Update(ctx, carol.UserID, model.PolicyPatch{CommentPolicy: policyPtr(model.POLICY_ANYONE)})
	require.NoError(t, err)

	mentions, err = r.ExtractMentions(ctx, "@carol", dave.UserID, model.CONTENT_TYPE_COMMENT)
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	assert.True(t, mentions[0].Allowed)
}
