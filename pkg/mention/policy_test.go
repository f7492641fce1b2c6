package mention

import (
	"context"
	"sync"
	"testing"

	"socialfeed/pkg/errs"
	"socialfeed/pkg/model"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	public := DefaultPolicy(model.User{UserID: 1, IsPublic: true})
	assert.Equal(t, model.MentionPolicy{UserID: 1, CommentPolicy: model.POLICY_ANYONE, StoryPolicy: model.POLICY_ANYONE, PostPolicy: model.POLICY_ANYONE}, public)

	private := DefaultPolicy(model.User{UserID: 2})
	assert.Equal(t, model.MentionPolicy{UserID: 2, CommentPolicy: model.POLICY_NO_ONE, StoryPolicy: model.POLICY_NO_ONE, PostPolicy: model.POLICY_NO_ONE}, private)
}

func TestFor(t *testing.T) {
	policy := model.MentionPolicy{CommentPolicy: model.POLICY_FOLLOWERS, StoryPolicy: model.POLICY_FRIENDS, PostPolicy: model.POLICY_NO_ONE}

	assert.Equal(t, model.POLICY_FOLLOWERS, For(policy, model.CONTENT_TYPE_COMMENT))
	assert.Equal(t, model.POLICY_FRIENDS, For(policy, model.CONTENT_TYPE_STORY))
	assert.Equal(t, model.POLICY_NO_ONE, For(policy, model.CONTENT_TYPE_POST))
	assert.Equal(t, model.POLICY_ANYONE, For(policy, model.CONTENT_TYPE_BIO))
}

func TestPolicies_GetOrCreateIsStable(t *testing.T) {
	graph := newFakeGraph(carol)
	store := newMemPolicyStore()
	p := NewPolicies(store, graph, discardLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			policy, err := p.GetOrCreate(ctx, carol.UserID)
			assert.NoError(t, err)
			assert.Equal(t, model.POLICY_NO_ONE, policy.PostPolicy)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, store.creates)

	// later visibility changes do not rewrite the stored policy
	graph.users["carol"] = model.User{UserID: carol.UserID, Username: carol.Username, IsPublic: true}
	policy, err := p.GetOrCreate(ctx, carol.UserID)
	require.NoError(t, err)
	assert.Equal(t, model.POLICY_NO_ONE, policy.CommentPolicy)
}

func TestPolicies_UnknownUser(t *testing.T) {
	p := NewPolicies(newMemPolicyStore(), newFakeGraph(), discardLogger())

	_, err := p.GetOrCreate(context.Background(), 99)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestPolicies_Update(t *testing.T) {
	store := newMemPolicyStore()
	p := NewPolicies(store, newFakeGraph(bob), discardLogger())
	ctx := context.Background()

	updated, err := p.Update(ctx, bob.UserID, model.PolicyPatch{CommentPolicy: policyPtr(model.POLICY_FRIENDS)})
	require.NoError(t, err)
	assert.Equal(t, model.POLICY_FRIENDS, updated.CommentPolicy)
	assert.Equal(t, model.POLICY_ANYONE, updated.StoryPolicy)
	assert.Equal(t, model.POLICY_ANYONE, updated.PostPolicy)
}

func TestPolicies_UpdateRejectsUnknownValue(t *testing.T) {
	store := newMemPolicyStore()
	p := NewPolicies(store, newFakeGraph(bob), discardLogger())

	_, err := p.Update(context.Background(), bob.UserID, model.PolicyPatch{StoryPolicy: policyPtr("everyone")})
	assert.True(t, errors.Is(err, errs.ErrValidation))
	assert.Empty(t, store.policies)
}
