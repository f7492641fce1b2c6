package mention

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"socialfeed/pkg/model"

	"github.com/pkg/errors"
)

type edgeKey struct {
	follower int64
	subject  int64
}

type fakeGraph struct {
	mu            sync.Mutex
	users         map[string]model.User
	edges         map[edgeKey]bool
	failUsernames map[string]bool
	usernameCalls map[string]int
}

func newFakeGraph(users ...model.User) *fakeGraph {
	g := &fakeGraph{
		users:         map[string]model.User{},
		edges:         map[edgeKey]bool{},
		failUsernames: map[string]bool{},
		usernameCalls: map[string]int{},
	}
	for _, u := range users {
		g.users[strings.ToLower(u.Username)] = u
	}
	return g
}

func (g *fakeGraph) follow(follower int64, subject int64, closeFriend bool) {
	g.edges[edgeKey{follower, subject}] = closeFriend
}

func (g *fakeGraph) FindUser(ctx context.Context, userID int64) (model.User, bool, error) {
	for _, u := range g.users {
		if u.UserID == userID {
			return u, true, nil
		}
	}
	return model.User{}, false, nil
}

func (g *fakeGraph) FindUserByUsername(ctx context.Context, username string) (model.User, bool, error) {
	key := strings.ToLower(username)
	g.mu.Lock()
	g.usernameCalls[key]++
	g.mu.Unlock()
	if g.failUsernames[key] {
		return model.User{}, false, errors.New("connection refused")
	}
	u, ok := g.users[key]
	return u, ok, nil
}

func (g *fakeGraph) FindFollowEdge(ctx context.Context, follower int64, subject int64) (model.FollowEdge, bool, error) {
	closeFriend, ok := g.edges[edgeKey{follower, subject}]
	if !ok {
		return model.FollowEdge{}, false, nil
	}
	return model.FollowEdge{Follower: follower, Subject: subject, IsCloseFriend: closeFriend}, true, nil
}

type memPolicyStore struct {
	mu       sync.Mutex
	policies map[int64]model.MentionPolicy
	getErr   error
	creates  int
}

func newMemPolicyStore() *memPolicyStore {
	return &memPolicyStore{policies: map[int64]model.MentionPolicy{}}
}

func (s *memPolicyStore) Get(ctx context.Context, userID int64) (model.MentionPolicy, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return model.MentionPolicy{}, false, s.getErr
	}
	p, ok := s.policies[userID]
	return p, ok, nil
}

func (s *memPolicyStore) CreateIfAbsent(ctx context.Context, policy model.MentionPolicy) (model.MentionPolicy, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.policies[policy.UserID]; ok {
		return existing, false, nil
	}
	s.policies[policy.UserID] = policy
	s.creates++
	return policy, true, nil
}

func (s *memPolicyStore) Apply(ctx context.Context, userID int64, patch model.PolicyPatch) (model.MentionPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.policies[userID]
	if patch.CommentPolicy != nil {
		p.CommentPolicy = *patch.CommentPolicy
	}
	if patch.StoryPolicy != nil {
		p.StoryPolicy = *patch.StoryPolicy
	}
	if patch.PostPolicy != nil {
		p.PostPolicy = *patch.PostPolicy
	}
	s.policies[userID] = p
	return p, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func policyPtr(v model.PolicyValue) *model.PolicyValue {
	return &v
}
