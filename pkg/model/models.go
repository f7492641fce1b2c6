package model

import (
	sn_trace "socialfeed/pkg/trace"

	"github.com/ServiceWeaver/weaver"
)

type User struct {
	weaver.AutoMarshal
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	IsPublic bool   `json:"is_public"`
}

// FollowEdge is the directed relation follower -> subject.
type FollowEdge struct {
	weaver.AutoMarshal
	Follower      int64 `json:"follower"`
	Subject       int64 `json:"subject"`
	IsCloseFriend bool  `json:"is_close_friend"`
}

type Post struct {
	// make post serializable
	// by default, struct literal types are not serializable
	weaver.AutoMarshal
	PostID      int64   `json:"post_id"`
	PostedBy    int64   `json:"posted_by"`
	TaggedUsers []int64 `json:"tagged_users"`
	// RepostOf is nil for original posts. The storage layer does not
	// guarantee that following it terminates.
	RepostOf *int64 `json:"repost_of,omitempty"`
}

type Category struct {
	weaver.AutoMarshal
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
}

type CategoryWeight struct {
	weaver.AutoMarshal
	CategoryID int64 `json:"category_id" validate:"required"`
	Weight     int   `json:"weight" validate:"gte=0,lte=100"`
}

type AlgorithmControlProfile struct {
	weaver.AutoMarshal
	UserID          int64            `json:"user_id"`
	Friends         int              `json:"friends"`
	Followings      int              `json:"followings"`
	Recommendations int              `json:"recommendations"`
	Distance        int              `json:"distance"`
	CategoryWeights []CategoryWeight `json:"category_weights"`
}

// ProfilePatch carries the fields of a weight profile update. Nil scalars
// are left untouched; category weights are merged by category id.
type ProfilePatch struct {
	weaver.AutoMarshal
	Friends         *int             `json:"friends,omitempty" validate:"omitempty,gte=0,lte=100"`
	Followings      *int             `json:"followings,omitempty" validate:"omitempty,gte=0,lte=100"`
	Recommendations *int             `json:"recommendations,omitempty" validate:"omitempty,gte=0,lte=100"`
	Distance        *int             `json:"distance,omitempty" validate:"omitempty,gte=0,lte=100"`
	CategoryWeights []CategoryWeight `json:"category_weights,omitempty" validate:"dive"`
}

type PolicyValue string

const (
	POLICY_ANYONE    PolicyValue = "anyone"
	POLICY_FOLLOWERS PolicyValue = "followers"
	POLICY_FRIENDS   PolicyValue = "friends"
	POLICY_NO_ONE    PolicyValue = "no_one"
)

type MentionPolicy struct {
	weaver.AutoMarshal
	UserID        int64       `json:"user_id"`
	CommentPolicy PolicyValue `json:"comment_policy"`
	StoryPolicy   PolicyValue `json:"story_policy"`
	PostPolicy    PolicyValue `json:"post_policy"`
}

type PolicyPatch struct {
	weaver.AutoMarshal
	CommentPolicy *PolicyValue `json:"comment_policy,omitempty" validate:"omitempty,oneof=anyone followers friends no_one"`
	StoryPolicy   *PolicyValue `json:"story_policy,omitempty" validate:"omitempty,oneof=anyone followers friends no_one"`
	PostPolicy    *PolicyValue `json:"post_policy,omitempty" validate:"omitempty,oneof=anyone followers friends no_one"`
}

type ContentType string

const (
	CONTENT_TYPE_STORY   ContentType = "story"
	CONTENT_TYPE_COMMENT ContentType = "comment"
	CONTENT_TYPE_POST    ContentType = "post"
	CONTENT_TYPE_BIO     ContentType = "bio"
)

func (c ContentType) Valid() bool {
	switch c {
	case CONTENT_TYPE_STORY, CONTENT_TYPE_COMMENT, CONTENT_TYPE_POST, CONTENT_TYPE_BIO:
		return true
	}
	return false
}

type Mention struct {
	weaver.AutoMarshal
	SourceUserID    int64  `json:"source_user_id"`
	MentionedUserID int64  `json:"mentioned_user_id"`
	Username        string `json:"username"`
	StartOffset     int    `json:"start_offset"`
	EndOffset       int    `json:"end_offset"`
	Allowed         bool   `json:"allowed"`
}

// FanOutMessage is queued once per created post.
type FanOutMessage struct {
	ReqID       int64                `json:"reqid"`
	PostID      int64                `json:"postid"`
	Timestamp   int64                `json:"timestamp"`
	SpanContext sn_trace.SpanContext `json:"span_context"`
}

type MentionNotification struct {
	SourceUserID    int64       `json:"source_user_id"`
	MentionedUserID int64       `json:"mentioned_user_id"`
	Username        string      `json:"username"`
	ContentType     ContentType `json:"content_type"`
	Timestamp       int64       `json:"timestamp"`
}
