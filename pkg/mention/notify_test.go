package mention

import (
	"context"
	"encoding/json"
	"testing"

	"socialfeed/pkg/model"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(subject string, data []byte) error {
	args := m.Called(subject, data)
	return args.Error(0)
}

func TestNotifier_PublishesAllowedMentions(t *testing.T) {
	publisher := new(mockPublisher)
	var published []model.MentionNotification
	publisher.On("Publish", "mentions.comment", mock.Anything).Run(func(args mock.Arguments) {
		var msg model.MentionNotification
		require.NoError(t, json.Unmarshal(args.Get(1).([]byte), &msg))
		published = append(published, msg)
	}).Return(nil)

	n := NewNotifier(publisher, "mentions", discardLogger())
	sent := n.Notify(context.Background(), []model.Mention{
		{SourceUserID: 1, MentionedUserID: 2, Username: "bob", Allowed: true},
		{SourceUserID: 1, MentionedUserID: 3, Username: "carol", Allowed: false},
		{SourceUserID: 1, MentionedUserID: 4, Username: "dave", Allowed: true},
	}, model.CONTENT_TYPE_COMMENT)

	assert.Equal(t, 2, sent)
	require.Len(t, published, 2)
	assert.Equal(t, int64(2), published[0].MentionedUserID)
	assert.Equal(t, model.CONTENT_TYPE_COMMENT, published[0].ContentType)
	assert.Equal(t, int64(4), published[1].MentionedUserID)
	publisher.AssertNumberOfCalls(t, "Publish", 2)
}

func TestNotifier_PublishFailureSkipsMention(t *testing.T) {
	publisher := new(mockPublisher)
	publisher.On("Publish", "mentions.post", mock.Anything).Return(errors.New("nats: connection closed")).Once()
	publisher.On("Publish", "mentions.post", mock.Anything).Return(nil)

	n := NewNotifier(publisher, "mentions", discardLogger())
	sent := n.Notify(context.Background(), []model.Mention{
		{SourceUserID: 1, MentionedUserID: 2, Allowed: true},
		{SourceUserID: 1, MentionedUserID: 4, Allowed: true},
	}, model.CONTENT_TYPE_POST)

	assert.Equal(t, 1, sent)
	publisher.AssertExpectations(t)
}
