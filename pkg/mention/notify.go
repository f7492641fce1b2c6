package mention

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"socialfeed/pkg/model"
)

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Notifier hands allowed mentions to notification delivery, one message per
// mention on "<prefix>.<content type>".
type Notifier struct {
	publisher Publisher
	prefix    string
	logger    *slog.Logger
}

func NewNotifier(publisher Publisher, prefix string, logger *slog.Logger) *Notifier {
	return &Notifier{publisher: publisher, prefix: prefix, logger: logger}
}

// Notify publishes every allowed mention and returns how many were sent.
// Publish failures are logged and skipped.
func (n *Notifier) Notify(ctx context.Context, mentions []model.Mention, contentType model.ContentType) int {
	subject := n.prefix + "." + string(contentType)
	sent := 0
	for _, m := range mentions {
		if !m.Allowed {
			continue
		}
		msg := model.MentionNotification{
			SourceUserID:    m.SourceUserID,
			MentionedUserID: m.MentionedUserID,
			Username:        m.Username,
			ContentType:     contentType,
			Timestamp:       time.Now().UnixMilli(),
		}
		msgJSON, err := json.Marshal(msg)
		if err != nil {
			n.logger.Error("error converting mention notification to json", "msg", err.Error())
			continue
		}
		if err := n.publisher.Publish(subject, msgJSON); err != nil {
			n.logger.Warn("error publishing mention notification", "subject", subject, "user_id", m.MentionedUserID, "msg", err.Error())
			continue
		}
		sent++
	}
	return sent
}
