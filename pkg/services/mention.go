package services

import (
	"context"

	"socialfeed/pkg/mention"
	"socialfeed/pkg/model"
	"socialfeed/pkg/storage"

	"github.com/ServiceWeaver/weaver"
	"github.com/nats-io/nats.go"
	"go.mongodb.org/mongo-driver/mongo"
)

const DEFAULT_MENTION_SUBJECT_PREFIX = "mentions"

type MentionService interface {
	ExtractMentions(ctx context.Context, reqID int64, text string, actorID int64, contentType model.ContentType) ([]model.Mention, error)
	// ProcessMentions extracts the mentions and notifies every allowed recipient.
	ProcessMentions(ctx context.Context, reqID int64, text string, actorID int64, contentType model.ContentType) ([]model.Mention, error)
	GetOrCreateMentionPolicy(ctx context.Context, reqID int64, userID int64) (model.MentionPolicy, error)
	UpdateMentionPolicy(ctx context.Context, reqID int64, userID int64, patch model.PolicyPatch) (model.MentionPolicy, error)
}

type mentionService struct {
	weaver.Implements[MentionService]
	weaver.WithConfig[mentionServiceOptions]
	socialGraphService weaver.Ref[SocialGraphService]
	mongoClient        *mongo.Client
	natsConn           *nats.Conn
	policies           *mention.Policies
	resolver           *mention.Resolver
	notifier           *mention.Notifier
}

type mentionServiceOptions struct {
	MongoDBAddr   string `toml:"mongodb_address"`
	MongoDBPort   int    `toml:"mongodb_port"`
	Database      string `toml:"database"`
	NatsURL       string `toml:"nats_url"`
	SubjectPrefix string `toml:"subject_prefix"`
}

func (m *mentionService) Init(ctx context.Context) error {
	logger := m.Logger(ctx)

	var err error
	m.mongoClient, err = storage.MongoDBClient(ctx, m.Config().MongoDBAddr, m.Config().MongoDBPort)
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	database := m.Config().Database
	if database == "" {
		database = storage.PERSONALIZATION_DB
	}
	store := storage.NewMongoPolicyStore(m.mongoClient.Database(database).Collection(storage.MENTION_POLICY_COLLECTION))
	if err := store.EnsureIndexes(ctx); err != nil {
		logger.Error("error creating indexes", "collection", storage.MENTION_POLICY_COLLECTION, "msg", err.Error())
		return err
	}

	graph := m.socialGraphService.Get()
	m.policies = mention.NewPolicies(store, graph, logger)
	m.resolver = mention.NewResolver(graph, m.policies, logger)

	if m.Config().NatsURL != "" {
		m.natsConn, err = storage.NatsClient(m.Config().NatsURL, "mention-service")
		if err != nil {
			logger.Error(err.Error())
			return err
		}
		prefix := m.Config().SubjectPrefix
		if prefix == "" {
			prefix = DEFAULT_MENTION_SUBJECT_PREFIX
		}
		m.notifier = mention.NewNotifier(m.natsConn, prefix, logger)
	}

	logger.Info("mention service running!", "database", database,
		"mongodb_addr", m.Config().MongoDBAddr, "mongodb_port", m.Config().MongoDBPort,
		"nats_url", m.Config().NatsURL,
	)
	return nil
}

func (m *mentionService) Shutdown(ctx context.Context) error {
	if m.natsConn != nil {
		if err := m.natsConn.Drain(); err != nil {
			m.Logger(ctx).Warn("error draining nats connection", "msg", err.Error())
		}
	}
	return m.mongoClient.Disconnect(ctx)
}

func (m *mentionService) ExtractMentions(ctx context.Context, reqID int64, text string, actorID int64, contentType model.ContentType) ([]model.Mention, error) {
	m.Logger(ctx).Debug("entering ExtractMentions", "req_id", reqID, "actor_id", actorID, "content_type", contentType)
	return m.resolver.ExtractMentions(ctx, text, actorID, contentType)
}

func (m *mentionService) ProcessMentions(ctx context.Context, reqID int64, text string, actorID int64, contentType model.ContentType) ([]model.Mention, error) {
	logger := m.Logger(ctx)
	logger.Debug("entering ProcessMentions", "req_id", reqID, "actor_id", actorID, "content_type", contentType)
	mentions, err := m.resolver.ExtractMentions(ctx, text, actorID, contentType)
	if err != nil {
		return nil, err
	}
	if m.notifier == nil {
		logger.Debug("mention notifications disabled", "req_id", reqID)
		return mentions, nil
	}
	sent := m.notifier.Notify(ctx, mentions, contentType)
	logger.Debug("mention notifications sent", "req_id", reqID, "sent", sent, "mentions", len(mentions))
	return mentions, nil
}

func (m *mentionService) GetOrCreateMentionPolicy(ctx context.Context, reqID int64, userID int64) (model.MentionPolicy, error) {
	m.Logger(ctx).Debug("entering GetOrCreateMentionPolicy", "req_id", reqID, "user_id", userID)
	return m.policies.GetOrCreate(ctx, userID)
}

func (m *mentionService) UpdateMentionPolicy(ctx context.Context, reqID int64, userID int64, patch model.PolicyPatch) (model.MentionPolicy, error) {
	m.Logger(ctx).Debug("entering UpdateMentionPolicy", "req_id", reqID, "user_id", userID)
	return m.policies.Update(ctx, userID, patch)
}
