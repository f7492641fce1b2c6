package services

import (
	"context"

	"socialfeed/pkg/model"
	"socialfeed/pkg/profile"
	"socialfeed/pkg/storage"

	"github.com/ServiceWeaver/weaver"
	"go.mongodb.org/mongo-driver/mongo"
)

type WeightProfileService interface {
	GetOrCreateWeightProfile(ctx context.Context, reqID int64, userID int64) (model.AlgorithmControlProfile, error)
	UpdateWeightProfile(ctx context.Context, reqID int64, userID int64, patch model.ProfilePatch) (model.AlgorithmControlProfile, error)
}

type weightProfileService struct {
	weaver.Implements[WeightProfileService]
	weaver.WithConfig[weightProfileServiceOptions]
	socialGraphService weaver.Ref[SocialGraphService]
	mongoClient        *mongo.Client
	profiles           *profile.Service
}

type weightProfileServiceOptions struct {
	MongoDBAddr string `toml:"mongodb_address"`
	MongoDBPort int    `toml:"mongodb_port"`
	Database    string `toml:"database"`
}

func (p *weightProfileService) Init(ctx context.Context) error {
	logger := p.Logger(ctx)

	var err error
	p.mongoClient, err = storage.MongoDBClient(ctx, p.Config().MongoDBAddr, p.Config().MongoDBPort)
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	database := p.Config().Database
	if database == "" {
		database = storage.PERSONALIZATION_DB
	}
	store := storage.NewMongoProfileStore(p.mongoClient.Database(database).Collection(storage.ALGORITHM_CONTROL_COLLECTION))
	if err := store.EnsureIndexes(ctx); err != nil {
		logger.Error("error creating indexes", "collection", storage.ALGORITHM_CONTROL_COLLECTION, "msg", err.Error())
		return err
	}
	p.profiles = profile.NewService(store, p.socialGraphService.Get(), logger)

	logger.Info("weight profile service running!", "database", database,
		"mongodb_addr", p.Config().MongoDBAddr, "mongodb_port", p.Config().MongoDBPort,
	)
	return nil
}

func (p *weightProfileService) Shutdown(ctx context.Context) error {
	return p.mongoClient.Disconnect(ctx)
}

func (p *weightProfileService) GetOrCreateWeightProfile(ctx context.Context, reqID int64, userID int64) (model.AlgorithmControlProfile, error) {
	p.Logger(ctx).Debug("entering GetOrCreateWeightProfile", "req_id", reqID, "user_id", userID)
	return p.profiles.GetOrCreate(ctx, userID)
}

func (p *weightProfileService) UpdateWeightProfile(ctx context.Context, reqID int64, userID int64, patch model.ProfilePatch) (model.AlgorithmControlProfile, error) {
	p.Logger(ctx).Debug("entering UpdateWeightProfile", "req_id", reqID, "user_id", userID)
	return p.profiles.Update(ctx, userID, patch)
}
