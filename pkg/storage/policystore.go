package storage

import (
	"context"

	"socialfeed/pkg/errs"
	"socialfeed/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const MENTION_POLICY_COLLECTION = "mention_policy"

type policyDocument struct {
	UserID        int64  `bson:"user_id"`
	CommentPolicy string `bson:"comment_policy"`
	StoryPolicy   string `bson:"story_policy"`
	PostPolicy    string `bson:"post_policy"`
}

func (d policyDocument) toModel() model.MentionPolicy {
	return model.MentionPolicy{
		UserID:        d.UserID,
		CommentPolicy: model.PolicyValue(d.CommentPolicy),
		StoryPolicy:   model.PolicyValue(d.StoryPolicy),
		PostPolicy:    model.PolicyValue(d.PostPolicy),
	}
}

// MongoPolicyStore keeps one mention policy document per user.
type MongoPolicyStore struct {
	collection *mongo.Collection
}

func NewMongoPolicyStore(collection *mongo.Collection) *MongoPolicyStore {
	return &MongoPolicyStore{collection: collection}
}

func (s *MongoPolicyStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return errs.Upstream(err, "creating mention policy index")
}

func (s *MongoPolicyStore) Get(ctx context.Context, userID int64) (model.MentionPolicy, bool, error) {
	var doc policyDocument
	err := s.collection.FindOne(ctx, bson.D{{Key: "user_id", Value: userID}}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return model.MentionPolicy{}, false, nil
	}
	if err != nil {
		return model.MentionPolicy{}, false, errs.Upstream(err, "reading mention policy")
	}
	return doc.toModel(), true, nil
}

func (s *MongoPolicyStore) CreateIfAbsent(ctx context.Context, policy model.MentionPolicy) (model.MentionPolicy, bool, error) {
	filter := bson.D{{Key: "user_id", Value: policy.UserID}}
	update := bson.M{
		"$setOnInsert": bson.M{
			"comment_policy": string(policy.CommentPolicy),
			"story_policy":   string(policy.StoryPolicy),
			"post_policy":    string(policy.PostPolicy),
		},
	}
	res, err := s.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return model.MentionPolicy{}, false, errs.Upstream(err, "creating mention policy")
	}
	created := err == nil && res.UpsertedCount == 1

	stored, found, err := s.Get(ctx, policy.UserID)
	if err != nil {
		return model.MentionPolicy{}, false, err
	}
	if !found {
		return model.MentionPolicy{}, false, errs.Conflict("mention policy for user %d vanished after create", policy.UserID)
	}
	return stored, created, nil
}

func (s *MongoPolicyStore) Apply(ctx context.Context, userID int64, patch model.PolicyPatch) (model.MentionPolicy, error) {
	set := bson.M{}
	if patch.CommentPolicy != nil {
		set["comment_policy"] = string(*patch.CommentPolicy)
	}
	if patch.StoryPolicy != nil {
		set["story_policy"] = string(*patch.StoryPolicy)
	}
	if patch.PostPolicy != nil {
		set["post_policy"] = string(*patch.PostPolicy)
	}
	if len(set) > 0 {
		_, err := s.collection.UpdateOne(ctx, bson.D{{Key: "user_id", Value: userID}}, bson.M{"$set": set})
		if err != nil {
			return model.MentionPolicy{}, errs.Upstream(err, "updating mention policy")
		}
	}
	stored, found, err := s.Get(ctx, userID)
	if err != nil {
		return model.MentionPolicy{}, err
	}
	if !found {
		return model.MentionPolicy{}, errs.NotFound("mention policy for user %d", userID)
	}
	return stored, nil
}
