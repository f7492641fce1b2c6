package storage

import (
	"context"
	"fmt"

	"socialfeed/pkg/errs"
	"socialfeed/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ALGORITHM_CONTROL_COLLECTION = "algorithm_control"

type categoryWeightDocument struct {
	CategoryID int64 `bson:"category_id"`
	Weight     int   `bson:"weight"`
}

type profileDocument struct {
	UserID          int64                    `bson:"user_id"`
	Friends         int                      `bson:"friends"`
	Followings      int                      `bson:"followings"`
	Recommendations int                      `bson:"recommendations"`
	Distance        int                      `bson:"distance"`
	CategoryWeights []categoryWeightDocument `bson:"category_weights"`
}

func (d profileDocument) toModel() model.AlgorithmControlProfile {
	profile := model.AlgorithmControlProfile{
		UserID:          d.UserID,
		Friends:         d.Friends,
		Followings:      d.Followings,
		Recommendations: d.Recommendations,
		Distance:        d.Distance,
		CategoryWeights: make([]model.CategoryWeight, 0, len(d.CategoryWeights)),
	}
	for _, cw := range d.CategoryWeights {
		profile.CategoryWeights = append(profile.CategoryWeights, model.CategoryWeight{
			CategoryID: cw.CategoryID,
			Weight:     cw.Weight,
		})
	}
	return profile
}

// MongoProfileStore keeps one algorithm control document per user.
type MongoProfileStore struct {
	collection *mongo.Collection
}

func NewMongoProfileStore(collection *mongo.Collection) *MongoProfileStore {
	return &MongoProfileStore{collection: collection}
}

// EnsureIndexes creates the unique user_id index that makes concurrent
// upserts collapse into a single document.
func (s *MongoProfileStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return errs.Upstream(err, "creating algorithm control index")
}

func (s *MongoProfileStore) Get(ctx context.Context, userID int64) (model.AlgorithmControlProfile, bool, error) {
	var doc profileDocument
	filter := bson.D{{Key: "user_id", Value: userID}}
	err := s.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return model.AlgorithmControlProfile{}, false, nil
	}
	if err != nil {
		return model.AlgorithmControlProfile{}, false, errs.Upstream(err, "reading algorithm control profile")
	}
	return doc.toModel(), true, nil
}

// CreateIfAbsent inserts profile unless a document for the user already
// exists, and returns whatever is stored afterwards. created reports whether
// this call inserted it.
func (s *MongoProfileStore) CreateIfAbsent(ctx context.Context, profile model.AlgorithmControlProfile) (model.AlgorithmControlProfile, bool, error) {
	weights := make([]categoryWeightDocument, 0, len(profile.CategoryWeights))
	for _, cw := range profile.CategoryWeights {
		weights = append(weights, categoryWeightDocument{CategoryID: cw.CategoryID, Weight: cw.Weight})
	}
	filter := bson.D{{Key: "user_id", Value: profile.UserID}}
	update := bson.M{
		"$setOnInsert": bson.M{
			"friends":          profile.Friends,
			"followings":       profile.Followings,
			"recommendations":  profile.Recommendations,
			"distance":         profile.Distance,
			"category_weights": weights,
		},
	}
	res, err := s.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return model.AlgorithmControlProfile{}, false, errs.Upstream(err, "creating algorithm control profile")
	}
	created := err == nil && res.UpsertedCount == 1

	stored, found, err := s.Get(ctx, profile.UserID)
	if err != nil {
		return model.AlgorithmControlProfile{}, false, err
	}
	if !found {
		return model.AlgorithmControlProfile{}, false, errs.Conflict("algorithm control profile for user %d vanished after create", profile.UserID)
	}
	return stored, created, nil
}

// Apply writes patch onto the stored profile. Scalars are set when present.
// Category weights are merged by category id: matching entries are
// overwritten, unknown categories are appended and every other entry keeps
// its weight. Each write is a single-document atomic update.
func (s *MongoProfileStore) Apply(ctx context.Context, userID int64, patch model.ProfilePatch) (model.AlgorithmControlProfile, error) {
	for _, cw := range patch.CategoryWeights {
		filter := bson.D{
			{Key: "user_id", Value: userID},
			{Key: "category_weights.category_id", Value: bson.D{{Key: "$ne", Value: cw.CategoryID}}},
		}
		push := bson.M{"$push": bson.M{"category_weights": categoryWeightDocument{CategoryID: cw.CategoryID, Weight: cw.Weight}}}
		if _, err := s.collection.UpdateOne(ctx, filter, push); err != nil {
			return model.AlgorithmControlProfile{}, errs.Upstream(err, "adding category weight")
		}
	}

	set, arrayFilters := profileUpdate(patch)
	if len(set) > 0 {
		opts := options.Update()
		if len(arrayFilters) > 0 {
			opts.SetArrayFilters(options.ArrayFilters{Filters: arrayFilters})
		}
		filter := bson.D{{Key: "user_id", Value: userID}}
		if _, err := s.collection.UpdateOne(ctx, filter, bson.M{"$set": set}, opts); err != nil {
			return model.AlgorithmControlProfile{}, errs.Upstream(err, "updating algorithm control profile")
		}
	}

	stored, found, err := s.Get(ctx, userID)
	if err != nil {
		return model.AlgorithmControlProfile{}, err
	}
	if !found {
		return model.AlgorithmControlProfile{}, errs.NotFound("algorithm control profile for user %d", userID)
	}
	return stored, nil
}

// profileUpdate builds the $set document and its array filters. Category ids
// in patch are expected to be unique.
func profileUpdate(patch model.ProfilePatch) (bson.M, []interface{}) {
	set := bson.M{}
	if patch.Friends != nil {
		set["friends"] = *patch.Friends
	}
	if patch.Followings != nil {
		set["followings"] = *patch.Followings
	}
	if patch.Recommendations != nil {
		set["recommendations"] = *patch.Recommendations
	}
	if patch.Distance != nil {
		set["distance"] = *patch.Distance
	}
	var arrayFilters []interface{}
	for i, cw := range patch.CategoryWeights {
		identifier := fmt.Sprintf("c%d", i)
		set["category_weights.$["+identifier+"].weight"] = cw.Weight
		arrayFilters = append(arrayFilters, bson.M{identifier + ".category_id": cw.CategoryID})
	}
	return set, arrayFilters
}
