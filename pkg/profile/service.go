// Package profile manages the per-user algorithm control weights. Profiles
// are created on first access; the weights are stored and returned but not
// applied to feed ordering.
package profile

import (
	"context"
	"log/slog"

	"socialfeed/pkg/errs"
	sn_metrics "socialfeed/pkg/metrics"
	"socialfeed/pkg/model"

	"github.com/go-playground/validator/v10"
)

const DEFAULT_WEIGHT = 50

type Store interface {
	Get(ctx context.Context, userID int64) (model.AlgorithmControlProfile, bool, error)
	CreateIfAbsent(ctx context.Context, profile model.AlgorithmControlProfile) (model.AlgorithmControlProfile, bool, error)
	Apply(ctx context.Context, userID int64, patch model.ProfilePatch) (model.AlgorithmControlProfile, error)
}

type CategoryLister interface {
	ListCategories(ctx context.Context) ([]model.Category, error)
}

type Service struct {
	store      Store
	categories CategoryLister
	validate   *validator.Validate
	logger     *slog.Logger
}

func NewService(store Store, categories CategoryLister, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		categories: categories,
		validate:   validator.New(),
		logger:     logger,
	}
}

// Default builds the profile a user starts with: every weight at the
// midpoint, one entry per known category.
func Default(userID int64, categories []model.Category) model.AlgorithmControlProfile {
	profile := model.AlgorithmControlProfile{
		UserID:          userID,
		Friends:         DEFAULT_WEIGHT,
		Followings:      DEFAULT_WEIGHT,
		Recommendations: DEFAULT_WEIGHT,
		Distance:        DEFAULT_WEIGHT,
		CategoryWeights: make([]model.CategoryWeight, 0, len(categories)),
	}
	for _, c := range categories {
		profile.CategoryWeights = append(profile.CategoryWeights, model.CategoryWeight{
			CategoryID: c.CategoryID,
			Weight:     DEFAULT_WEIGHT,
		})
	}
	return profile
}

func (s *Service) GetOrCreate(ctx context.Context, userID int64) (model.AlgorithmControlProfile, error) {
	profile, found, err := s.store.Get(ctx, userID)
	if err != nil {
		return model.AlgorithmControlProfile{}, err
	}
	if found {
		return profile, nil
	}

	categories, err := s.categories.ListCategories(ctx)
	if err != nil {
		return model.AlgorithmControlProfile{}, errs.Upstream(err, "listing categories")
	}
	profile, created, err := s.store.CreateIfAbsent(ctx, Default(userID, categories))
	if err != nil {
		return model.AlgorithmControlProfile{}, err
	}
	if created {
		sn_metrics.ProfilesCreated.Inc()
		s.logger.Debug("created algorithm control profile", "user_id", userID, "categories", len(categories))
	}
	return profile, nil
}

// Update applies patch to the user's profile, creating the profile first if
// needed. Weights outside 0..100 are rejected before anything is written.
func (s *Service) Update(ctx context.Context, userID int64, patch model.ProfilePatch) (model.AlgorithmControlProfile, error) {
	if err := s.validate.Struct(patch); err != nil {
		return model.AlgorithmControlProfile{}, errs.Validation("weight profile update: %s", err.Error())
	}
	patch.CategoryWeights = uniqueCategories(patch.CategoryWeights)

	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return model.AlgorithmControlProfile{}, err
	}
	return s.store.Apply(ctx, userID, patch)
}

// uniqueCategories keeps the last weight given for each category, in order
// of first appearance.
func uniqueCategories(weights []model.CategoryWeight) []model.CategoryWeight {
	if len(weights) < 2 {
		return weights
	}
	index := make(map[int64]int, len(weights))
	var unique []model.CategoryWeight
	for _, cw := range weights {
		if i, ok := index[cw.CategoryID]; ok {
			unique[i].Weight = cw.Weight
			continue
		}
		index[cw.CategoryID] = len(unique)
		unique = append(unique, cw)
	}
	return unique
}
