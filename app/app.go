// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package app

import (
	"context"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/gorse-io/gorse-movies/common/log"
	"github.com/gorse-io/gorse-movies/config"
	"github.com/gorse-io/gorse-movies/dataset"
	"github.com/gorse-io/gorse-movies/model/mf"
	"github.com/gorse-io/gorse-movies/recommend"
	"github.com/gorse-io/gorse-movies/storage"
)

// App owns the state loaded and trained at startup. It is never mutated
// afterwards and is safe for concurrent readers.
type App struct {
	Config      *config.Config
	Catalog     *dataset.Catalog
	Ratings     *dataset.Ratings
	Model       *mf.SVD
	Score       mf.Score
	Recommender *recommend.Recommender
}

// New loads the catalog and ratings, fits the rating model on the training
// split and evaluates it on the held-out split.
func New(ctx context.Context, cfg *config.Config, opts ...storage.Option) (*App, error) {
	storageOpts := append(cfg.Database.StorageOptions(false), opts...)

	// load catalog
	items, err := loadItems(ctx, cfg.Database.CatalogStore, storageOpts)
	if err != nil {
		return nil, errors.Annotate(err, "failed to load catalog")
	}
	catalog, err := dataset.NewCatalog(items)
	if err != nil {
		return nil, errors.Annotate(err, "failed to load catalog")
	}
	if duplicates := catalog.DuplicateTitles(); len(duplicates) > 0 {
		log.Logger().Warn("duplicate titles resolve to the first movie",
			zap.Strings("titles", duplicates))
	}
	log.Logger().Info("load catalog complete",
		zap.String("source", log.RedactDBURL(cfg.Database.CatalogStore)),
		zap.Int("n_items", catalog.Len()))

	// load ratings
	records, err := loadRatings(ctx, cfg.Database.RatingStore, storageOpts)
	if err != nil {
		return nil, errors.Annotate(err, "failed to load ratings")
	}
	ratings := dataset.NewRatings(records)
	if err = ratings.Validate(cfg.Model.MinRating, cfg.Model.MaxRating); err != nil {
		return nil, errors.Annotate(err, "failed to load ratings")
	}
	log.Logger().Info("load ratings complete",
		zap.String("source", log.RedactDBURL(cfg.Database.RatingStore)),
		zap.Int("n_ratings", ratings.Len()),
		zap.Int("n_users", ratings.CountUsers()),
		zap.Int("n_items", ratings.CountItems()))

	// fit model
	train, test := ratings.Split(cfg.Model.TestRatio, cfg.Model.RandomState)
	svd := mf.NewSVD(cfg.Model.Params())
	score, err := svd.Fit(ctx, train, test, mf.NewFitConfig().
		SetJobs(cfg.Model.FitJobs).
		SetVerbose(cfg.Model.Verbose).
		SetRatingScale(cfg.Model.MinRating, cfg.Model.MaxRating))
	if err != nil {
		return nil, errors.Annotate(err, "failed to fit model")
	}

	return &App{
		Config:      cfg,
		Catalog:     catalog,
		Ratings:     ratings,
		Model:       svd,
		Score:       score,
		Recommender: recommend.NewRecommender(catalog, svd, cfg.Recommend.GuestUserId, cfg.Recommend.N),
	}, nil
}

func loadItems(ctx context.Context, path string, opts []storage.Option) ([]dataset.Item, error) {
	database, err := storage.Open(path, opts...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer database.Close()
	return database.LoadItems(ctx)
}

func loadRatings(ctx context.Context, path string, opts []storage.Option) ([]dataset.Rating, error) {
	database, err := storage.Open(path, opts...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer database.Close()
	return database.LoadRatings(ctx)
}

// Import copies the configured catalog and ratings into the database at
// target, creating tables if needed.
func Import(ctx context.Context, cfg *config.Config, target string, opts ...storage.Option) error {
	storageOpts := append(cfg.Database.StorageOptions(false), opts...)
	items, err := loadItems(ctx, cfg.Database.CatalogStore, storageOpts)
	if err != nil {
		return errors.Annotate(err, "failed to load catalog")
	}
	records, err := loadRatings(ctx, cfg.Database.RatingStore, storageOpts)
	if err != nil {
		return errors.Annotate(err, "failed to load ratings")
	}
	database, err := storage.Open(target, storage.WithTablePrefix(cfg.Database.TablePrefix))
	if err != nil {
		return errors.Trace(err)
	}
	defer database.Close()
	if err = database.Init(); err != nil {
		return errors.Trace(err)
	}
	for begin := 0; begin < len(items); begin += importBatchSize {
		if err = database.BatchInsertItems(ctx, items[begin:min(begin+importBatchSize, len(items))]); err != nil {
			return errors.Trace(err)
		}
	}
	for begin := 0; begin < len(records); begin += importBatchSize {
		if err = database.BatchInsertRatings(ctx, records[begin:min(begin+importBatchSize, len(records))]); err != nil {
			return errors.Trace(err)
		}
	}
	log.Logger().Info("import complete",
		zap.String("target", log.RedactDBURL(target)),
		zap.Int("n_items", len(items)),
		zap.Int("n_ratings", len(records)))
	return nil
}

const importBatchSize = 10000
