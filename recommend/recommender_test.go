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

package recommend

import (
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"

	"github.com/gorse-io/gorse-movies/dataset"
	"github.com/gorse-io/gorse-movies/model"
	"github.com/gorse-io/gorse-movies/model/mf"
)

type mockPredictor map[int64]float32

func (m mockPredictor) Predict(_, itemId int64) float32 {
	return m[itemId]
}

func newCatalog(t *testing.T, items ...dataset.Item) *dataset.Catalog {
	catalog, err := dataset.NewCatalog(items)
	assert.NoError(t, err)
	return catalog
}

func TestRecommender_Recommend(t *testing.T) {
	catalog := newCatalog(t,
		dataset.Item{Id: 1, Title: "A"},
		dataset.Item{Id: 2, Title: "B"},
		dataset.Item{Id: 3, Title: "C"},
		dataset.Item{Id: 4, Title: "D"},
	)
	recommender := NewRecommender(catalog, mockPredictor{1: 5, 2: 3, 3: 4, 4: 1}, 0, 10)
	assert.Equal(t, 10, recommender.DefaultN())
	assert.Equal(t, int64(0), recommender.GuestUserId())
	recommendations, err := recommender.Recommend("A", 2)
	assert.NoError(t, err)
	assert.Equal(t, []Recommendation{
		{ItemId: 3, Title: "C", Score: 4},
		{ItemId: 2, Title: "B", Score: 3},
	}, recommendations)
	// catalog smaller than n
	recommendations, err = recommender.Recommend("C", recommender.DefaultN())
	assert.NoError(t, err)
	assert.Equal(t, []Recommendation{
		{ItemId: 1, Title: "A", Score: 5},
		{ItemId: 2, Title: "B", Score: 3},
		{ItemId: 4, Title: "D", Score: 1},
	}, recommendations)
}

func TestRecommender_TieBreak(t *testing.T) {
	catalog := newCatalog(t,
		dataset.Item{Id: 10, Title: "Selected"},
		dataset.Item{Id: 9, Title: "First"},
		dataset.Item{Id: 3, Title: "Second"},
		dataset.Item{Id: 7, Title: "Third"},
		dataset.Item{Id: 1, Title: "Best"},
	)
	recommender := NewRecommender(catalog, mockPredictor{9: 3, 3: 3, 7: 3, 1: 4}, 0, 3)
	recommendations, err := recommender.Recommend("Selected", 3)
	assert.NoError(t, err)
	assert.Equal(t, []string{"Best", "First", "Second"}, titles(recommendations))
	// idempotent
	again, err := recommender.Recommend("Selected", 3)
	assert.NoError(t, err)
	assert.Equal(t, recommendations, again)
}

func TestRecommender_DuplicateTitle(t *testing.T) {
	catalog := newCatalog(t,
		dataset.Item{Id: 1, Title: "Hamlet"},
		dataset.Item{Id: 2, Title: "Other"},
		dataset.Item{Id: 3, Title: "Hamlet"},
	)
	recommender := NewRecommender(catalog, mockPredictor{1: 1, 2: 2, 3: 5}, 0, 10)
	// the first item is selected and the second one can be recommended
	recommendations, err := recommender.Recommend("Hamlet", 10)
	assert.NoError(t, err)
	assert.Equal(t, []Recommendation{
		{ItemId: 3, Title: "Hamlet", Score: 5},
		{ItemId: 2, Title: "Other", Score: 2},
	}, recommendations)
}

func TestRecommender_SmallCatalog(t *testing.T) {
	// single item
	recommender := NewRecommender(newCatalog(t, dataset.Item{Id: 1, Title: "A"}), mockPredictor{}, 0, 10)
	recommendations, err := recommender.Recommend("A", 10)
	assert.NoError(t, err)
	assert.Empty(t, recommendations)
	// two items
	recommender = NewRecommender(newCatalog(t,
		dataset.Item{Id: 1, Title: "A"},
		dataset.Item{Id: 2, Title: "B"}), mockPredictor{2: 2.5}, 0, 10)
	recommendations, err = recommender.Recommend("A", 10)
	assert.NoError(t, err)
	assert.Equal(t, []Recommendation{{ItemId: 2, Title: "B", Score: 2.5}}, recommendations)
}

func TestRecommender_Errors(t *testing.T) {
	recommender := NewRecommender(newCatalog(t, dataset.Item{Id: 1, Title: "A"}), mockPredictor{}, 0, 10)
	_, err := recommender.Recommend("Z", 10)
	assert.ErrorIs(t, err, ErrSelectionNotRecognized)
	assert.Contains(t, err.Error(), "\"Z\"")
	// the recommender is still usable
	_, err = recommender.Recommend("A", 10)
	assert.NoError(t, err)
	_, err = recommender.Recommend("A", 0)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestRecommender_SVD(t *testing.T) {
	catalog := newCatalog(t,
		dataset.Item{Id: 1, Title: "A"},
		dataset.Item{Id: 2, Title: "B"},
		dataset.Item{Id: 3, Title: "C"},
	)
	ratings := dataset.NewRatings([]dataset.Rating{
		{UserId: 1, ItemId: 1, Rating: 4},
		{UserId: 1, ItemId: 2, Rating: 5},
		{UserId: 2, ItemId: 2, Rating: 4.5},
		{UserId: 2, ItemId: 3, Rating: 1},
		{UserId: 3, ItemId: 3, Rating: 2},
		{UserId: 3, ItemId: 1, Rating: 3.5},
	})
	svd := mf.NewSVD(model.Params{model.RandomState: 42})
	_, err := svd.Fit(context.Background(), ratings, nil, mf.NewFitConfig())
	assert.NoError(t, err)
	recommender := NewRecommender(catalog, svd, 0, 10)
	recommendations, err := recommender.Recommend("A", 2)
	assert.NoError(t, err)
	assert.Len(t, recommendations, 2)
	assert.ElementsMatch(t, []string{"B", "C"}, titles(recommendations))
	assert.GreaterOrEqual(t, recommendations[0].Score, recommendations[1].Score)
	for _, recommendation := range recommendations {
		assert.GreaterOrEqual(t, recommendation.Score, float32(0.5))
		assert.LessOrEqual(t, recommendation.Score, float32(5))
	}
}

func TestFormat(t *testing.T) {
	lines := Format([]Recommendation{
		{ItemId: 2, Title: "Heat (1995)", Score: 4.256},
		{ItemId: 3, Title: "Sabrina (1995)", Score: 3},
	})
	assert.Equal(t, []string{
		"1. Heat (1995) (predicted rating: 4.26)",
		"2. Sabrina (1995) (predicted rating: 3.00)",
	}, lines)
	assert.Empty(t, Format(nil))
}

func titles(recommendations []Recommendation) []string {
	result := make([]string, len(recommendations))
	for i, recommendation := range recommendations {
		result[i] = recommendation.Title
	}
	return result
}
