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
	"fmt"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/gorse-io/gorse-movies/common/heap"
	"github.com/gorse-io/gorse-movies/common/log"
	"github.com/gorse-io/gorse-movies/dataset"
)

// ErrSelectionNotRecognized is returned when the selected title is not in
// the catalog.
const ErrSelectionNotRecognized = errors.ConstError("selection not recognized")

// Predictor predicts the rating given by a user to an item.
type Predictor interface {
	Predict(userId, itemId int64) float32
}

// Recommendation is a recommended item with its predicted rating.
type Recommendation struct {
	ItemId int64   `json:"ItemId"`
	Title  string  `json:"Title"`
	Score  float32 `json:"Score"`
}

// Recommender ranks catalog items for the guest user.
type Recommender struct {
	catalog     *dataset.Catalog
	predictor   Predictor
	guestUserId int64
	n           int
}

func NewRecommender(catalog *dataset.Catalog, predictor Predictor, guestUserId int64, n int) *Recommender {
	return &Recommender{
		catalog:     catalog,
		predictor:   predictor,
		guestUserId: guestUserId,
		n:           n,
	}
}

// DefaultN returns the number of recommendations used when none is requested.
func (r *Recommender) DefaultN() int {
	return r.n
}

func (r *Recommender) GuestUserId() int64 {
	return r.guestUserId
}

func (r *Recommender) Catalog() *dataset.Catalog {
	return r.catalog
}

// Recommend returns at most n items other than the selected one, ordered by
// predicted rating. Items with equal ratings keep their catalog order.
func (r *Recommender) Recommend(title string, n int) ([]Recommendation, error) {
	if n < 1 {
		return nil, errors.NotValidf("number of recommendations %d", n)
	}
	_, selected, ok := r.catalog.Lookup(title)
	if !ok {
		return nil, errors.Annotatef(ErrSelectionNotRecognized, "title %q", title)
	}
	filter := heap.NewTopKFilter[int, float32](n)
	for pos, item := range r.catalog.Items() {
		if pos == selected {
			continue
		}
		filter.Push(pos, r.predictor.Predict(r.guestUserId, item.Id))
	}
	elems := filter.PopAll()
	recommendations := make([]Recommendation, len(elems))
	for i, elem := range elems {
		item := r.catalog.Get(elem.Value)
		recommendations[i] = Recommendation{
			ItemId: item.Id,
			Title:  item.Title,
			Score:  elem.Weight,
		}
	}
	log.Logger().Debug("recommend",
		zap.String("title", title),
		zap.Int64("user_id", r.guestUserId),
		zap.Int("n", n),
		zap.Int("n_results", len(recommendations)))
	return recommendations, nil
}

// Format renders recommendations as numbered lines.
func Format(recommendations []Recommendation) []string {
	lines := make([]string, len(recommendations))
	for i, recommendation := range recommendations {
		lines[i] = fmt.Sprintf("%d. %s (predicted rating: %.2f)", i+1, recommendation.Title, recommendation.Score)
	}
	return lines
}
