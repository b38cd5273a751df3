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

package mf

import (
	"context"

	"github.com/chewxy/math32"
	"github.com/juju/errors"

	"github.com/gorse-io/gorse-movies/common/parallel"
	"github.com/gorse-io/gorse-movies/dataset"
)

// Score of a rating model on held-out ratings.
type Score struct {
	RMSE     float32 `json:"rmse"`
	MAE      float32 `json:"mae"`
	NumTrain int     `json:"num_train"`
	NumTest  int     `json:"num_test"`
}

// Evaluate computes RMSE and MAE of clipped predictions on testSet. An empty
// testSet yields a zero score.
func (svd *SVD) Evaluate(ctx context.Context, testSet *dataset.Ratings, jobs int) (Score, error) {
	if svd.Invalid() {
		return Score{}, errors.New("svd is not fitted")
	}
	if testSet == nil || testSet.Len() == 0 {
		return Score{}, nil
	}
	squaredErrors := make([]float32, max(jobs, 1))
	absoluteErrors := make([]float32, max(jobs, 1))
	err := parallel.Split(ctx, testSet.Len(), jobs, func(chunkId, begin, end int) error {
		for i := begin; i < end; i++ {
			userIndex, itemIndex, rating := testSet.GetDense(i)
			diff := rating - svd.clip(svd.internalPredict(userIndex, itemIndex))
			squaredErrors[chunkId] += diff * diff
			absoluteErrors[chunkId] += math32.Abs(diff)
		}
		return nil
	})
	if err != nil {
		return Score{}, errors.Trace(err)
	}
	var sumSquared, sumAbsolute float32
	for i := range squaredErrors {
		sumSquared += squaredErrors[i]
		sumAbsolute += absoluteErrors[i]
	}
	n := float32(testSet.Len())
	return Score{
		RMSE:    math32.Sqrt(sumSquared / n),
		MAE:     sumAbsolute / n,
		NumTest: testSet.Len(),
	}, nil
}
