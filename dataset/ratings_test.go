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

package dataset

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func newTestRatings(n int) *Ratings {
	records := make([]Rating, n)
	for i := range records {
		records[i] = Rating{UserId: int64(i % 7), ItemId: int64(i % 11), Rating: float32(i%10)/2 + 0.5}
	}
	return NewRatings(records)
}

func TestRatings(t *testing.T) {
	r := NewRatings([]Rating{
		{UserId: 10, ItemId: 1, Rating: 4},
		{UserId: 20, ItemId: 1, Rating: 3},
		{UserId: 10, ItemId: 2, Rating: 5},
	})
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, int32(2), r.GetUserDict().Count())
	assert.Equal(t, int32(2), r.GetItemDict().Count())
	user, item, rating := r.GetDense(2)
	assert.Equal(t, int32(0), user)
	assert.Equal(t, int32(1), item)
	assert.Equal(t, float32(5), rating)
	assert.Equal(t, Rating{UserId: 20, ItemId: 1, Rating: 3}, r.Get(1))
	assert.Equal(t, float32(4), r.GlobalMean())
	assert.Equal(t, 2, r.CountUsers())
	assert.Equal(t, 2, r.CountItems())
	assert.Zero(t, NewRatings(nil).GlobalMean())
}

func TestRatingsValidate(t *testing.T) {
	assert.NoError(t, newTestRatings(100).Validate(0.5, 5))
	// empty
	err := NewRatings(nil).Validate(0.5, 5)
	assert.True(t, errors.Is(err, errors.NotValid))
	// out of range
	err = NewRatings([]Rating{{UserId: 1, ItemId: 1, Rating: 5.5}}).Validate(0.5, 5)
	assert.True(t, errors.Is(err, errors.NotValid))
	err = NewRatings([]Rating{{UserId: 1, ItemId: 1, Rating: 0}}).Validate(0.5, 5)
	assert.True(t, errors.Is(err, errors.NotValid))
	err = NewRatings([]Rating{{UserId: 1, ItemId: 1, Rating: math32.NaN()}}).Validate(0.5, 5)
	assert.True(t, errors.Is(err, errors.NotValid))
	// bad scale
	err = newTestRatings(10).Validate(5, 0.5)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestRatingsSplit(t *testing.T) {
	r := newTestRatings(100)
	train, test := r.Split(0.2, 42)
	assert.Equal(t, 80, train.Len())
	assert.Equal(t, 20, test.Len())
	// dictionaries are shared
	assert.Same(t, r.GetUserDict(), train.GetUserDict())
	assert.Same(t, r.GetItemDict(), test.GetItemDict())
	// same seed, same split
	train2, test2 := r.Split(0.2, 42)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)
	// all observations are kept
	var sum float32
	for i := 0; i < train.Len(); i++ {
		sum += train.Get(i).Rating
	}
	for i := 0; i < test.Len(); i++ {
		sum += test.Get(i).Rating
	}
	assert.InDelta(t, r.GlobalMean()*100, sum, 1e-3)
}

func TestRatingsSplitEdgeCases(t *testing.T) {
	// ceil(3 * 0.2) = 1
	train, test := newTestRatings(3).Split(0.2, 0)
	assert.Equal(t, 2, train.Len())
	assert.Equal(t, 1, test.Len())
	// training set is never empty
	train, test = newTestRatings(1).Split(0.2, 0)
	assert.Equal(t, 1, train.Len())
	assert.Equal(t, 0, test.Len())
	// no held-out set
	train, test = newTestRatings(10).Split(0, 0)
	assert.Equal(t, 10, train.Len())
	assert.Equal(t, 0, test.Len())
	// empty
	train, test = NewRatings(nil).Split(0.2, 0)
	assert.Equal(t, 0, train.Len())
	assert.Equal(t, 0, test.Len())
}
