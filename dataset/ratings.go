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
	"math"
	"math/rand"

	"github.com/chewxy/math32"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// Rating is an observed rating given by a user to an item.
type Rating struct {
	UserId int64   `json:"UserId" gorm:"column:user_id" bson:"user_id"`
	ItemId int64   `json:"ItemId" gorm:"column:item_id" bson:"item_id"`
	Rating float32 `json:"Rating" gorm:"column:rating" bson:"rating"`
}

// Ratings stores observations column-wise with dense user and item indices.
// Subsets created by Split share the dictionaries of their parent, so a user
// keeps the same dense index in the training and held-out sets.
type Ratings struct {
	userDict *Dict
	itemDict *Dict
	users    []int32
	items    []int32
	ratings  []float32
}

// NewRatings indexes users and items in order of first appearance.
func NewRatings(records []Rating) *Ratings {
	r := &Ratings{
		userDict: NewDict(),
		itemDict: NewDict(),
		users:    make([]int32, len(records)),
		items:    make([]int32, len(records)),
		ratings:  make([]float32, len(records)),
	}
	for i, record := range records {
		r.users[i] = r.userDict.Add(record.UserId)
		r.items[i] = r.itemDict.Add(record.ItemId)
		r.ratings[i] = record.Rating
	}
	return r
}

// Len returns the number of observations.
func (r *Ratings) Len() int {
	return len(r.ratings)
}

// GetUserDict returns the user dictionary.
func (r *Ratings) GetUserDict() *Dict {
	return r.userDict
}

// GetItemDict returns the item dictionary.
func (r *Ratings) GetItemDict() *Dict {
	return r.itemDict
}

// GetDense returns the dense user index, dense item index and rating of the
// i-th observation.
func (r *Ratings) GetDense(i int) (int32, int32, float32) {
	return r.users[i], r.items[i], r.ratings[i]
}

// Get returns the i-th observation with sparse ids.
func (r *Ratings) Get(i int) Rating {
	userId, _ := r.userDict.Id(r.users[i])
	itemId, _ := r.itemDict.Id(r.items[i])
	return Rating{UserId: userId, ItemId: itemId, Rating: r.ratings[i]}
}

// GlobalMean returns the mean of all ratings, or zero when empty.
func (r *Ratings) GlobalMean() float32 {
	if len(r.ratings) == 0 {
		return 0
	}
	return lo.Sum(r.ratings) / float32(len(r.ratings))
}

// CountUsers returns the number of distinct users in this set.
func (r *Ratings) CountUsers() int {
	return len(lo.Uniq(r.users))
}

// CountItems returns the number of distinct items in this set.
func (r *Ratings) CountItems() int {
	return len(lo.Uniq(r.items))
}

// Validate checks that the set is not empty and every rating lies within
// [minRating, maxRating].
func (r *Ratings) Validate(minRating, maxRating float32) error {
	if minRating > maxRating {
		return errors.NotValidf("rating scale [%v, %v]", minRating, maxRating)
	}
	if len(r.ratings) == 0 {
		return errors.NotValidf("empty ratings")
	}
	for i, rating := range r.ratings {
		if math32.IsNaN(rating) || rating < minRating || rating > maxRating {
			record := r.Get(i)
			return errors.NotValidf("rating %v given by user %d to item %d (scale [%v, %v])",
				rating, record.UserId, record.ItemId, minRating, maxRating)
		}
	}
	return nil
}

// Split shuffles observations with a seeded generator and holds out
// ceil(n*testRatio) of them. At least one observation is kept for training.
func (r *Ratings) Split(testRatio float64, seed int64) (*Ratings, *Ratings) {
	n := len(r.ratings)
	testSize := int(math.Ceil(float64(n) * testRatio))
	if testSize >= n {
		testSize = max(n-1, 0)
	}
	if testSize < 0 {
		testSize = 0
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return r.subset(perm[testSize:]), r.subset(perm[:testSize])
}

func (r *Ratings) subset(indices []int) *Ratings {
	sub := &Ratings{
		userDict: r.userDict,
		itemDict: r.itemDict,
		users:    make([]int32, len(indices)),
		items:    make([]int32, len(indices)),
		ratings:  make([]float32, len(indices)),
	}
	for i, index := range indices {
		sub.users[i] = r.users[index]
		sub.items[i] = r.items[index]
		sub.ratings[i] = r.ratings[index]
	}
	return sub
}
