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

package storage

import (
	"context"

	"github.com/juju/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gorse-io/gorse-movies/dataset"
)

// MongoDB reads movies and ratings from two collections.
type MongoDB struct {
	TablePrefix
	client *mongo.Client
	dbName string
}

func (m MongoDB) Init() error {
	ctx := context.Background()
	d := m.client.Database(m.dbName)
	// list collections
	collections, err := d.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return errors.Trace(err)
	}
	exists := make(map[string]bool, len(collections))
	for _, name := range collections {
		exists[name] = true
	}
	// create collections
	for _, name := range []string{m.ItemsTable(), m.RatingsTable()} {
		if !exists[name] {
			if err = d.CreateCollection(ctx, name); err != nil {
				return errors.Trace(err)
			}
		}
	}
	// create indices
	if _, err = d.Collection(m.ItemsTable()).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return errors.Trace(err)
	}
	if _, err = d.Collection(m.RatingsTable()).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "item_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (m MongoDB) Close() error {
	return m.client.Disconnect(context.Background())
}

// LoadItems returns all items in insertion order.
func (m MongoDB) LoadItems(ctx context.Context) ([]dataset.Item, error) {
	c := m.client.Database(m.dbName).Collection(m.ItemsTable())
	opt := options.Find()
	opt.SetSort(bson.D{{Key: "seq", Value: 1}, {Key: "id", Value: 1}})
	r, err := c.Find(ctx, bson.M{}, opt)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer r.Close(ctx)
	items := make([]dataset.Item, 0)
	for r.Next(ctx) {
		var item dataset.Item
		if err = r.Decode(&item); err != nil {
			return nil, errors.Trace(err)
		}
		items = append(items, item)
	}
	return items, errors.Trace(r.Err())
}

// LoadRatings returns all ratings ordered by user and item.
func (m MongoDB) LoadRatings(ctx context.Context) ([]dataset.Rating, error) {
	c := m.client.Database(m.dbName).Collection(m.RatingsTable())
	opt := options.Find()
	opt.SetSort(bson.D{{Key: "user_id", Value: 1}, {Key: "item_id", Value: 1}})
	r, err := c.Find(ctx, bson.M{}, opt)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer r.Close(ctx)
	ratings := make([]dataset.Rating, 0)
	for r.Next(ctx) {
		var rating dataset.Rating
		if err = r.Decode(&rating); err != nil {
			return nil, errors.Trace(err)
		}
		ratings = append(ratings, rating)
	}
	return ratings, errors.Trace(r.Err())
}

// BatchInsertItems upserts items. New items are appended after existing ones,
// updated items keep their position.
func (m MongoDB) BatchInsertItems(ctx context.Context, items []dataset.Item) error {
	if len(items) == 0 {
		return nil
	}
	c := m.client.Database(m.dbName).Collection(m.ItemsTable())
	// find the last position
	var last struct {
		Seq int64 `bson:"seq"`
	}
	err := c.FindOne(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})).Decode(&last)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return errors.Trace(err)
	}
	var models []mongo.WriteModel
	for i, item := range items {
		models = append(models, mongo.NewUpdateOneModel().
			SetUpsert(true).
			SetFilter(bson.M{"id": item.Id}).
			SetUpdate(bson.M{
				"$set":         bson.M{"title": item.Title},
				"$setOnInsert": bson.M{"seq": last.Seq + int64(i) + 1},
			}))
	}
	_, err = c.BulkWrite(ctx, models)
	return errors.Trace(err)
}

// BatchInsertRatings upserts ratings.
func (m MongoDB) BatchInsertRatings(ctx context.Context, ratings []dataset.Rating) error {
	if len(ratings) == 0 {
		return nil
	}
	c := m.client.Database(m.dbName).Collection(m.RatingsTable())
	var models []mongo.WriteModel
	for _, rating := range ratings {
		models = append(models, mongo.NewUpdateOneModel().
			SetUpsert(true).
			SetFilter(bson.M{"user_id": rating.UserId, "item_id": rating.ItemId}).
			SetUpdate(bson.M{"$set": rating}))
	}
	_, err := c.BulkWrite(ctx, models)
	return errors.Trace(err)
}
