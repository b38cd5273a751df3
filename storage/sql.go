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
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/juju/errors"
	_ "github.com/lib/pq"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	_ "modernc.org/sqlite"

	"github.com/gorse-io/gorse-movies/dataset"
)

// SQLItem is the row layout of the items table. Seq keeps the catalog order.
type SQLItem struct {
	Id    int64  `gorm:"column:id;primaryKey;autoIncrement:false"`
	Title string `gorm:"column:title;type:varchar(512);not null"`
	Seq   int64  `gorm:"column:seq;not null;index"`
}

// SQLRating is the row layout of the ratings table.
type SQLRating struct {
	UserId int64   `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	ItemId int64   `gorm:"column:item_id;primaryKey;autoIncrement:false;index"`
	Rating float32 `gorm:"column:rating;not null"`
}

// SQLDatabase reads movies and ratings from MySQL, Postgres or SQLite.
type SQLDatabase struct {
	TablePrefix
	client *sql.DB
	gormDB *gorm.DB
}

func (d *SQLDatabase) Init() error {
	if err := d.gormDB.AutoMigrate(&SQLItem{}, &SQLRating{}); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (d *SQLDatabase) Close() error {
	return d.client.Close()
}

// LoadItems returns all items in insertion order.
func (d *SQLDatabase) LoadItems(ctx context.Context) ([]dataset.Item, error) {
	result, err := d.gormDB.WithContext(ctx).Table(d.ItemsTable()).Select("id, title").Order("seq, id").Rows()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer result.Close()
	items := make([]dataset.Item, 0)
	for result.Next() {
		var item dataset.Item
		if err = result.Scan(&item.Id, &item.Title); err != nil {
			return nil, errors.Trace(err)
		}
		items = append(items, item)
	}
	return items, errors.Trace(result.Err())
}

// LoadRatings returns all ratings ordered by user and item.
func (d *SQLDatabase) LoadRatings(ctx context.Context) ([]dataset.Rating, error) {
	result, err := d.gormDB.WithContext(ctx).Table(d.RatingsTable()).
		Select("user_id, item_id, rating").Order("user_id, item_id").Rows()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer result.Close()
	ratings := make([]dataset.Rating, 0)
	for result.Next() {
		var rating dataset.Rating
		if err = result.Scan(&rating.UserId, &rating.ItemId, &rating.Rating); err != nil {
			return nil, errors.Trace(err)
		}
		ratings = append(ratings, rating)
	}
	return ratings, errors.Trace(result.Err())
}

// BatchInsertItems upserts items. New items are appended after existing ones,
// updated items keep their position.
func (d *SQLDatabase) BatchInsertItems(ctx context.Context, items []dataset.Item) error {
	if len(items) == 0 {
		return nil
	}
	var maxSeq sql.NullInt64
	if err := d.gormDB.WithContext(ctx).Table(d.ItemsTable()).Select("MAX(seq)").Row().Scan(&maxSeq); err != nil {
		return errors.Trace(err)
	}
	rows := lo.Map(items, func(item dataset.Item, i int) SQLItem {
		return SQLItem{Id: item.Id, Title: item.Title, Seq: maxSeq.Int64 + int64(i) + 1}
	})
	err := d.gormDB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title"}),
	}).Create(&rows).Error
	return errors.Trace(err)
}

// BatchInsertRatings upserts ratings.
func (d *SQLDatabase) BatchInsertRatings(ctx context.Context, ratings []dataset.Rating) error {
	if len(ratings) == 0 {
		return nil
	}
	rows := lo.Map(ratings, func(rating dataset.Rating, _ int) SQLRating {
		return SQLRating{UserId: rating.UserId, ItemId: rating.ItemId, Rating: rating.Rating}
	})
	err := d.gormDB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating"}),
	}).Create(&rows).Error
	return errors.Trace(err)
}
