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
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// Item is a movie in the catalog.
type Item struct {
	Id    int64  `json:"Id" gorm:"column:id" bson:"id"`
	Title string `json:"Title" gorm:"column:title" bson:"title"`
}

// Catalog is the read-only list of items in load order. The position of an
// item in the catalog is its tie-break key everywhere in the recommender.
type Catalog struct {
	items   []Item
	byId    map[int64]int
	byTitle map[string]int
}

// NewCatalog indexes items by id and by title. Item ids must be unique. When
// several items share a title, the title resolves to the first of them.
func NewCatalog(items []Item) (*Catalog, error) {
	c := &Catalog{
		items:   make([]Item, len(items)),
		byId:    make(map[int64]int, len(items)),
		byTitle: make(map[string]int, len(items)),
	}
	for i, item := range items {
		item.Title = strings.TrimSpace(item.Title)
		if _, exist := c.byId[item.Id]; exist {
			return nil, errors.NotValidf("duplicate item id %d in catalog", item.Id)
		}
		c.items[i] = item
		c.byId[item.Id] = i
		if _, exist := c.byTitle[item.Title]; !exist {
			c.byTitle[item.Title] = i
		}
	}
	return c, nil
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	return len(c.items)
}

// Items returns all items in catalog order.
func (c *Catalog) Items() []Item {
	return c.items
}

// Get returns the item at a catalog position.
func (c *Catalog) Get(pos int) Item {
	return c.items[pos]
}

// Lookup resolves a title to the first item carrying it and its position.
func (c *Catalog) Lookup(title string) (Item, int, bool) {
	pos, ok := c.byTitle[strings.TrimSpace(title)]
	if !ok {
		return Item{}, -1, false
	}
	return c.items[pos], pos, true
}

// Position returns the catalog position of an item id.
func (c *Catalog) Position(id int64) (int, bool) {
	pos, ok := c.byId[id]
	return pos, ok
}

// Titles returns the distinct titles sorted in ascending order.
func (c *Catalog) Titles() []string {
	titles := lo.Keys(c.byTitle)
	sort.Strings(titles)
	return titles
}

// DuplicateTitles returns titles shared by more than one item.
func (c *Catalog) DuplicateTitles() []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	duplicates := mapset.NewThreadUnsafeSet[string]()
	for _, item := range c.items {
		if !seen.Add(item.Title) {
			duplicates.Add(item.Title)
		}
	}
	titles := duplicates.ToSlice()
	sort.Strings(titles)
	return titles
}
