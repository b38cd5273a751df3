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

import "time"

// Schema names the columns of tabular sources that carry a header row.
type Schema struct {
	UserId string
	ItemId string
	Title  string
	Rating string
}

// DefaultSchema matches the MovieLens csv files.
func DefaultSchema() Schema {
	return Schema{
		UserId: "userId",
		ItemId: "movieId",
		Title:  "title",
		Rating: "rating",
	}
}

type Options struct {
	TablePrefix     string
	Schema          Schema
	Separator       string
	Progress        bool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type Option func(*Options)

func WithTablePrefix(tablePrefix string) Option {
	return func(o *Options) {
		o.TablePrefix = tablePrefix
	}
}

func WithSchema(schema Schema) Option {
	return func(o *Options) {
		o.Schema = schema
	}
}

func WithSeparator(sep string) Option {
	return func(o *Options) {
		o.Separator = sep
	}
}

// WithProgress shows a progress bar while reading local files.
func WithProgress(progress bool) Option {
	return func(o *Options) {
		o.Progress = progress
	}
}

func WithMaxOpenConns(maxOpenConns int) Option {
	return func(o *Options) {
		o.MaxOpenConns = maxOpenConns
	}
}

func WithMaxIdleConns(maxIdleConns int) Option {
	return func(o *Options) {
		o.MaxIdleConns = maxIdleConns
	}
}

func WithConnMaxLifetime(connMaxLifetime time.Duration) Option {
	return func(o *Options) {
		o.ConnMaxLifetime = connMaxLifetime
	}
}

func NewOptions(opts ...Option) Options {
	opt := Options{
		Schema:    DefaultSchema(),
		Separator: ",",
	}
	for _, o := range opts {
		o(&opt)
	}
	return opt
}
