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
	"strings"

	"github.com/XSAM/otelsql"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gorse-io/gorse-movies/common/log"
	"github.com/gorse-io/gorse-movies/dataset"
)

// Database is a tabular source of movies and ratings.
type Database interface {
	// Init creates tables and indices if the backend needs them.
	Init() error
	LoadItems(ctx context.Context) ([]dataset.Item, error)
	LoadRatings(ctx context.Context) ([]dataset.Rating, error)
	BatchInsertItems(ctx context.Context, items []dataset.Item) error
	BatchInsertRatings(ctx context.Context, ratings []dataset.Rating) error
	Close() error
}

// Open a database by the prefix of path. Paths without a known prefix are
// local csv files.
func Open(path string, opts ...Option) (Database, error) {
	var err error
	opt := NewOptions(opts...)
	log.Logger().Debug("open database", zap.String("path", log.RedactDBURL(path)))
	if strings.HasPrefix(path, MySQLPrefix) {
		name := path[len(MySQLPrefix):]
		// append parameters
		if name, err = AppendMySQLParams(name, map[string]string{
			"parseTime": "true",
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		database := new(SQLDatabase)
		database.TablePrefix = TablePrefix(opt.TablePrefix)
		if database.client, err = otelsql.Open("mysql", name,
			otelsql.WithAttributes(semconv.DBSystemMySQL),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		ApplySQLPool(database.client, opt)
		database.gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: database.client}), NewGORMConfig(opt.TablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, PostgresPrefix) || strings.HasPrefix(path, PostgreSQLPrefix) {
		database := new(SQLDatabase)
		database.TablePrefix = TablePrefix(opt.TablePrefix)
		if database.client, err = otelsql.Open("postgres", path,
			otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		ApplySQLPool(database.client, opt)
		database.gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: database.client}), NewGORMConfig(opt.TablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, MongoPrefix) || strings.HasPrefix(path, MongoSrvPrefix) {
		// connect to database
		database := new(MongoDB)
		clientOpts := options.Client()
		clientOpts.Monitor = otelmongo.NewMonitor()
		clientOpts.ApplyURI(path)
		if database.client, err = mongo.Connect(context.Background(), clientOpts); err != nil {
			return nil, errors.Trace(err)
		}
		// parse DSN and extract database name
		if cs, err := connstring.ParseAndValidate(path); err != nil {
			return nil, errors.Trace(err)
		} else {
			database.dbName = cs.Database
			database.TablePrefix = TablePrefix(opt.TablePrefix)
		}
		return database, nil
	} else if strings.HasPrefix(path, SQLitePrefix) {
		// append parameters
		if path, err = AppendURLParams(path, []lo.Tuple2[string, string]{
			{A: "_pragma", B: "busy_timeout(10000)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		name := path[len(SQLitePrefix):]
		database := new(SQLDatabase)
		database.TablePrefix = TablePrefix(opt.TablePrefix)
		if database.client, err = otelsql.Open("sqlite", name,
			otelsql.WithAttributes(semconv.DBSystemSqlite),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		ApplySQLPool(database.client, opt)
		database.gormDB, err = gorm.Open(sqlite.Dialector{Conn: database.client}, NewGORMConfig(opt.TablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	}
	path = strings.TrimPrefix(path, FilePrefix)
	if path == "" {
		return nil, errors.NotValidf("empty database path")
	}
	return &CSVDatabase{path: path, options: opt}, nil
}

func ApplySQLPool(db *sql.DB, opt Options) {
	if opt.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opt.MaxOpenConns)
	}
	if opt.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opt.MaxIdleConns)
	}
	if opt.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opt.ConnMaxLifetime)
	}
}
