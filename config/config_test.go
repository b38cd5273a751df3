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

package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/gorse-io/gorse-movies/model"
	"github.com/gorse-io/gorse-movies/storage"
)

func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig("config.toml.template")
	assert.NoError(t, err)
	// the template carries the defaults
	assert.Equal(t, GetDefaultConfig(), config)

	// [database]
	assert.Equal(t, "movies.csv", config.Database.CatalogStore)
	assert.Equal(t, "ratings.csv", config.Database.RatingStore)
	assert.Equal(t, "movieId", config.Database.Schema.ItemIdColumn)
	// [model]
	assert.Equal(t, float32(0.5), config.Model.MinRating)
	assert.Equal(t, float32(5), config.Model.MaxRating)
	assert.Equal(t, 0.2, config.Model.TestRatio)
	assert.Equal(t, int64(42), config.Model.RandomState)
	assert.Equal(t, 100, config.Model.NFactors)
	assert.True(t, config.Model.UseBias)
	// [recommend]
	assert.Equal(t, 10, config.Recommend.N)
	assert.Equal(t, int64(0), config.Recommend.GuestUserId)
	// [server]
	assert.Equal(t, 8501, config.Server.Port)
	assert.Equal(t, 30*time.Second, config.Server.ReadTimeout)
	// [tracing]
	assert.False(t, config.Tracing.EnableTracing)
	assert.Equal(t, "otlp", config.Tracing.Exporter)
	assert.Equal(t, "always", config.Tracing.Sampler)
}

func TestLoadConfig_Partial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	err := os.WriteFile(path, []byte("[model]\nn_factors = 8\n[server]\nread_timeout = \"1m\"\n"), 0644)
	assert.NoError(t, err)
	config, err := LoadConfig(path)
	assert.NoError(t, err)
	assert.Equal(t, 8, config.Model.NFactors)
	assert.Equal(t, 20, config.Model.NEpochs)
	assert.Equal(t, time.Minute, config.Server.ReadTimeout)
	assert.Equal(t, "movies.csv", config.Database.CatalogStore)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("GORSE_CATALOG_STORE", "sqlite:///tmp/movies.db")
	t.Setenv("GORSE_RATING_STORE", "mysql://root@tcp(localhost:3306)/movies")
	t.Setenv("GORSE_HTTP_HOST", "0.0.0.0")
	t.Setenv("GORSE_HTTP_PORT", "9000")
	t.Setenv("GORSE_RECOMMEND_N", "5")
	t.Setenv("GORSE_GUEST_USER_ID", "7")
	config, err := LoadConfig("config.toml.template")
	assert.NoError(t, err)
	assert.Equal(t, "sqlite:///tmp/movies.db", config.Database.CatalogStore)
	assert.Equal(t, "mysql://root@tcp(localhost:3306)/movies", config.Database.RatingStore)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, 5, config.Recommend.N)
	assert.Equal(t, int64(7), config.Recommend.GuestUserId)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.toml")
	err = os.WriteFile(path, []byte("[recommend]\nn = 0\n"), 0644)
	assert.NoError(t, err)
	_, err = LoadConfig(path)
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.Contains(t, err.Error(), "n")
}

func TestValidate(t *testing.T) {
	config := GetDefaultConfig()
	assert.NoError(t, config.Validate())

	config = GetDefaultConfig()
	config.Model.MinRating, config.Model.MaxRating = 5, 1
	err := config.Validate()
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.Contains(t, err.Error(), "max_rating")

	config = GetDefaultConfig()
	config.Model.TestRatio = 1
	err = config.Validate()
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.Contains(t, err.Error(), "test_ratio")

	config = GetDefaultConfig()
	config.Database.CatalogStore = ""
	config.Server.Port = 70000
	err = config.Validate()
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.True(t, strings.Contains(err.Error(), "catalog_store") && strings.Contains(err.Error(), "port"))
}

func TestDatabaseConfig_Pool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	err := os.WriteFile(path, []byte("[database]\nmax_open_conns = 8\nmax_idle_conns = 2\nconn_max_lifetime = \"5m\"\n"), 0644)
	assert.NoError(t, err)
	config, err := LoadConfig(path)
	assert.NoError(t, err)
	opt := storage.NewOptions(config.Database.StorageOptions(true)...)
	assert.Equal(t, 8, opt.MaxOpenConns)
	assert.Equal(t, 2, opt.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, opt.ConnMaxLifetime)
	assert.True(t, opt.Progress)

	config.Database.MaxOpenConns = -1
	assert.True(t, errors.Is(config.Validate(), errors.NotValid))
}

func TestTracingConfig(t *testing.T) {
	// disabled
	tp, err := GetDefaultConfig().Tracing.NewTracerProvider()
	assert.NoError(t, err)
	assert.IsType(t, noop.TracerProvider{}, tp)

	// zipkin with ratio sampler
	cfg := TracingConfig{
		EnableTracing:     true,
		Exporter:          "zipkin",
		CollectorEndpoint: "http://localhost:9411/api/v2/spans",
		Sampler:           "ratio",
		Ratio:             0.5,
	}
	tp, err = cfg.NewTracerProvider()
	assert.NoError(t, err)
	sdkProvider, ok := tp.(*tracesdk.TracerProvider)
	assert.True(t, ok)
	assert.NoError(t, sdkProvider.Shutdown(context.Background()))

	// otlp over http
	cfg = TracingConfig{EnableTracing: true, Exporter: "otlphttp", CollectorEndpoint: "localhost:4318", Sampler: "never"}
	tp, err = cfg.NewTracerProvider()
	assert.NoError(t, err)
	assert.NoError(t, tp.(*tracesdk.TracerProvider).Shutdown(context.Background()))

	// unsupported
	cfg = TracingConfig{EnableTracing: true, Exporter: "jaeger", Sampler: "always"}
	_, err = cfg.NewTracerProvider()
	assert.True(t, errors.Is(err, errors.NotSupported))
	cfg = TracingConfig{EnableTracing: true, Exporter: "zipkin", CollectorEndpoint: "http://localhost:9411/api/v2/spans", Sampler: "sometimes"}
	_, err = cfg.NewTracerProvider()
	assert.True(t, errors.Is(err, errors.NotSupported))

	config := GetDefaultConfig()
	config.Tracing.Exporter = "jaeger"
	err = config.Validate()
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.Contains(t, err.Error(), "exporter")
}

func TestModelConfig_Params(t *testing.T) {
	params := GetDefaultConfig().Model.Params()
	assert.Equal(t, 100, params.GetInt(model.NFactors, 0))
	assert.Equal(t, 20, params.GetInt(model.NEpochs, 0))
	assert.Equal(t, float32(0.005), params.GetFloat32(model.Lr, 0))
	assert.Equal(t, int64(42), params.GetInt64(model.RandomState, 0))
	assert.True(t, params.GetBool(model.UseBias, false))
}
