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
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/go-viper/mapstructure/v2"
	"github.com/juju/errors"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/gorse-io/gorse-movies/cmd/version"
	"github.com/gorse-io/gorse-movies/model"
	"github.com/gorse-io/gorse-movies/storage"
)

// Config is the configuration for the recommender.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Model     ModelConfig     `mapstructure:"model"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	Server    ServerConfig    `mapstructure:"server"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// DatabaseConfig is the configuration for the movie and rating sources.
type DatabaseConfig struct {
	CatalogStore string       `mapstructure:"catalog_store" validate:"required"`
	RatingStore  string       `mapstructure:"rating_store" validate:"required"`
	TablePrefix  string       `mapstructure:"table_prefix"`
	Separator    string       `mapstructure:"separator" validate:"required"`
	Schema       SchemaConfig `mapstructure:"schema"`
	// connection pool of SQL databases, zero keeps the driver default
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// SchemaConfig names the header columns of csv sources.
type SchemaConfig struct {
	UserIdColumn string `mapstructure:"user_id_column" validate:"required"`
	ItemIdColumn string `mapstructure:"item_id_column" validate:"required"`
	TitleColumn  string `mapstructure:"title_column" validate:"required"`
	RatingColumn string `mapstructure:"rating_column" validate:"required"`
}

// ModelConfig is the configuration for the rating model.
type ModelConfig struct {
	MinRating   float32 `mapstructure:"min_rating"`
	MaxRating   float32 `mapstructure:"max_rating" validate:"gtefield=MinRating"`
	TestRatio   float64 `mapstructure:"test_ratio" validate:"gte=0,lt=1"`
	RandomState int64   `mapstructure:"random_state"`
	NFactors    int     `mapstructure:"n_factors" validate:"gt=0"`
	NEpochs     int     `mapstructure:"n_epochs" validate:"gte=0"`
	Lr          float32 `mapstructure:"lr" validate:"gt=0"`
	Reg         float32 `mapstructure:"reg" validate:"gte=0"`
	InitMean    float32 `mapstructure:"init_mean"`
	InitStdDev  float32 `mapstructure:"init_std_dev" validate:"gte=0"`
	UseBias     bool    `mapstructure:"use_bias"`
	FitJobs     int     `mapstructure:"fit_jobs" validate:"gt=0"`
	Verbose     int     `mapstructure:"verbose" validate:"gte=0"`
}

// Params returns the hyper-parameters of the rating model.
func (config *ModelConfig) Params() model.Params {
	return model.Params{
		model.NFactors:    config.NFactors,
		model.NEpochs:     config.NEpochs,
		model.Lr:          config.Lr,
		model.Reg:         config.Reg,
		model.InitMean:    config.InitMean,
		model.InitStdDev:  config.InitStdDev,
		model.UseBias:     config.UseBias,
		model.RandomState: config.RandomState,
	}
}

// RecommendConfig is the configuration for recommendation.
type RecommendConfig struct {
	N           int   `mapstructure:"n" validate:"gt=0"`
	GuestUserId int64 `mapstructure:"guest_user_id"`
}

// ServerConfig is the configuration for the HTTP server.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
}

// TracingConfig is the configuration for tracing.
type TracingConfig struct {
	EnableTracing     bool    `mapstructure:"enable_tracing"`
	Exporter          string  `mapstructure:"exporter" validate:"oneof=zipkin otlp otlphttp"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"`
	Sampler           string  `mapstructure:"sampler" validate:"oneof=always never ratio"`
	Ratio             float64 `mapstructure:"ratio" validate:"gte=0,lte=1"`
}

// NewTracerProvider creates the tracer provider. A no-op provider is returned
// if tracing is disabled.
func (config *TracingConfig) NewTracerProvider() (trace.TracerProvider, error) {
	if !config.EnableTracing {
		return noop.NewTracerProvider(), nil
	}

	var (
		exporter tracesdk.SpanExporter
		err      error
	)
	switch config.Exporter {
	case "zipkin":
		exporter, err = zipkin.New(config.CollectorEndpoint)
	case "otlp":
		client := otlptracegrpc.NewClient(otlptracegrpc.WithInsecure(), otlptracegrpc.WithEndpoint(config.CollectorEndpoint))
		exporter, err = otlptrace.New(context.Background(), client)
	case "otlphttp":
		client := otlptracehttp.NewClient(otlptracehttp.WithInsecure(), otlptracehttp.WithEndpoint(config.CollectorEndpoint))
		exporter, err = otlptrace.New(context.Background(), client)
	default:
		return nil, errors.NotSupportedf("exporter %v", config.Exporter)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}

	var sampler tracesdk.Sampler
	switch config.Sampler {
	case "always":
		sampler = tracesdk.AlwaysSample()
	case "never":
		sampler = tracesdk.NeverSample()
	case "ratio":
		sampler = tracesdk.TraceIDRatioBased(config.Ratio)
	default:
		return nil, errors.NotSupportedf("sampler %v", config.Sampler)
	}

	return tracesdk.NewTracerProvider(
		tracesdk.WithSampler(sampler),
		tracesdk.WithBatcher(exporter),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("gorse-movies"),
			semconv.ServiceVersionKey.String(version.Version),
		)),
	), nil
}

// StorageOptions converts the database configuration to storage options.
func (config *DatabaseConfig) StorageOptions(progress bool) []storage.Option {
	return []storage.Option{
		storage.WithTablePrefix(config.TablePrefix),
		storage.WithSeparator(config.Separator),
		storage.WithProgress(progress),
		storage.WithMaxOpenConns(config.MaxOpenConns),
		storage.WithMaxIdleConns(config.MaxIdleConns),
		storage.WithConnMaxLifetime(config.ConnMaxLifetime),
		storage.WithSchema(storage.Schema{
			UserId: config.Schema.UserIdColumn,
			ItemId: config.Schema.ItemIdColumn,
			Title:  config.Schema.TitleColumn,
			Rating: config.Schema.RatingColumn,
		}),
	}
}

func GetDefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			CatalogStore: "movies.csv",
			RatingStore:  "ratings.csv",
			Separator:    ",",
			Schema: SchemaConfig{
				UserIdColumn: "userId",
				ItemIdColumn: "movieId",
				TitleColumn:  "title",
				RatingColumn: "rating",
			},
		},
		Model: ModelConfig{
			MinRating:   0.5,
			MaxRating:   5,
			TestRatio:   0.2,
			RandomState: 42,
			NFactors:    100,
			NEpochs:     20,
			Lr:          0.005,
			Reg:         0.02,
			InitMean:    0,
			InitStdDev:  0.1,
			UseBias:     true,
			FitJobs:     1,
		},
		Recommend: RecommendConfig{
			N:           10,
			GuestUserId: 0,
		},
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8501,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Tracing: TracingConfig{
			Exporter: "otlp",
			Sampler:  "always",
			Ratio:    1,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [database]
	v.SetDefault("database.catalog_store", defaultConfig.Database.CatalogStore)
	v.SetDefault("database.rating_store", defaultConfig.Database.RatingStore)
	v.SetDefault("database.table_prefix", defaultConfig.Database.TablePrefix)
	v.SetDefault("database.separator", defaultConfig.Database.Separator)
	v.SetDefault("database.max_open_conns", defaultConfig.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultConfig.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", defaultConfig.Database.ConnMaxLifetime)
	// [database.schema]
	v.SetDefault("database.schema.user_id_column", defaultConfig.Database.Schema.UserIdColumn)
	v.SetDefault("database.schema.item_id_column", defaultConfig.Database.Schema.ItemIdColumn)
	v.SetDefault("database.schema.title_column", defaultConfig.Database.Schema.TitleColumn)
	v.SetDefault("database.schema.rating_column", defaultConfig.Database.Schema.RatingColumn)
	// [model]
	v.SetDefault("model.min_rating", defaultConfig.Model.MinRating)
	v.SetDefault("model.max_rating", defaultConfig.Model.MaxRating)
	v.SetDefault("model.test_ratio", defaultConfig.Model.TestRatio)
	v.SetDefault("model.random_state", defaultConfig.Model.RandomState)
	v.SetDefault("model.n_factors", defaultConfig.Model.NFactors)
	v.SetDefault("model.n_epochs", defaultConfig.Model.NEpochs)
	v.SetDefault("model.lr", defaultConfig.Model.Lr)
	v.SetDefault("model.reg", defaultConfig.Model.Reg)
	v.SetDefault("model.init_mean", defaultConfig.Model.InitMean)
	v.SetDefault("model.init_std_dev", defaultConfig.Model.InitStdDev)
	v.SetDefault("model.use_bias", defaultConfig.Model.UseBias)
	v.SetDefault("model.fit_jobs", defaultConfig.Model.FitJobs)
	v.SetDefault("model.verbose", defaultConfig.Model.Verbose)
	// [recommend]
	v.SetDefault("recommend.n", defaultConfig.Recommend.N)
	v.SetDefault("recommend.guest_user_id", defaultConfig.Recommend.GuestUserId)
	// [server]
	v.SetDefault("server.host", defaultConfig.Server.Host)
	v.SetDefault("server.port", defaultConfig.Server.Port)
	v.SetDefault("server.read_timeout", defaultConfig.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", defaultConfig.Server.WriteTimeout)
	// [tracing]
	v.SetDefault("tracing.enable_tracing", defaultConfig.Tracing.EnableTracing)
	v.SetDefault("tracing.exporter", defaultConfig.Tracing.Exporter)
	v.SetDefault("tracing.collector_endpoint", defaultConfig.Tracing.CollectorEndpoint)
	v.SetDefault("tracing.sampler", defaultConfig.Tracing.Sampler)
	v.SetDefault("tracing.ratio", defaultConfig.Tracing.Ratio)
}

type configBinding struct {
	key string
	env string
}

// LoadConfig loads configuration from a toml file. An empty path loads the
// defaults. Environment variables override both.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)

	// bind environment bindings
	bindings := []configBinding{
		{"database.catalog_store", "GORSE_CATALOG_STORE"},
		{"database.rating_store", "GORSE_RATING_STORE"},
		{"database.table_prefix", "GORSE_TABLE_PREFIX"},
		{"server.host", "GORSE_HTTP_HOST"},
		{"server.port", "GORSE_HTTP_PORT"},
		{"recommend.n", "GORSE_RECOMMEND_N"},
		{"recommend.guest_user_id", "GORSE_GUEST_USER_ID"},
	}
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			return nil, errors.Trace(err)
		}
	}

	// load config file
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}

	// unmarshal config
	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

// Validate checks the configuration. Validation failures are reported in
// English with the toml key of the offending field.
func (config *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return errors.Trace(err)
	}
	if err := validate.Struct(config); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			messages := make([]string, 0, len(validationErrors))
			for _, fieldError := range validationErrors {
				messages = append(messages, fieldError.Namespace()+": "+fieldError.Translate(trans))
			}
			return errors.NotValidf("%s", strings.Join(messages, "; "))
		}
		return errors.Trace(err)
	}
	return nil
}
