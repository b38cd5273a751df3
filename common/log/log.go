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

package log

import (
	"net/url"
	"os"
	"strings"

	"github.com/emicklei/go-restful/v3"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RequestIDHeader carries the id that ties the log lines of one request together.
const RequestIDHeader = "X-Request-ID"

const timeLayout = "2006-01-02 15:04:05.999999"

var logger = mustDevelopment()

func mustDevelopment() *zap.Logger {
	l, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	return l
}

// Logger returns the process-wide logger.
func Logger() *zap.Logger {
	return logger
}

// FileOptions configures the rotating log file. An empty Path disables it.
type FileOptions struct {
	Path       string
	MaxSize    int
	MaxAge     int
	MaxBackups int
}

func AddFlags(flagSet *pflag.FlagSet) {
	flagSet.String("log-path", "", "path of log file")
	flagSet.Int("log-max-size", 100, "maximum size in megabytes of the log file")
	flagSet.Int("log-max-age", 0, "maximum number of days to retain old log files")
	flagSet.Int("log-max-backups", 0, "maximum number of old log files to retain")
}

// FileOptionsFromFlags reads the flags registered by AddFlags.
func FileOptionsFromFlags(flagSet *pflag.FlagSet) FileOptions {
	var opts FileOptions
	if flagSet.Changed("log-path") {
		opts.Path, _ = flagSet.GetString("log-path")
	}
	opts.MaxSize, _ = flagSet.GetInt("log-max-size")
	opts.MaxAge, _ = flagSet.GetInt("log-max-age")
	opts.MaxBackups, _ = flagSet.GetInt("log-max-backups")
	return opts
}

// SetLogger replaces the logger from command line flags. Debug mode writes
// colored console lines, otherwise lines are JSON.
func SetLogger(flagSet *pflag.FlagSet, debug bool) {
	logger = NewLogger(FileOptionsFromFlags(flagSet), debug)
}

// NewLogger builds a logger writing to stdout and, if configured, a rotated file.
func NewLogger(opts FileOptions, debug bool) *zap.Logger {
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}
	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if opts.Path != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    opts.MaxSize,
			MaxAge:     opts.MaxAge,
			MaxBackups: opts.MaxBackups,
		}))
	}
	return zap.New(zapcore.NewCore(newEncoder(debug), zap.CombineWriteSyncers(sinks...), level))
}

func newEncoder(debug bool) zapcore.Encoder {
	if debug {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
		return zapcore.NewConsoleEncoder(cfg)
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	return zapcore.NewJSONEncoder(cfg)
}

// CloseLogger silences everything below fatal. Used by command line tools
// whose stdout is the actual output.
func CloseLogger() {
	logger = zap.New(zapcore.NewCore(newEncoder(false), zapcore.AddSync(os.Stderr), zap.FatalLevel))
}

// EnsureRequestID returns the request id sent by the client, or assigns a new
// one. The id is echoed on the response.
func EnsureRequestID(req *restful.Request, resp *restful.Response) string {
	id := req.HeaderParameter(RequestIDHeader)
	if id == "" {
		id = uuid.New().String()
		req.Request.Header.Set(RequestIDHeader, id)
	}
	resp.Header().Set(RequestIDHeader, id)
	return id
}

// ResponseLogger returns a logger tagged with the request id of a response.
func ResponseLogger(resp *restful.Response) *zap.Logger {
	return logger.With(zap.String("request_id", resp.Header().Get(RequestIDHeader)))
}

// RedactDBURL masks credentials in a data source URL before it is logged.
// Plain file paths are returned unchanged.
func RedactDBURL(rawURL string) string {
	mask := func(s string) string { return strings.Repeat("x", len(s)) }
	if dsn, ok := strings.CutPrefix(rawURL, "mysql://"); ok {
		parsed, err := mysql.ParseDSN(dsn)
		if err != nil {
			return rawURL
		}
		parsed.User, parsed.Passwd = mask(parsed.User), mask(parsed.Passwd)
		return "mysql://" + parsed.FormatDSN()
	}
	if !strings.Contains(rawURL, "://") {
		return rawURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.User == nil {
		return rawURL
	}
	password, _ := parsed.User.Password()
	parsed.User = url.UserPassword(mask(parsed.User.Username()), mask(password))
	return parsed.String()
}

// GetErrorHandler reports opentelemetry failures through the logger.
func GetErrorHandler() otel.ErrorHandler {
	return otel.ErrorHandlerFunc(func(err error) {
		Logger().Error("opentelemetry failure", zap.Error(err))
	})
}
