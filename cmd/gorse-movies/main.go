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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/gorse-io/gorse-movies/app"
	"github.com/gorse-io/gorse-movies/cmd/version"
	"github.com/gorse-io/gorse-movies/common/log"
	"github.com/gorse-io/gorse-movies/config"
	"github.com/gorse-io/gorse-movies/dataset"
	"github.com/gorse-io/gorse-movies/recommend"
	"github.com/gorse-io/gorse-movies/server"
	"github.com/gorse-io/gorse-movies/storage"
)

var rootCommand = &cobra.Command{
	Use:   "gorse-movies",
	Short: "Recommend movies similar in taste to a selected one.",
	Run: func(cmd *cobra.Command, args []string) {
		// Show version
		if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
			fmt.Fprintln(cmd.OutOrStdout(), version.BuildInfo())
			return
		}

		// setup logger
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)

		// load config
		conf, err := loadConfig(cmd)
		if err != nil {
			log.Logger().Fatal("failed to load config", zap.Error(err))
		}

		// setup trace provider
		tp, err := conf.Tracing.NewTracerProvider()
		if err != nil {
			log.Logger().Fatal("failed to create trace provider", zap.Error(err))
		}
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

		// load data and fit model
		progress, _ := cmd.Flags().GetBool("progress")
		a, err := app.New(cmd.Context(), conf, storage.WithProgress(progress))
		if err != nil {
			log.Logger().Fatal("failed to start", zap.Error(err))
		}
		s, err := server.NewServer(a)
		if err != nil {
			log.Logger().Fatal("failed to create server", zap.Error(err))
		}

		// stop server
		done := make(chan struct{})
		go func() {
			sigint := make(chan os.Signal, 1)
			signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
			<-sigint
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.Shutdown(ctx); err != nil {
				log.Logger().Error("failed to shutdown http server", zap.Error(err))
			}
			// flush spans
			if sdkProvider, ok := tp.(*tracesdk.TracerProvider); ok {
				if err := sdkProvider.Shutdown(ctx); err != nil {
					log.Logger().Error("failed to shutdown trace provider", zap.Error(err))
				}
			}
			close(done)
		}()
		// start server
		if err = s.Serve(); err != nil {
			log.Logger().Fatal("failed to start http server", zap.Error(err))
		}
		<-done
		log.Logger().Info("stop gorse-movies successfully")
	},
}

var recommendCommand = &cobra.Command{
	Use:          "recommend <title>",
	Short:        "Print recommendations for a movie.",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		setupCommandLogger(cmd)
		a, err := loadApp(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		n, _ := cmd.Flags().GetInt("n")
		if n == 0 {
			n = a.Recommender.DefaultN()
		}
		recommendations, err := a.Recommender.Recommend(args[0], n)
		if errors.Is(err, recommend.ErrSelectionNotRecognized) {
			return errors.Errorf("movie %q is not in the catalog", args[0])
		} else if err != nil {
			return errors.Trace(err)
		}
		for _, line := range recommend.Format(recommendations) {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

var evaluateCommand = &cobra.Command{
	Use:   "evaluate",
	Short: "Print the held-out score of the model.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		setupCommandLogger(cmd)
		a, err := loadApp(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("metric", "value")
		rows := [][]string{
			{"movies", strconv.Itoa(a.Catalog.Len())},
			{"users", strconv.Itoa(a.Ratings.CountUsers())},
			{"ratings", strconv.Itoa(a.Ratings.Len())},
			{"train", strconv.Itoa(a.Score.NumTrain)},
			{"test", strconv.Itoa(a.Score.NumTest)},
			{"RMSE", fmt.Sprintf("%.4f", a.Score.RMSE)},
			{"MAE", fmt.Sprintf("%.4f", a.Score.MAE)},
		}
		for _, row := range rows {
			if err = table.Append(row); err != nil {
				return errors.Trace(err)
			}
		}
		return errors.Trace(table.Render())
	},
}

var titlesCommand = &cobra.Command{
	Use:   "titles",
	Short: "Print the titles of movies that can be selected.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		setupCommandLogger(cmd)
		conf, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		progress, _ := cmd.Flags().GetBool("progress")
		database, err := storage.Open(conf.Database.CatalogStore, conf.Database.StorageOptions(progress)...)
		if err != nil {
			return errors.Trace(err)
		}
		defer database.Close()
		items, err := database.LoadItems(cmd.Context())
		if err != nil {
			return errors.Trace(err)
		}
		catalog, err := dataset.NewCatalog(items)
		if err != nil {
			return errors.Trace(err)
		}
		for _, title := range catalog.Titles() {
			fmt.Fprintln(cmd.OutOrStdout(), title)
		}
		return nil
	},
}

var importCommand = &cobra.Command{
	Use:   "import <database>",
	Short: "Copy movies and ratings into a database.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setupCommandLogger(cmd)
		conf, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		progress, _ := cmd.Flags().GetBool("progress")
		return app.Import(cmd.Context(), conf, args[0], storage.WithProgress(progress))
	},
}

// setupCommandLogger keeps stdout clean for commands whose output is the
// result, unless debug mode is on.
func setupCommandLogger(cmd *cobra.Command) {
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		log.SetLogger(cmd.Flags(), true)
	} else {
		log.CloseLogger()
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	return config.LoadConfig(configPath)
}

func loadApp(cmd *cobra.Command) (*app.App, error) {
	conf, err := loadConfig(cmd)
	if err != nil {
		return nil, errors.Trace(err)
	}
	progress, _ := cmd.Flags().GetBool("progress")
	return app.New(cmd.Context(), conf, storage.WithProgress(progress))
}

func init() {
	otel.SetErrorHandler(log.GetErrorHandler())
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.PersistentFlags().Bool("progress", false, "show progress while loading csv files")
	rootCommand.Flags().BoolP("version", "v", false, "gorse-movies version")
	recommendCommand.Flags().IntP("n", "n", 0, "number of recommended movies (default from config)")
	rootCommand.AddCommand(recommendCommand, evaluateCommand, titlesCommand, importCommand)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
