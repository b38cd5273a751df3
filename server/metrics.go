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

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gorse-io/gorse-movies/app"
)

const (
	StatusOK            = "ok"
	StatusNotRecognized = "not_recognized"
	StatusInvalid       = "invalid"
)

var (
	RecommendSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gorse",
		Subsystem: "movies",
		Name:      "recommend_seconds",
	})
	RecommendTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gorse",
		Subsystem: "movies",
		Name:      "recommend_total",
	}, []string{"status"})
	ModelRMSE = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gorse",
		Subsystem: "movies",
		Name:      "model_rmse",
	})
	ModelMAE = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gorse",
		Subsystem: "movies",
		Name:      "model_mae",
	})
	NumItems = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gorse",
		Subsystem: "movies",
		Name:      "num_items",
	})
	NumRatings = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gorse",
		Subsystem: "movies",
		Name:      "num_ratings",
	})
)

// UpdateModelMetrics exports the data size and held-out score of a.
func UpdateModelMetrics(a *app.App) {
	ModelRMSE.Set(float64(a.Score.RMSE))
	ModelMAE.Set(float64(a.Score.MAE))
	NumItems.Set(float64(a.Catalog.Len()))
	NumRatings.Set(float64(a.Ratings.Len()))
}
