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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/suite"

	"github.com/gorse-io/gorse-movies/app"
	"github.com/gorse-io/gorse-movies/common/log"
	"github.com/gorse-io/gorse-movies/config"
	"github.com/gorse-io/gorse-movies/dataset"
	"github.com/gorse-io/gorse-movies/model"
	"github.com/gorse-io/gorse-movies/model/mf"
	"github.com/gorse-io/gorse-movies/recommend"
)

type ServerTestSuite struct {
	suite.Suite
	*Server
	handler http.Handler
}

func (suite *ServerTestSuite) SetupSuite() {
	catalog, err := dataset.NewCatalog([]dataset.Item{
		{Id: 1, Title: "Toy Story (1995)"},
		{Id: 2, Title: "Jumanji (1995)"},
		{Id: 3, Title: "Heat (1995)"},
		{Id: 4, Title: "Tom & Huck (1995)"},
	})
	suite.NoError(err)
	var records []dataset.Rating
	for user := int64(1); user <= 10; user++ {
		records = append(records,
			dataset.Rating{UserId: user, ItemId: 1, Rating: 4.5},
			dataset.Rating{UserId: user, ItemId: 2, Rating: 2},
			dataset.Rating{UserId: user, ItemId: 3, Rating: 4},
			dataset.Rating{UserId: user, ItemId: 4, Rating: 1})
	}
	ratings := dataset.NewRatings(records)
	train, test := ratings.Split(0.2, 42)
	svd := mf.NewSVD(model.Params{model.NFactors: 4, model.RandomState: 42})
	score, err := svd.Fit(context.Background(), train, test, mf.NewFitConfig())
	suite.NoError(err)
	suite.Server, err = NewServer(&app.App{
		Config:      config.GetDefaultConfig(),
		Catalog:     catalog,
		Ratings:     ratings,
		Model:       svd,
		Score:       score,
		Recommender: recommend.NewRecommender(catalog, svd, 0, 2),
	})
	suite.NoError(err)
	suite.handler = suite.Handler()
}

func (suite *ServerTestSuite) marshal(v interface{}) string {
	s, err := json.Marshal(v)
	suite.NoError(err)
	return string(s)
}

func (suite *ServerTestSuite) TestTitles() {
	apitest.New().
		Handler(suite.handler).
		Get("/api/titles").
		Expect(suite.T()).
		Status(http.StatusOK).
		Body(suite.marshal([]string{"Heat (1995)", "Jumanji (1995)", "Tom & Huck (1995)", "Toy Story (1995)"})).
		End()
}

func (suite *ServerTestSuite) TestRecommend() {
	t := suite.T()
	expected, err := suite.App.Recommender.Recommend("Toy Story (1995)", 2)
	suite.NoError(err)
	suite.Len(expected, 2)
	suite.Equal("Heat (1995)", expected[0].Title)
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend").
		Query("title", "Toy Story (1995)").
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(expected)).
		End()
	expected, err = suite.App.Recommender.Recommend("Toy Story (1995)", 10)
	suite.NoError(err)
	suite.Len(expected, 3)
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend").
		Query("title", "Toy Story (1995)").
		Query("n", "10").
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(expected)).
		End()
}

func (suite *ServerTestSuite) TestRecommendErrors() {
	t := suite.T()
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend").
		Query("title", "Casino (1995)").
		Expect(t).
		Status(http.StatusNotFound).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend").
		Query("title", "Heat (1995)").
		Query("n", "0").
		Expect(t).
		Status(http.StatusBadRequest).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend").
		Query("title", "Heat (1995)").
		Query("n", "ten").
		Expect(t).
		Status(http.StatusBadRequest).
		End()
	// the server keeps answering after errors
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend").
		Query("title", "Heat (1995)").
		Expect(t).
		Status(http.StatusOK).
		End()
}

func (suite *ServerTestSuite) TestModel() {
	apitest.New().
		Handler(suite.handler).
		Get("/api/model").
		Expect(suite.T()).
		Status(http.StatusOK).
		Assert(func(resp *http.Response, _ *http.Request) error {
			var info ModelInfo
			if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
				return err
			}
			if info.NumItems != 4 || info.NumRatings != 40 || info.NumUsers != 10 || info.DefaultN != 2 {
				return fmt.Errorf("unexpected model info %+v", info)
			}
			if info.Score.NumTest != 8 {
				return fmt.Errorf("unexpected score %+v", info.Score)
			}
			return nil
		}).
		End()
}

func bodyContains(substrings ...string) func(*http.Response, *http.Request) error {
	return func(resp *http.Response, _ *http.Request) error {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		for _, s := range substrings {
			if !strings.Contains(string(body), s) {
				return fmt.Errorf("%q not found in %s", s, body)
			}
		}
		return nil
	}
}

func (suite *ServerTestSuite) TestPage() {
	t := suite.T()
	apitest.New().
		Handler(suite.handler).
		Get("/").
		Expect(t).
		Status(http.StatusOK).
		Header("Content-Type", "text/html; charset=utf-8").
		Assert(bodyContains(
			`<option value="Heat (1995)" selected>Heat (1995)</option>`,
			`<option value="Jumanji (1995)">Jumanji (1995)</option>`,
			`Tom &amp; Huck (1995)`,
			"Movies recommended based on your choice: <b>Heat (1995)</b>")).
		End()
	recommendations, err := suite.App.Recommender.Recommend("Toy Story (1995)", 2)
	suite.NoError(err)
	lines := recommend.Format(recommendations)
	apitest.New().
		Handler(suite.handler).
		Get("/").
		Query("title", "Toy Story (1995)").
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains(
			`<option value="Toy Story (1995)" selected>`,
			"Movies recommended based on your choice: <b>Toy Story (1995)</b>",
			"<li>"+lines[0]+"</li>",
			"<li>"+lines[1]+"</li>")).
		End()
}

func (suite *ServerTestSuite) TestPageErrors() {
	t := suite.T()
	apitest.New().
		Handler(suite.handler).
		Get("/").
		Query("title", "Casino (1995)").
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains("Movie Casino (1995) is not in the catalog.")).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/").
		Query("title", "Heat (1995)").
		Query("n", "-1").
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains("The number of movies must be a positive integer.")).
		End()
}

func (suite *ServerTestSuite) TestRequestID() {
	t := suite.T()
	apitest.New().
		Handler(suite.handler).
		Get("/api/titles").
		Expect(t).
		Status(http.StatusOK).
		Assert(func(resp *http.Response, _ *http.Request) error {
			if _, err := uuid.Parse(resp.Header.Get(log.RequestIDHeader)); err != nil {
				return fmt.Errorf("invalid request id %q", resp.Header.Get(log.RequestIDHeader))
			}
			return nil
		}).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/").
		Header(log.RequestIDHeader, "page-1").
		Expect(t).
		Status(http.StatusOK).
		Header(log.RequestIDHeader, "page-1").
		End()
}

func (suite *ServerTestSuite) TestMetrics() {
	apitest.New().
		Handler(suite.handler).
		Get("/metrics").
		Expect(suite.T()).
		Status(http.StatusOK).
		Assert(bodyContains("gorse_movies_num_items 4")).
		End()
}

func (suite *ServerTestSuite) TestAPIDocs() {
	apitest.New().
		Handler(suite.handler).
		Get(apiDocsPath).
		Expect(suite.T()).
		Status(http.StatusOK).
		Assert(bodyContains("/api/recommend")).
		End()
}

func TestServer(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}
