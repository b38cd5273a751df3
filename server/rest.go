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
	"bytes"
	"fmt"
	"net/http"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/juju/errors"
	"github.com/nikolalohinski/gonja/v2/exec"
	"go.opentelemetry.io/contrib/instrumentation/github.com/emicklei/go-restful/otelrestful"
	"go.uber.org/zap"

	"github.com/gorse-io/gorse-movies/common/log"
	"github.com/gorse-io/gorse-movies/common/util"
	"github.com/gorse-io/gorse-movies/model"
	"github.com/gorse-io/gorse-movies/model/mf"
	"github.com/gorse-io/gorse-movies/recommend"
)

// ModelInfo describes the trained model.
type ModelInfo struct {
	Score       mf.Score     `json:"Score"`
	Params      model.Params `json:"Params"`
	NumUsers    int          `json:"NumUsers"`
	NumItems    int          `json:"NumItems"`
	NumRatings  int          `json:"NumRatings"`
	GuestUserId int64        `json:"GuestUserId"`
	DefaultN    int          `json:"DefaultN"`
}

func LogFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	start := time.Now()
	log.EnsureRequestID(req, resp)
	chain.ProcessFilter(req, resp)
	log.ResponseLogger(resp).Info(fmt.Sprintf("%s %s", req.Request.Method, req.Request.URL),
		zap.Int("status_code", resp.StatusCode()),
		zap.Duration("duration", time.Since(start)))
}

// CreateWebService creates web service.
func (s *Server) CreateWebService() {
	ws := s.WebService
	ws.Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Path("/api")
	ws.Filter(otelrestful.OTelFilter("gorse-movies"))
	ws.Filter(LogFilter)

	ws.Route(ws.GET("/titles").To(s.getTitles).
		Doc("Get distinct movie titles in ascending order.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"catalog"}).
		Writes([]string{}))
	ws.Route(ws.GET("/recommend").To(s.getRecommend).
		Doc("Recommend movies for the guest user given a selected movie.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Param(ws.QueryParameter("title", "title of the selected movie").DataType("string").Required(true)).
		Param(ws.QueryParameter("n", "number of returned movies").DataType("integer")).
		Returns(http.StatusOK, "OK", []recommend.Recommendation{}).
		Returns(http.StatusBadRequest, "invalid number of movies", nil).
		Returns(http.StatusNotFound, "selection not recognized", nil).
		Writes([]recommend.Recommendation{}))
	ws.Route(ws.GET("/model").To(s.getModel).
		Doc("Get the held-out score and hyper-parameters of the model.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"model"}).
		Writes(ModelInfo{}))
}

func (s *Server) createPageService() *restful.WebService {
	ws := new(restful.WebService)
	ws.Path("/").Produces("text/html")
	ws.Filter(LogFilter)
	ws.Route(ws.GET("/").To(s.getPage).
		Doc("Render the recommendation page.").
		Param(ws.QueryParameter("title", "title of the selected movie").DataType("string")).
		Param(ws.QueryParameter("n", "number of returned movies").DataType("integer")))
	return ws
}

// parseN reads the optional query parameter n.
func (s *Server) parseN(request *restful.Request) (int, error) {
	text := request.QueryParameter("n")
	if text == "" {
		return s.App.Recommender.DefaultN(), nil
	}
	n, err := util.ParseInt[int](text)
	if err != nil {
		return 0, errors.NotValidf("n %q", text)
	}
	if n < 1 {
		return 0, errors.NotValidf("n %d", n)
	}
	return n, nil
}

func (s *Server) recommend(title string, n int) ([]recommend.Recommendation, error) {
	start := time.Now()
	recommendations, err := s.App.Recommender.Recommend(title, n)
	RecommendSeconds.Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		RecommendTotal.WithLabelValues(StatusOK).Inc()
	case errors.Is(err, recommend.ErrSelectionNotRecognized):
		RecommendTotal.WithLabelValues(StatusNotRecognized).Inc()
	default:
		RecommendTotal.WithLabelValues(StatusInvalid).Inc()
	}
	return recommendations, err
}

func (s *Server) getTitles(_ *restful.Request, response *restful.Response) {
	Ok(response, s.App.Catalog.Titles())
}

func (s *Server) getRecommend(request *restful.Request, response *restful.Response) {
	n, err := s.parseN(request)
	if err != nil {
		BadRequest(response, err)
		return
	}
	recommendations, err := s.recommend(request.QueryParameter("title"), n)
	if errors.Is(err, recommend.ErrSelectionNotRecognized) {
		PageNotFound(response, err)
		return
	} else if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, recommendations)
}

func (s *Server) getModel(_ *restful.Request, response *restful.Response) {
	Ok(response, ModelInfo{
		Score:       s.App.Score,
		Params:      s.App.Model.GetParams(),
		NumUsers:    s.App.Ratings.CountUsers(),
		NumItems:    s.App.Catalog.Len(),
		NumRatings:  s.App.Ratings.Len(),
		GuestUserId: s.App.Recommender.GuestUserId(),
		DefaultN:    s.App.Recommender.DefaultN(),
	})
}

func (s *Server) getPage(request *restful.Request, response *restful.Response) {
	titles := s.App.Catalog.Titles()
	title := request.QueryParameter("title")
	if title == "" && len(titles) > 0 {
		// preselect the first title like the select box does
		title = titles[0]
	}
	data := map[string]any{
		"titles":   titles,
		"selected": title,
		"n":        s.App.Recommender.DefaultN(),
		"lines":    []string{},
		"error":    "",
	}
	n, err := s.parseN(request)
	if err != nil {
		data["error"] = "The number of movies must be a positive integer."
	} else if title != "" {
		data["n"] = n
		recommendations, err := s.recommend(title, n)
		if errors.Is(err, recommend.ErrSelectionNotRecognized) {
			data["error"] = fmt.Sprintf("Movie %s is not in the catalog.", title)
		} else if err != nil {
			InternalServerError(response, err)
			return
		} else {
			data["lines"] = recommend.Format(recommendations)
		}
	}
	var buf bytes.Buffer
	if err = s.page.Execute(&buf, exec.NewContext(data)); err != nil {
		InternalServerError(response, err)
		return
	}
	response.Header().Set("Content-Type", "text/html; charset=utf-8")
	Text(response, buf.String())
}

// BadRequest returns a bad request error.
func BadRequest(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.ResponseLogger(response).Error("bad request", zap.Error(err))
	if err = response.WriteError(http.StatusBadRequest, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// InternalServerError returns a internal server error.
func InternalServerError(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.ResponseLogger(response).Error("internal server error", zap.Error(err))
	if err = response.WriteError(http.StatusInternalServerError, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// PageNotFound returns a not found error.
func PageNotFound(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteError(http.StatusNotFound, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// Ok sends the content as JSON to the client.
func Ok(response *restful.Response, content interface{}) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteAsJson(content); err != nil {
		log.ResponseLogger(response).Error("failed to write json", zap.Error(err))
	}
}

// Text returns a plain text.
func Text(response *restful.Response, content string) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if _, err := response.Write([]byte(content)); err != nil {
		log.ResponseLogger(response).Error("failed to write text", zap.Error(err))
	}
}
