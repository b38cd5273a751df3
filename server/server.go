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
	"fmt"
	"net/http"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/juju/errors"
	"github.com/nikolalohinski/gonja/v2"
	"github.com/nikolalohinski/gonja/v2/exec"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggest/swgui/v5emb"
	"go.uber.org/zap"

	"github.com/gorse-io/gorse-movies/app"
	"github.com/gorse-io/gorse-movies/common/log"
)

const apiDocsPath = "/apidocs.json"

// Server serves the recommendation page and the REST API over the state
// loaded by app.New.
type Server struct {
	App        *app.App
	WebService *restful.WebService
	container  *restful.Container
	page       *exec.Template
	httpServer *http.Server
}

// NewServer creates a server for a. Nothing listens until Serve is called.
func NewServer(a *app.App) (*Server, error) {
	page, err := gonja.FromString(pageTemplate)
	if err != nil {
		return nil, errors.Trace(err)
	}
	s := &Server{
		App:        a,
		WebService: new(restful.WebService),
		container:  restful.NewContainer(),
		page:       page,
	}
	// register pages and restful APIs
	s.CreateWebService()
	s.container.Add(s.createPageService())
	s.container.Add(s.WebService)
	// register swagger UI
	specConfig := restfulspec.Config{
		WebServices: s.container.RegisteredWebServices(),
		APIPath:     apiDocsPath,
	}
	s.container.Add(restfulspec.NewOpenAPIService(specConfig))
	s.container.Handle("/apidocs/", v5emb.New("gorse-movies", apiDocsPath, "/apidocs/"))
	// register prometheus
	s.container.Handle("/metrics", promhttp.Handler())
	UpdateModelMetrics(a)

	cfg := a.Config.Server
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.container,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.container
}

// Serve blocks until the server is shut down.
func (s *Server) Serve() error {
	log.Logger().Info("start http server",
		zap.String("url", fmt.Sprintf("http://%s", s.httpServer.Addr)))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Trace(err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return errors.Trace(s.httpServer.Shutdown(ctx))
}
