// Package api serves the run catalog over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chrissnell/ecocrop/internal/catalog"
	"github.com/chrissnell/ecocrop/pkg/responseformat"
)

// Server is a read-only view of a catalog.
type Server struct {
	catalog   catalog.Catalog
	formatter *responseformat.Formatter
	logger    *zap.SugaredLogger
	Server    http.Server
}

// RunDetail is a run with everything recorded about it.
type RunDetail struct {
	catalog.Run `msgpack:",inline"`
	Outputs     []catalog.Output        `json:"outputs" msgpack:"outputs"`
	Decades     []catalog.DecadeSummary `json:"decades" msgpack:"decades"`
}

// NewServer builds a server listening on addr.
func NewServer(cat catalog.Catalog, addr string, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		catalog:   cat,
		formatter: responseformat.NewFormatter(),
		logger:    logger,
	}
	s.Server.Addr = addr
	s.Server.Handler = s.Router()
	s.Server.ReadHeaderTimeout = 10 * time.Second
	return s
}

// Router configures the HTTP router with all endpoints
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.logRequests)

	router.HandleFunc("/runs", s.listRuns).Methods(http.MethodGet)
	router.HandleFunc("/runs/{id}", s.getRun).Methods(http.MethodGet)
	router.HandleFunc("/runs/{id}/outputs", s.getOutputs).Methods(http.MethodGet)
	router.HandleFunc("/runs/{id}/decades", s.getDecades).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return router
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, wg *sync.WaitGroup) {
	s.logger.Infof("serving run catalog on %s", s.Server.Addr)
	wg.Add(1)

	go func() {
		defer wg.Done()
		if err := s.Server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Errorf("catalog server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down the catalog server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.Server.Shutdown(shutdownCtx)
	}()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debugw("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

func (s *Server) listRuns(w http.ResponseWriter, req *http.Request) {
	limit := 0
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.formatter.WriteError(w, req, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs, err := s.catalog.ListRuns(req.Context(), req.URL.Query().Get("crop"), limit)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	s.formatter.WriteResponse(w, req, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	id := mux.Vars(req)["id"]

	run, err := s.catalog.GetRun(ctx, id)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	outputs, err := s.catalog.Outputs(ctx, id)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	decades, err := s.catalog.DecadeSummaries(ctx, id)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	s.formatter.WriteResponse(w, req, http.StatusOK, RunDetail{Run: *run, Outputs: outputs, Decades: decades})
}

func (s *Server) getOutputs(w http.ResponseWriter, req *http.Request) {
	outputs, err := s.catalog.Outputs(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		s.fail(w, req, err)
		return
	}
	s.formatter.WriteResponse(w, req, http.StatusOK, outputs)
}

func (s *Server) getDecades(w http.ResponseWriter, req *http.Request) {
	decades, err := s.catalog.DecadeSummaries(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		s.fail(w, req, err)
		return
	}
	s.formatter.WriteResponse(w, req, http.StatusOK, decades)
}

func (s *Server) fail(w http.ResponseWriter, req *http.Request, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		s.formatter.WriteError(w, req, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Errorf("catalog query %s failed: %v", req.URL.Path, err)
	s.formatter.WriteError(w, req, http.StatusInternalServerError, "catalog query failed")
}
