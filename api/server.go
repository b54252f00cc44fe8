package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/text/language"
	"google.golang.org/grpc"

	"pricecmp/config"
	"pricecmp/coordinator"
	"pricecmp/filtersort"
	"pricecmp/heartbeat"
	"pricecmp/ledger"
	"pricecmp/model"
	"pricecmp/pages"
	"pricecmp/scheduler"
	"pricecmp/source"
)

// CacheAdmin is the dataset cache as the admin endpoints see it.
type CacheAdmin interface {
	Invalidate()
}

type Server struct {
	cfg        *config.Config
	pages      *pages.Registry
	ledger     *ledger.Ledger
	provider   source.Provider
	ranker     coordinator.Ranker
	filterSort *filtersort.Engine
	cache      CacheAdmin
	sched      *scheduler.Scheduler
	heartbeat  *heartbeat.Heartbeat
	locale     language.Tag
	log        *slog.Logger

	httpServer *http.Server
	grpcServer *grpc.Server
}

type Deps struct {
	Config     *config.Config
	Pages      *pages.Registry
	Ledger     *ledger.Ledger
	Provider   source.Provider
	Ranker     coordinator.Ranker
	FilterSort *filtersort.Engine
	Cache      CacheAdmin
	Scheduler  *scheduler.Scheduler
	Heartbeat  *heartbeat.Heartbeat
	Logger     *slog.Logger
}

func NewServer(deps Deps) *Server {
	s := &Server{
		cfg:        deps.Config,
		pages:      deps.Pages,
		ledger:     deps.Ledger,
		provider:   deps.Provider,
		ranker:     deps.Ranker,
		filterSort: deps.FilterSort,
		cache:      deps.Cache,
		sched:      deps.Scheduler,
		heartbeat:  deps.Heartbeat,
		locale:     filtersort.ParseLocale(deps.Config.Search.Locale),
		log:        deps.Logger,
	}

	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.withLogging)

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearch)

		r.Post("/pages", s.handleOpenPage)
		r.Route("/pages/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetPage)
			r.Delete("/", s.handleClosePage)
			r.Post("/reload", s.handleReloadPage)
			r.Post("/query", s.handleSetQuery)
			r.Post("/category", s.handleSetCategory)
			r.Post("/sort", s.handleSetSort)
			r.Post("/max-price", s.handleSetMaxPrice)
			r.Get("/results", s.handleResults)
		})

		r.Get("/history", s.handleHistory)
		r.Delete("/history", s.handleClearHistory)
		r.Get("/history/suggest", s.handleSuggest)
		r.Get("/favorites", s.handleFavorites)
		r.Post("/favorites/toggle", s.handleToggleFavorite)
		r.Get("/stats", s.handleStats)
		r.Delete("/stats", s.handleResetStats)

		r.Get("/status", s.handleStatus)
		r.Post("/admin/cache/clear", s.handleAdminCacheClear)
		r.Post("/admin/refresh", s.handleAdminRefresh)
	})

	r.Get("/health", s.handleHealth)
	return r
}

func (s *Server) Start() error {
	if err := s.startGRPC(); err != nil {
		return err
	}
	s.log.Info("HTTP server starting", "listen", s.cfg.Server.Listen)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.grpcServer != nil {
		done := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			s.grpcServer.Stop()
		}
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(rw, r)
		status := rw.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:      code,
			Message:   message,
			RequestID: genRequestID(),
		},
	})
}

func genRequestID() string {
	b := make([]byte, 6)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
