// Package api provides the HTTP REST API server for the BMRS client.
//
// It exposes the report catalog, dry-run window plans and report downloads
// as CSV or JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/seenimoa/bmrs/internal/bmrs"
	"github.com/seenimoa/bmrs/internal/config"
	"github.com/seenimoa/bmrs/internal/report"
	"github.com/seenimoa/bmrs/pkg/utils"
)

// Server is the HTTP API server.
type Server struct {
	router     chi.Router
	cfg        *config.Config
	downloader *bmrs.Downloader
	log        zerolog.Logger
	version    string
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, d *bmrs.Downloader, log zerolog.Logger, version string) *Server {
	srv := &Server{
		cfg:        cfg,
		downloader: d,
		log:        log,
		version:    version,
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server and shuts it down gracefully on
// SIGINT/SIGTERM or when ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("API server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-Run-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		// Download progress stream; not subject to the request timeout.
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(10 * time.Minute))

			r.Get("/health", s.handleHealth)

			// Reports
			r.Get("/reports", s.handleListReports)
			r.Get("/reports/{name}", s.handleGetReport)
			r.Get("/reports/{name}/plan", s.handlePlan)
			r.Get("/reports/{name}/data", s.handleData)

			// Config
			r.Get("/config", s.handleGetConfig)
			r.Get("/config/keys", s.handleGetConfigKeys)
		})
	})

	return r
}

// requestLogger attaches a request-scoped logger to each request context
// and logs the outcome.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			reqLogger := logger.With().
				Str("request_id", middleware.GetReqID(req.Context())).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("remote_ip", req.RemoteAddr).
				Logger()
			req = req.WithContext(reqLogger.WithContext(req.Context()))

			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, req)
			reqLogger.Info().
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// WindowInfo describes one planned request window.
type WindowInfo struct {
	From   string            `json:"from"`
	To     string            `json:"to"`
	Units  int64             `json:"units"`
	Params map[string]string `json:"params"`
}

// PlanResponse is returned by the plan endpoint.
type PlanResponse struct {
	Report  report.Descriptor `json:"report"`
	Windows []WindowInfo      `json:"windows"`
}

// DataResponse is returned by the data endpoint with format=json.
type DataResponse struct {
	RunID   string              `json:"run_id"`
	Report  string              `json:"report"`
	Windows int                 `json:"windows"`
	Columns []string            `json:"columns"`
	Rows    []map[string]string `json:"rows"`
}

// ── Handlers ──

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := utils.NowUK()
	date, sp := utils.SettlementPeriodAt(now)
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":            "ok",
			"version":           s.version,
			"time_uk":           utils.FormatDateTimeUK(now),
			"settlement_date":   date.Format(report.DateLayout),
			"settlement_period": sp,
		},
	})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	catalog := s.downloader.Planner().Catalog()
	list := catalog.List()
	if style := r.URL.Query().Get("style"); style != "" {
		ps, err := report.ParsePeriodStyle(style)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		list = catalog.ByStyle(ps)
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: list})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	d, err := s.downloader.Planner().Catalog().Lookup(chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: d})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	p := s.downloader.Planner()
	d, err := p.Catalog().Lookup(chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	q := r.URL.Query()
	windows, err := p.PlanDates(d.Name, q.Get("start"), q.Get("end"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := PlanResponse{Report: d, Windows: make([]WindowInfo, len(windows))}
	for i, win := range windows {
		from, to := win.Labels()
		values := win.Values()
		params := make(map[string]string, len(values))
		for k := range values {
			params[k] = values.Get(k)
		}
		out.Windows[i] = WindowInfo{From: from, To: to, Units: win.Units(), Params: params}
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: out})
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.downloader.DownloadDates(r.Context(), chi.URLParam(r, "name"), q.Get("start"), q.Get("end"))
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("download failed")
		writeDomainError(w, err)
		return
	}

	w.Header().Set("X-Run-ID", res.RunID)
	if q.Get("format") == "json" {
		writeJSON(w, http.StatusOK, APIResponse{
			Success: true,
			Data: DataResponse{
				RunID:   res.RunID,
				Report:  res.Report.Name,
				Windows: len(res.Windows),
				Columns: res.Table.Columns,
				Rows:    res.Table.Records(),
			},
		})
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Report.Name+".csv"))
	w.WriteHeader(http.StatusOK)
	if err := res.Table.WriteCSV(w); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to write CSV response")
	}
}

// ── Helpers ──

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Error().Err(err).Msg("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

// writeDomainError maps the client's error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var ipe *report.InvalidParameterError
	var fe *report.FetchError
	switch {
	case errors.As(err, &ipe):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &fe):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
