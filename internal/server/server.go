// Package server exposes the HTTP interface: dashboard views, the manual
// sync trigger and operational endpoints.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"g2b_monitor/internal/domain"
	"g2b_monitor/internal/metrics"
)

//go:embed tmpl/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "tmpl/*.tmpl"))

const (
	listLimit  = 100
	reportDays = 60
)

// Syncer runs one sync cycle on demand.
type Syncer interface {
	Sync(ctx context.Context) *domain.SyncResult
}

// BidReader is the read side of the store the dashboard renders from.
type BidReader interface {
	ListRecent(ctx context.Context, limit int) ([]domain.Bid, error)
	ListSince(ctx context.Context, cutoff time.Time) ([]domain.Bid, error)
}

// Server wires HTTP handlers to the sync engine and the store.
type Server struct {
	router chi.Router
	syncer Syncer
	reader BidReader
	logger *slog.Logger
	now    func() time.Time
}

// NewServer constructs a Server with middleware and routes.
func NewServer(syncer Syncer, reader BidReader, logger *slog.Logger) *Server {
	s := &Server{
		syncer: syncer,
		reader: reader,
		logger: logger.With("component", "server"),
		now:    time.Now,
	}

	r := chi.NewRouter()
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/", s.index)
	r.Get("/report", s.report)
	r.Get("/api/sync", s.apiSync)
	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

type indexData struct {
	Bids       []domain.Bid
	Total      int
	TodayCount int
	Today      string
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	bids, err := s.reader.ListRecent(r.Context(), listLimit)
	if err != nil {
		s.logger.Error("list bids failed", "error", err)
		http.Error(w, "failed to load bids", http.StatusInternalServerError)
		return
	}

	today := s.now().Format("2006-01-02")
	data := indexData{Bids: bids, Total: len(bids), Today: today}
	for _, bid := range bids {
		if bid.AnnouncedAt.Format("2006-01-02") == today {
			data.TodayCount++
		}
	}

	s.render(w, "index.tmpl", data)
}

type agencyGroup struct {
	Agency string
	Count  int
	Bids   []domain.Bid
}

type reportData struct {
	Days   int
	Total  int
	Groups []agencyGroup
}

// report groups the fetched 60-day window by agency. The 7/30 day toggle is
// applied here over that window, not with a separate query.
func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v, err := strconv.Atoi(r.URL.Query().Get("days")); err == nil && (v == 7 || v == 30) {
		days = v
	}

	cutoff := s.now().AddDate(0, 0, -reportDays)
	bids, err := s.reader.ListSince(r.Context(), cutoff)
	if err != nil {
		s.logger.Error("list bids failed", "error", err)
		http.Error(w, "failed to load bids", http.StatusInternalServerError)
		return
	}

	windowStart := s.now().AddDate(0, 0, -days)
	byAgency := make(map[string][]domain.Bid)
	for _, bid := range bids {
		if bid.AnnouncedAt.Before(windowStart) {
			continue
		}
		byAgency[bid.Agency] = append(byAgency[bid.Agency], bid)
	}

	data := reportData{Days: days}
	for agency, group := range byAgency {
		data.Groups = append(data.Groups, agencyGroup{Agency: agency, Count: len(group), Bids: group})
		data.Total += len(group)
	}
	sort.Slice(data.Groups, func(i, j int) bool {
		if data.Groups[i].Count != data.Groups[j].Count {
			return data.Groups[i].Count > data.Groups[j].Count
		}
		return data.Groups[i].Agency < data.Groups[j].Agency
	})

	s.render(w, "report.tmpl", data)
}

func (s *Server) apiSync(w http.ResponseWriter, r *http.Request) {
	result := s.syncer.Sync(r.Context())

	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("render failed", "template", name, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Error("write JSON failed", "error", err)
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "error", rec)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}
