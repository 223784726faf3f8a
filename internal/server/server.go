// Package server exposes a read-only JSON API over a merged provider file.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/childcare-cli/internal/model"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
}

// Stats summarizes the loaded records.
type Stats struct {
	Providers      int     `json:"providers"`
	Matched        int     `json:"matched"`
	Unmatched      int     `json:"unmatched"`
	MatchedVendors int     `json:"matched_vendors"`
	TotalAmount    float64 `json:"total_amount"`
}

// Server serves an immutable snapshot of merged records.
type Server struct {
	records []model.MergedRecord
	byURL   map[string]int
	stats   Stats
	opts    Options
}

// New indexes records for lookup.
func New(records []model.MergedRecord, opts Options) *Server {
	s := &Server{
		records: records,
		byURL:   make(map[string]int, len(records)),
		opts:    opts,
	}
	vendors := make(map[string]struct{})
	for i, r := range records {
		if _, dup := s.byURL[r.SourceURL]; !dup {
			s.byURL[r.SourceURL] = i
		}
		s.stats.Providers++
		if r.Matched() {
			s.stats.Matched++
			s.stats.TotalAmount += r.Financials.TotalAmount
			vendors[r.Financials.MatchedKey] = struct{}{}
		} else {
			s.stats.Unmatched++
		}
	}
	s.stats.MatchedVendors = len(vendors)
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.stats)
	})
	r.Get("/providers", s.listProviders)
	r.Get("/providers/lookup", s.lookupProvider)
	return r
}

type listResponse struct {
	Total     int                  `json:"total"`
	Limit     int                  `json:"limit"`
	Offset    int                  `json:"offset"`
	Providers []model.MergedRecord `json:"providers"`
}

func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := intParam(q.Get("limit"), defaultLimit)
	if err != nil || limit < 1 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	limit = min(limit, maxLimit)
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	var matched *bool
	if v := q.Get("matched"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "matched must be true or false")
			return
		}
		matched = &b
	}
	needle := strings.ToLower(strings.TrimSpace(q.Get("q")))

	filtered := make([]model.MergedRecord, 0)
	for _, rec := range s.records {
		if matched != nil && rec.Matched() != *matched {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(rec.ProviderName), needle) {
			continue
		}
		filtered = append(filtered, rec)
	}

	resp := listResponse{Total: len(filtered), Limit: limit, Offset: offset, Providers: []model.MergedRecord{}}
	if offset < len(filtered) {
		resp.Providers = filtered[offset:min(offset+limit, len(filtered))]
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) lookupProvider(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	i, ok := s.byURL[url]
	if !ok {
		writeError(w, http.StatusNotFound, "provider not found")
		return
	}
	writeJSON(w, http.StatusOK, s.records[i])
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
