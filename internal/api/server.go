package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hectronix2005/Mejor-Inversion/internal/orchestrator"
	"github.com/hectronix2005/Mejor-Inversion/internal/rates"
)

// SnapshotSource serves the latest merged snapshot.
type SnapshotSource interface {
	Current(ctx context.Context) (rates.Snapshot, error)
}

// RunTrigger starts a scrape run on demand.
type RunTrigger interface {
	RunOnce(ctx context.Context) (rates.Snapshot, orchestrator.Report, error)
}

// Options tune the HTTP surface.
type Options struct {
	AllowedOrigins []string
	TopN           int
}

// Server exposes the read API and the manual scrape trigger.
type Server struct {
	source  SnapshotSource
	trigger RunTrigger
	opts    Options
	logger  zerolog.Logger
	now     func() time.Time
}

// New constructs the API server. The trigger may be nil; POST /api/scrape
// then responds 503.
func New(source SnapshotSource, trigger RunTrigger, opts Options, logger zerolog.Logger) *Server {
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{
		source:  source,
		trigger: trigger,
		opts:    opts,
		logger:  logger.With().Str("component", "api").Logger(),
		now:     time.Now,
	}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/rates", s.handleRates)
		r.Get("/rates/{entity}", s.handleEntityRates)
		r.Get("/compare", s.handleCompare)
		r.Get("/ranking", s.handleRanking)
		r.Post("/scrape", s.handleScrape)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ratesResponse struct {
	Count   int            `json:"count"`
	Records []rates.Record `json:"records"`
}

// handleRates lists the current snapshot with optional filters:
// entity, product, term, min_rate, sort (rate|entity), limit.
func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.loadSnapshot(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	records := snap.Records

	if entity := q.Get("entity"); entity != "" {
		records = filterRecords(records, func(rec rates.Record) bool {
			return rec.EntityID == entity
		})
	}
	if product := q.Get("product"); product != "" {
		want := rates.ProductType(strings.ToUpper(product))
		records = filterRecords(records, func(rec rates.Record) bool {
			return rec.ProductType == want
		})
	}
	if termStr := q.Get("term"); termStr != "" {
		term, err := strconv.Atoi(termStr)
		if err != nil || term < 0 {
			respondError(w, http.StatusBadRequest, "term must be a non-negative integer")
			return
		}
		records = filterRecords(records, func(rec rates.Record) bool {
			return rec.TermDays == term
		})
	}
	if minStr := q.Get("min_rate"); minStr != "" {
		min, err := decimal.NewFromString(minStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, "min_rate must be a decimal number")
			return
		}
		records = filterRecords(records, func(rec rates.Record) bool {
			return rec.AnnualRatePct.GreaterThanOrEqual(min)
		})
	}

	if sortKey := q.Get("sort"); sortKey != "" {
		records = append([]rates.Record(nil), records...)
		switch sortKey {
		case "rate", "rate_desc":
			rates.SortByRateDesc(records)
		case "rate_asc":
			rates.SortByRateDesc(records)
			reverseRecords(records)
		case "term_asc":
			sort.SliceStable(records, func(i, j int) bool { return records[i].TermDays < records[j].TermDays })
		case "term_desc":
			sort.SliceStable(records, func(i, j int) bool { return records[i].TermDays > records[j].TermDays })
		default:
			respondError(w, http.StatusBadRequest, "sort must be one of rate_desc, rate_asc, term_asc, term_desc")
			return
		}
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if limit < len(records) {
			records = records[:limit]
		}
	}

	if records == nil {
		records = []rates.Record{}
	}
	respondJSON(w, http.StatusOK, ratesResponse{Count: len(records), Records: records})
}

func (s *Server) handleEntityRates(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.loadSnapshot(w, r)
	if !ok {
		return
	}

	entity := chi.URLParam(r, "entity")
	records := snap.ByEntity(entity)
	if len(records) == 0 {
		respondError(w, http.StatusNotFound, "no rates for entity "+entity)
		return
	}
	respondJSON(w, http.StatusOK, ratesResponse{Count: len(records), Records: records})
}

type compareResponse struct {
	TermDays int            `json:"term_days"`
	Count    int            `json:"count"`
	Best     *rates.Record  `json:"best,omitempty"`
	Records  []rates.Record `json:"records"`
}

// handleCompare ranks all entities offering the requested term, best
// rate first.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	termStr := r.URL.Query().Get("term")
	if termStr == "" {
		respondError(w, http.StatusBadRequest, "term query parameter is required")
		return
	}
	term, err := strconv.Atoi(termStr)
	if err != nil || term < 0 {
		respondError(w, http.StatusBadRequest, "term must be a non-negative integer")
		return
	}

	snap, ok := s.loadSnapshot(w, r)
	if !ok {
		return
	}

	records := snap.ByTerm(term)
	rates.SortByRateDesc(records)

	resp := compareResponse{TermDays: term, Count: len(records), Records: records}
	if resp.Records == nil {
		resp.Records = []rates.Record{}
	}
	if len(records) > 0 {
		best := records[0]
		resp.Best = &best
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.loadSnapshot(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, rates.BuildRanking(snap, s.opts.TopN, s.now().UTC()))
}

type scrapeResponse struct {
	Report  orchestrator.Report `json:"report"`
	Records int                 `json:"records"`
}

// handleScrape runs a scrape synchronously. A run already executing
// yields 409; a run with zero usable records yields 502.
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if s.trigger == nil {
		respondError(w, http.StatusServiceUnavailable, "manual scrape trigger not configured")
		return
	}

	snap, report, err := s.trigger.RunOnce(r.Context())
	if err != nil {
		if errors.Is(err, orchestrator.ErrRunInProgress) {
			respondError(w, http.StatusConflict, "a scrape run is already in progress")
			return
		}
		s.logger.Error().Err(err).Msg("manual scrape failed")
		respondError(w, http.StatusInternalServerError, "scrape run failed")
		return
	}

	status := http.StatusOK
	if report.Failed {
		status = http.StatusBadGateway
	}
	respondJSON(w, status, scrapeResponse{Report: report, Records: len(snap.Records)})
}

func (s *Server) loadSnapshot(w http.ResponseWriter, r *http.Request) (rates.Snapshot, bool) {
	snap, err := s.source.Current(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load current snapshot")
		respondError(w, http.StatusInternalServerError, "failed to load current snapshot")
		return rates.Snapshot{}, false
	}
	return snap, true
}

func reverseRecords(records []rates.Record) {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}

func filterRecords(records []rates.Record, keep func(rates.Record) bool) []rates.Record {
	out := make([]rates.Record, 0, len(records))
	for _, rec := range records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
