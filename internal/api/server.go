// Package api exposes the HTTP interface for the eSIM catalog service.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/esimwatch/esim-crawler/internal/cache"
	"github.com/esimwatch/esim-crawler/internal/config"
	"github.com/esimwatch/esim-crawler/internal/metrics"
	"github.com/esimwatch/esim-crawler/internal/scrape"
)

// Server wires HTTP handlers to the result cache.
type Server struct {
	router chi.Router
	cache  *cache.Cache
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(resultCache *cache.Cache, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cache:  resultCache,
		cfg:    cfg,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key"},
	}))
	// The refresh path can run a full scrape, so the budget covers one run.
	r.Use(timeoutMiddleware(cfg.RunTimeout() + 30*time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/", s.root)
	r.Get("/health", s.health)
	r.Get("/esims", s.listESIMs)
	r.Get("/esims/{country}", s.listESIMsByCountry)
	r.Post("/refresh", s.refresh)
	r.Handle("/metrics", metrics.Handler())

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "esim-crawler",
		"endpoints": map[string]string{
			"/esims":           "list all scraped eSIM products",
			"/esims/{country}": "list products covering a country code",
			"/refresh":         "force a fresh scrape (POST)",
			"/health":          "service health",
			"/metrics":         "prometheus metrics",
		},
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "healthy",
		"scraper_initialized": s.cache.State() != cache.StateEmpty,
	})
}

func (s *Server) listESIMs(w http.ResponseWriter, r *http.Request) {
	result, err := s.cache.Get(r.Context(), false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch eSIM data: "+err.Error())
		return
	}
	items := toDTOs(result.Records)
	writeJSON(w, http.StatusOK, listResponse{
		Products:   items,
		TotalCount: len(items),
		FetchedAt:  s.cache.FetchedAt(),
	})
}

func (s *Server) listESIMsByCountry(w http.ResponseWriter, r *http.Request) {
	country := chi.URLParam(r, "country")
	result, err := s.cache.Get(r.Context(), false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch eSIM data: "+err.Error())
		return
	}
	var items []esimDTO
	for _, rec := range result.Records {
		if recordCoversCountry(rec, country) {
			items = append(items, toDTO(rec))
		}
	}
	writeJSON(w, http.StatusOK, countryResponse{
		Country:    strings.ToUpper(country),
		Products:   items,
		TotalCount: len(items),
	})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	result, err := s.cache.Get(r.Context(), true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "refresh failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "data refreshed successfully",
		"products_count": result.Len(),
	})
}

// recordCoversCountry does a case-insensitive substring match of the query
// against each covered country and the product name.
func recordCoversCountry(rec scrape.ProductRecord, country string) bool {
	query := strings.ToLower(country)
	for _, c := range rec.Countries {
		if strings.Contains(strings.ToLower(c), query) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(rec.Name), query)
}

type listResponse struct {
	Products   []esimDTO `json:"products"`
	TotalCount int       `json:"total_count"`
	FetchedAt  time.Time `json:"fetched_at"`
}

type countryResponse struct {
	Country    string    `json:"country"`
	Products   []esimDTO `json:"products"`
	TotalCount int       `json:"total_count"`
}

type esimDTO struct {
	Country          string    `json:"country"`
	ID               string    `json:"id"`
	URL              string    `json:"url"`
	CountriesCovered []string  `json:"countries_covered"`
	Plans            []planDTO `json:"plans"`
}

type planDTO struct {
	Name     string `json:"name"`
	Data     string `json:"data,omitempty"`
	Validity string `json:"validity,omitempty"`
	Price    string `json:"price,omitempty"`
}

func toDTOs(records []scrape.ProductRecord) []esimDTO {
	items := make([]esimDTO, 0, len(records))
	for _, rec := range records {
		items = append(items, toDTO(rec))
	}
	return items
}

func toDTO(rec scrape.ProductRecord) esimDTO {
	plans := make([]planDTO, 0, len(rec.Plans))
	for _, p := range rec.Plans {
		plans = append(plans, planDTO{
			Name:     p.Label,
			Data:     p.Data,
			Validity: p.Validity,
			Price:    p.Price,
		})
	}
	covered := rec.Countries
	if covered == nil {
		covered = []string{}
	}
	return esimDTO{
		Country:          rec.Name,
		ID:               rec.SourceID,
		URL:              rec.URL,
		CountriesCovered: covered,
		Plans:            plans,
	}
}
