// Package chi is the HTTP API of the catalog: search, product CRUD, chat and probes.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	gochi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/request"
	healthuc "github.com/kailas-cloud/talk2shop/internal/usecase/health"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server holds the HTTP handlers.
type Server struct {
	search        Searcher
	catalog       Catalog
	chat          Assistant
	health        HealthChecker
	limits        request.Limits
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. chat may be nil when no chat provider is configured.
func NewServer(search Searcher, catalog Catalog, chat Assistant, health HealthChecker) *Server {
	return &Server{
		search:        search,
		catalog:       catalog,
		chat:          chat,
		health:        health,
		errorHandlers: defaultErrorHandlers(),
	}
}

// WithLimits overrides the page size defaults.
func (s *Server) WithLimits(l request.Limits) *Server {
	s.limits = l
	return s
}

// Search handles GET /api/search. A blank q lists the catalog.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := request.New(q.Get("q"), categoryFilter(q), intParam(q, "page"), intParam(q, "limit"), s.limits)

	page, err := s.search.Search(r.Context(), req)
	if err != nil {
		// Both retrieval paths failed: nothing here is the client's fault.
		s.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Items:  hitsToResponse(page.Hits),
		Page:   page.Page,
		Limit:  page.Limit,
		Source: string(page.Source),
	})
}

// Semantic handles GET /api/products/semantic.
func (s *Server) Semantic(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")

	hits, err := s.search.Semantic(r.Context(), query, categoryFilter(q), intParam(q, "topK"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, semanticResponse{
		Query:   query,
		Count:   len(hits),
		Results: hitsToResponse(hits),
	})
}

// ListProducts handles GET /api/products.
func (s *Server) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := request.New("", filter.Expression{}, intParam(q, "page"), intParam(q, "limit"), s.limits)

	products, err := s.catalog.List(r.Context(), req.Page(), req.Limit())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Items: productsToResponse(products),
		Page:  req.Page(),
		Limit: req.Limit(),
	})
}

// Categories handles GET /api/products/categories.
func (s *Server) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.catalog.Categories(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	writeJSON(w, http.StatusOK, categoriesResponse{Categories: cats})
}

// GetProduct handles GET /api/products/{id}.
func (s *Server) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Get(r.Context(), gochi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productToResponse(p))
}

// CreateProduct handles POST /api/products.
func (s *Server) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var body productRequest
	if !decodeBody(w, r, &body) {
		return
	}

	p, err := s.catalog.Create(r.Context(), body.ID, body.fields())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/products/"+p.ID())
	writeJSON(w, http.StatusCreated, productToResponse(p))
}

// UpdateProduct handles PUT /api/products/{id}.
func (s *Server) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var body patchRequest
	if !decodeBody(w, r, &body) {
		return
	}

	p, err := s.catalog.Update(r.Context(), gochi.URLParam(r, "id"), body.patch())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productToResponse(p))
}

// DeleteProduct handles DELETE /api/products/{id}.
func (s *Server) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(r.Context(), gochi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Chat handles POST /api/chat.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeError(w, http.StatusServiceUnavailable, codeChatUnavailable, "chat is not configured")
		return
	}

	var body chatRequest
	if !decodeBody(w, r, &body) {
		return
	}

	ans, err := s.chat.Ask(r.Context(), body.Query)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Output: ans.Output})
}

// Health handles GET /health. Only a catalog outage fails the probe.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func categoryFilter(q url.Values) filter.Expression {
	return filter.ByCategory(q.Get("category"), q.Get("subcategory"))
}

// intParam parses an optional integer. Garbage reads as zero and is clamped downstream.
func intParam(q url.Values, name string) int {
	v, err := strconv.Atoi(q.Get(name))
	if err != nil {
		return 0
	}
	return v
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeBadRequest, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body")
		return false
	}
	return true
}
