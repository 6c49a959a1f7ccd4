package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/pbaille/termuri/internal/config"
	"github.com/pbaille/termuri/internal/domain"
	"github.com/pbaille/termuri/internal/media"
	"github.com/pbaille/termuri/internal/metrics"
	"github.com/pbaille/termuri/internal/selection"
	"github.com/pbaille/termuri/internal/store"
	"github.com/pbaille/termuri/internal/uri"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server handles HTTP requests for term and media lookups
type Server struct {
	store     *store.Store
	resolver  *uri.Resolver
	selection *selection.ExternalURISelection
	cfg       *config.Config
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
}

// New creates a new API server
func New(s *store.Store, cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	r := uri.NewResolver(s, s, logger)

	return &Server{
		store:     s,
		resolver:  r,
		selection: selection.NewExternalURISelection(s, r, m),
		cfg:       cfg,
		metrics:   m,
		gatherer:  reg,
		logger:    logger,
	}
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Terms
	mux.HandleFunc("GET /terms/options", s.termOptions)
	mux.HandleFunc("GET /terms/lookup", s.termForURI)
	mux.HandleFunc("GET /terms/{id}/uri", s.uriForTerm)

	// Media
	mux.HandleFunc("GET /media/{id}/parent", s.parentNode)

	// Field metadata
	mux.HandleFunc("GET /fields", s.fields)

	// Health check and metrics
	mux.HandleFunc("GET /health", s.health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return s.withLogging(mux)
}

// Run starts the HTTP server
func (s *Server) Run() error {
	s.logger.Info("starting server", "addr", s.cfg.Server.Addr)
	return http.ListenAndServe(s.cfg.Server.Addr, s.Handler())
}

func (s *Server) withLogging(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) termOptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := s.cfg.SelectionRequest(q.Get("q"))

	if op := q.Get("op"); op != "" {
		if !domain.ValidMatchOperator(op) {
			writeError(w, http.StatusBadRequest, "op must be one of CONTAINS, STARTS_WITH, ENDS_WITH, =")
			return
		}
		req.MatchOperator = op
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		req.Limit = n
	}
	if bundles := q["vocabulary"]; len(bundles) > 0 {
		req.TargetBundles = bundles
	}

	opts, err := s.selection.ReferenceableEntities(r.Context(), req)
	if err != nil {
		s.serverError(w, "term options", err)
		return
	}
	if opts == nil {
		opts = domain.ReferenceOptions{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"options": opts,
		"count":   opts.Count(),
	})
}

func (s *Server) termForURI(w http.ResponseWriter, r *http.Request) {
	u := r.URL.Query().Get("uri")
	if u == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'uri' is required")
		return
	}

	term, err := s.resolver.TermForURI(r.Context(), u)
	s.metrics.ObserveLookup("term_for_uri", term != nil, err)
	if err != nil {
		s.serverError(w, "term for uri", err)
		return
	}
	if term == nil {
		writeError(w, http.StatusNotFound, "no term for uri")
		return
	}

	writeJSON(w, http.StatusOK, term)
}

func (s *Server) uriForTerm(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid term id")
		return
	}

	term, err := s.load(r, domain.TermEntityType, id)
	if err != nil {
		s.serverError(w, "load term", err)
		return
	}
	if term == nil {
		writeError(w, http.StatusNotFound, "term not found")
		return
	}

	u, err := s.resolver.URIForTerm(r.Context(), term)
	s.metrics.ObserveLookup("uri_for_term", u != "", err)
	if err != nil {
		s.serverError(w, "uri for term", err)
		return
	}
	if u == "" {
		writeError(w, http.StatusNotFound, "term has no uri")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":  term.ID,
		"uri": u,
	})
}

func (s *Server) parentNode(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid media id")
		return
	}

	m, err := s.load(r, domain.MediaEntityType, id)
	if err != nil {
		s.serverError(w, "load media", err)
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "media not found")
		return
	}

	parent, err := media.ParentNode(r.Context(), s.store, m)
	s.metrics.ObserveLookup("parent_node", parent != nil, err)
	if err != nil {
		s.serverError(w, "parent node", err)
		return
	}
	if parent == nil {
		writeError(w, http.StatusNotFound, "media has no parent node")
		return
	}

	writeJSON(w, http.StatusOK, parent)
}

func (s *Server) fields(w http.ResponseWriter, r *http.Request) {
	fm, err := s.store.FieldMap(r.Context())
	if err != nil {
		s.serverError(w, "field map", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"fields":     fm,
		"uri_fields": uri.BroadURIFieldNames(fm),
		"selection":  selection.Describe(),
	})
}

func (s *Server) load(r *http.Request, entityType string, id int64) (*domain.Entity, error) {
	storage, err := s.store.Storage(r.Context(), entityType)
	if err != nil {
		return nil, err
	}
	return storage.Load(r.Context(), id)
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", "error", err)
	status := http.StatusInternalServerError
	if errors.Is(err, domain.ErrPluginNotFound) {
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
