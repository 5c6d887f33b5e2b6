// Package httpapi provides the HTTP API for verifyd.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/healthguardlabs/verifyd/internal/embeddings"
	"github.com/healthguardlabs/verifyd/internal/ingest"
	"github.com/healthguardlabs/verifyd/internal/memory"
	"github.com/healthguardlabs/verifyd/internal/observability"
	"github.com/healthguardlabs/verifyd/internal/vectorstore"
	"github.com/healthguardlabs/verifyd/internal/verdict"
)

// Server exposes ingestion, search, verification, and memory endpoints.
type Server struct {
	echo     *echo.Echo
	engine   *verdict.Engine
	memories *memory.Store
	ingestor *ingest.Service
	vectors  vectorstore.Store
	text     embeddings.TextEmbedder
	image    embeddings.ImageEmbedder
	verdict  verdict.Config
	registry *prometheus.Registry
	logger   *zap.Logger
	addr     string
}

// Deps bundles the server's dependencies.
type Deps struct {
	Engine   *verdict.Engine
	Memories *memory.Store
	Ingestor *ingest.Service
	Vectors  vectorstore.Store
	Text     embeddings.TextEmbedder
	Image    embeddings.ImageEmbedder
	Verdict  verdict.Config
	Registry *prometheus.Registry
	Logger   *zap.Logger
	Addr     string
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(deps Deps) (*Server, error) {
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if deps.Memories == nil {
		return nil, fmt.Errorf("memory store cannot be nil")
	}
	if deps.Ingestor == nil {
		return nil, fmt.Errorf("ingest service cannot be nil")
	}
	if deps.Vectors == nil {
		return nil, fmt.Errorf("vector store cannot be nil")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	deps.Verdict.ApplyDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			deps.Logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		engine:   deps.Engine,
		memories: deps.Memories,
		ingestor: deps.Ingestor,
		vectors:  deps.Vectors,
		text:     deps.Text,
		image:    deps.Image,
		verdict:  deps.Verdict,
		registry: deps.Registry,
		logger:   deps.Logger,
		addr:     deps.Addr,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	if s.registry != nil {
		s.echo.GET("/metrics", echo.WrapHandler(observability.Handler(s.registry)))
	}

	v1 := s.echo.Group("/api/v1")
	v1.POST("/ingest/text", s.handleIngestText)
	v1.POST("/ingest/images", s.handleIngestImages)
	v1.GET("/search", s.handleSearch)
	v1.POST("/agent/query", s.handleAgentQuery)
	v1.GET("/memory", s.handleGetMemory)
	v1.POST("/memory", s.handleAddMemory)
	v1.DELETE("/memory/:id", s.handleForgetMemory)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// IngestTextRequest is the request body for POST /api/v1/ingest/text.
type IngestTextRequest struct {
	Documents []ingest.TextDoc `json:"documents"`
	// Veracity routes documents: "fact" (default) or "misinformation".
	Veracity string `json:"veracity,omitempty"`
}

// IngestResponse reports how many documents were stored.
type IngestResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

func (s *Server) handleIngestText(c echo.Context) error {
	var req IngestTextRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Documents) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "documents field is required")
	}

	var (
		count int
		err   error
	)
	switch req.Veracity {
	case "", "fact":
		count, err = s.ingestor.IngestFacts(c.Request().Context(), req.Documents)
	case "misinformation":
		count, err = s.ingestor.IngestMyths(c.Request().Context(), req.Documents)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "veracity must be fact or misinformation")
	}
	if err != nil {
		s.logger.Error("text ingest failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "ingest failed")
	}

	return c.JSON(http.StatusOK, IngestResponse{Status: "success", Count: count})
}

// IngestImageRequest is the request body for POST /api/v1/ingest/images.
type IngestImageRequest struct {
	Images []ingest.ImageDoc `json:"images"`
}

func (s *Server) handleIngestImages(c echo.Context) error {
	var req IngestImageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Images) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "images field is required")
	}

	count, err := s.ingestor.IngestImages(c.Request().Context(), req.Images)
	if err != nil {
		s.logger.Error("image ingest failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "ingest failed")
	}

	return c.JSON(http.StatusOK, IngestResponse{Status: "success", Count: count})
}

// SearchResponse is the response body for GET /api/v1/search.
type SearchResponse struct {
	Results []verdict.EvidenceRecord `json:"results"`
}

// handleSearch runs a direct search across facts and images, merged and
// sorted by descending score.
func (s *Server) handleSearch(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q parameter is required")
	}
	searchType := c.QueryParam("type")
	if searchType == "" {
		searchType = "all"
	}
	topK := 5
	if raw := c.QueryParam("top_k"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &topK); err != nil || topK <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "top_k must be a positive integer")
		}
	}

	ctx := c.Request().Context()
	var results []verdict.EvidenceRecord

	if searchType == "text" || searchType == "all" {
		vec, err := s.text.EmbedText(ctx, query)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, "text embedding failed")
		}
		hits, err := s.vectors.Search(ctx, s.verdict.FactsCollection, vec, topK, nil)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, "fact search failed")
		}
		for _, h := range hits {
			body, _ := h.Payload["body"].(string)
			results = append(results, verdict.EvidenceRecord{
				ID:               h.ID,
				Score:            h.Score,
				Content:          body,
				Metadata:         h.Payload,
				Kind:             verdict.KindFact,
				SourceCollection: s.verdict.FactsCollection,
			})
		}
	}

	if searchType == "image" || searchType == "all" {
		vec, err := s.image.EmbedTextForImageSpace(ctx, query)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, "image embedding failed")
		}
		hits, err := s.vectors.Search(ctx, s.verdict.ImagesCollection, vec, topK, nil)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, "image search failed")
		}
		for _, h := range hits {
			caption, _ := h.Payload["caption"].(string)
			results = append(results, verdict.EvidenceRecord{
				ID:               h.ID,
				Score:            h.Score,
				Content:          caption,
				Metadata:         h.Payload,
				Kind:             verdict.KindImage,
				SourceCollection: s.verdict.ImagesCollection,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	if results == nil {
		results = []verdict.EvidenceRecord{}
	}

	return c.JSON(http.StatusOK, SearchResponse{Results: results})
}

// AgentQueryRequest is the request body for POST /api/v1/agent/query.
type AgentQueryRequest struct {
	Query     string `json:"query"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleAgentQuery(c echo.Context) error {
	var req AgentQueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" || req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query and user_id fields are required")
	}

	result, err := s.engine.ProcessQuery(c.Request().Context(), req.UserID, req.SessionID, req.Query)
	if err != nil {
		s.logger.Error("query processing failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "query processing failed")
	}

	return c.JSON(http.StatusOK, result)
}

// MemoryResponse is the response body for GET /api/v1/memory.
type MemoryResponse struct {
	Memories []memory.Record `json:"memories"`
}

func (s *Server) handleGetMemory(c echo.Context) error {
	userID := c.QueryParam("user_id")
	query := c.QueryParam("query")
	if userID == "" || query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id and query parameters are required")
	}

	records, err := s.memories.GetContext(c.Request().Context(), userID, query, 0)
	if err != nil {
		s.logger.Error("memory recall failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "memory recall failed")
	}
	if records == nil {
		records = []memory.Record{}
	}

	return c.JSON(http.StatusOK, MemoryResponse{Memories: records})
}

// AddMemoryRequest is the request body for POST /api/v1/memory.
type AddMemoryRequest struct {
	UserID     string `json:"user_id"`
	SessionID  string `json:"session_id"`
	RawText    string `json:"raw_text"`
	MemoryType string `json:"memory_type"`
}

// AddMemoryResponse returns the stored memory's ID.
type AddMemoryResponse struct {
	Status   string `json:"status"`
	MemoryID string `json:"memory_id"`
}

func (s *Server) handleAddMemory(c echo.Context) error {
	var req AddMemoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	id, err := s.memories.Add(c.Request().Context(), req.UserID, req.SessionID, req.RawText, memory.Type(req.MemoryType))
	if err != nil {
		s.logger.Warn("memory add rejected", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, AddMemoryResponse{Status: "updated", MemoryID: id})
}

// StatusResponse is a minimal status body.
type StatusResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleForgetMemory(c echo.Context) error {
	id := c.Param("id")
	if err := s.memories.Forget(c.Request().Context(), id); err != nil {
		s.logger.Warn("memory delete failed", zap.String("memory_id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: "deleted"})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.addr))
	return s.echo.Start(s.addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler returns the underlying HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
