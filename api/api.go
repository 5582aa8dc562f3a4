package api

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Goer17/InnoTree/api/mcp"
	apisearch "github.com/Goer17/InnoTree/api/search"
	"github.com/Goer17/InnoTree/pkg/logger"
	"github.com/Goer17/InnoTree/pkg/search"
)

// Server is the API server for starting and following idea searches.
type Server struct {
	config   Config
	searches search.Service
	papers   *apisearch.Searcher
	logger   *slog.Logger
	app      *fiber.App
}

// NewServer creates a new API server.
// The search service is injected so the CLI can share it with other
// components running in the same process.
func NewServer(config Config, searches search.Service, log *slog.Logger) (*Server, error) {
	if searches == nil {
		return nil, fmt.Errorf("search service is required")
	}
	if config.KeepAlive <= 0 {
		config.KeepAlive = DefaultKeepAlive
	}
	log = logger.OrNop(log)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	s := &Server{
		config:   config,
		searches: searches,
		logger:   log,
		app:      app,
	}
	if config.VectorDriver != nil && config.Embedder != nil {
		s.papers = apisearch.NewSearcher(config.Embedder, config.VectorDriver, log)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Searches: searches,
		Papers:   s.papers,
		Noop:     config.NoMCP,
		Logger:   log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	app.Get("/ping", s.handlePing)
	app.Post("/start", s.handleStart)
	app.Get("/stream", s.handleStream)
	app.Get("/tasks", s.handleListTasks)
	app.Get("/tasks/:id", s.handleGetTask)
	app.Get("/papers", s.handlePapers)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
