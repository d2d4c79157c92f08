package server

import (
	"context"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/nextrun/augment/internal/api/http"
	"github.com/nextrun/augment/internal/api/mcp"
	"github.com/nextrun/augment/internal/knowledge"
	"github.com/nextrun/augment/internal/memory"
	"github.com/nextrun/augment/internal/rag"
	"github.com/nextrun/augment/internal/tool"
	"github.com/nextrun/augment/internal/tool/builtin"
	"github.com/nextrun/augment/pkg/llm"
	"github.com/nextrun/augment/pkg/log"
)

// Server represents the augment server
type Server struct {
	config   Config
	logger   *slog.Logger
	llm      *llm.Client
	store    *knowledge.Store
	memories *memory.Store
	registry *tool.Registry
	pipeline *rag.Pipeline
}

// NewServer creates a new server with the given configuration
func NewServer(conf Config) (*Server, error) {
	server := &Server{
		config: conf,
	}

	if err := server.initDepend(); err != nil {
		return nil, errors.WithMessage(err, "init server dependency failed")
	}

	if err := server.initTools(); err != nil {
		return nil, errors.WithMessage(err, "init tools failed")
	}

	server.initPipeline()

	return server, nil
}

// initDepend initializes all dependencies
func (s *Server) initDepend() error {
	// Initialize log first
	if err := log.Init(s.config.Log); err != nil {
		return errors.WithMessage(err, "failed to init log")
	}

	// Create logger for this module
	s.logger = log.Logger("server")
	s.logger.Info("initializing dependencies")

	// Initialize OpenAI client
	s.logger.Info("initializing llm client", "offline", s.config.OpenAI.Offline)
	s.llm = llm.New(s.config.OpenAI)

	// Initialize knowledge base
	s.logger.Info("initializing knowledge store")
	store, err := knowledge.NewStore(s.config.Knowledge, s.llm)
	if err != nil {
		return errors.WithMessage(err, "failed to init knowledge store")
	}
	s.store = store

	// Initialize conversation memory
	s.logger.Info("initializing memory store")
	memories, err := memory.NewStore(s.config.Memory)
	if err != nil {
		return errors.WithMessage(err, "failed to init memory store")
	}
	s.memories = memories

	return nil
}

// initTools initializes the tool registry with built-in tools
func (s *Server) initTools() error {
	s.logger.Info("initializing tool registry")

	s.registry = tool.NewRegistry()
	if err := builtin.RegisterAll(s.registry); err != nil {
		return errors.WithMessage(err, "failed to register builtin tools")
	}

	return nil
}

// initPipeline initializes the retrieval-augmented query pipeline
func (s *Server) initPipeline() {
	s.logger.Info("initializing rag pipeline")
	s.pipeline = rag.NewPipeline(s.store, s.llm, s.config.OpenAI.Offline)
}

// Start starts the server based on configuration mode
func (s *Server) Start() error {
	s.logger.Info("starting", "mode", s.config.Server.Mode, "port", s.config.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		s.logger.Info("received shutdown signal")
		cancel()
	}()

	g, ctx := errgroup.WithContext(ctx)

	switch s.config.Server.Mode {
	case "http":
		g.Go(func() error {
			return s.runHTTPServer(ctx)
		})
	case "mcp":
		g.Go(func() error {
			return s.runMCPServer(ctx)
		})
	case "both":
		g.Go(func() error {
			return s.runHTTPServer(ctx)
		})
		g.Go(func() error {
			return s.runMCPServer(ctx)
		})
	default:
		cancel()
		return errors.Errorf("unknown mode: %s", s.config.Server.Mode)
	}

	return g.Wait()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down")
	return nil
}

func (s *Server) runHTTPServer(ctx context.Context) error {
	serverCfg := http.DefaultServerConfig()
	serverCfg.Host = s.config.Server.Host
	serverCfg.Port = s.config.Server.Port

	handler := http.NewHandler(s.registry, s.store, s.pipeline, s.memories)
	srv := http.NewServer(handler, serverCfg)

	// Shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
		return errors.WithMessage(err, "http server error")
	}
	return nil
}

func (s *Server) runMCPServer(ctx context.Context) error {
	server := mcp.NewServer(s.registry, mcp.ServerConfig{
		Name:    "augment",
		Version: "0.1.0",
	})

	if err := server.RunStdio(ctx); err != nil && err != context.Canceled {
		return errors.WithMessage(err, "mcp server error")
	}
	return nil
}
