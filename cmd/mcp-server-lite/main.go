// Package main provides the lightweight MCP entry point for the lab analysis engine.
// This version requires no external databases - uses in-memory caching and SQLite.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/lab-analysis-engine/internal/config"
	"github.com/lab-analysis-engine/internal/mcp"
)

func main() {
	// Load lightweight configuration
	cfg := config.LoadLiteConfig()
	logger := mcp.NewLogger(cfg)

	logger.WithField("data_dir", cfg.DataDir).Info("Starting lab analysis MCP server (lite)")

	server, err := mcp.NewLiteServer(cfg, mcp.WithLogger(logger))
	if err != nil {
		logger.WithError(err).Fatal("Failed to create MCP server")
	}
	defer server.Close()

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		logger.WithError(err).Error("MCP server failed")
		return
	}

	logger.WithFields(logrus.Fields{"server": cfg.ServerName}).Info("MCP server stopped")
}
