package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"foodiebot/internal/analytics"
	"foodiebot/internal/articulation"
	"foodiebot/internal/catalog"
	"foodiebot/internal/llm"
	"foodiebot/internal/perception"
	"foodiebot/internal/pipeline"
	"foodiebot/internal/recommend"
	"foodiebot/internal/server"
	"foodiebot/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the FoodieBot HTTP API",
	Long: `Starts the HTTP JSON API on the configured address.

Components: chat pipeline (POST /chat), recommendation endpoints, product
catalog with admin CRUD, analytics read endpoints, and an optional seed-file
watcher that hot-reloads the catalog when the product JSON changes.`,
	RunE: runServe,
}

// components is the wired application core shared by serve and chat.
type components struct {
	catalog  *catalog.Store
	sessions *session.Store
	sink     *analytics.Sink
	pipeline *pipeline.Pipeline
	rec      *recommend.Recommender
}

func (c *components) close() {
	if c.sink != nil {
		if err := c.sink.Close(); err != nil {
			logger.Warn("analytics close failed", zap.Error(err))
		}
	}
	if c.catalog != nil {
		if err := c.catalog.Close(); err != nil {
			logger.Warn("catalog close failed", zap.Error(err))
		}
	}
}

// buildComponents wires the application core from config.
func buildComponents(ctx context.Context, withAnalytics bool) (*components, error) {
	cat, err := catalog.NewStore(cfg.Storage.CatalogPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	c := &components{catalog: cat}

	if withAnalytics {
		sink, err := analytics.NewSink(cfg.Storage.AnalyticsPath, logger)
		if err != nil {
			c.close()
			return nil, fmt.Errorf("failed to open analytics: %w", err)
		}
		c.sink = sink
		cat.SetQueryLogger(sink)
	}

	client, err := llm.NewClient(ctx, cfg, logger)
	if err != nil {
		c.close()
		return nil, err
	}

	c.sessions = session.NewStore(logger)
	c.rec = recommend.New(cat, logger)
	extractor := perception.NewExtractor(client, logger)
	orchestrator := articulation.NewOrchestrator(client, cfg.LLM.MaxTokens, logger)

	var turnLog pipeline.TurnLogger
	if c.sink != nil {
		turnLog = c.sink
	}
	c.pipeline = pipeline.New(extractor, c.sessions, c.rec, orchestrator, turnLog, logger)

	return c, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := buildComponents(ctx, true)
	if err != nil {
		return err
	}
	defer c.close()

	// Seed the catalog up front when a seed file is present.
	if path := cfg.Storage.SeedPath; path != "" {
		if _, err := os.Stat(path); err == nil {
			n, err := c.catalog.SeedFromFile(ctx, path)
			if err != nil {
				return fmt.Errorf("initial seed failed: %w", err)
			}
			logger.Info("catalog seeded", zap.String("path", path), zap.Int("products", n))
		}
	}

	srv := server.New(c.pipeline, c.sessions, c.catalog, c.rec, c.sink, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, cfg.Server.Addr, cfg.ServerShutdownTimeout())
	})
	if cfg.Storage.WatchSeed && cfg.Storage.SeedPath != "" {
		watcher := catalog.NewSeedWatcher(c.catalog, cfg.Storage.SeedPath, logger)
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}
