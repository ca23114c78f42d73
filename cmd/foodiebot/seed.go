package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"foodiebot/internal/catalog"
)

var seedCmd = &cobra.Command{
	Use:   "seed [file]",
	Short: "Load a product seed file into the catalog",
	Long: `Loads a JSON array of products into the catalog database, replacing
rows with matching product ids. Defaults to the configured seed path.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	path := cfg.Storage.SeedPath
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no seed file given and none configured")
	}

	cat, err := catalog.NewStore(cfg.Storage.CatalogPath, logger)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer cat.Close()

	n, err := cat.SeedFromFile(context.Background(), path)
	if err != nil {
		return err
	}

	logger.Info("catalog seeded", zap.String("path", path), zap.Int("products", n))
	fmt.Printf("Seeded %d products from %s\n", n, path)
	return nil
}
