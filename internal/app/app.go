// Package app wires configuration, storage and services into a ready showroom.
package app

import (
	"context"
	"fmt"

	"showroom/internal/assets"
	"showroom/internal/config"
	"showroom/internal/database"
	"showroom/internal/repository"
	"showroom/internal/service"

	"go.uber.org/zap"
)

type App struct {
	Showroom service.Showroom
	logger   *zap.Logger
}

// New prepares the data root, loads the catalog and sales ledger and builds
// the showroom service.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := database.Prepare(cfg.Storage, logger); err != nil {
		return nil, err
	}

	// Initialize image store
	images, err := assets.New(assets.Options{
		Root:       cfg.Storage.ImageRoot(),
		Prefix:     cfg.Storage.ImagePrefix(),
		Timeout:    cfg.Fetch.Timeout,
		Retries:    cfg.Fetch.Retries,
		RetryDelay: cfg.Fetch.RetryDelay,
		Logger:     logger.Named("assets"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize image store: %w", err)
	}

	// Initialize repositories
	catalog := repository.NewCatalogRepository(repository.CatalogOptions{
		Path:        cfg.Storage.CatalogPath(),
		ImagePrefix: images.Prefix(),
		Assets:      images,
		Logger:      logger.Named("catalog"),
	})
	sales := repository.NewSalesRepository(cfg.Storage.SalesPath(), logger.Named("sales"))

	if _, err := catalog.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if _, err := sales.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load sales: %w", err)
	}

	// Initialize services
	showroom := service.WithLogging(
		service.NewShowroom(catalog, sales, images, logger.Named("showroom")),
		logger.Named("ops"),
	)

	return &App{
		Showroom: showroom,
		logger:   logger,
	}, nil
}

func (a *App) Close() error {
	a.logger.Info("Closing showroom resources")
	_ = a.logger.Sync()
	return nil
}
