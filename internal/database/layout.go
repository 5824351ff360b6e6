// Package database prepares the on-disk data root: the catalog file, the
// sales log and the managed image directory.
package database

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"showroom/internal/config"

	"go.uber.org/zap"
)

// Prepare creates any missing part of the data root. Existing files are left
// untouched.
func Prepare(storage config.StorageConfig, logger *zap.Logger) error {
	logger.Info("Checking data root...", zap.String("dir", storage.DataDir))

	for _, dir := range []string{storage.DataDir, storage.ImageRoot()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("Failed to create data directory", zap.String("dir", dir), zap.Error(err))
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	for _, file := range []string{storage.CatalogPath(), storage.SalesPath()} {
		created, err := touch(file)
		if err != nil {
			logger.Error("Failed to create data file", zap.String("file", file), zap.Error(err))
			return fmt.Errorf("failed to create file %s: %w", file, err)
		}
		if created {
			logger.Info("Created empty data file", zap.String("file", file))
		}
	}

	logger.Info("Data root ready")
	return nil
}

func touch(path string) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}
	return true, f.Close()
}

// PathStatus describes one part of the data root
type PathStatus struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Size   int64  `json:"size"`
}

// Status returns the state of the catalog file, the sales log and the image directory
func Status(storage config.StorageConfig) ([]PathStatus, error) {
	paths := []string{storage.CatalogPath(), storage.SalesPath(), storage.ImageRoot()}

	status := make([]PathStatus, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		switch {
		case err == nil:
			status = append(status, PathStatus{Path: p, Exists: true, Size: info.Size()})
		case errors.Is(err, fs.ErrNotExist):
			status = append(status, PathStatus{Path: p})
		default:
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
	}
	return status, nil
}
