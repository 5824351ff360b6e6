package repository

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"showroom/internal/domain"
	"showroom/internal/logger"

	"go.uber.org/zap"
)

// SalesRepository defines the interface for the append-only sales ledger
type SalesRepository interface {
	Load(ctx context.Context) (LoadReport, error)
	Record(ctx context.Context, sale domain.Sale) (domain.Sale, error)
	All(ctx context.Context) []domain.Sale
}

type salesRepository struct {
	mu       sync.Mutex
	sales    []domain.Sale
	path     string
	location *time.Location
	logger   *zap.Logger
}

// NewSalesRepository creates a new instance of SalesRepository backed by the
// file at path. Timestamps are read and written in local time.
func NewSalesRepository(path string, log *zap.Logger) SalesRepository {
	return &salesRepository{
		path:     path,
		location: time.Local,
		logger:   logger.OrNop(log).With(zap.String("store", "sales")),
	}
}

// Load reads the sales file, skipping malformed lines
func (r *salesRepository) Load(ctx context.Context) (LoadReport, error) {
	var (
		report LoadReport
		sales  []domain.Sale
	)

	err := scanLines(ctx, r.path, func(lineNo int, line string) {
		sale, err := parseSaleLine(line, r.location)
		if err != nil {
			report.Skipped++
			skipLine(r.logger, r.path, lineNo, line, err)
			return
		}
		sales = append(sales, sale)
	})
	if err != nil {
		r.logger.Error("Failed to load sales", zap.String("file", r.path), zap.Error(err))
		return report, err
	}

	r.mu.Lock()
	r.sales = sales
	r.mu.Unlock()

	report.Loaded = len(sales)
	r.logger.Info("Loaded sales",
		zap.String("file", r.path),
		zap.Int("sales", report.Loaded),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}

// Record appends a sale to the ledger file and then to memory
func (r *salesRepository) Record(ctx context.Context, sale domain.Sale) (domain.Sale, error) {
	sale.Timestamp = sale.Timestamp.In(r.location).Truncate(time.Second)
	sale.Brand = strings.TrimSpace(sale.Brand)
	sale.Model = strings.TrimSpace(sale.Model)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := appendLine(r.path, formatSaleLine(sale)); err != nil {
		r.logger.Error("Failed to append sale", zap.String("file", r.path), zap.Error(err))
		return domain.Sale{}, &domain.PersistenceError{File: r.path, Err: err}
	}
	r.sales = append(r.sales, sale)

	r.logger.Debug("Recorded sale",
		zap.String("label", sale.Label()),
		zap.String("price", sale.Price.String()),
	)
	return sale, nil
}

// All returns a copy of the ledger in insertion order
func (r *salesRepository) All(ctx context.Context) []domain.Sale {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.sales)
}
