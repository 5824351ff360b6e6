package service

import (
	"context"
	"errors"
	"time"

	"showroom/internal/domain"
	"showroom/internal/logger"
	"showroom/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WithLogging wraps a Showroom so every mutation is logged with its duration
// and outcome. Queries are logged at debug level.
func WithLogging(next Showroom, log *zap.Logger) Showroom {
	return &loggingShowroom{next: next, logger: logger.OrNop(log)}
}

type loggingShowroom struct {
	next   Showroom
	logger *zap.Logger
}

// done logs the outcome of a mutation. Expected domain conditions are logged
// at info, asset problems at warn and everything else at error.
func (l *loggingShowroom) done(op string, start time.Time, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("op", op),
		zap.Duration("duration", time.Since(start)),
	)

	switch {
	case err == nil:
		l.logger.Info("Operation completed", fields...)
	case domain.IsDomainError(err):
		l.logger.Info("Operation rejected", append(fields, zap.Error(err))...)
	case errors.Is(err, domain.ErrAssetFetch), errors.Is(err, domain.ErrAssetWrite), errors.Is(err, domain.ErrAssetDelete):
		l.logger.Warn("Operation failed", append(fields, zap.Error(err))...)
	default:
		l.logger.Error("Operation failed", append(fields, zap.Error(err))...)
	}
}

func (l *loggingShowroom) query(op string, start time.Time, fields ...zap.Field) {
	l.logger.Debug("Query completed", append(fields,
		zap.String("op", op),
		zap.Duration("duration", time.Since(start)),
	)...)
}

func (l *loggingShowroom) AddEntry(ctx context.Context, entry NewEntry) (AddResult, error) {
	start := time.Now()
	res, err := l.next.AddEntry(ctx, entry)
	fields := []zap.Field{zap.String("brand", entry.Brand), zap.String("model", entry.Model)}
	if res.ImageErr != nil {
		fields = append(fields, zap.NamedError("image_error", res.ImageErr))
	}
	l.done("add", start, err, fields...)
	return res, err
}

func (l *loggingShowroom) UpdateEntry(ctx context.Context, key domain.Key, params repository.UpdateParams) (repository.UpdateResult, error) {
	start := time.Now()
	res, err := l.next.UpdateEntry(ctx, key, params)
	fields := []zap.Field{zap.String("key", key.String())}
	if res.ImageErr != nil {
		fields = append(fields, zap.NamedError("image_error", res.ImageErr))
	}
	l.done("update", start, err, fields...)
	return res, err
}

func (l *loggingShowroom) RemoveEntry(ctx context.Context, key domain.Key) (domain.Entry, error) {
	start := time.Now()
	removed, err := l.next.RemoveEntry(ctx, key)
	l.done("remove", start, err, zap.String("key", key.String()))
	return removed, err
}

func (l *loggingShowroom) Sell(ctx context.Context, key domain.Key) (domain.Entry, domain.Sale, error) {
	start := time.Now()
	entry, sale, err := l.next.Sell(ctx, key)
	l.done("sell", start, err,
		zap.String("key", key.String()),
		zap.Int("remaining", entry.Quantity),
	)
	return entry, sale, err
}

func (l *loggingShowroom) GetEntry(ctx context.Context, brand, model string) (domain.Entry, error) {
	start := time.Now()
	entry, err := l.next.GetEntry(ctx, brand, model)
	l.query("get", start, zap.String("brand", brand), zap.String("model", model), zap.Bool("found", err == nil))
	return entry, err
}

func (l *loggingShowroom) AllBrands(ctx context.Context) []string {
	start := time.Now()
	brands := l.next.AllBrands(ctx)
	l.query("brands", start, zap.Int("count", len(brands)))
	return brands
}

func (l *loggingShowroom) EntriesForBrand(ctx context.Context, brand string) []domain.Entry {
	start := time.Now()
	entries := l.next.EntriesForBrand(ctx, brand)
	l.query("entries_for_brand", start, zap.String("brand", brand), zap.Int("count", len(entries)))
	return entries
}

func (l *loggingShowroom) AllEntries(ctx context.Context) []domain.Entry {
	start := time.Now()
	entries := l.next.AllEntries(ctx)
	l.query("all_entries", start, zap.Int("count", len(entries)))
	return entries
}

func (l *loggingShowroom) Filter(ctx context.Context, params FilterParams) []domain.Entry {
	start := time.Now()
	entries := l.next.Filter(ctx, params)
	l.query("filter", start, zap.String("text", params.Text), zap.Int("count", len(entries)))
	return entries
}

func (l *loggingShowroom) AllSales(ctx context.Context) []domain.Sale {
	start := time.Now()
	sales := l.next.AllSales(ctx)
	l.query("all_sales", start, zap.Int("count", len(sales)))
	return sales
}

func (l *loggingShowroom) RecentSales(ctx context.Context) []domain.Sale {
	start := time.Now()
	sales := l.next.RecentSales(ctx)
	l.query("recent_sales", start, zap.Int("count", len(sales)))
	return sales
}

func (l *loggingShowroom) TotalInventoryValue(ctx context.Context) decimal.Decimal {
	start := time.Now()
	v := l.next.TotalInventoryValue(ctx)
	l.query("inventory_value", start, zap.String("value", v.String()))
	return v
}

func (l *loggingShowroom) TotalRevenue(ctx context.Context) decimal.Decimal {
	start := time.Now()
	v := l.next.TotalRevenue(ctx)
	l.query("revenue", start, zap.String("value", v.String()))
	return v
}

func (l *loggingShowroom) BestSellingModel(ctx context.Context) string {
	start := time.Now()
	best := l.next.BestSellingModel(ctx)
	l.query("best_seller", start, zap.String("best_seller", best))
	return best
}

func (l *loggingShowroom) Summary(ctx context.Context) Summary {
	start := time.Now()
	summary := l.next.Summary(ctx)
	l.query("summary", start, zap.Int("sales", summary.SalesCount))
	return summary
}

func (l *loggingShowroom) StoreImage(ctx context.Context, source, brand, model string) (string, error) {
	start := time.Now()
	rel, err := l.next.StoreImage(ctx, source, brand, model)
	l.done("store_image", start, err, zap.String("source", source), zap.String("path", rel))
	return rel, err
}

func (l *loggingShowroom) ImagePath(rel string) (string, error) {
	start := time.Now()
	p, err := l.next.ImagePath(rel)
	l.query("image_path", start, zap.String("path", rel), zap.Bool("resolved", err == nil))
	return p, err
}

func (l *loggingShowroom) PruneImages(ctx context.Context) ([]string, error) {
	start := time.Now()
	removed, err := l.next.PruneImages(ctx)
	l.done("prune_images", start, err, zap.Int("removed", len(removed)))
	return removed, err
}
