package service

import (
	"context"
	"fmt"

	"showroom/internal/domain"
	"showroom/internal/logger"
	"showroom/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ImageStore is the managed image storage behind the showroom
type ImageStore interface {
	repository.AssetStore
	Resolve(rel string) (string, error)
}

// NewEntry is a catalog entry to add. ImageSource is a local path or an
// http(s) URL and may be empty.
type NewEntry struct {
	Brand       string
	Model       string
	Price       decimal.Decimal
	Quantity    int
	ImageSource string
}

// AddResult is the entry as stored. ImageErr is set when the image could not
// be stored and the entry was added without one.
type AddResult struct {
	Entry    domain.Entry
	ImageErr error
}

// Showroom defines the public operations over catalog, ledger and images
type Showroom interface {
	AddEntry(ctx context.Context, entry NewEntry) (AddResult, error)
	UpdateEntry(ctx context.Context, key domain.Key, params repository.UpdateParams) (repository.UpdateResult, error)
	RemoveEntry(ctx context.Context, key domain.Key) (domain.Entry, error)
	Sell(ctx context.Context, key domain.Key) (domain.Entry, domain.Sale, error)

	GetEntry(ctx context.Context, brand, model string) (domain.Entry, error)
	AllBrands(ctx context.Context) []string
	EntriesForBrand(ctx context.Context, brand string) []domain.Entry
	AllEntries(ctx context.Context) []domain.Entry
	Filter(ctx context.Context, params FilterParams) []domain.Entry

	AllSales(ctx context.Context) []domain.Sale
	RecentSales(ctx context.Context) []domain.Sale
	TotalInventoryValue(ctx context.Context) decimal.Decimal
	TotalRevenue(ctx context.Context) decimal.Decimal
	BestSellingModel(ctx context.Context) string
	Summary(ctx context.Context) Summary

	StoreImage(ctx context.Context, source, brand, model string) (string, error)
	ImagePath(rel string) (string, error)
	PruneImages(ctx context.Context) ([]string, error)
}

type showroom struct {
	catalog repository.CatalogRepository
	sales   repository.SalesRepository
	images  ImageStore
	query   QueryEngine
	logger  *zap.Logger
}

// NewShowroom creates a new instance of Showroom
func NewShowroom(
	catalog repository.CatalogRepository,
	sales repository.SalesRepository,
	images ImageStore,
	log *zap.Logger,
) Showroom {
	return &showroom{
		catalog: catalog,
		sales:   sales,
		images:  images,
		query:   NewQueryEngine(),
		logger:  logger.OrNop(log),
	}
}

// AddEntry adds the entry with its image, if any. An image that cannot be
// stored does not prevent the add.
func (s *showroom) AddEntry(ctx context.Context, in NewEntry) (AddResult, error) {
	entry := domain.Entry{
		Brand:    in.Brand,
		Model:    in.Model,
		Price:    in.Price,
		Quantity: in.Quantity,
	}

	res, err := s.catalog.AddWithImage(ctx, entry, in.ImageSource)
	if err != nil {
		return AddResult{}, err
	}
	return AddResult{Entry: res.Entry, ImageErr: res.ImageErr}, nil
}

func (s *showroom) UpdateEntry(ctx context.Context, key domain.Key, params repository.UpdateParams) (repository.UpdateResult, error) {
	return s.catalog.Update(ctx, key, params)
}

func (s *showroom) RemoveEntry(ctx context.Context, key domain.Key) (domain.Entry, error) {
	return s.catalog.Remove(ctx, key)
}

// Sell decrements stock and records the sale. When the ledger cannot be
// written the decrement stands and the persistence error is returned along
// with the post-sale entry.
func (s *showroom) Sell(ctx context.Context, key domain.Key) (domain.Entry, domain.Sale, error) {
	entry, sale, err := s.catalog.Sell(ctx, key)
	if err != nil {
		return domain.Entry{}, domain.Sale{}, err
	}

	recorded, err := s.sales.Record(ctx, sale)
	if err != nil {
		s.logger.Error("Sale not recorded in ledger",
			zap.String("key", entry.Key().String()),
			zap.String("price", sale.Price.String()),
			zap.Error(err),
		)
		return entry, sale, fmt.Errorf("failed to record sale: %w", err)
	}
	return entry, recorded, nil
}

func (s *showroom) GetEntry(ctx context.Context, brand, model string) (domain.Entry, error) {
	return s.catalog.Get(ctx, domain.NewKey(brand, model))
}

func (s *showroom) AllBrands(ctx context.Context) []string {
	return s.catalog.Brands(ctx)
}

func (s *showroom) EntriesForBrand(ctx context.Context, brand string) []domain.Entry {
	return s.catalog.ByBrand(ctx, brand)
}

// AllEntries returns every entry sorted by brand then model
func (s *showroom) AllEntries(ctx context.Context) []domain.Entry {
	entries := s.catalog.Snapshot(ctx)
	sortEntries(entries)
	return entries
}

func (s *showroom) Filter(ctx context.Context, params FilterParams) []domain.Entry {
	return s.query.Filter(s.catalog.Snapshot(ctx), params)
}

func (s *showroom) AllSales(ctx context.Context) []domain.Sale {
	return s.sales.All(ctx)
}

func (s *showroom) RecentSales(ctx context.Context) []domain.Sale {
	return s.query.RecentSales(s.sales.All(ctx))
}

func (s *showroom) TotalInventoryValue(ctx context.Context) decimal.Decimal {
	return s.query.TotalInventoryValue(s.catalog.Snapshot(ctx))
}

func (s *showroom) TotalRevenue(ctx context.Context) decimal.Decimal {
	return s.query.TotalRevenue(s.sales.All(ctx))
}

func (s *showroom) BestSellingModel(ctx context.Context) string {
	return s.query.BestSellingModel(s.sales.All(ctx))
}

func (s *showroom) Summary(ctx context.Context) Summary {
	return s.query.Summarize(s.catalog.Snapshot(ctx), s.sales.All(ctx))
}

// StoreImage stores an image without attaching it to an entry
func (s *showroom) StoreImage(ctx context.Context, source, brand, model string) (string, error) {
	return s.catalog.StoreImage(ctx, source, domain.NewKey(brand, model))
}

// ImagePath resolves a managed image path to its file
func (s *showroom) ImagePath(rel string) (string, error) {
	return s.images.Resolve(rel)
}

// PruneImages deletes managed images no entry refers to
func (s *showroom) PruneImages(ctx context.Context) ([]string, error) {
	return s.catalog.PruneImages(ctx)
}
