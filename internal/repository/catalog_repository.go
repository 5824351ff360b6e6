package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"showroom/internal/domain"
	"showroom/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AssetStore is the image storage the catalog delegates to. Images are
// fetched with Stage outside the catalog lock; committing, deleting and
// pruning happen under it so the catalog and the image directory never
// disagree about which files are referenced.
type AssetStore interface {
	Stage(ctx context.Context, source, brand, model string) (domain.StagedImage, error)
	Delete(ctx context.Context, rel string) error
	Prune(ctx context.Context, referenced []string) ([]string, error)
}

// ErrImageInUse is the cause of an image error when the managed name derived
// for an entry already belongs to a different entry.
var ErrImageInUse = errors.New("image name is used by another entry")

// UpdateParams holds the replacement values for an entry. An empty
// ImageSource keeps the current image.
type UpdateParams struct {
	Brand       string
	Model       string
	Price       decimal.Decimal
	Quantity    int
	ImageSource string
}

// AddResult is the entry as stored. ImageErr is set when an image was
// requested but could not be stored; the entry was added without one.
type AddResult struct {
	Entry    domain.Entry
	ImageErr error
}

// UpdateResult is the entry after an update. ImageErr is set when a new image
// was requested but could not be stored; the rest of the update still applied.
type UpdateResult struct {
	Entry    domain.Entry
	ImageErr error
}

// CatalogRepository defines the interface for catalog data access
type CatalogRepository interface {
	Load(ctx context.Context) (LoadReport, error)
	Add(ctx context.Context, entry domain.Entry) (domain.Entry, error)
	AddWithImage(ctx context.Context, entry domain.Entry, imageSource string) (AddResult, error)
	Update(ctx context.Context, key domain.Key, params UpdateParams) (UpdateResult, error)
	Remove(ctx context.Context, key domain.Key) (domain.Entry, error)
	Sell(ctx context.Context, key domain.Key) (domain.Entry, domain.Sale, error)
	Get(ctx context.Context, key domain.Key) (domain.Entry, error)
	Brands(ctx context.Context) []string
	ByBrand(ctx context.Context, brand string) []domain.Entry
	Snapshot(ctx context.Context) []domain.Entry
	StoreImage(ctx context.Context, source string, key domain.Key) (string, error)
	PruneImages(ctx context.Context) ([]string, error)
}

// CatalogOptions configures a file-backed catalog
type CatalogOptions struct {
	// Path of the catalog file
	Path string
	// ImagePrefix is the managed image prefix every stored image path must carry
	ImagePrefix string
	Assets      AssetStore
	Logger      *zap.Logger
	// Now stamps sale records; defaults to time.Now
	Now func() time.Time
}

type catalogRepository struct {
	mu          sync.RWMutex
	entries     []domain.Entry
	path        string
	imagePrefix string
	assets      AssetStore
	now         func() time.Time
	logger      *zap.Logger
}

// NewCatalogRepository creates a new instance of CatalogRepository backed by
// the file at opts.Path. Call Load before use.
func NewCatalogRepository(opts CatalogOptions) CatalogRepository {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &catalogRepository{
		path:        opts.Path,
		imagePrefix: strings.Trim(opts.ImagePrefix, "/"),
		assets:      opts.Assets,
		now:         now,
		logger:      logger.OrNop(opts.Logger).With(zap.String("store", "catalog")),
	}
}

// Load reads the catalog file, skipping malformed lines
func (r *catalogRepository) Load(ctx context.Context) (LoadReport, error) {
	var (
		report  LoadReport
		entries []domain.Entry
	)

	err := scanLines(ctx, r.path, func(lineNo int, line string) {
		entry, err := parseEntryLine(line)
		if err == nil {
			err = domain.ValidateEntry(entry)
		}
		if err == nil && indexOf(entries, entry.Key()) >= 0 {
			err = domain.ErrDuplicateKey
		}
		if err != nil {
			report.Skipped++
			skipLine(r.logger, r.path, lineNo, line, err)
			return
		}
		entries = append(entries, entry)
	})
	if err != nil {
		r.logger.Error("Failed to load catalog", zap.String("file", r.path), zap.Error(err))
		return report, err
	}

	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()

	report.Loaded = len(entries)
	r.logger.Info("Loaded catalog",
		zap.String("file", r.path),
		zap.Int("entries", report.Loaded),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}

// Add inserts a new entry and persists the catalog. A non-empty ImagePath
// must be a managed path no other entry uses.
func (r *catalogRepository) Add(ctx context.Context, entry domain.Entry) (domain.Entry, error) {
	entry.Brand = strings.TrimSpace(entry.Brand)
	entry.Model = strings.TrimSpace(entry.Model)
	entry.ImagePath = strings.TrimSpace(entry.ImagePath)

	if err := r.validate(entry); err != nil {
		return domain.Entry{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if indexOf(r.entries, entry.Key()) >= 0 {
		return domain.Entry{}, domain.NewDuplicateKeyError("add", entry.Key())
	}
	if j := imageOwner(r.entries, entry.ImagePath, -1); j >= 0 {
		return domain.Entry{}, domain.ValidationErrors{{
			Field:   "image_path",
			Value:   entry.ImagePath,
			Message: "is the image of " + r.entries[j].Key().String(),
		}}
	}

	next := append(slices.Clone(r.entries), entry)
	if err := r.persist(next); err != nil {
		return domain.Entry{}, err
	}
	r.entries = next

	r.logger.Debug("Added entry", zap.String("key", entry.Key().String()))
	return entry, nil
}

// AddWithImage adds entry with the image at imageSource. The image is fetched
// before the catalog is locked; the duplicate check, the rename into place
// and the catalog write then happen as one step. An image that cannot be
// stored does not prevent the add.
func (r *catalogRepository) AddWithImage(ctx context.Context, entry domain.Entry, imageSource string) (AddResult, error) {
	source := strings.TrimSpace(imageSource)
	if source == "" {
		added, err := r.Add(ctx, entry)
		return AddResult{Entry: added}, err
	}

	entry.Brand = strings.TrimSpace(entry.Brand)
	entry.Model = strings.TrimSpace(entry.Model)
	entry.ImagePath = ""
	if err := r.validate(entry); err != nil {
		return AddResult{}, err
	}

	// Skip the download for an add that is already known to fail
	if _, err := r.Get(ctx, entry.Key()); err == nil {
		return AddResult{}, domain.NewDuplicateKeyError("add", entry.Key())
	}

	staged, imageErr := r.stage(ctx, source, entry.Key())

	r.mu.Lock()
	defer r.mu.Unlock()

	if indexOf(r.entries, entry.Key()) >= 0 {
		discard(staged)
		return AddResult{}, domain.NewDuplicateKeyError("add", entry.Key())
	}

	if staged != nil {
		rel, err := r.commitImage(staged, source, -1)
		if err != nil {
			imageErr = err
		} else {
			entry.ImagePath = rel
		}
	}
	if imageErr != nil {
		r.logger.Warn("Failed to store image, adding entry without image",
			zap.String("key", entry.Key().String()),
			zap.Error(imageErr),
		)
	}

	next := append(slices.Clone(r.entries), entry)
	if err := r.persist(next); err != nil {
		r.deleteImage(ctx, r.entries, entry.ImagePath)
		return AddResult{}, err
	}
	r.entries = next

	r.logger.Debug("Added entry",
		zap.String("key", entry.Key().String()),
		zap.String("image", entry.ImagePath),
	)
	return AddResult{Entry: entry, ImageErr: imageErr}, nil
}

// Update replaces the fields of an existing entry. A new image is fetched
// before the catalog is locked and stored under the new key; when that fails
// the previous image is kept.
func (r *catalogRepository) Update(ctx context.Context, key domain.Key, params UpdateParams) (UpdateResult, error) {
	updated := domain.Entry{
		Brand:    strings.TrimSpace(params.Brand),
		Model:    strings.TrimSpace(params.Model),
		Price:    params.Price,
		Quantity: params.Quantity,
	}
	if err := domain.ValidateEntry(updated); err != nil {
		return UpdateResult{}, err
	}

	current, err := r.Get(ctx, key)
	if err != nil {
		return UpdateResult{}, domain.NewNotFoundError("update", key)
	}

	var (
		staged   domain.StagedImage
		imageErr error
	)
	source := strings.TrimSpace(params.ImageSource)
	if source != "" && source != current.ImagePath {
		staged, imageErr = r.stage(ctx, source, updated.Key())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := indexOf(r.entries, key)
	if idx < 0 {
		discard(staged)
		return UpdateResult{}, domain.NewNotFoundError("update", key)
	}
	if j := indexOf(r.entries, updated.Key()); j >= 0 && j != idx {
		discard(staged)
		return UpdateResult{}, domain.NewDuplicateKeyError("update", updated.Key())
	}

	// Re-read under the lock; the entry may have changed during the fetch
	current = r.entries[idx]
	updated.ImagePath = current.ImagePath

	var stored string
	if staged != nil {
		rel, err := r.commitImage(staged, source, idx)
		if err != nil {
			imageErr = err
		} else {
			stored = rel
			updated.ImagePath = rel
		}
	}
	if imageErr != nil {
		r.logger.Warn("Failed to update image, keeping previous image",
			zap.String("key", updated.Key().String()),
			zap.String("image", current.ImagePath),
			zap.Error(imageErr),
		)
	}

	next := slices.Clone(r.entries)
	next[idx] = updated
	if err := r.persist(next); err != nil {
		// The new file is unreferenced unless it overwrote the current image
		if stored != "" && !strings.EqualFold(stored, current.ImagePath) {
			r.deleteImage(ctx, r.entries, stored)
		}
		return UpdateResult{}, err
	}
	r.entries = next

	if stored != "" && !strings.EqualFold(stored, current.ImagePath) {
		r.deleteImage(ctx, next, current.ImagePath)
	}

	r.logger.Debug("Updated entry",
		zap.String("key", key.String()),
		zap.String("new_key", updated.Key().String()),
	)
	return UpdateResult{Entry: updated, ImageErr: imageErr}, nil
}

// Remove deletes an entry and, best effort, its image
func (r *catalogRepository) Remove(ctx context.Context, key domain.Key) (domain.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := indexOf(r.entries, key)
	if idx < 0 {
		return domain.Entry{}, domain.NewNotFoundError("remove", key)
	}
	removed := r.entries[idx]

	next := slices.Delete(slices.Clone(r.entries), idx, idx+1)
	if err := r.persist(next); err != nil {
		return domain.Entry{}, err
	}
	r.entries = next

	r.deleteImage(ctx, next, removed.ImagePath)

	r.logger.Debug("Removed entry", zap.String("key", removed.Key().String()))
	return removed, nil
}

// Sell takes one unit out of stock and returns the entry after the sale
// together with the sale record at the current price.
func (r *catalogRepository) Sell(ctx context.Context, key domain.Key) (domain.Entry, domain.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := indexOf(r.entries, key)
	if idx < 0 {
		return domain.Entry{}, domain.Sale{}, domain.NewNotFoundError("sell", key)
	}
	entry := r.entries[idx]
	if entry.Quantity <= 0 {
		return domain.Entry{}, domain.Sale{}, domain.NewOutOfStockError("sell", entry.Key())
	}
	entry.Quantity--

	next := slices.Clone(r.entries)
	next[idx] = entry
	if err := r.persist(next); err != nil {
		return domain.Entry{}, domain.Sale{}, err
	}
	r.entries = next

	return entry, domain.NewSale(entry, r.now()), nil
}

// Get returns the entry for key
func (r *catalogRepository) Get(ctx context.Context, key domain.Key) (domain.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := indexOf(r.entries, key)
	if idx < 0 {
		return domain.Entry{}, domain.NewNotFoundError("get", key)
	}
	return r.entries[idx], nil
}

// Brands returns the distinct brands, sorted
func (r *catalogRepository) Brands(ctx context.Context) []string {
	r.mu.RLock()
	seen := make(map[string]bool, len(r.entries))
	brands := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		if !seen[e.Brand] {
			seen[e.Brand] = true
			brands = append(brands, e.Brand)
		}
	}
	r.mu.RUnlock()

	sort.Strings(brands)
	return brands
}

// ByBrand returns the entries of a brand, matched ignoring case, sorted by model
func (r *catalogRepository) ByBrand(ctx context.Context, brand string) []domain.Entry {
	want := domain.Fold(strings.TrimSpace(brand))

	r.mu.RLock()
	var entries []domain.Entry
	for _, e := range r.entries {
		if domain.Fold(e.Brand) == want {
			entries = append(entries, e)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Model < entries[j].Model })
	return entries
}

// Snapshot returns a copy of all entries
func (r *catalogRepository) Snapshot(ctx context.Context) []domain.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.entries)
}

func (r *catalogRepository) validate(entry domain.Entry) error {
	if err := domain.ValidateEntry(entry); err != nil {
		return err
	}
	if entry.ImagePath != "" && !strings.HasPrefix(entry.ImagePath, r.imagePrefix+"/") {
		return domain.ValidationErrors{{
			Field:   "image_path",
			Value:   entry.ImagePath,
			Message: "must be a managed image path under " + r.imagePrefix,
		}}
	}
	return nil
}

// persist rewrites the whole catalog file. Callers hold the write lock and
// commit next to memory only when this succeeds.
func (r *catalogRepository) persist(next []domain.Entry) error {
	lines := make([]string, len(next))
	for i, e := range next {
		lines[i] = formatEntryLine(e)
	}

	if err := writeFileAtomic(r.path, lines); err != nil {
		r.logger.Error("Failed to save catalog", zap.String("file", r.path), zap.Error(err))
		return &domain.PersistenceError{File: r.path, Err: err}
	}
	return nil
}

// StoreImage stores an image under the name derived from key without
// attaching it to an entry. A name that belongs to an entry with a different
// key is refused.
func (r *catalogRepository) StoreImage(ctx context.Context, source string, key domain.Key) (string, error) {
	staged, err := r.stage(ctx, source, key)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.commitImage(staged, source, indexOf(r.entries, key))
}

// PruneImages deletes every stored image no entry refers to. Mutations wait
// until it finishes; reads do not.
func (r *catalogRepository) PruneImages(ctx context.Context) ([]string, error) {
	if r.assets == nil {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	referenced := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		if e.ImagePath != "" {
			referenced = append(referenced, e.ImagePath)
		}
	}
	return r.assets.Prune(ctx, referenced)
}

func (r *catalogRepository) stage(ctx context.Context, source string, key domain.Key) (domain.StagedImage, error) {
	if r.assets == nil {
		return nil, &domain.AssetError{Op: "store", Source: source, Err: domain.ErrAssetWrite, Cause: errors.New("no image store configured")}
	}
	return r.assets.Stage(ctx, source, key.Brand, key.Model)
}

// commitImage renames a staged image into place for the entry at idx, or for
// a new entry when idx is -1. Callers hold the write lock. A name that
// belongs to a different entry is refused and the staged file dropped.
func (r *catalogRepository) commitImage(staged domain.StagedImage, source string, idx int) (string, error) {
	rel := staged.Path()
	if j := imageOwner(r.entries, rel, idx); j >= 0 {
		staged.Discard()
		return "", &domain.AssetError{
			Op:     "store",
			Source: source,
			Err:    domain.ErrAssetWrite,
			Cause:  fmt.Errorf("%w: %s belongs to %s", ErrImageInUse, rel, r.entries[j].Key()),
		}
	}
	if err := staged.Commit(); err != nil {
		return "", err
	}
	return rel, nil
}

// deleteImage removes rel unless an entry in live still refers to it.
// Callers hold the write lock.
func (r *catalogRepository) deleteImage(ctx context.Context, live []domain.Entry, rel string) {
	if rel == "" || r.assets == nil {
		return
	}
	if j := imageOwner(live, rel, -1); j >= 0 {
		r.logger.Debug("Keeping shared image",
			zap.String("image", rel),
			zap.String("key", live[j].Key().String()),
		)
		return
	}
	if err := r.assets.Delete(ctx, rel); err != nil {
		r.logger.Warn("Failed to delete image", zap.String("image", rel), zap.Error(err))
	}
}

func discard(staged domain.StagedImage) {
	if staged != nil {
		staged.Discard()
	}
}

// imageOwner returns the index of the entry other than skip whose image is
// rel, ignoring case, or -1
func imageOwner(entries []domain.Entry, rel string, skip int) int {
	if rel == "" {
		return -1
	}
	for i, e := range entries {
		if i != skip && strings.EqualFold(e.ImagePath, rel) {
			return i
		}
	}
	return -1
}

func indexOf(entries []domain.Entry, key domain.Key) int {
	folded := key.Folded()
	for i, e := range entries {
		if e.Key().Folded() == folded {
			return i
		}
	}
	return -1
}
