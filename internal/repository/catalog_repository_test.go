package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"showroom/internal/assets"
	"showroom/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrefix = "data/images"

// mockAssetStore is a mock implementation of AssetStore for testing. Sources
// starting with "slow/" signal staging and then wait for release.
type mockAssetStore struct {
	mu        sync.Mutex
	storeErr  error
	committed []string
	discarded []string
	deleted   []string

	staging chan struct{}
	release chan struct{}
}

func (m *mockAssetStore) Stage(ctx context.Context, source, brand, model string) (domain.StagedImage, error) {
	if strings.HasPrefix(source, "slow/") {
		m.staging <- struct{}{}
		<-m.release
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeErr != nil {
		return nil, m.storeErr
	}
	return &mockStaged{store: m, rel: testPrefix + "/" + assets.FileName(source, brand, model)}, nil
}

func (m *mockAssetStore) Delete(ctx context.Context, rel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, rel)
	return nil
}

func (m *mockAssetStore) Prune(ctx context.Context, referenced []string) ([]string, error) {
	return nil, nil
}

type mockStaged struct {
	store *mockAssetStore
	rel   string
}

func (s *mockStaged) Path() string { return s.rel }

func (s *mockStaged) Commit() error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.store.committed = append(s.store.committed, s.rel)
	return nil
}

func (s *mockStaged) Discard() {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.store.discarded = append(s.store.discarded, s.rel)
}

var fixedNow = time.Date(2024, 3, 1, 10, 30, 15, 500, time.Local)

func newTestCatalog(t *testing.T, path string, store AssetStore) CatalogRepository {
	t.Helper()
	if path == "" {
		path = filepath.Join(t.TempDir(), "inventory.csv")
	}
	return NewCatalogRepository(CatalogOptions{
		Path:        path,
		ImagePrefix: testPrefix,
		Assets:      store,
		Now:         func() time.Time { return fixedNow },
	})
}

func entry(brand, model, price string, qty int, image string) domain.Entry {
	return domain.Entry{
		Brand:     brand,
		Model:     model,
		Price:     decimal.RequireFromString(price),
		Quantity:  qty,
		ImagePath: image,
	}
}

func TestCatalog_AddAndGetIgnoresCase(t *testing.T) {
	repo := newTestCatalog(t, "", &mockAssetStore{})
	ctx := context.Background()

	_, err := repo.Add(ctx, entry(" Toyota ", "Corolla", "20000", 5, ""))
	require.NoError(t, err)

	got, err := repo.Get(ctx, domain.NewKey("toyota", "COROLLA"))
	require.NoError(t, err)
	assert.Equal(t, "Toyota", got.Brand)
	assert.Equal(t, 5, got.Quantity)

	_, err = repo.Add(ctx, entry("TOYOTA", "corolla", "100", 1, ""))
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	var keyErr *domain.KeyError
	require.True(t, errors.As(err, &keyErr))
	assert.Equal(t, "add", keyErr.Op)

	assert.Len(t, repo.Snapshot(ctx), 1)
}

func TestCatalog_AddRejectsInvalidEntries(t *testing.T) {
	repo := newTestCatalog(t, "", &mockAssetStore{})
	ctx := context.Background()

	tests := map[string]domain.Entry{
		"zero price":       entry("Toyota", "Corolla", "0", 1, ""),
		"negative price":   entry("Toyota", "Corolla", "-5", 1, ""),
		"negative stock":   entry("Toyota", "Corolla", "100", -1, ""),
		"blank brand":      entry("   ", "Corolla", "100", 1, ""),
		"blank model":      entry("Toyota", "", "100", 1, ""),
		"comma in model":   entry("Toyota", "Corolla, GR", "100", 1, ""),
		"unmanaged image":  entry("Toyota", "Corolla", "100", 1, "/tmp/car.png"),
		"image bad prefix": entry("Toyota", "Corolla", "100", 1, "data/imagesX/car.png"),
	}

	for name, e := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := repo.Add(ctx, e)
			assert.ErrorIs(t, err, domain.ErrInvalidEntry)
		})
	}
	assert.Empty(t, repo.Snapshot(ctx))
}

func TestCatalog_SellTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.csv")
	repo := newTestCatalog(t, path, &mockAssetStore{})
	ctx := context.Background()

	_, err := repo.Add(ctx, entry("Toyota", "Corolla", "20000", 5, ""))
	require.NoError(t, err)

	var sales []domain.Sale
	for i := 0; i < 2; i++ {
		_, sale, err := repo.Sell(ctx, domain.NewKey("toyota", "corolla"))
		require.NoError(t, err)
		sales = append(sales, sale)
	}

	got, err := repo.Get(ctx, domain.NewKey("Toyota", "Corolla"))
	require.NoError(t, err)
	assert.Equal(t, 3, got.Quantity)

	require.Len(t, sales, 2)
	for _, s := range sales {
		assert.Equal(t, "20000.00", s.Price.StringFixed(2))
		assert.Equal(t, "Toyota Corolla", s.Label())
		assert.True(t, s.Timestamp.Equal(fixedNow.Truncate(time.Second)))
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Toyota,Corolla,20000.00,3,\n", string(data))
}

func TestCatalog_SellOutOfStock(t *testing.T) {
	repo := newTestCatalog(t, "", &mockAssetStore{})
	ctx := context.Background()

	_, err := repo.Add(ctx, entry("Toyota", "Corolla", "20000", 0, ""))
	require.NoError(t, err)

	_, _, err = repo.Sell(ctx, domain.NewKey("Toyota", "Corolla"))
	assert.ErrorIs(t, err, domain.ErrOutOfStock)

	got, err := repo.Get(ctx, domain.NewKey("Toyota", "Corolla"))
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)

	_, _, err = repo.Sell(ctx, domain.NewKey("Honda", "Civic"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCatalog_UpdateSwapsImage(t *testing.T) {
	store := &mockAssetStore{}
	repo := newTestCatalog(t, "", store)
	ctx := context.Background()

	_, err := repo.Add(ctx, entry("Toyota", "Corolla", "20000", 5, "data/images/Toyota_Corolla.png"))
	require.NoError(t, err)

	res, err := repo.Update(ctx, domain.NewKey("Toyota", "Corolla"), UpdateParams{
		Brand:       "Toyota",
		Model:       "Corolla Cross",
		Price:       decimal.RequireFromString("27500.50"),
		Quantity:    2,
		ImageSource: "/photos/cross.jpg",
	})
	require.NoError(t, err)
	assert.NoError(t, res.ImageErr)
	assert.Equal(t, "data/images/Toyota_Corolla_Cross.jpg", res.Entry.ImagePath)
	assert.Equal(t, []string{"data/images/Toyota_Corolla.png"}, store.deleted)

	_, err = repo.Get(ctx, domain.NewKey("Toyota", "Corolla"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := repo.Get(ctx, domain.NewKey("Toyota", "Corolla Cross"))
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("27500.50")))
	assert.Equal(t, 2, got.Quantity)
}

func TestCatalog_UpdateKeepsImageWhenStoreFails(t *testing.T) {
	store := &mockAssetStore{storeErr: &domain.AssetError{Op: "store", Source: "http://x", Err: domain.ErrAssetFetch}}
	repo := newTestCatalog(t, "", store)
	ctx := context.Background()

	_, err := repo.Add(ctx, entry("Toyota", "Corolla", "20000", 5, "data/images/Toyota_Corolla.png"))
	require.NoError(t, err)

	res, err := repo.Update(ctx, domain.NewKey("Toyota", "Corolla"), UpdateParams{
		Brand:       "Toyota",
		Model:       "Corolla",
		Price:       decimal.RequireFromString("19000"),
		Quantity:    5,
		ImageSource: "http://x/car.png",
	})
	require.NoError(t, err)
	assert.ErrorIs(t, res.ImageErr, domain.ErrAssetFetch)
	assert.Equal(t, "data/images/Toyota_Corolla.png", res.Entry.ImagePath)
	assert.True(t, res.Entry.Price.Equal(decimal.NewFromInt(19000)))
	assert.Empty(t, store.deleted)
}

func TestCatalog_UpdateCaseOnlyRenameKeepsImage(t *testing.T) {
	store := &mockAssetStore{}
	repo := newTestCatalog(t, "", store)
	ctx := context.Background()

	_, err := repo.Add(ctx, entry("Toyota", "Corolla", "20000", 5, "data/images/Toyota_Corolla.png"))
	require.NoError(t, err)

	res, err := repo.Update(ctx, domain.NewKey("Toyota", "Corolla"), UpdateParams{
		Brand:       "TOYOTA",
		Model:       "COROLLA",
		Price:       decimal.NewFromInt(20000),
		Quantity:    5,
		ImageSource: "/photos/new.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "data/images/TOYOTA_COROLLA.png", res.Entry.ImagePath)
	assert.Empty(t, store.deleted)
}

func TestCatalog_UpdateErrors(t *testing.T) {
	repo := newTestCatalog(t, "", &mockAssetStore{})
	ctx := context.Background()

	_, err := repo.Add(ctx, entry("Toyota", "Corolla", "20000", 5, ""))
	require.NoError(t, err)
	_, err = repo.Add(ctx, entry("Honda", "Civic", "22000", 1, ""))
	require.NoError(t, err)

	_, err = repo.Update(ctx, domain.NewKey("Kia", "Rio"), UpdateParams{Brand: "Kia", Model: "Rio", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.Update(ctx, domain.NewKey("Toyota", "Corolla"), UpdateParams{Brand: "honda", Model: "CIVIC", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	_, err = repo.Update(ctx, domain.NewKey("Toyota", "Corolla"), UpdateParams{Brand: "Toyota", Model: "Corolla", Price: decimal.Zero, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidEntry)

	got, err := repo.Get(ctx, domain.NewKey("Toyota", "Corolla"))
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(20000)))
}

func TestCatalog_RemoveDeletesImage(t *testing.T) {
	store := &mockAssetStore{}
	path := filepath.Join(t.TempDir(), "inventory.csv")
	repo := newTestCatalog(t, path, store)
	ctx := context.Background()

	_, err := repo.Add(ctx, entry("Toyota", "Corolla", "20000", 5, "data/images/Toyota_Corolla.png"))
	require.NoError(t, err)

	removed, err := repo.Remove(ctx, domain.NewKey("TOYOTA", "corolla"))
	require.NoError(t, err)
	assert.Equal(t, "Corolla", removed.Model)
	assert.Equal(t, []string{"data/images/Toyota_Corolla.png"}, store.deleted)

	_, err = repo.Remove(ctx, domain.NewKey("Toyota", "Corolla"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	reloaded := newTestCatalog(t, path, store)
	report, err := reloaded.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Loaded)
}

func TestCatalog_LoadSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.csv")
	content := strings.Join([]string{
		"Toyota,Corolla,20000.00,5,data/images/Toyota_Corolla.png",
		"not a catalog line",
		"Honda,Civic,cheap,1,",
		"Kia,Rio,9000,many,",
		"Ford,Focus,0,3,",
		"",
		"toyota,COROLLA,1.00,1,",
		"Audi,A4,30000,2,data/images/a,b.png",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	repo := newTestCatalog(t, path, &mockAssetStore{})
	report, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LoadReport{Loaded: 2, Skipped: 5}, report)

	audi, err := repo.Get(context.Background(), domain.NewKey("Audi", "A4"))
	require.NoError(t, err)
	assert.Equal(t, "data/images/a,b.png", audi.ImagePath)

	toyota, err := repo.Get(context.Background(), domain.NewKey("Toyota", "Corolla"))
	require.NoError(t, err)
	assert.Equal(t, 5, toyota.Quantity)
}

func TestCatalog_LoadMissingFileIsEmpty(t *testing.T) {
	repo := newTestCatalog(t, filepath.Join(t.TempDir(), "absent.csv"), &mockAssetStore{})
	report, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LoadReport{}, report)
	assert.Empty(t, repo.Snapshot(context.Background()))
}

func TestCatalog_PersistenceFailureLeavesMemoryUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.csv")
	require.NoError(t, os.WriteFile(path, []byte("Toyota,Corolla,20000.00,5,\n"), 0o644))

	repo := newTestCatalog(t, path, &mockAssetStore{})
	ctx := context.Background()
	_, err := repo.Load(ctx)
	require.NoError(t, err)

	// A directory in place of the catalog file makes every rewrite fail
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0o755))

	_, _, err = repo.Sell(ctx, domain.NewKey("Toyota", "Corolla"))
	assert.ErrorIs(t, err, domain.ErrPersistence)

	var persistErr *domain.PersistenceError
	require.True(t, errors.As(err, &persistErr))
	assert.Equal(t, path, persistErr.File)

	_, err = repo.Add(ctx, entry("Honda", "Civic", "22000", 1, ""))
	assert.ErrorIs(t, err, domain.ErrPersistence)

	snapshot := repo.Snapshot(ctx)
	require.Len(t, snapshot, 1)
	assert.Equal(t, 5, snapshot[0].Quantity)
}

func TestCatalog_BrandsAndByBrand(t *testing.T) {
	repo := newTestCatalog(t, "", &mockAssetStore{})
	ctx := context.Background()

	for _, e := range []domain.Entry{
		entry("Toyota", "Yaris", "15000", 1, ""),
		entry("Honda", "Civic", "22000", 1, ""),
		entry("Toyota", "Corolla", "20000", 1, ""),
		entry("BMW", "X5", "60000", 1, ""),
	} {
		_, err := repo.Add(ctx, e)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"BMW", "Honda", "Toyota"}, repo.Brands(ctx))

	toyotas := repo.ByBrand(ctx, "toyota")
	require.Len(t, toyotas, 2)
	assert.Equal(t, "Corolla", toyotas[0].Model)
	assert.Equal(t, "Yaris", toyotas[1].Model)

	assert.Empty(t, repo.ByBrand(ctx, "Kia"))
}

func TestCatalog_SnapshotIsACopy(t *testing.T) {
	repo := newTestCatalog(t, "", &mockAssetStore{})
	ctx := context.Background()

	_, err := repo.Add(ctx, entry("Toyota", "Corolla", "20000", 5, ""))
	require.NoError(t, err)

	snapshot := repo.Snapshot(ctx)
	snapshot[0].Quantity = 99

	got, err := repo.Get(ctx, domain.NewKey("Toyota", "Corolla"))
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)
}

func TestCatalog_AddWithImage(t *testing.T) {
	store := &mockAssetStore{}
	repo := newTestCatalog(t, "", store)
	ctx := context.Background()

	res, err := repo.AddWithImage(ctx, entry("Toyota", "Corolla", "20000", 5, ""), "/photos/corolla.jpg")
	require.NoError(t, err)
	assert.NoError(t, res.ImageErr)
	assert.Equal(t, "data/images/Toyota_Corolla.jpg", res.Entry.ImagePath)
	assert.Equal(t, []string{"data/images/Toyota_Corolla.jpg"}, store.committed)

	_, err = repo.AddWithImage(ctx, entry("toyota", "COROLLA", "1", 1, ""), "/photos/other.jpg")
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
	assert.Len(t, store.committed, 1)

	store.storeErr = &domain.AssetError{Op: "store", Source: "http://x", Err: domain.ErrAssetFetch}
	res, err = repo.AddWithImage(ctx, entry("Honda", "Civic", "22000", 1, ""), "http://x/civic.png")
	require.NoError(t, err)
	assert.ErrorIs(t, res.ImageErr, domain.ErrAssetFetch)
	assert.Empty(t, res.Entry.ImagePath)
}

func TestCatalog_ConcurrentAddsForOneKeyKeepWinnerImage(t *testing.T) {
	store := &mockAssetStore{staging: make(chan struct{}), release: make(chan struct{})}
	repo := newTestCatalog(t, "", store)
	ctx := context.Background()

	slowErr := make(chan error, 1)
	go func() {
		_, err := repo.AddWithImage(ctx, entry("Toyota", "Corolla", "19000", 1, ""), "slow/b.png")
		slowErr <- err
	}()
	<-store.staging

	res, err := repo.AddWithImage(ctx, entry("Toyota", "Corolla", "20000", 5, ""), "/photos/a.png")
	require.NoError(t, err)
	assert.Equal(t, "data/images/Toyota_Corolla.png", res.Entry.ImagePath)

	close(store.release)
	assert.ErrorIs(t, <-slowErr, domain.ErrDuplicateKey)

	assert.Equal(t, []string{"data/images/Toyota_Corolla.png"}, store.committed)
	assert.Equal(t, []string{"data/images/Toyota_Corolla.png"}, store.discarded)
	assert.Empty(t, store.deleted)

	got, err := repo.Get(ctx, domain.NewKey("Toyota", "Corolla"))
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)
	assert.Equal(t, "data/images/Toyota_Corolla.png", got.ImagePath)
}

func TestCatalog_ReadsDoNotWaitForImageFetch(t *testing.T) {
	store := &mockAssetStore{staging: make(chan struct{}), release: make(chan struct{})}
	repo := newTestCatalog(t, "", store)
	ctx := context.Background()

	_, err := repo.Add(ctx, entry("Toyota", "Corolla", "20000", 5, "data/images/Toyota_Corolla.png"))
	require.NoError(t, err)

	updated := make(chan UpdateResult, 1)
	go func() {
		res, err := repo.Update(ctx, domain.NewKey("Toyota", "Corolla"), UpdateParams{
			Brand:       "Toyota",
			Model:       "Corolla",
			Price:       decimal.NewFromInt(21000),
			Quantity:    5,
			ImageSource: "slow/new.jpg",
		})
		assert.NoError(t, err)
		updated <- res
	}()
	<-store.staging

	reads := make(chan struct{})
	go func() {
		defer close(reads)
		repo.Snapshot(ctx)
		repo.Brands(ctx)
		repo.ByBrand(ctx, "Toyota")
		_, _ = repo.Get(ctx, domain.NewKey("Toyota", "Corolla"))
	}()

	select {
	case <-reads:
	case <-time.After(2 * time.Second):
		t.Fatal("reads blocked while an image was being fetched")
	}

	// Other mutations still go through during the fetch
	_, _, err = repo.Sell(ctx, domain.NewKey("Toyota", "Corolla"))
	require.NoError(t, err)

	close(store.release)
	res := <-updated
	assert.Equal(t, "data/images/Toyota_Corolla.jpg", res.Entry.ImagePath)
	assert.Equal(t, []string{"data/images/Toyota_Corolla.png"}, store.deleted)
}

func TestCatalog_UpdateOfRemovedEntryDiscardsImage(t *testing.T) {
	store := &mockAssetStore{staging: make(chan struct{}), release: make(chan struct{})}
	repo := newTestCatalog(t, "", store)
	ctx := context.Background()

	_, err := repo.Add(ctx, entry("Toyota", "Corolla", "20000", 5, ""))
	require.NoError(t, err)

	updateErr := make(chan error, 1)
	go func() {
		_, err := repo.Update(ctx, domain.NewKey("Toyota", "Corolla"), UpdateParams{
			Brand:       "Toyota",
			Model:       "Corolla",
			Price:       decimal.NewFromInt(20000),
			Quantity:    5,
			ImageSource: "slow/new.png",
		})
		updateErr <- err
	}()
	<-store.staging

	_, err = repo.Remove(ctx, domain.NewKey("Toyota", "Corolla"))
	require.NoError(t, err)

	close(store.release)
	assert.ErrorIs(t, <-updateErr, domain.ErrNotFound)
	assert.Empty(t, store.committed)
	assert.Equal(t, []string{"data/images/Toyota_Corolla.png"}, store.discarded)
	assert.Empty(t, repo.Snapshot(ctx))
}

func TestCatalog_ImageNamesAreNotShared(t *testing.T) {
	store := &mockAssetStore{}
	repo := newTestCatalog(t, "", store)
	ctx := context.Background()

	_, err := repo.AddWithImage(ctx, entry("Toyota", "Corolla", "20000", 5, ""), "/photos/a.png")
	require.NoError(t, err)

	// "Corolla!" maps to the same file name as "Corolla"
	res, err := repo.AddWithImage(ctx, entry("Toyota", "Corolla!", "21000", 1, ""), "/photos/b.png")
	require.NoError(t, err)
	assert.ErrorIs(t, res.ImageErr, ErrImageInUse)
	assert.ErrorIs(t, res.ImageErr, domain.ErrAssetWrite)
	assert.Empty(t, res.Entry.ImagePath)
	assert.Equal(t, []string{"data/images/Toyota_Corolla.png"}, store.discarded)

	upd, err := repo.Update(ctx, domain.NewKey("Toyota", "Corolla!"), UpdateParams{
		Brand:       "Toyota",
		Model:       "Corolla!",
		Price:       decimal.NewFromInt(21000),
		Quantity:    1,
		ImageSource: "/photos/c.png",
	})
	require.NoError(t, err)
	assert.ErrorIs(t, upd.ImageErr, ErrImageInUse)
	assert.Empty(t, upd.Entry.ImagePath)

	_, err = repo.Add(ctx, entry("Kia", "Rio", "9000", 1, "data/images/Toyota_Corolla.png"))
	assert.ErrorIs(t, err, domain.ErrInvalidEntry)

	_, err = repo.Remove(ctx, domain.NewKey("Toyota", "Corolla!"))
	require.NoError(t, err)
	assert.Empty(t, store.deleted)
	assert.Equal(t, []string{"data/images/Toyota_Corolla.png"}, store.committed)
}

func TestCatalog_RemoveKeepsImageSharedInFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.csv")
	content := "Toyota,Corolla,20000.00,5,data/images/shared.png\nToyota,Corolla GR,30000.00,1,data/images/shared.png\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	store := &mockAssetStore{}
	repo := newTestCatalog(t, path, store)
	ctx := context.Background()
	_, err := repo.Load(ctx)
	require.NoError(t, err)

	_, err = repo.Remove(ctx, domain.NewKey("Toyota", "Corolla GR"))
	require.NoError(t, err)
	assert.Empty(t, store.deleted)

	_, err = repo.Remove(ctx, domain.NewKey("Toyota", "Corolla"))
	require.NoError(t, err)
	assert.Equal(t, []string{"data/images/shared.png"}, store.deleted)
}

// assertSameEntries compares entries by value; decimals compare numerically
func assertSameEntries(t *testing.T, want, got []domain.Entry) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Brand, got[i].Brand)
		assert.Equal(t, want[i].Model, got[i].Model)
		assert.True(t, want[i].Price.Equal(got[i].Price), "price of %s: %s != %s", want[i].Key(), want[i].Price, got[i].Price)
		assert.Equal(t, want[i].Quantity, got[i].Quantity, want[i].Key().String())
		assert.Equal(t, want[i].ImagePath, got[i].ImagePath)
	}
}

func TestCatalog_ConcurrentSellsAndReads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.csv")
	repo := newTestCatalog(t, path, &mockAssetStore{})
	ctx := context.Background()

	const stock, buyers = 25, 60
	_, err := repo.Add(ctx, entry("Toyota", "Corolla", "20000", stock, ""))
	require.NoError(t, err)
	_, err = repo.Add(ctx, entry("Honda", "Civic", "22000", 3, ""))
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		sold atomic.Int64
	)
	for i := 0; i < buyers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, err := repo.Sell(ctx, domain.NewKey("toyota", "corolla"))
			switch {
			case err == nil:
				sold.Add(1)
			case !errors.Is(err, domain.ErrOutOfStock):
				t.Errorf("unexpected sell error: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			for _, e := range repo.Snapshot(ctx) {
				if e.Quantity < 0 {
					t.Errorf("negative stock for %s", e.Key())
				}
			}
			repo.Brands(ctx)
			_, _ = repo.Get(ctx, domain.NewKey("Honda", "Civic"))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(stock), sold.Load())
	got, err := repo.Get(ctx, domain.NewKey("Toyota", "Corolla"))
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)

	reloaded := newTestCatalog(t, path, &mockAssetStore{})
	_, err = reloaded.Load(ctx)
	require.NoError(t, err)
	assertSameEntries(t, repo.Snapshot(ctx), reloaded.Snapshot(ctx))
}

func TestCatalog_ConcurrentUpdatesRemovesAndSells(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.csv")
	store := &mockAssetStore{}
	repo := newTestCatalog(t, path, store)
	ctx := context.Background()

	const n = 20
	for i := 0; i < n; i++ {
		_, err := repo.Add(ctx, entry("Brand", fmt.Sprintf("Model%02d", i), "1000", 10, ""))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		key := domain.NewKey("Brand", fmt.Sprintf("Model%02d", i))
		if i%2 == 0 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Remove(ctx, key)
				assert.NoError(t, err)
			}()
			continue
		}

		wg.Add(4)
		go func() {
			defer wg.Done()
			_, err := repo.Update(ctx, key, UpdateParams{
				Brand:       key.Brand,
				Model:       key.Model,
				Price:       decimal.NewFromInt(2000),
				Quantity:    10,
				ImageSource: "/photos/" + key.Model + ".png",
			})
			assert.NoError(t, err)
		}()
		for j := 0; j < 3; j++ {
			go func() {
				defer wg.Done()
				_, _, err := repo.Sell(ctx, key)
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	snapshot := repo.Snapshot(ctx)
	require.Len(t, snapshot, n/2)
	for _, e := range snapshot {
		assert.True(t, e.Price.Equal(decimal.NewFromInt(2000)), e.Key().String())
		assert.Equal(t, testPrefix+"/Brand_"+e.Model+".png", e.ImagePath)
		// The update sets 10 and the three sells each take one, in any order
		assert.GreaterOrEqual(t, e.Quantity, 7)
		assert.LessOrEqual(t, e.Quantity, 10)
	}
	assert.Len(t, store.committed, n/2)
	assert.Empty(t, store.deleted)

	reloaded := newTestCatalog(t, path, &mockAssetStore{})
	_, err := reloaded.Load(ctx)
	require.NoError(t, err)
	assertSameEntries(t, snapshot, reloaded.Snapshot(ctx))
}

func TestCatalog_StoreImage(t *testing.T) {
	store := &mockAssetStore{}
	repo := newTestCatalog(t, "", store)
	ctx := context.Background()

	_, err := repo.AddWithImage(ctx, entry("Toyota", "Corolla", "20000", 5, ""), "/photos/a.png")
	require.NoError(t, err)

	// Refreshing an entry's own image is allowed
	rel, err := repo.StoreImage(ctx, "/photos/b.png", domain.NewKey("toyota", "corolla"))
	require.NoError(t, err)
	assert.Equal(t, "data/images/toyota_corolla.png", rel)

	_, err = repo.StoreImage(ctx, "/photos/c.png", domain.NewKey("Toyota", "Corolla!"))
	assert.ErrorIs(t, err, ErrImageInUse)

	rel, err = repo.StoreImage(ctx, "/photos/d.gif", domain.NewKey("Honda", "Civic"))
	require.NoError(t, err)
	assert.Equal(t, "data/images/Honda_Civic.gif", rel)
	assert.Len(t, store.committed, 3)
}
