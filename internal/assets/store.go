// Package assets stores catalog images on the local filesystem.
//
// Images are named after the catalog key they belong to, so storing a new
// image for an unchanged key overwrites the previous file in place. Writes go
// to a temporary file in the image root and are renamed over the destination
// only once the whole payload has been received.
package assets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"showroom/internal/domain"
	"showroom/internal/logger"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"go.uber.org/zap"
)

const (
	tmpPrefix = ".tmp-"

	// sniffLen is enough of the header for filetype matching
	sniffLen = 261
)

// Options configures a FileStore
type Options struct {
	// Root is the directory holding managed images
	Root string
	// Prefix is the forward-slash path recorded in catalog entries, e.g. "data/images"
	Prefix string

	HTTPClient *http.Client
	Timeout    time.Duration
	Retries    uint
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// FileStore implements image storage on the local filesystem
type FileStore struct {
	root       string
	prefix     string
	client     *http.Client
	timeout    time.Duration
	retries    uint
	retryDelay time.Duration
	logger     *zap.Logger
}

// New returns a filesystem-backed image store rooted at opts.Root, creating it if needed.
func New(opts Options) (*FileStore, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("image root is required")
	}
	if err := os.MkdirAll(opts.Root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image root: %w", err)
	}

	prefix := strings.Trim(filepath.ToSlash(opts.Prefix), "/")
	if prefix == "" {
		prefix = filepath.Base(opts.Root)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	retries := opts.Retries
	if retries == 0 {
		retries = 1
	}

	return &FileStore{
		root:       opts.Root,
		prefix:     prefix,
		client:     client,
		timeout:    opts.Timeout,
		retries:    retries,
		retryDelay: opts.RetryDelay,
		logger:     logger.OrNop(opts.Logger),
	}, nil
}

// Prefix returns the path prefix of every managed image
func (s *FileStore) Prefix() string {
	return s.prefix
}

// Store copies or downloads the image at source into the managed root under a
// name derived from brand and model, and returns its managed relative path.
// An existing image for the same name is replaced only when the new one has
// been fully written.
func (s *FileStore) Store(ctx context.Context, source, brand, model string) (string, error) {
	staged, err := s.Stage(ctx, source, brand, model)
	if err != nil {
		return "", err
	}
	if err := staged.Commit(); err != nil {
		return "", err
	}
	return staged.Path(), nil
}

// Stage fetches the image at source into a temporary file in the image root.
// Nothing under the managed name changes until the returned image is
// committed, so callers can fetch without holding locks and commit later.
func (s *FileStore) Stage(ctx context.Context, source, brand, model string) (domain.StagedImage, error) {
	if strings.TrimSpace(source) == "" {
		return nil, &domain.AssetError{Op: "store", Source: source, Err: domain.ErrAssetFetch, Cause: errEmptySource}
	}

	name := FileName(source, brand, model)
	log := s.logger.With(zap.String("source", source), zap.String("file", name))

	if isRemote(source) && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	src, err := s.open(ctx, source)
	if err != nil {
		log.Warn("Failed to open image source", zap.Error(err))
		return nil, &domain.AssetError{Op: "store", Source: source, Err: domain.ErrAssetFetch, Cause: err}
	}
	defer src.Close()

	tmp, err := s.writeTemp(src)
	if err != nil {
		log.Warn("Failed to store image", zap.Error(err))
		return nil, &domain.AssetError{Op: "store", Source: source, Err: assetErrKind(err), Cause: err}
	}

	log.Debug("Staged image", zap.String("tmp", filepath.Base(tmp)))
	return &stagedImage{store: s, source: source, name: name, tmp: tmp}, nil
}

// stagedImage is a fully written temporary file waiting to be renamed over
// its managed name
type stagedImage struct {
	store  *FileStore
	source string
	name   string

	mu  sync.Mutex
	tmp string
}

func (si *stagedImage) Path() string {
	return si.store.prefix + "/" + si.name
}

// Commit renames the staged file into place
func (si *stagedImage) Commit() error {
	si.mu.Lock()
	defer si.mu.Unlock()

	if si.tmp == "" {
		return &domain.AssetError{Op: "store", Source: si.source, Err: domain.ErrAssetWrite, Cause: errNotStaged}
	}
	tmp := si.tmp
	si.tmp = ""

	if err := os.Rename(tmp, filepath.Join(si.store.root, si.name)); err != nil {
		_ = os.Remove(tmp)
		si.store.logger.Warn("Failed to commit image", zap.String("file", si.name), zap.Error(err))
		return &domain.AssetError{Op: "store", Source: si.source, Err: domain.ErrAssetWrite, Cause: err}
	}

	si.store.logger.Debug("Stored image", zap.String("source", si.source), zap.String("path", si.Path()))
	return nil
}

// Discard removes the staged file. It is a no-op after Commit.
func (si *stagedImage) Discard() {
	si.mu.Lock()
	defer si.mu.Unlock()

	if si.tmp == "" {
		return
	}
	if err := os.Remove(si.tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		si.store.logger.Warn("Failed to discard staged image", zap.String("tmp", si.tmp), zap.Error(err))
	}
	si.tmp = ""
}

// writeError marks failures on the destination side of a copy
type writeError struct {
	err error
}

func (e *writeError) Error() string { return e.err.Error() }
func (e *writeError) Unwrap() error { return e.err }

func assetErrKind(err error) error {
	var we *writeError
	if errors.As(err, &we) {
		return domain.ErrAssetWrite
	}
	return domain.ErrAssetFetch
}

// writeTemp copies src into a new synced temporary file in the root and
// returns its path. The file is removed again on any failure.
func (s *FileStore) writeTemp(src io.Reader) (string, error) {
	sr := &sourceReader{r: src}
	br := bufio.NewReaderSize(sr, 32*1024)

	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", err
	}
	if !filetype.IsImage(head) {
		return "", errNotImage
	}

	tmp, err := os.OpenFile(filepath.Join(s.root, tmpPrefix+uuid.NewString()), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", &writeError{err: err}
	}

	fail := func(err error) (string, error) {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}

	if _, err := io.Copy(tmp, br); err != nil {
		if sr.err != nil {
			return fail(sr.err)
		}
		return fail(&writeError{err: err})
	}
	if err := tmp.Sync(); err != nil {
		return fail(&writeError{err: err})
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", &writeError{err: err}
	}
	return tmp.Name(), nil
}

// fileFor maps a managed relative path to its file inside the root. Only
// flat names directly under the prefix are accepted.
func (s *FileStore) fileFor(rel string) (string, error) {
	rel = filepath.ToSlash(strings.TrimSpace(rel))
	name, ok := strings.CutPrefix(rel, s.prefix+"/")
	if !ok {
		return "", fmt.Errorf("path %q is not under %s", rel, s.prefix)
	}
	if name == "" || name == "." || name == ".." || path.Base(name) != name || strings.HasPrefix(name, tmpPrefix) {
		return "", fmt.Errorf("invalid image name %q", name)
	}
	return filepath.Join(s.root, name), nil
}

// Resolve returns the filesystem path of a managed relative path
func (s *FileStore) Resolve(rel string) (string, error) {
	p, err := s.fileFor(rel)
	if err != nil {
		return "", fmt.Errorf("failed to resolve image path: %w", err)
	}
	return p, nil
}

// Delete removes a managed image. An empty path or a missing file is not an error.
func (s *FileStore) Delete(ctx context.Context, rel string) error {
	if strings.TrimSpace(rel) == "" {
		return nil
	}

	p, err := s.fileFor(rel)
	if err != nil {
		return &domain.AssetError{Op: "delete", Source: rel, Err: domain.ErrAssetDelete, Cause: err}
	}

	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("Image already absent", zap.String("path", rel))
			return nil
		}
		return &domain.AssetError{Op: "delete", Source: rel, Err: domain.ErrAssetDelete, Cause: err}
	}

	s.logger.Debug("Deleted image", zap.String("path", rel))
	return nil
}

// List returns the managed relative paths of all stored images, sorted
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), tmpPrefix) {
			continue
		}
		paths = append(paths, s.prefix+"/"+e.Name())
	}
	sort.Strings(paths)
	return paths, nil
}

// Prune deletes every managed image not named in referenced and returns the
// removed paths. Deletion failures are logged and skipped.
func (s *FileStore) Prune(ctx context.Context, referenced []string) ([]string, error) {
	keep := make(map[string]bool, len(referenced))
	for _, r := range referenced {
		keep[filepath.ToSlash(strings.TrimSpace(r))] = true
	}

	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, p := range all {
		if keep[p] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := s.Delete(ctx, p); err != nil {
			s.logger.Warn("Failed to prune image", zap.String("path", p), zap.Error(err))
			continue
		}
		removed = append(removed, p)
	}

	if len(removed) > 0 {
		s.logger.Info("Pruned unreferenced images", zap.Int("count", len(removed)))
	}
	return removed, nil
}
