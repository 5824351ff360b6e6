package repository

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LoadReport summarises a startup load
type LoadReport struct {
	Loaded  int
	Skipped int
}

const maxLineLength = 1024 * 1024

// scanLines calls fn for every non-blank line of path with its 1-based line
// number. A missing file yields no lines.
func scanLines(ctx context.Context, path string, fn func(lineNo int, line string)) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fn(lineNo, line)
	}
	return scanner.Err()
}

// writeFileAtomic writes lines to a temporary file next to path and renames
// it into place, so readers never observe a truncated file.
func writeFileAtomic(path string, lines []string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			_ = tmp.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

// appendLine appends a single line to path, creating it if needed
func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	if err := writeRecord(f, line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// appendFile is the part of *os.File a record append needs
type appendFile interface {
	Write(p []byte) (int, error)
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
	Sync() error
}

// writeRecord appends one line in a single write. On failure the file is cut
// back to its previous size so a torn line never prefixes the next record.
func writeRecord(f appendFile, line string) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	size := info.Size()

	_, err = f.Write([]byte(line + "\n"))
	if err == nil {
		err = f.Sync()
	}
	if err != nil {
		if terr := f.Truncate(size); terr != nil {
			return errors.Join(err, fmt.Errorf("failed to truncate torn record: %w", terr))
		}
		return err
	}
	return nil
}

func skipLine(logger *zap.Logger, file string, lineNo int, line string, err error) {
	logger.Warn("Skipping malformed line",
		zap.String("file", file),
		zap.Int("line", lineNo),
		zap.String("content", line),
		zap.Error(err),
	)
}
