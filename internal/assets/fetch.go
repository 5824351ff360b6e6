package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

var (
	errEmptySource    = errors.New("empty image source")
	errNotRegularFile = errors.New("not a regular file")
	errNotImage       = errors.New("content is not a recognised image")
	errNotStaged      = errors.New("staged image already committed or discarded")
)

// statusError is returned for non-2xx responses
type statusError struct {
	StatusCode int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// open returns a reader over the image source. Remote sources are requested
// with retries; a response is only accepted once its status is 2xx.
func (s *FileStore) open(ctx context.Context, source string) (io.ReadCloser, error) {
	if isRemote(source) {
		return s.openRemote(ctx, strings.TrimSpace(source))
	}
	return openLocal(source)
}

func openLocal(source string) (io.ReadCloser, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, errNotRegularFile
	}
	return os.Open(source)
}

func (s *FileStore) openRemote(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("malformed url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("malformed url: missing host")
	}

	var body io.ReadCloser
	err = retry.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return retry.Unrecoverable(err)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			serr := &statusError{StatusCode: resp.StatusCode}
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return serr
			}
			return retry.Unrecoverable(serr)
		}

		body = resp.Body
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(s.retries),
		retry.Delay(s.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Debug("Retrying image download",
				zap.String("url", u.Redacted()),
				zap.Uint("attempt", n+1),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		return nil, err
	}

	return body, nil
}

// sourceReader remembers read failures so they can be told apart from
// failures writing the destination.
type sourceReader struct {
	r   io.Reader
	err error
}

func (sr *sourceReader) Read(p []byte) (int, error) {
	n, err := sr.r.Read(p)
	if err != nil && err != io.EOF {
		sr.err = err
	}
	return n, err
}
