package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/oshokin/webdeploy/internal/domain/deploy"
	"github.com/oshokin/webdeploy/internal/logger"
)

// scratchPattern names download workspaces; MkdirTemp makes each unique,
// so concurrent or crashed runs never collide on a fixed name.
const scratchPattern = "webdeploy-*"

// initialBackoff is the first retry delay; subsequent delays grow exponentially.
const initialBackoff = 2 * time.Second

// Fetcher downloads release artifacts into fresh scratch workspaces.
type Fetcher struct {
	// scratchRoot hosts the workspaces; empty means the OS temp dir.
	scratchRoot string
	// timeout bounds a single download attempt.
	timeout time.Duration
	// retries is the total number of attempts.
	retries int
	// backoffInterval is the first retry delay.
	backoffInterval time.Duration
	// client performs the HTTP requests.
	client *http.Client
}

// New creates a Fetcher. retries is the total attempt count, minimum one.
func New(scratchRoot string, timeout time.Duration, retries int) *Fetcher {
	if retries < 1 {
		retries = 1
	}

	return &Fetcher{
		scratchRoot:     scratchRoot,
		timeout:         timeout,
		retries:         retries,
		backoffInterval: initialBackoff,
		client:          &http.Client{},
	}
}

// Fetch downloads the artifact at rawURL into a fresh scratch workspace and
// returns its local path together with a cleanup function. The cleanup removes
// the whole workspace and must be called by the consumer after extraction,
// regardless of the extraction outcome.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, func(), error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", func() {}, fmt.Errorf("%w: parse URL: %w", deploy.ErrFetch, err)
	}

	scratch, err := os.MkdirTemp(f.scratchRoot, scratchPattern)
	if err != nil {
		return "", func() {}, fmt.Errorf("%w: create scratch workspace: %w", deploy.ErrFetch, err)
	}

	cleanup := func() {
		if removeErr := os.RemoveAll(scratch); removeErr != nil {
			logger.WarnKV(ctx, "Unable to remove scratch workspace",
				"path", scratch, "error", removeErr)
		}
	}

	name := path.Base(parsed.Path)
	if name == "" || name == "." || name == "/" {
		name = "artifact"
	}

	artifactPath := filepath.Join(scratch, name)

	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(backoff.WithInitialInterval(f.backoffInterval)),
			uint64(f.retries-1),
		),
		ctx,
	)

	attempt := 0
	err = backoff.Retry(func() error {
		attempt++

		downloadErr := f.download(ctx, rawURL, artifactPath)
		if downloadErr != nil {
			logger.WarnKV(ctx, "Artifact download attempt failed",
				"attempt", attempt, "url", rawURL, "error", downloadErr)
		}

		return downloadErr
	}, policy)

	if err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("%w: %w", deploy.ErrFetch, err)
	}

	logger.InfoKV(ctx, "Artifact downloaded", "url", rawURL, "path", artifactPath)

	return artifactPath, cleanup, nil
}

// download performs a single bounded GET into target.
func (f *Fetcher) download(ctx context.Context, rawURL, target string) error {
	attemptCtx := ctx

	if f.timeout > 0 {
		var cancel context.CancelFunc

		attemptCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return err
	}

	response, err := f.client.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %s", rawURL, response.Status)
	}

	outputFile, err := os.Create(filepath.Clean(target))
	if err != nil {
		return err
	}

	if _, err = io.Copy(outputFile, response.Body); err != nil {
		_ = outputFile.Close()

		return err
	}

	return outputFile.Close()
}
