package cutover

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/webdeploy/internal/domain/deploy"
)

func makeRelease(t *testing.T, root, version string) deploy.Release {
	t.Helper()

	release := deploy.NewRelease(root, version)
	require.NoError(t, os.MkdirAll(release.Path, 0o755))

	return release
}

// TestCutover_FirstProvisioning verifies the live link is created when absent.
func TestCutover_FirstProvisioning(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	release := makeRelease(t, filepath.Join(dir, "releases"), "1.2")
	m := NewManager(filepath.Join(dir, "current"))

	changed, err := m.Cutover(context.Background(), release)
	require.NoError(t, err)
	require.True(t, changed)

	target, err := os.Readlink(filepath.Join(dir, "current"))
	require.NoError(t, err)
	require.Equal(t, release.Path, target)
}

// TestCutover_Repoint verifies swapping between releases and the change flag.
func TestCutover_Repoint(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	releasesRoot := filepath.Join(dir, "releases")
	first := makeRelease(t, releasesRoot, "1.1")
	second := makeRelease(t, releasesRoot, "1.2")
	m := NewManager(filepath.Join(dir, "current"))
	ctx := context.Background()

	changed, err := m.Cutover(ctx, first)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = m.Cutover(ctx, second)
	require.NoError(t, err)
	require.True(t, changed)

	current, err := m.Current()
	require.NoError(t, err)
	require.Equal(t, second.Path, current)
}

// TestCutover_NoChange verifies an already-live release yields Changed=false.
func TestCutover_NoChange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	release := makeRelease(t, filepath.Join(dir, "releases"), "1.2")
	m := NewManager(filepath.Join(dir, "current"))
	ctx := context.Background()

	changed, err := m.Cutover(ctx, release)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = m.Cutover(ctx, release)
	require.NoError(t, err)
	require.False(t, changed)
}

// TestCutover_RefusesRealDirectory verifies a non-symlink live root is a CutoverError.
func TestCutover_RefusesRealDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	release := makeRelease(t, filepath.Join(dir, "releases"), "1.2")

	liveRoot := filepath.Join(dir, "current")
	require.NoError(t, os.MkdirAll(liveRoot, 0o755))

	m := NewManager(liveRoot)
	_, err := m.Cutover(context.Background(), release)
	require.ErrorIs(t, err, deploy.ErrCutover)
}

// TestCutover_AtomicForReaders verifies concurrent readers always resolve to
// one of the two releases, never to a missing link.
func TestCutover_AtomicForReaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	releasesRoot := filepath.Join(dir, "releases")
	old := makeRelease(t, releasesRoot, "1.1")
	next := makeRelease(t, releasesRoot, "1.2")

	liveRoot := filepath.Join(dir, "current")
	m := NewManager(liveRoot)
	ctx := context.Background()

	_, err := m.Cutover(ctx, old)
	require.NoError(t, err)

	var wg sync.WaitGroup

	stop := make(chan struct{})
	seen := make(chan string, 1024)

	wg.Add(1)

	go func() {
		defer wg.Done()

		for {
			select {
			case <-stop:
				return
			default:
			}

			target, readErr := os.Readlink(liveRoot)
			if readErr != nil {
				seen <- "MISSING"
				return
			}

			select {
			case seen <- target:
			default:
			}
		}
	}()

	for i := 0; i < 50; i++ {
		release := old
		if i%2 == 0 {
			release = next
		}

		_, err = m.Cutover(ctx, release)
		require.NoError(t, err)
	}

	close(stop)
	wg.Wait()
	close(seen)

	for target := range seen {
		require.Contains(t, []string{old.Path, next.Path}, target)
	}
}
