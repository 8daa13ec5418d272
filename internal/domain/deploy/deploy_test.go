package deploy

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNewRelease verifies path composition under the releases root.
func TestNewRelease(t *testing.T) {
	t.Parallel()

	r := NewRelease("/srv/webapp/releases", "1.2")
	require.Equal(t, "1.2", r.Version)
	require.Equal(t, filepath.Join("/srv/webapp/releases", "1.2"), r.Path)
	require.Equal(t, filepath.Join(r.Path, PreparedMarkerName), r.MarkerPath())
}

// TestMode_Valid verifies mode validation accepts only known values.
func TestMode_Valid(t *testing.T) {
	t.Parallel()

	require.True(t, ModeFull.Valid())
	require.True(t, ModeConfigOnly.Valid())
	require.False(t, Mode("partial").Valid())
	require.False(t, Mode("").Valid())
}

// TestStepError verifies step attribution and unwrapping to sentinel kinds.
func TestStepError(t *testing.T) {
	t.Parallel()

	err := NewStepError("cutover", ErrCutover)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrCutover)
	require.Contains(t, err.Error(), "step cutover")

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, "cutover", stepErr.Step)

	require.NoError(t, NewStepError("cutover", nil))
	require.False(t, errors.Is(err, ErrMigration))
}
