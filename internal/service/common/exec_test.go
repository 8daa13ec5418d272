package common

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestExecRunner_Success verifies a zero exit code maps to nil.
func TestExecRunner_Success(t *testing.T) {
	t.Parallel()

	r := NewExecRunner()
	require.NoError(t, r.Run(context.Background(), []string{"true"}))
}

// TestExecRunner_Failure verifies a non-zero exit code maps to an error.
func TestExecRunner_Failure(t *testing.T) {
	t.Parallel()

	r := NewExecRunner()
	require.Error(t, r.Run(context.Background(), []string{"false"}))
}

// TestExecRunner_EmptyCommand verifies an empty argv is rejected.
func TestExecRunner_EmptyCommand(t *testing.T) {
	t.Parallel()

	r := NewExecRunner()
	require.Error(t, r.Run(context.Background(), nil))
}

// TestExecRunner_Cancellation verifies a cancelled context kills the process.
func TestExecRunner_Cancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	r := NewExecRunner()
	start := time.Now()
	require.Error(t, r.Run(ctx, []string{"sleep", "10"}))
	require.Less(t, time.Since(start), 5*time.Second)
}

// TestDetectActor verifies host and user detection succeeds on this platform.
func TestDetectActor(t *testing.T) {
	t.Parallel()

	actor, err := DetectActor()
	require.NoError(t, err)
	require.NotEmpty(t, actor.Hostname)
	require.NotEmpty(t, actor.Username)
}

// TestLookupOwner_Empty verifies empty names resolve to the no-op IDs.
func TestLookupOwner_Empty(t *testing.T) {
	t.Parallel()

	uid, gid, err := LookupOwner("", "")
	require.NoError(t, err)
	require.Equal(t, -1, uid)
	require.Equal(t, -1, gid)
}

// TestLookupOwner_Unknown verifies unknown accounts are reported.
func TestLookupOwner_Unknown(t *testing.T) {
	t.Parallel()

	_, _, err := LookupOwner("no-such-user-webdeploy", "")
	require.Error(t, err)
}
