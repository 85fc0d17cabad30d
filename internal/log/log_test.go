package log_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"cryptex/internal/log"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := log.New("", "LOUD", false)
	require.Error(t, err)
}

func TestFileBackendWrites(t *testing.T) {
	file := filepath.Join(t.TempDir(), "relay.log")

	b, err := log.New(file, "DEBUG", false)
	require.NoError(t, err)

	b.GetLogger("relay").Noticef("listening on %s", "127.0.0.1:5555")
	require.NoError(t, b.Close())

	out, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(out), "relay: listening on 127.0.0.1:5555")
}

func TestDisabledBackendDiscards(t *testing.T) {
	b, err := log.New("", "DEBUG", true)
	require.NoError(t, err)
	b.GetLogger("test").Warning("dropped on the floor")
	require.NoError(t, b.Close())
}
