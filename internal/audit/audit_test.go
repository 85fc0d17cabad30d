package audit_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"cryptex/internal/audit"
	"cryptex/internal/log"
)

func TestAuditEventsReachTheFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "security_audit.log")

	backend, err := log.New(file, "INFO", false)
	require.NoError(t, err)

	a := audit.New(backend)
	a.AuthSuccess("Alice", "10.0.0.1:4242")
	a.AuthFailure("Alice", "10.0.0.2:4243", "username already taken")
	a.KeyExchange("Alice", "Bob")
	a.MessageRouted("Alice", "Bob")
	a.Suspicious("Mallory", "AUTH after registration")
	require.NoError(t, backend.Close())

	out, err := os.ReadFile(file)
	require.NoError(t, err)
	text := string(out)
	require.Contains(t, text, "AUTH_SUCCESS | User: Alice | Addr: 10.0.0.1:4242")
	require.Contains(t, text, "AUTH_FAILED")
	require.Contains(t, text, "KEY_EXCHANGE | Alice -> Bob")
	require.Contains(t, text, "MESSAGE_SENT | From: Alice | To: Bob")
	require.Contains(t, text, "SUSPICIOUS_ACTIVITY | User: Mallory")
}
