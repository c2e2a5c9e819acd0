package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remoteq/internal/blockchain"
	"remoteq/internal/security"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := RootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestKeysGenerate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")

	out, err := run(t, "keys", "generate", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Public key:")
	assert.FileExists(t, filepath.Join(dir, "server.priv"))

	out, err = run(t, "keys", "generate", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "already present")
}

func TestLedgerVerifyAndInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	ledger, err := blockchain.OpenLedger(path)
	require.NoError(t, err)
	pub, priv, err := security.GenerateKeyPair()
	require.NoError(t, err)
	_, err = ledger.Record(blockchain.Entry{JobID: 1, Board: "esp32c3", Device: "dev-1", Status: "Completed"}, priv, pub)
	require.NoError(t, err)

	out, err := run(t, "ledger", "verify", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Ledger OK (1 blocks)")

	out, err = run(t, "ledger", "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "esp32c3")
	assert.Contains(t, out, "dev-1")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, bytes.Replace(data, []byte("esp32c3"), []byte("stm32"), 1), 0o644))
	_, err = run(t, "ledger", "verify", path)
	assert.Error(t, err)
}

func TestBoards(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]string{"esp32c3"})
	}))
	defer srv.Close()

	out, err := run(t, "boards", "--server", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "esp32c3\n", out)
}

func TestStatusRejectsBadID(t *testing.T) {
	_, err := run(t, "status", "abc")
	assert.Error(t, err)
}
