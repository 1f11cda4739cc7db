package tls

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/timewarden/pkg/client"
)

func TestParseTLSVersion(t *testing.T) {
	v, err := parseTLSVersion("")
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS12), v)
	v, err = parseTLSVersion("1.3")
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS13), v)
	_, err = parseTLSVersion("1.0")
	assert.Error(t, err)
}

func TestEnsureSelfSignedGeneratesOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")
	cert, key, err := EnsureSelfSigned(dir)
	require.NoError(t, err)
	assert.FileExists(t, cert)
	assert.FileExists(t, key)
	assert.FileExists(t, filepath.Join(dir, CACertFile))

	info, err := os.Stat(key)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	before, _ := os.ReadFile(cert)
	_, _, err = EnsureSelfSigned(dir)
	require.NoError(t, err)
	after, _ := os.ReadFile(cert)
	assert.Equal(t, before, after, "existing certificate must be reused")
}

func TestServerConfigRejectsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := ServerConfig(filepath.Join(dir, "a"), filepath.Join(dir, "b"), "")
	assert.ErrorContains(t, err, "TLS key pair")
}

func TestClientTrustsGeneratedCA(t *testing.T) {
	dir := t.TempDir()
	cert, key, err := EnsureSelfSigned(dir)
	require.NoError(t, err)
	cfg, err := ServerConfig(cert, key, "1.2")
	require.NoError(t, err)

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	srv.TLS = cfg
	srv.StartTLS()
	defer srv.Close()

	c := client.New(client.Config{
		BaseURL: srv.URL,
		TLS:     &client.TLSClientConfig{Enabled: true, CACert: filepath.Join(dir, CACertFile)},
	})
	assert.True(t, c.IsReachable(context.Background()))

	untrusted := client.New(client.Config{BaseURL: srv.URL})
	assert.False(t, untrusted.IsReachable(context.Background()))
}
