package geoip

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilProvider(t *testing.T) {
	var p *Provider
	assert.Empty(t, p.GetCountryCode("8.8.8.8"))
	assert.NoError(t, p.Close())
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.mmdb"))
	assert.Error(t, err)
}

func TestEnsureDBDownloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("mmdb-bytes"))
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "country.mmdb")
	require.NoError(t, EnsureDB(context.Background(), path, srv.URL, time.Hour))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mmdb-bytes", string(data))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestEnsureDBFreshSkipsDownload(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "country.mmdb")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0600))

	require.NoError(t, EnsureDB(context.Background(), path, srv.URL, time.Hour))
	assert.Equal(t, 0, hits)
}

func TestEnsureDBBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "country.mmdb")
	assert.Error(t, EnsureDB(context.Background(), path, srv.URL, time.Hour))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
