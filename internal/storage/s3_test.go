package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/transitdw/internal/config"
)

// fakeS3 answers path-style PUT, GET and HEAD requests.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]bool
	puts    []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, _ = io.Copy(io.Discard, r.Body)
	switch r.Method {
	case http.MethodPut:
		f.objects[r.URL.Path] = true
		f.puts = append(f.puts, r.URL.Path)
		w.Header().Set("ETag", `"etag"`)
	case http.MethodHead:
		if !f.objects[r.URL.Path] {
			w.WriteHeader(http.StatusNotFound)
		}
	case http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeS3Storage(t *testing.T) (*S3Storage, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: make(map[string]bool)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewS3Storage(&S3Config{
		Type:      StorageTypeMinIO,
		Endpoint:  srv.URL,
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "exports",
	})
	require.NoError(t, err)
	return s, fake
}

func TestS3StorageUploadAndExists(t *testing.T) {
	s, fake := newFakeS3Storage(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "run/dim_stations.csv")
	require.NoError(t, err)
	assert.False(t, ok)

	body := []byte("station_id,station_name\n")
	require.NoError(t, s.Upload(ctx, "run/dim_stations.csv", bytes.NewReader(body), int64(len(body)), "text/csv"))
	assert.Equal(t, []string{"/exports/run/dim_stations.csv"}, fake.puts)

	ok, err = s.Exists(ctx, "run/dim_stations.csv")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "run/dim_stations.csv"))
	ok, err = s.Exists(ctx, "run/dim_stations.csv")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestS3StorageURL(t *testing.T) {
	s, err := NewS3Storage(&S3Config{Type: StorageTypeS3, Bucket: "warehouse", Region: "us-east-2"})
	require.NoError(t, err)
	assert.Equal(t, "https://warehouse.s3.us-east-2.amazonaws.com/a/b.csv", s.GetURL("a/b.csv"))

	s, err = NewS3Storage(&S3Config{Type: StorageTypeMinIO, Endpoint: "https://minio.local:9000/ignored", UseSSL: true, Bucket: "warehouse"})
	require.NoError(t, err)
	assert.Equal(t, "https://minio.local:9000/warehouse/a/b.csv", s.GetURL("a/b.csv"))
}

func TestNewS3StorageRequiresBucket(t *testing.T) {
	_, err := NewS3Storage(&S3Config{Type: StorageTypeS3})
	assert.Error(t, err)
}

func TestDetectStorageType(t *testing.T) {
	tests := []struct {
		endpoint string
		want     StorageType
	}{
		{"", StorageTypeS3},
		{"s3.us-east-1.amazonaws.com", StorageTypeS3},
		{"https://acct.r2.cloudflarestorage.com", StorageTypeR2},
		{"localhost:9000", StorageTypeMinIO},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			assert.Equal(t, tt.want, detectStorageType(tt.endpoint))
		})
	}
}

func TestNewStorageFromConfig(t *testing.T) {
	st, err := NewStorage(&config.StorageConfig{Endpoint: "localhost:9000", Bucket: "b", AccessKey: "k", SecretKey: "s"})
	require.NoError(t, err)
	s3s, ok := st.(*S3Storage)
	require.True(t, ok)
	assert.Equal(t, StorageTypeMinIO, s3s.storeType)
}

func TestMemoryStorage(t *testing.T) {
	m := NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, m.Upload(ctx, "p/b.csv", strings.NewReader("b"), -1, "text/csv"))
	require.NoError(t, m.Upload(ctx, "p/a.csv", strings.NewReader("a"), -1, "text/csv"))
	require.NoError(t, m.Upload(ctx, "q/c.csv", strings.NewReader("c"), -1, "text/csv"))

	keys, err := m.List(ctx, "p/")
	require.NoError(t, err)
	assert.Equal(t, []string{"p/a.csv", "p/b.csv"}, keys)

	rc, err := m.Download(ctx, "p/a.csv")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "a", string(data))

	require.NoError(t, m.Delete(ctx, "p/a.csv"))
	ok, _ := m.Exists(ctx, "p/a.csv")
	assert.False(t, ok)
}
