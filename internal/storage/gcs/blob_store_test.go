package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

// newTestStore creates a BlobStore whose client talks to a test server.
func newTestStore(t *testing.T, handler http.Handler, cfg Config) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, cfg)
	require.NoError(t, err)
	return store
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	_, err = New(client, Config{})
	require.Error(t, err)
}

func TestPutObject(t *testing.T) {
	t.Parallel()

	objectData := []byte(`{"pages":[]}`)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The GCS JSON API multipart upload endpoint.
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/harvest-bucket/o")
		assert.Equal(t, "runs/galxe.com_data.json", r.URL.Query().Get("name"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), string(objectData))
		assert.Contains(t, string(body), "application/json")

		fmt.Fprintln(w, `{"name": "runs/galxe.com_data.json", "bucket": "harvest-bucket"}`)
	})

	store := newTestStore(t, handler, Config{Bucket: "harvest-bucket", Prefix: "/runs/"})
	uri, err := store.PutObject(context.Background(), "galxe.com_data.json", "application/json", bytes.NewReader(objectData))
	require.NoError(t, err)
	assert.Equal(t, "gs://harvest-bucket/runs/galxe.com_data.json", uri)
}

func TestPutObjectServerError(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	store := newTestStore(t, handler, Config{Bucket: "harvest-bucket"})
	_, err := store.PutObject(context.Background(), "seed_raw.txt", "text/plain", bytes.NewReader([]byte("raw")))
	require.Error(t, err)

	_, err = store.PutObject(context.Background(), " ", "text/plain", bytes.NewReader(nil))
	require.Error(t, err)
}
