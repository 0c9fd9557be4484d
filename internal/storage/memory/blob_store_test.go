package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte(`{"users":[]}`)
	uri, err := store.PutObject(context.Background(), "seed_data.json", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "memory://seed_data.json", uri)

	payload[0] = 'X'
	got, contentType, ok := store.Get("seed_data.json")
	require.True(t, ok)
	assert.Equal(t, `{"users":[]}`, string(got))
	assert.Equal(t, "application/json", contentType)

	got[0] = 'Y'
	again, _, _ := store.Get("seed_data.json")
	assert.Equal(t, byte('{'), again[0])
}

func TestBlobStorePaths(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	for _, p := range []string{"b_raw.txt", "a_data.json", "b_raw.txt"} {
		_, err := store.PutObject(context.Background(), p, "text/plain", bytes.NewReader([]byte(p)))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a_data.json", "b_raw.txt"}, store.Paths())

	_, _, ok := store.Get("missing")
	assert.False(t, ok)
}
