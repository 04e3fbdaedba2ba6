package blob_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varunv-ux/getglow/internal/blob"
	"github.com/varunv-ux/getglow/internal/config"
)

func newLocalStore(t *testing.T) *blob.LocalStore {
	t.Helper()
	s, err := blob.NewLocalStore(config.LocalBlobConfig{
		BaseDir:       t.TempDir(),
		PublicBaseURL: "http://localhost:8080/uploads",
	})
	require.NoError(t, err)
	return s
}

func TestLocalStore_PutGetRoundtrip(t *testing.T) {
	s := newLocalStore(t)
	ctx := context.Background()

	url, err := s.Put(ctx, []byte("jpeg-bytes"), "selfie.jpg", "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:8080/uploads/"))
	assert.True(t, strings.HasSuffix(url, ".jpg"))

	data, err := s.Get(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
}

func TestLocalStore_UniqueNames(t *testing.T) {
	s := newLocalStore(t)
	ctx := context.Background()

	url1, err := s.Put(ctx, []byte("one"), "same.jpg", "image/jpeg")
	require.NoError(t, err)
	url2, err := s.Put(ctx, []byte("two"), "same.jpg", "image/jpeg")
	require.NoError(t, err)

	assert.NotEqual(t, url1, url2, "same upload name must not collide")
}

func TestLocalStore_ExtensionFallback(t *testing.T) {
	s := newLocalStore(t)

	url, err := s.Put(context.Background(), []byte("bytes"), "noextension", "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, ".jpg"))
}

func TestLocalStore_Delete(t *testing.T) {
	s := newLocalStore(t)
	ctx := context.Background()

	url, err := s.Put(ctx, []byte("bytes"), "gone.jpg", "image/jpeg")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, url))

	_, err = s.Get(ctx, url)
	assert.Error(t, err)
}

func TestLocalStore_DeleteMissingIsNoop(t *testing.T) {
	s := newLocalStore(t)

	err := s.Delete(context.Background(), "http://localhost:8080/uploads/never-existed.jpg")
	assert.NoError(t, err)
}

func TestLocalStore_GetUnknown(t *testing.T) {
	s := newLocalStore(t)

	_, err := s.Get(context.Background(), "http://localhost:8080/uploads/missing.jpg")
	assert.Error(t, err)
}

func TestNewStore_UnknownBackend(t *testing.T) {
	_, err := blob.NewStore(context.Background(), config.BlobConfig{Backend: "ftp"})
	assert.Error(t, err)
}
