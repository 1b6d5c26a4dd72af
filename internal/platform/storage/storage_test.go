package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestValidateImage(t *testing.T) {
	ct, err := ValidateImage(pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)

	_, err = ValidateImage(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = ValidateImage([]byte("just some text, not a picture"))
	assert.ErrorIs(t, err, ErrNotAnImage)

	big := append(append([]byte(nil), pngHeader...), make([]byte, MaxImageBytes)...)
	_, err = ValidateImage(big)
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestPhotoKey(t *testing.T) {
	assert.Equal(t, "photos/s1.png", PhotoKey("s1", "image/png"))
	assert.Equal(t, "photos/s1.jpg", PhotoKey("s1", "image/jpeg"))
	assert.Equal(t, "photos/s1", PhotoKey("s1", "image/x-icon"))
}

func TestLocalStorePut(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "")
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "photos/a.png", "image/png", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"))

	got, err := os.ReadFile(filepath.Join(dir, "photos", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, got)

	withBase, err := NewLocalStore(dir, "http://localhost:8080/media/")
	require.NoError(t, err)
	url, err = withBase.Put(context.Background(), "photos/b.png", "image/png", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/media/photos/b.png", url)
}

func TestLocalStoreCancelled(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Put(ctx, "photos/c.png", "image/png", bytes.NewReader(pngHeader))
	assert.ErrorIs(t, err, context.Canceled)
}
