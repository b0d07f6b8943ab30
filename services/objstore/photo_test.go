package objstore

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/access"
)

func pngImage(t *testing.T, w, h int) *bytes.Buffer {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return buf
}

func TestNormalizePhoto(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		wantW, wantH  int
	}{
		{name: "small image kept", width: 120, height: 80, wantW: 120, wantH: 80},
		{name: "landscape fitted", width: 1600, height: 1000, wantW: 800, wantH: 500},
		{name: "portrait fitted", width: 900, height: 1800, wantW: 400, wantH: 800},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := NormalizePhoto(pngImage(t, tc.width, tc.height))
			require.NoError(t, err)

			cfg, err := webp.DecodeConfig(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, tc.wantW, cfg.Width)
			assert.Equal(t, tc.wantH, cfg.Height)
		})
	}
}

func TestNormalizePhoto_Unsupported(t *testing.T) {
	_, err := NormalizePhoto(strings.NewReader("definitely not an image"))
	assert.Equal(t, ErrUnsupportedImage, err)
}

func TestPhotoKey(t *testing.T) {
	tag := access.Tag("admin@school.test")
	k1 := PhotoKey("students", tag)
	k2 := PhotoKey("students", tag)

	parts := strings.Split(k1, "/")
	require.Len(t, parts, 3)
	assert.Equal(t, "students", parts[0])
	assert.Len(t, parts[1], 16)
	assert.True(t, strings.HasSuffix(parts[2], ".webp"))
	assert.NotContains(t, k1, "admin")
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, parts[1], strings.Split(k2, "/")[1])
	assert.NotEqual(t, parts[1], strings.Split(PhotoKey("students", "other@school.test"), "/")[1])
}

func TestKeyFromURL(t *testing.T) {
	key, ok := KeyFromURL("http://cdn.test/media/", "http://cdn.test/media/students/abc/x.webp")
	assert.True(t, ok)
	assert.Equal(t, "students/abc/x.webp", key)

	_, ok = KeyFromURL("http://cdn.test/media", "http://elsewhere.test/x.webp")
	assert.False(t, ok)
	_, ok = KeyFromURL("", "http://cdn.test/x.webp")
	assert.False(t, ok)
}

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir, "http://localhost:8000/media/")
	ctx := context.Background()

	url, err := UploadPhoto(ctx, store, "teachers", "admin@school.test", pngImage(t, 10, 10))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "http://localhost:8000/media/teachers/"))

	key, ok := KeyFromURL(store.BaseURL(), url)
	require.True(t, ok)
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(key)))
	assert.True(t, os.IsNotExist(err))

	// deleting twice is fine
	assert.NoError(t, store.Delete(ctx, key))

	_, err = store.Put(ctx, "../escape.txt", "text/plain", strings.NewReader("x"))
	assert.Error(t, err)
}
