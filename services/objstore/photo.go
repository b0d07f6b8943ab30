package objstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
)

const (
	PhotoMaxSide     = 800
	PhotoQuality     = 80
	PhotoContentType = "image/webp"
)

var ErrUnsupportedImage = errors.New("unsupported image format (use jpg, png or webp)")

// NormalizePhoto decodes a JPEG, PNG or WebP image, applies its EXIF orientation,
// fits it within PhotoMaxSide x PhotoMaxSide and re-encodes it as WebP.
func NormalizePhoto(r io.Reader) ([]byte, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, ErrUnsupportedImage
	}
	b := img.Bounds()
	if b.Dx() > PhotoMaxSide || b.Dy() > PhotoMaxSide {
		img = imaging.Fit(img, PhotoMaxSide, PhotoMaxSide, imaging.Lanczos)
	}

	buf := new(bytes.Buffer)
	if err = webp.Encode(buf, img, &webp.Options{Quality: PhotoQuality}); err != nil {
		return nil, errors.Wrap(err, "encoding webp")
	}
	return buf.Bytes(), nil
}

// PhotoKey builds "<kind>/<owner-hash>/<uuid>.webp". The owner's email never appears in URLs.
func PhotoKey(kind string, tag access.Tag) string {
	sum := sha256.Sum256([]byte(tag.String()))
	return strings.Join([]string{kind, hex.EncodeToString(sum[:8]), uuid.NewString() + ".webp"}, "/")
}

// KeyFromURL returns the object key of a URL built by a store rooted at baseURL.
func KeyFromURL(baseURL, url string) (string, bool) {
	prefix := strings.TrimRight(baseURL, "/") + "/"
	if baseURL == "" || !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

// UploadPhoto normalizes the image read from r and stores it under a fresh PhotoKey.
func UploadPhoto(ctx context.Context, store core.ObjectStore, kind string, tag access.Tag, r io.Reader) (string, error) {
	data, err := NormalizePhoto(r)
	if err != nil {
		return "", err
	}
	return store.Put(ctx, PhotoKey(kind, tag), PhotoContentType, bytes.NewReader(data))
}
