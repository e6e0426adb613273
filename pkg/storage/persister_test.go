package storage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uploadCall struct {
	key         string
	data        []byte
	contentType string
}

type fakeUploader struct {
	calls []uploadCall
	err   error
}

func (f *fakeUploader) Bucket() string { return "directory-assets" }

func (f *fakeUploader) Upload(_ context.Context, key string, data []byte, contentType string) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, uploadCall{key: key, data: data, contentType: contentType})
	return nil
}

func newTestPersister(uploader Uploader, maxWidth int) *Persister {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	p := NewPersister(uploader, Config{MaxWidthPx: maxWidth}, logger)
	p.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return p
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPersistPhoto(t *testing.T) {
	t.Run("jpeg passthrough", func(t *testing.T) {
		up := &fakeUploader{}
		p := newTestPersister(up, 1600)

		url, err := p.PersistPhoto(context.Background(), []byte("not really a jpeg"), "image/jpeg", "bright-smile-dental", 0)
		require.NoError(t, err)
		assert.Equal(t, "https://storage.googleapis.com/directory-assets/clinics/bright-smile-dental/1700000000000-0.jpg", url)
		require.Len(t, up.calls, 1)
		assert.Equal(t, "image/jpeg", up.calls[0].contentType)
		assert.Equal(t, []byte("not really a jpeg"), up.calls[0].data)
	})

	t.Run("sniffs png when content type missing", func(t *testing.T) {
		up := &fakeUploader{}
		p := newTestPersister(up, 1600)

		url, err := p.PersistPhoto(context.Background(), pngBytes(t, 10, 10), "", "clinic", 2)
		require.NoError(t, err)
		assert.Contains(t, url, "/clinics/clinic/1700000000000-2.png")
		assert.Equal(t, "image/png", up.calls[0].contentType)
	})

	t.Run("downscales wide images", func(t *testing.T) {
		up := &fakeUploader{}
		p := newTestPersister(up, 100)

		_, err := p.PersistPhoto(context.Background(), pngBytes(t, 400, 200), "image/png", "clinic", 0)
		require.NoError(t, err)

		img, err := imaging.Decode(bytes.NewReader(up.calls[0].data))
		require.NoError(t, err)
		assert.Equal(t, 100, img.Bounds().Dx())
		assert.Equal(t, 50, img.Bounds().Dy())
	})

	t.Run("upload failure is returned", func(t *testing.T) {
		p := newTestPersister(&fakeUploader{err: errors.New("bucket unavailable")}, 1600)

		url, err := p.PersistPhoto(context.Background(), []byte{1, 2, 3}, "image/jpeg", "clinic", 0)
		require.Error(t, err)
		assert.Empty(t, url)
	})

	t.Run("empty payload", func(t *testing.T) {
		p := newTestPersister(&fakeUploader{}, 1600)

		_, err := p.PersistPhoto(context.Background(), nil, "image/jpeg", "clinic", 0)
		assert.ErrorIs(t, err, ErrEmptyPhoto)
	})
}

func TestObjectKeyTruncatesSlug(t *testing.T) {
	p := newTestPersister(&fakeUploader{}, 1600)

	key := p.ObjectKey("a-very-long-business-name-that-keeps-going-on", 3, "jpg")
	assert.Equal(t, "clinics/a-very-long-business-name-that/1700000000000-3.jpg", key)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "png", Extension("image/PNG"))
	assert.Equal(t, "jpg", Extension("image/webp"))
	assert.Equal(t, "jpg", Extension(""))
}
