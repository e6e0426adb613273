// Package storage persists provider photos to object storage and returns
// their public URLs.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/disintegration/imaging"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	DefaultPrefix     = "clinics"
	DefaultPublicHost = "storage.googleapis.com"
	DefaultMaxWidthPx = 1600
	maxSlugSegmentLen = 30
	contentTypeJPEG   = "image/jpeg"
	contentTypePNG    = "image/png"
)

// ErrEmptyPhoto is returned for zero-length payloads.
var ErrEmptyPhoto = errors.New("photo payload is empty")

// Uploader writes one object, implemented by GCSUploader.
type Uploader interface {
	Bucket() string
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

type Config struct {
	Prefix        string
	PublicHost    string
	MaxWidthPx    int
	UploadTimeout time.Duration
}

type Persister struct {
	uploader Uploader
	cfg      Config
	logger   ectologger.Logger
	now      func() time.Time
}

func NewPersister(uploader Uploader, cfg Config, logger ectologger.Logger) *Persister {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.PublicHost == "" {
		cfg.PublicHost = DefaultPublicHost
	}
	if cfg.MaxWidthPx <= 0 {
		cfg.MaxWidthPx = DefaultMaxWidthPx
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 30 * time.Second
	}
	return &Persister{
		uploader: uploader,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// PersistPhoto stores one photo and returns its public URL. A returned error
// means the caller should skip this photo; it is never retried here.
func (p *Persister) PersistPhoto(ctx context.Context, data []byte, contentType, slugHint string, index int) (string, error) {
	ctx, span := tracing.StartSpanWithAttributes(ctx, "Persister.PersistPhoto",
		attribute.String("storage.slug", slugHint),
		attribute.Int("storage.index", index),
	)
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	if len(data) == 0 {
		err = ErrEmptyPhoto
		metrics.RecordPhoto("empty")
		return "", err
	}

	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	ext := Extension(contentType)
	if ext == "png" {
		contentType = contentTypePNG
	} else {
		contentType = contentTypeJPEG
	}

	data = p.downscale(ctx, data, ext)
	key := p.ObjectKey(slugHint, index, ext)

	uploadCtx, cancel := context.WithTimeout(ctx, p.cfg.UploadTimeout)
	defer cancel()

	if err = p.uploader.Upload(uploadCtx, key, data, contentType); err != nil {
		metrics.RecordPhoto("failed")
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"key":   key,
			"index": index,
		}).Warn("failed to upload photo")
		return "", fmt.Errorf("failed to upload photo %d: %w", index, err)
	}

	metrics.RecordPhoto("stored")
	return p.PublicURL(key), nil
}

// ObjectKey is {prefix}/{slug[:30]}/{unixMillis}-{index}.{ext}.
func (p *Persister) ObjectKey(slugHint string, index int, ext string) string {
	segment := slugHint
	if len(segment) > maxSlugSegmentLen {
		segment = segment[:maxSlugSegmentLen]
	}
	segment = strings.Trim(segment, "-")
	if segment == "" {
		segment = "place"
	}
	return fmt.Sprintf("%s/%s/%d-%d.%s", p.cfg.Prefix, segment, p.now().UnixMilli(), index, ext)
}

func (p *Persister) PublicURL(key string) string {
	return fmt.Sprintf("https://%s/%s/%s", p.cfg.PublicHost, p.uploader.Bucket(), key)
}

// Extension is "png" for PNG content types and "jpg" for everything else.
func Extension(contentType string) string {
	if strings.Contains(strings.ToLower(contentType), "png") {
		return "png"
	}
	return "jpg"
}

// downscale shrinks images wider than MaxWidthPx. Undecodable payloads are
// returned unchanged.
func (p *Persister) downscale(ctx context.Context, data []byte, ext string) []byte {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Debug("photo is not decodable, uploading as-is")
		return data
	}
	if img.Bounds().Dx() <= p.cfg.MaxWidthPx {
		return data
	}

	resized := imaging.Resize(img, p.cfg.MaxWidthPx, 0, imaging.Lanczos)
	format := imaging.JPEG
	if ext == "png" {
		format = imaging.PNG
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format); err != nil {
		p.logger.WithContext(ctx).WithError(err).Warn("failed to encode resized photo, uploading original")
		return data
	}
	return buf.Bytes()
}
