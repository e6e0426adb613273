package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/Gobusters/ectologger"
	"google.golang.org/api/option"
)

// GCSConfig configures the Cloud Storage backend. Without CredentialsJSON the
// client uses application default credentials.
type GCSConfig struct {
	Bucket          string
	CredentialsJSON string
}

// GCSUploader writes objects to a Cloud Storage bucket. It is a startup
// dependency; Upload fails until Start has run.
type GCSUploader struct {
	cfg    GCSConfig
	client *gcs.Client
	logger ectologger.Logger
}

func NewGCSUploader(cfg GCSConfig, logger ectologger.Logger) *GCSUploader {
	return &GCSUploader{cfg: cfg, logger: logger}
}

func (u *GCSUploader) GetName() string {
	return "storage"
}

func (u *GCSUploader) DependsOn() []string {
	return nil
}

func (u *GCSUploader) Start(ctx context.Context) error {
	if u.cfg.Bucket == "" {
		return errors.New("storage bucket is required")
	}

	var opts []option.ClientOption
	if creds := strings.TrimSpace(u.cfg.CredentialsJSON); creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create storage client: %w", err)
	}
	if _, err := client.Bucket(u.cfg.Bucket).Attrs(ctx); err != nil {
		client.Close()
		return fmt.Errorf("bucket %q not found or not accessible: %w", u.cfg.Bucket, err)
	}

	u.client = client
	u.logger.WithContext(ctx).Infof("Connected to storage bucket %s", u.cfg.Bucket)
	return nil
}

func (u *GCSUploader) Stop(ctx context.Context) error {
	if u.client == nil {
		return nil
	}
	return u.client.Close()
}

func (u *GCSUploader) Bucket() string {
	return u.cfg.Bucket
}

func (u *GCSUploader) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if u.client == nil {
		return errors.New("storage client is not started")
	}

	// Keys carry a timestamp, so an existing object is a collision, not a retry.
	wc := u.client.Bucket(u.cfg.Bucket).Object(key).If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
	wc.ContentType = contentType
	wc.CacheControl = "public, max-age=31536000"

	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to write object %s: %w", key, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to finalize object %s: %w", key, err)
	}
	return nil
}

// Ping checks that the bucket is still reachable.
func (u *GCSUploader) Ping(ctx context.Context) error {
	if u.client == nil {
		return errors.New("storage client is not started")
	}
	_, err := u.client.Bucket(u.cfg.Bucket).Attrs(ctx)
	return err
}
