package export

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/logger"
	"github.com/ajitpratap0/geovec/pkg/sfvector"
)

// GCSConfig locates exports in Google Cloud Storage.
type GCSConfig struct {
	Bucket string `yaml:"bucket" mapstructure:"bucket"`
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
	// CredentialsFile is a service account key; empty uses application
	// default credentials.
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
	// Endpoint overrides the API endpoint, e.g. for an emulator. Requests
	// to a custom endpoint are unauthenticated.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// GCSUploader streams exports to a GCS bucket.
type GCSUploader struct {
	config GCSConfig
	client *storage.Client
	bucket *storage.BucketHandle
	log    *zap.Logger
}

// NewGCSUploader creates a storage client for config.
func NewGCSUploader(ctx context.Context, config GCSConfig) (*GCSUploader, error) {
	if config.Bucket == "" {
		return nil, geoerrors.New(geoerrors.ErrorTypeConfig, "gcs bucket is required")
	}
	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}
	if config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(config.Endpoint), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeConnection, "cannot create GCS client")
	}
	return &GCSUploader{
		config: config,
		client: client,
		bucket: client.Bucket(config.Bucket),
		log:    logger.Named("gcs"),
	}, nil
}

// Key returns the object name of name under the configured prefix.
func (u *GCSUploader) Key(name string) string { return objectKey(u.config.Prefix, name) }

// Upload copies body to the object name and returns its gs:// URI.
func (u *GCSUploader) Upload(ctx context.Context, name string, body io.Reader) (string, error) {
	key := u.Key(name)
	w := u.bucket.Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return "", geoerrors.Wrap(err, geoerrors.ErrorTypeConnection, "gcs upload failed").
			WithDetail("bucket", u.config.Bucket).
			WithDetail("key", key)
	}
	if err := w.Close(); err != nil {
		return "", geoerrors.Wrap(err, geoerrors.ErrorTypeConnection, "gcs upload failed").
			WithDetail("bucket", u.config.Bucket).
			WithDetail("key", key)
	}
	uri := fmt.Sprintf("gs://%s/%s", u.config.Bucket, key)
	u.log.Info("uploaded export", zap.String("uri", uri))
	return uri, nil
}

// UploadVector writes sfv in opts.Format into the object named after its
// feature type.
func (u *GCSUploader) UploadVector(ctx context.Context, sfv *sfvector.SimpleFeatureVector, opts Options) (string, error) {
	return UploadVector(ctx, u, sfv, opts)
}

// Close closes the storage client.
func (u *GCSUploader) Close() error { return u.client.Close() }
