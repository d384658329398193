package export

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/logger"
	"github.com/ajitpratap0/geovec/pkg/sfvector"
)

// S3Config locates the bucket exports are uploaded to.
type S3Config struct {
	Bucket string `yaml:"bucket" mapstructure:"bucket"`
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
	Region string `yaml:"region" mapstructure:"region"`
	// Endpoint overrides the S3 endpoint, e.g. for MinIO.
	Endpoint     string `yaml:"endpoint" mapstructure:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style" mapstructure:"use_path_style"`
	// PartSize is the multipart chunk size in bytes; 0 keeps the default.
	PartSize    int64 `yaml:"part_size" mapstructure:"part_size"`
	Concurrency int   `yaml:"concurrency" mapstructure:"concurrency"`
}

// Uploader streams exports to S3.
type Uploader struct {
	config   S3Config
	uploader *manager.Uploader
	log      *zap.Logger
}

// NewUploader builds an S3 client from the default AWS credential chain.
func NewUploader(ctx context.Context, config S3Config) (*Uploader, error) {
	if config.Bucket == "" {
		return nil, geoerrors.New(geoerrors.ErrorTypeConfig, "s3 bucket is required")
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if config.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(config.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeConfig, "cannot load AWS configuration")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
		o.UsePathStyle = config.UsePathStyle
	})
	return NewUploaderWithClient(client, config), nil
}

// NewUploaderWithClient uploads through client.
func NewUploaderWithClient(client manager.UploadAPIClient, config S3Config) *Uploader {
	return &Uploader{
		config: config,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			if config.PartSize > 0 {
				u.PartSize = config.PartSize
			}
			if config.Concurrency > 0 {
				u.Concurrency = config.Concurrency
			}
		}),
		log: logger.Named("s3"),
	}
}

// Key returns the object key of name under the configured prefix.
func (u *Uploader) Key(name string) string { return objectKey(u.config.Prefix, name) }

func objectKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Upload copies body to the object name and returns its s3:// URI.
func (u *Uploader) Upload(ctx context.Context, name string, body io.Reader) (string, error) {
	key := u.Key(name)
	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.config.Bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return "", geoerrors.Wrap(err, geoerrors.ErrorTypeConnection, "s3 upload failed").
			WithDetail("bucket", u.config.Bucket).
			WithDetail("key", key)
	}
	uri := fmt.Sprintf("s3://%s/%s", u.config.Bucket, key)
	u.log.Info("uploaded export", zap.String("uri", uri))
	return uri, nil
}

// UploadVector writes sfv in opts.Format straight into the object named
// after its feature type.
func (u *Uploader) UploadVector(ctx context.Context, sfv *sfvector.SimpleFeatureVector, opts Options) (string, error) {
	return UploadVector(ctx, u, sfv, opts)
}

// ObjectUploader stores named objects and returns their URI.
type ObjectUploader interface {
	Upload(ctx context.Context, name string, body io.Reader) (string, error)
}

// UploadVector streams sfv in opts.Format to u, named after its feature type
// with the format's extension.
func UploadVector(ctx context.Context, u ObjectUploader, sfv *sfvector.SimpleFeatureVector, opts Options) (string, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return "", err
	}
	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		pw.CloseWithError(Write(pw, sfv, opts))
	}()
	uri, err := u.Upload(ctx, sfv.Type().Name()+opts.Format.Extension(), pr)
	_ = pr.Close()
	<-done
	return uri, err
}
