package dataload

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

// Uploader pushes local files into an object storage bucket.
type Uploader interface {
	// Upload copies the file at localPath to objectPath and returns the object URI.
	Upload(ctx context.Context, localPath, objectPath string) (string, error)

	// URI returns the URI of objectPath, which may contain wildcards.
	URI(objectPath string) string
}

// GCSConfig identifies the Cloud Storage bucket artifacts are uploaded to.
type GCSConfig struct {
	Bucket string
}

// GCSUploader uploads files to Cloud Storage.
type GCSUploader struct {
	client *storage.Client
	bucket string
}

// NewGCSUploader builds an uploader for cfg.Bucket.
func NewGCSUploader(client *storage.Client, cfg GCSConfig) (*GCSUploader, error) {
	if client == nil {
		return nil, xerrors.New("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, xerrors.New("bucket name is required")
	}
	return &GCSUploader{client: client, bucket: cfg.Bucket}, nil
}

func (u *GCSUploader) URI(objectPath string) string {
	return Object{Bucket: u.bucket, Name: objectPath}.FullPath()
}

func (u *GCSUploader) Upload(ctx context.Context, localPath, objectPath string) (string, error) {
	if strings.TrimSpace(objectPath) == "" {
		return "", xerrors.New("object path is required")
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", xerrors.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	w := u.client.Bucket(u.bucket).Object(objectPath).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		if cerr := w.Close(); cerr != nil {
			log.Ctx(ctx).Warn().Err(cerr).Msg("failed to close object writer")
		}
		return "", xerrors.Errorf("failed to upload %s: %w", localPath, err)
	}

	if err := w.Close(); err != nil {
		return "", xerrors.Errorf("failed to finalize upload of %s: %w", localPath, err)
	}

	return u.URI(objectPath), nil
}

// S3Config identifies the S3 bucket artifacts are uploaded to.
type S3Config struct {
	Bucket string
	Region string
}

type s3API interface {
	UploadWithContext(aws.Context, *s3manager.UploadInput, ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// S3Uploader uploads files to Amazon S3.
type S3Uploader struct {
	uploader s3API
	bucket   string
}

// NewS3Uploader builds an uploader with credentials from the environment.
func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, xerrors.New("bucket name is required")
	}

	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
	if err != nil {
		return nil, xerrors.Errorf("failed to create aws session: %w", err)
	}

	return &S3Uploader{uploader: s3manager.NewUploader(sess), bucket: cfg.Bucket}, nil
}

func (u *S3Uploader) URI(objectPath string) string {
	return fmt.Sprintf("s3://%s/%s", u.bucket, objectPath)
}

func (u *S3Uploader) Upload(ctx context.Context, localPath, objectPath string) (string, error) {
	if strings.TrimSpace(objectPath) == "" {
		return "", xerrors.New("object path is required")
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", xerrors.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	out, err := u.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(objectPath),
		Body:   f,
	})
	if err != nil {
		return "", xerrors.Errorf("failed to upload %s to s3: %w", localPath, err)
	}

	log.Ctx(ctx).Debug().Msgf("uploaded to %s", out.Location)

	return u.URI(objectPath), nil
}
