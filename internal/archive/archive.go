// Package archive stores JSON snapshots of health check reports in an S3-compatible
// bucket.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Bruce-k901/My-App-sub010/internal/models"
)

// Config mirrors the archive section of the service configuration.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type objectStore interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
}

// Store writes report snapshots.
type Store struct {
	store  objectStore
	bucket string
	region string
}

// New connects a minio client. It does not contact the server.
func New(cfg Config) (*Store, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("archive client: %w", err)
	}
	return &Store{store: mc, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	ok, err := s.store.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if ok {
		return nil
	}
	if err := s.store.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Key is the object key of a report snapshot.
func Key(companyID, siteID, reportID uuid.UUID) string {
	return fmt.Sprintf("reports/%s/%s/%s.json", companyID, siteID, reportID)
}

// PutReport uploads the report with its items and returns the object key.
func (s *Store) PutReport(ctx context.Context, view models.ReportView) (string, error) {
	body, err := json.Marshal(view)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	key := Key(view.CompanyID, view.SiteID, view.ID)
	_, err = s.store.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}
