package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/docflow/docflow/backend/go-services/internal/document"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrReportNotFound is returned when no report was archived under a key.
var ErrReportNotFound = errors.New("report not found")

// MinIOStorage archives concurrency test reports as JSON objects.
type MinIOStorage struct {
	client *minio.Client
	bucket string
}

// NewMinIOStorage creates a new MinIO storage client and ensures the bucket exists.
func NewMinIOStorage(ctx context.Context, cfg *MinIOConfig) (*MinIOStorage, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	s := &MinIOStorage{client: mc, bucket: cfg.Bucket}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		// ignore "already exists" style errors
		exist, xerr := mc.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return s, nil
}

// ReportKey is the object key of a report: reports/<documentId>/<runId>.json.
func ReportKey(r document.ConcurrencyReport) string {
	return RunKey(r.DocumentID, r.RunID)
}

// RunKey is ReportKey for a document id and run id.
func RunKey(documentID int64, runID string) string {
	return fmt.Sprintf("reports/%d/%s.json", documentID, runID)
}

// SaveReport uploads r and returns its object key.
func (s *MinIOStorage) SaveReport(ctx context.Context, r document.ConcurrencyReport) (string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	key := ReportKey(r)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("upload report %s: %w", key, err)
	}
	return key, nil
}

// LoadReport reads back an archived report.
func (s *MinIOStorage) LoadReport(ctx context.Context, key string) (*document.ConcurrencyReport, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapObjectErr(key, err)
	}
	defer obj.Close()
	if _, err := obj.Stat(); err != nil {
		return nil, mapObjectErr(key, err)
	}
	var r document.ConcurrencyReport
	if err := json.NewDecoder(obj).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", key, err)
	}
	return &r, nil
}

// GetPresignedURL returns a presigned GET URL for an existing object, valid for expires.
func (s *MinIOStorage) GetPresignedURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		return "", mapObjectErr(key, err)
	}
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, expires, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return presigned.String(), nil
}

func mapObjectErr(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%s: %w", key, ErrReportNotFound)
	}
	return fmt.Errorf("read report %s: %w", key, err)
}
