package backup

import (
	"bytes"
	"context"
	"fmt"

	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// MinioUploader 上传快照到 MinIO / S3 兼容存储
type MinioUploader struct {
	client *minio.Client
	bucket string
}

// NewMinioUploader connects and creates the bucket when it is missing.
func NewMinioUploader(ctx context.Context, cfg *config.BackupConfig) (*MinioUploader, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	found, err := mc.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !found {
		if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinioUploader{client: mc, bucket: cfg.Bucket}, nil
}

func (u *MinioUploader) Upload(ctx context.Context, key string, data []byte) error {
	_, err := u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: xlsxContentType,
	})
	return err
}
