// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/nishisan-dev/n-lottery/internal/config"
)

// S3Uploader envia archives para um bucket S3 (ou compatível, ex: MinIO).
type S3Uploader struct {
	client *s3.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Uploader monta o client S3 a partir da config. Com access_key e
// secret_key vazios, a cadeia default de credenciais da AWS é usada (env,
// shared config, IAM role). Um endpoint customizado habilita destinos
// S3-compatíveis fora da AWS.
func NewS3Uploader(ctx context.Context, cfg config.S3Config, logger *slog.Logger) (*S3Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &S3Uploader{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger.With("component", "s3_uploader", "bucket", cfg.Bucket),
	}, nil
}

// Upload envia um arquivo local para {bucket}/{prefix}/{key}.
func (u *S3Uploader) Upload(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	fullKey := u.prefix + "/" + key
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(fullKey),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("putting s3 object %s: %w", fullKey, err)
	}

	u.logger.Info("archive uploaded", "key", fullKey)
	return nil
}
