// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3MirrorConfig configures the optional S3-compatible remote mirror
// for completed local snapshots.
type S3MirrorConfig struct {
	Endpoint     string
	Bucket       string
	AccessKey    string
	SecretKey    string
	Region       string
	UsePathStyle bool
}

// S3Mirror uploads every file in a completed snapshot directory under
// remote/<name>/ in the configured bucket.
type S3Mirror struct {
	client *s3.Client
	bucket string
}

// NewS3Mirror builds an S3Mirror from cfg.
func NewS3Mirror(cfg S3MirrorConfig) (*S3Mirror, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("snapshot: S3 mirror: empty bucket name")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot: S3 mirror: load AWS config: %w", err)
	}

	opts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}

	client := s3.NewFromConfig(awsCfg, opts)
	return &S3Mirror{client: client, bucket: cfg.Bucket}, nil
}

// Upload pushes every regular file under localDir to
// remote/<remoteName>/<file> in the configured bucket.
func (m *S3Mirror) Upload(ctx context.Context, localDir, remoteName string) error {
	ents, err := os.ReadDir(localDir)
	if err != nil {
		return fmt.Errorf("snapshot: S3 mirror: read %s: %w", localDir, err)
	}
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(localDir, e.Name()))
		if err != nil {
			return fmt.Errorf("snapshot: S3 mirror: read %s: %w", e.Name(), err)
		}
		key := "remote/" + remoteName + "/" + e.Name()
		_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(m.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/octet-stream"),
		})
		if err != nil {
			return fmt.Errorf("snapshot: S3 mirror: put object %q: %w", key, err)
		}
	}
	return nil
}
