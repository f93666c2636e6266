package finge

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures the S3 (or S3-compatible) image store.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
}

type s3PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3ImageStore struct {
	client s3PutObjectAPI
	cfg    S3Config
}

// NewS3ImageStore builds an image store backed by an S3 bucket. Credentials
// come from the default AWS chain.
func NewS3ImageStore(ctx context.Context, cfg S3Config) (ImageStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, NewError(ErrCodeInvalidInput, "s3 bucket is required")
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = awsCfg.Region
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3ImageStore(client, cfg), nil
}

func newS3ImageStore(client s3PutObjectAPI, cfg S3Config) *s3ImageStore {
	return &s3ImageStore{client: client, cfg: cfg}
}

func (s *s3ImageStore) Put(ctx context.Context, img Image) (StoredImage, error) {
	key := newImageKey(s.cfg.Prefix, img.ContentType)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(img.Data),
		ContentType:   aws.String(img.ContentType),
		ContentLength: aws.Int64(int64(len(img.Data))),
	})
	if err != nil {
		return StoredImage{}, WrapError(ErrCodeUpstream, "upload image to s3", err)
	}
	return StoredImage{
		Key:         key,
		URL:         s.objectURL(key),
		ContentType: img.ContentType,
		Size:        len(img.Data),
	}, nil
}

func (s *s3ImageStore) objectURL(key string) string {
	if s.cfg.Endpoint != "" {
		return strings.TrimRight(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}
