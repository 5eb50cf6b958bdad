// Package storage hands out presigned URLs for the object store holding
// uploaded design files. The server never proxies blob bytes; clients talk
// to the store directly within the ticket window.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// BlobSigner mints presigned URLs for direct PUT/GET access to one object.
type BlobSigner interface {
	PresignPut(ctx context.Context, key string, validity time.Duration) (string, error)
	PresignGet(ctx context.Context, key string, validity time.Duration) (string, error)
}

// Seams for testing the AWS SDK calls.
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// S3Signer signs against an S3-compatible backend (AWS or MinIO).
type S3Signer struct {
	bucket       string
	region       string
	baseEndpoint string
	accessKey    string
	secretKey    string
}

type S3Config struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

func NewS3Signer(c S3Config) *S3Signer {
	return &S3Signer{
		bucket:       c.Bucket,
		region:       c.Region,
		baseEndpoint: c.BaseEndpoint,
		accessKey:    c.AccessKey,
		secretKey:    c.SecretKey,
	}
}

// NewStorageKey returns a date-partitioned random object key for one upload.
func NewStorageKey(userID string) string {
	d := time.Now()
	return fmt.Sprintf("designs/%s/%d/%d/%d/%v", userID, d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *S3Signer) presignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.accessKey,
			s.secretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.baseEndpoint)
	})

	return newS3PresignClient(client), nil
}

func (s *S3Signer) PresignPut(ctx context.Context, key string, validity time.Duration) (string, error) {
	pc, err := s.presignClient(ctx)
	if err != nil {
		return "", err
	}
	req, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}, s3.WithPresignExpires(validity))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func (s *S3Signer) PresignGet(ctx context.Context, key string, validity time.Duration) (string, error) {
	pc, err := s.presignClient(ctx)
	if err != nil {
		return "", err
	}
	req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}, s3.WithPresignExpires(validity))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
