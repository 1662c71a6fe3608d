package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/cofind/internal/netx"
)

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

	uploadToPresignedURL = netx.UploadToPresignedURL
)

const (
	uploadURLTTL = 15 * time.Minute
	// maxGetURLTTL is the longest validity S3 accepts for a presigned GET.
	maxGetURLTTL = 7 * 24 * time.Hour
)

var ErrStorageNotConfigured = errors.New("avatar storage is not configured")

// AvatarStorage stores avatar bytes under key and returns a URL the
// profile can point at.
type AvatarStorage interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// S3Config locates the avatar bucket. PublicBaseURL, when set, is the
// public prefix of the bucket and replaces presigned download links.
type S3Config struct {
	Region        string
	AccessKey     string
	SecretKey     string
	BaseEndpoint  string
	Bucket        string
	PublicBaseURL string
	URLTTL        time.Duration
}

// S3AvatarStorage uploads through a presigned PUT and hands out either a
// public URL or a presigned GET.
type S3AvatarStorage struct {
	cfg  S3Config
	http *http.Client
}

func NewS3AvatarStorage(cfg S3Config, httpClient *http.Client) *S3AvatarStorage {
	return &S3AvatarStorage{cfg: cfg, http: httpClient}
}

func (s *S3AvatarStorage) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.cfg.AccessKey,
			s.cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return newS3PresignClient(client), nil
}

func (s *S3AvatarStorage) getURLTTL() time.Duration {
	ttl := s.cfg.URLTTL
	if ttl <= 0 || ttl > maxGetURLTTL {
		ttl = maxGetURLTTL
	}
	return ttl
}

func (s *S3AvatarStorage) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if s.cfg.Bucket == "" {
		return "", ErrStorageNotConfigured
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.cfg.Bucket

	put, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(uploadURLTTL))
	if err != nil {
		return "", err
	}

	if err := uploadToPresignedURL(ctx, s.http, put.URL, contentType, data); err != nil {
		return "", err
	}

	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key, nil
	}

	get, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.getURLTTL()))
	if err != nil {
		return "", err
	}

	return get.URL, nil
}
