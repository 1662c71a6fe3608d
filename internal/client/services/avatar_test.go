package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testS3Config() S3Config {
	return S3Config{
		Region:       "us-east-1",
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		BaseEndpoint: "http://127.0.0.1:9000",
		Bucket:       "avatars",
	}
}

// stubS3 replaces the AWS seams for one test. The returned pointers collect
// what the storage asked for.
type s3Calls struct {
	baseEndpoint string
	region       string
	putKey       string
	putType      string
	getTTL       time.Duration
	uploadURL    string
	uploadData   []byte
}

func stubS3(t *testing.T) *s3Calls {
	t.Helper()
	calls := &s3Calls{}

	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	origNewPre := newS3PresignClient
	origPut := presignPutObject
	origGet := presignGetObject
	origUpload := uploadToPresignedURL
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
		presignPutObject = origPut
		presignGetObject = origGet
		uploadToPresignedURL = origUpload
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		calls.region = lo.Region
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		var opts s3.Options
		for _, fn := range optFns {
			fn(&opts)
		}
		if opts.BaseEndpoint != nil {
			calls.baseEndpoint = *opts.BaseEndpoint
		}
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return &s3.PresignClient{}
	}
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		calls.putKey = *in.Key
		calls.putType = aws.ToString(in.ContentType)
		return &v4.PresignedHTTPRequest{URL: "https://s3.local/put/" + *in.Key, Method: http.MethodPut}, nil
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		var po s3.PresignOptions
		for _, fn := range optFns {
			fn(&po)
		}
		calls.getTTL = po.Expires
		return &v4.PresignedHTTPRequest{URL: "https://s3.local/get/" + *in.Key, Method: http.MethodGet}, nil
	}
	uploadToPresignedURL = func(ctx context.Context, c *http.Client, url, contentType string, data []byte) error {
		calls.uploadURL = url
		calls.uploadData = data
		return nil
	}
	return calls
}

func TestS3AvatarStorage_UploadReturnsPresignedGet(t *testing.T) {
	calls := stubS3(t)
	st := NewS3AvatarStorage(testS3Config(), nil)

	url, err := st.Upload(context.Background(), "avatars/u1-1.png", "image/png", []byte("img"))
	require.NoError(t, err)

	assert.Equal(t, "https://s3.local/get/avatars/u1-1.png", url)
	assert.Equal(t, "us-east-1", calls.region)
	assert.Equal(t, "http://127.0.0.1:9000", calls.baseEndpoint)
	assert.Equal(t, "avatars/u1-1.png", calls.putKey)
	assert.Equal(t, "image/png", calls.putType)
	assert.Equal(t, "https://s3.local/put/avatars/u1-1.png", calls.uploadURL)
	assert.Equal(t, []byte("img"), calls.uploadData)
	assert.Equal(t, maxGetURLTTL, calls.getTTL)
}

func TestS3AvatarStorage_PublicBaseURL(t *testing.T) {
	calls := stubS3(t)
	cfg := testS3Config()
	cfg.PublicBaseURL = "https://cdn.example/avatars/"
	st := NewS3AvatarStorage(cfg, nil)

	url, err := st.Upload(context.Background(), "avatars/u1-1.png", "image/png", []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/avatars/avatars/u1-1.png", url)
	assert.Zero(t, calls.getTTL, "no presigned GET with a public base URL")
}

func TestS3AvatarStorage_URLTTL(t *testing.T) {
	calls := stubS3(t)
	cfg := testS3Config()
	cfg.URLTTL = time.Hour
	st := NewS3AvatarStorage(cfg, nil)

	_, err := st.Upload(context.Background(), "k", "", []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, calls.getTTL)
}

func TestS3AvatarStorage_Errors(t *testing.T) {
	t.Run("no bucket", func(t *testing.T) {
		stubS3(t)
		cfg := testS3Config()
		cfg.Bucket = ""
		_, err := NewS3AvatarStorage(cfg, nil).Upload(context.Background(), "k", "", []byte("x"))
		require.ErrorIs(t, err, ErrStorageNotConfigured)
	})

	t.Run("config load fails", func(t *testing.T) {
		stubS3(t)
		loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
			return aws.Config{}, errors.New("load-fail")
		}
		_, err := NewS3AvatarStorage(testS3Config(), nil).Upload(context.Background(), "k", "", []byte("x"))
		require.EqualError(t, err, "load-fail")
	})

	t.Run("presign put fails", func(t *testing.T) {
		stubS3(t)
		presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
			return nil, errors.New("put-fail")
		}
		_, err := NewS3AvatarStorage(testS3Config(), nil).Upload(context.Background(), "k", "", []byte("x"))
		require.EqualError(t, err, "put-fail")
	})

	t.Run("upload fails", func(t *testing.T) {
		calls := stubS3(t)
		uploadToPresignedURL = func(ctx context.Context, c *http.Client, url, contentType string, data []byte) error {
			return errors.New("upload failed: 403 Forbidden")
		}
		_, err := NewS3AvatarStorage(testS3Config(), nil).Upload(context.Background(), "k", "", []byte("x"))
		require.Error(t, err)
		assert.Zero(t, calls.getTTL)
	})
}
