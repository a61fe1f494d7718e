// Package objectstore is the Object Store Adapter: an S3-compatible
// client built per-request from a resolved credential set, supporting
// put/get/head/delete, paginated listing, recursive prefix deletion,
// and presigned URL minting with optional public-endpoint rewriting.
package objectstore

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	apperrors "github.com/vaultspace/artifactd/internal/errors"
)

// Credentials resolves to a client's endpoint, region, bucket, and
// optional key-prefix plus a public endpoint to rewrite presigned URLs
// through.
type Credentials struct {
	Endpoint       string
	Region         string
	AccessKeyID    string
	SecretAccessKey string
	Bucket         string
	Prefix         string
	PublicEndpoint string
}

// Client is a per-credential-set S3-compatible object store client,
// guarded by a circuit breaker so a flapping backend fails fast instead
// of stacking up slow requests.
type Client struct {
	s3       *s3.Client
	presign  *s3.PresignClient
	uploader *manager.Uploader
	bucket   string
	breaker  *gobreaker.CircuitBreaker
	public   string
	logger   *zap.Logger
}

// NewClient builds a Client for the given Credentials.
func NewClient(ctx context.Context, creds Credentials, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts []func(*awsconfig.LoadOptions) error
	if creds.Region != "" {
		opts = append(opts, awsconfig.WithRegion(creds.Region))
	}
	if creds.AccessKeyID != "" && creds.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, apperrors.NewBackendError("object store", err).WithDetails("load AWS config")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if creds.Endpoint != "" {
			o.BaseEndpoint = aws.String(creds.Endpoint)
		}
		o.UsePathStyle = true
	})

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "objectstore:" + creds.Bucket,
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
	})

	return &Client{
		s3:       client,
		presign:  s3.NewPresignClient(client),
		uploader: manager.NewUploader(client),
		bucket:   creds.Bucket,
		breaker:  breaker,
		public:   creds.PublicEndpoint,
		logger:   logger,
	}, nil
}

func (c *Client) call(op string, fn func() (interface{}, error)) (interface{}, error) {
	result, err := c.breaker.Execute(fn)
	if err != nil {
		return nil, apperrors.NewBackendError("object store: "+op, err)
	}
	return result, nil
}

// Head checks whether an object exists, returning a not-found AppError
// if it does not.
func (c *Client) Head(ctx context.Context, key string) error {
	_, err := c.call("head", func() (interface{}, error) {
		return c.s3.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
	})
	if err != nil {
		return apperrors.NewNotFoundError("object " + key)
	}
	return nil
}

// Put uploads body under key.
func (c *Client) Put(ctx context.Context, key string, body []byte) error {
	_, err := c.call("put", func() (interface{}, error) {
		return c.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(c.bucket), Key: aws.String(key), Body: bytes.NewReader(body),
		})
	})
	return err
}

// Get downloads the object at key.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := c.call("get", func() (interface{}, error) {
		out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
		if err != nil {
			return nil, err
		}
		defer out.Body.Close()
		return io.ReadAll(out.Body)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// Delete removes a single object.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.call("delete", func() (interface{}, error) {
		return c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
	})
	return err
}

// ListResult is one page of a prefix listing.
type ListResult struct {
	Keys              []string
	ContinuationToken *string
}

// List paginates objects under prefix, up to limit per call.
func (c *Client) List(ctx context.Context, prefix string, limit int32, continuationToken *string) (*ListResult, error) {
	result, err := c.call("list", func() (interface{}, error) {
		return c.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket: aws.String(c.bucket), Prefix: aws.String(prefix), MaxKeys: aws.Int32(limit),
			ContinuationToken: continuationToken,
		})
	})
	if err != nil {
		return nil, err
	}
	out := result.(*s3.ListObjectsV2Output)
	keys := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		keys = append(keys, aws.ToString(obj.Key))
	}
	return &ListResult{Keys: keys, ContinuationToken: out.NextContinuationToken}, nil
}

// DeletePrefix recursively removes every object under prefix, paginating
// and batch-deleting up to 1000 keys per request.
func (c *Client) DeletePrefix(ctx context.Context, prefix string) error {
	var token *string
	for {
		page, err := c.List(ctx, prefix, 1000, token)
		if err != nil {
			return err
		}
		if len(page.Keys) > 0 {
			if err := c.deleteObjects(ctx, page.Keys); err != nil {
				return err
			}
		}
		if page.ContinuationToken == nil {
			return nil
		}
		token = page.ContinuationToken
	}
}

func (c *Client) deleteObjects(ctx context.Context, keys []string) error {
	ids := make([]types.ObjectIdentifier, len(keys))
	for i, k := range keys {
		ids[i] = types.ObjectIdentifier{Key: aws.String(k)}
	}
	_, err := c.call("delete_batch", func() (interface{}, error) {
		return c.s3.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(c.bucket),
			Delete: &types.Delete{Objects: ids},
		})
	})
	return err
}

// PresignPut mints a presigned PUT URL valid for ttl, rewriting its host
// through the public endpoint override when configured.
func (c *Client) PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	result, err := c.call("presign_put", func() (interface{}, error) {
		return c.presign.PresignPutObject(ctx, &s3.PutObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)},
			s3.WithPresignExpires(ttl))
	})
	if err != nil {
		return "", err
	}
	return c.rewritePublic(result.(*v4.PresignedHTTPRequest).URL)
}

// PresignGet mints a presigned GET URL valid for ttl.
func (c *Client) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	result, err := c.call("presign_get", func() (interface{}, error) {
		return c.presign.PresignGetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)},
			s3.WithPresignExpires(ttl))
	})
	if err != nil {
		return "", err
	}
	return c.rewritePublic(result.(*v4.PresignedHTTPRequest).URL)
}

func (c *Client) rewritePublic(rawURL string) (string, error) {
	if c.public == "" {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeInternal, "parse presigned URL")
	}
	pub, err := url.Parse(c.public)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeInternal, "parse public endpoint")
	}
	u.Scheme = pub.Scheme
	u.Host = pub.Host
	return u.String(), nil
}
