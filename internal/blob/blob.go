// Package blob stores opaque attachments on S3-compatible storage: the
// quality and logistics documents of a requirement and the material photos
// of an offer. The core only ever sees the keys.
package blob

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Client provides access to the attachment bucket.
type Client struct {
	s3Client *s3.Client
	bucket   string
	endpoint string
}

// NewClient creates a client for an S3-compatible endpoint.
func NewClient(endpoint, accessKeyID, secretAccessKey, bucket, region string) (*Client, error) {
	if endpoint == "" || accessKeyID == "" || secretAccessKey == "" {
		return nil, fmt.Errorf("blob storage credentials not configured")
	}

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID,
			secretAccessKey,
			"",
		)),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &Client{
		s3Client: s3Client,
		bucket:   bucket,
		endpoint: endpoint,
	}, nil
}

// Upload stores content under the given key.
func (c *Client) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload attachment: %w", err)
	}
	return nil
}

// Download retrieves content by key. The caller closes the reader.
func (c *Client) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download attachment: %w", err)
	}
	return result.Body, nil
}

// Delete removes an object. Attachments of hidden records are kept; this is
// only for replacing an upload before the record is submitted.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	return nil
}

// Exists checks whether an object is present.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, nil
	}
	return true, nil
}

// Bucket returns the bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// RequirementDocKey builds the object key for a requirement clause document.
func RequirementDocKey(requirementID, clause, filename string) string {
	return path.Join("requirements", requirementID, clause, path.Base(filename))
}

// OfferPhotoKey builds the object key for an offer material photo.
func OfferPhotoKey(offerID, filename string) string {
	return path.Join("offers", offerID, "photos", path.Base(filename))
}
