package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store archives images in a bucket.
type S3Store struct {
	client objectPutter
	bucket string
	region string
	now    func() time.Time
}

// NewS3Store loads the default AWS credential chain for region.
func NewS3Store(ctx context.Context, bucket, region string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for S3: %w", err)
	}
	return newS3Store(s3.NewFromConfig(cfg), bucket, region), nil
}

func newS3Store(client objectPutter, bucket, region string) *S3Store {
	return &S3Store{client: client, bucket: bucket, region: region, now: time.Now}
}

// Put uploads data and returns its public bucket URL.
func (s *S3Store) Put(ctx context.Context, userID, filename string, data []byte) (string, error) {
	key := imageKey(userID, filename, s.now())
	ext := strings.TrimPrefix(path.Ext(key), ".")

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(ext)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}
