package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the subset of the S3 client the archive needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads shifts to a bucket under an optional key prefix.
type S3 struct {
	Client PutObjectAPI
	Bucket string
	Prefix string
}

// NewS3 builds a client from the default AWS credential chain.
func NewS3(ctx context.Context, region, bucket, prefix string) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3{Client: s3.NewFromConfig(cfg), Bucket: bucket, Prefix: prefix}, nil
}

func (s *S3) Put(ctx context.Context, name string, data []byte) (string, error) {
	key := path.Join(s.Prefix, name)
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("upload shift to s3: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.Bucket, key), nil
}
