package uploads

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3Service struct {
	bucket    string
	presigner *s3.PresignClient
	policy    Policy
	ttl       time.Duration
}

func NewService(bucket string, presigner *s3.PresignClient, policy Policy, ttl time.Duration) Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &s3Service{
		bucket:    bucket,
		presigner: presigner,
		policy:    policy,
		ttl:       ttl,
	}
}

func (s *s3Service) PresignUpload(ctx context.Context, filename, contentType string, size int64) (string, string, error) {
	const op = "uploads.PresignUpload"

	if err := s.policy.Validate(contentType, size); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	key, err := GenerateKey(filename, contentType)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", "", fmt.Errorf("%s: presign put: %w", op, err)
	}

	return key, req.URL, nil
}

func (s *s3Service) PresignDownload(ctx context.Context, key string) (string, error) {
	const op = "uploads.PresignDownload"

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("%s: presign get: %w", op, err)
	}

	return req.URL, nil
}
