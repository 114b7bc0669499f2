package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/curalab/fedbench/internal/core/config"
	"github.com/curalab/fedbench/pkg/logger"
)

// S3Service fetches remote dataset manifests and publishes evaluation
// reports to the configured bucket.
type S3Service struct {
	client     *s3.Client
	bucketName string
}

func NewS3Service(cfg *config.Config) (*S3Service, error) {
	if cfg.AWS.AccessKeyID == "" || cfg.AWS.SecretAccessKey == "" {
		return nil, fmt.Errorf("missing required AWS credentials")
	}
	if cfg.AWS.Region == "" {
		return nil, fmt.Errorf("AWS region must be specified")
	}
	if cfg.AWS.BucketName == "" {
		return nil, fmt.Errorf("AWS bucket name must be specified")
	}

	creds := credentials.NewStaticCredentialsProvider(
		cfg.AWS.AccessKeyID,
		cfg.AWS.SecretAccessKey,
		"",
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.AWS.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	return &S3Service{
		client:     s3.NewFromConfig(awsCfg),
		bucketName: cfg.AWS.BucketName,
	}, nil
}

// DownloadObject fetches an object from an arbitrary bucket, used for
// dataset manifests referenced by s3:// URIs.
func (s *S3Service) DownloadObject(ctx context.Context, bucket, key string) ([]byte, error) {
	log := logger.WithComponent("s3_service")

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		log.Error().Err(err).
			Str("bucket", bucket).
			Str("key", key).
			Msg("Failed to download object from S3")
		return nil, fmt.Errorf("failed to download s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	log.Info().
		Str("bucket", bucket).
		Str("key", key).
		Int("bytes", len(data)).
		Msg("Downloaded object from S3")
	return data, nil
}

// UploadReport stores a rendered CSV report under reports/ in the service
// bucket and returns a pre-signed URL valid for 24 hours.
func (s *S3Service) UploadReport(ctx context.Context, report []byte, runName string) (string, error) {
	log := logger.WithComponent("s3_service")

	filename := fmt.Sprintf("%s-%s.csv", runName, uuid.New().String())
	key := path.Join("reports", filename)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(report),
		ContentType:   aws.String("text/csv"),
		ContentLength: aws.Int64(int64(len(report))),
	})
	if err != nil {
		log.Error().Err(err).
			Str("bucket", s.bucketName).
			Str("key", key).
			Msg("Failed to upload report to S3")
		return "", fmt.Errorf("failed to upload report: %w", err)
	}

	presignClient := s3.NewPresignClient(s.client)
	presigned, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(24*time.Hour))
	if err != nil {
		log.Error().Err(err).
			Str("bucket", s.bucketName).
			Str("key", key).
			Msg("Failed to generate pre-signed report URL")
		return "", fmt.Errorf("failed to presign report url: %w", err)
	}

	log.Info().
		Str("key", key).
		Msg("Uploaded evaluation report to S3")
	return presigned.URL, nil
}
