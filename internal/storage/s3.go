package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/redstring/corkboard/internal/util"
	"github.com/redstring/corkboard/pkg/common"
)

// NewS3Client builds an S3 client from AWS_* env vars. Returns nil when the
// configuration cannot be loaded; archival is best-effort and callers treat
// a nil client as "archiving disabled".
func NewS3Client(ctx context.Context) *s3.Client {
	region := util.GetEnv("AWS_REGION")
	endpoint := util.GetEnv("AWS_ENDPOINT")
	accessKey := util.GetEnv("AWS_ACCESS_KEY")
	secretKey := util.GetEnv("AWS_SECRET_KEY")
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(region),
		config.WithBaseEndpoint(endpoint),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)),
	)
	if err != nil {
		return nil
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return client
}

// ArchiveSnapshot uploads a completed run's final board snapshot to
// boards/<run_id>.json in the configured bucket.
func ArchiveSnapshot(ctx context.Context, client *s3.Client, runID string, snapshot common.Snapshot) error {
	bucket := util.GetEnv("AWS_BUCKET")

	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	key := fmt.Sprintf("boards/%s.json", runID)
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload snapshot to S3: %v", err)
	}

	return nil
}

// GetSnapshot fetches an archived board snapshot by run ID.
func GetSnapshot(ctx context.Context, client *s3.Client, runID string) (common.Snapshot, error) {
	bucket := util.GetEnv("AWS_BUCKET")

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(fmt.Sprintf("boards/%s.json", runID)),
	})
	if err != nil {
		return common.Snapshot{}, fmt.Errorf("get snapshot from S3: %v", err)
	}
	defer result.Body.Close()

	body, err := io.ReadAll(result.Body)
	if err != nil {
		return common.Snapshot{}, fmt.Errorf("read snapshot body: %v", err)
	}

	var snapshot common.Snapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return common.Snapshot{}, fmt.Errorf("decode snapshot: %v", err)
	}

	return snapshot, nil
}
