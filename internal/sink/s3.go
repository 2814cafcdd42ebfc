package sink

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/seenimoa/bmrs/pkg/models"
)

// PutObjectAPI is the part of *s3.Client the S3 sink uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads a table as one CSV object under
// {prefix}/{report}/{run id}.csv.
type S3 struct {
	client PutObjectAPI
	bucket string
	prefix string
}

var _ Sink = (*S3)(nil)

// NewS3 creates an S3 sink using client.
func NewS3(client PutObjectAPI, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

// OpenS3 creates an S3 sink from the default AWS credential chain.
func OpenS3(ctx context.Context, bucket, region, prefix string) (*S3, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 sink: no bucket")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// ObjectKey returns the key a run of report is stored under.
func (s *S3) ObjectKey(target Target) string {
	id := target.RunID
	if id == "" {
		id = uuid.NewString()
	}
	return path.Join(s.prefix, TableName(target.Report), id+".csv")
}

// Write implements Sink. The body is fully buffered before upload.
func (s *S3) Write(ctx context.Context, target Target, t *models.Table) (string, error) {
	var buf bytes.Buffer
	if err := t.WriteCSV(&buf); err != nil {
		return "", fmt.Errorf("encode csv: %w", err)
	}

	key := s.ObjectKey(target)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(int64(buf.Len())),
		ContentType:   aws.String("text/csv"),
		Metadata: map[string]string{
			"report": target.Report,
			"run-id": target.RunID,
			"rows":   strconv.Itoa(t.Len()),
		},
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

// Close implements Sink.
func (s *S3) Close() error { return nil }
