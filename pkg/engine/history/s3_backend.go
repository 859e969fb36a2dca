package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the slice of the S3 client the backend needs.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Backend stores the ledger as a single JSONL object. Appends are
// read-modify-write; concurrent writers from separate runs may lose records,
// which is acceptable for a weekly cadence.
type S3Backend struct {
	client S3API
	bucket string
	key    string
}

// NewS3Backend points the ledger at s3://bucket/key.
func NewS3Backend(client S3API, bucket, key string) *S3Backend {
	if key == "" {
		key = "costwarden/history.jsonl"
	}
	return &S3Backend{client: client, bucket: bucket, key: key}
}

func (b *S3Backend) Append(ctx context.Context, snap Snapshot) error {
	existing, err := b.fetch(ctx)
	if err != nil {
		return err
	}

	line, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	body := append(existing, append(line, '\n')...)
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("writing ledger to s3://%s/%s: %w", b.bucket, b.key, err)
	}
	return nil
}

func (b *S3Backend) Load(ctx context.Context) ([]Snapshot, error) {
	data, err := b.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return decodeJSONL(bytes.NewReader(data))
}

// fetch returns the whole ledger object, or empty when it does not exist yet.
func (b *S3Backend) fetch(ctx context.Context) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading ledger from s3://%s/%s: %w", b.bucket, b.key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
