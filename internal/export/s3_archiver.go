package export

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// S3API is the subset of the S3 client used by S3Archiver.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver uploads each export under a dated key.
type S3Archiver struct {
	client S3API
	bucket string
	now    func() time.Time
}

// NewS3Archiver returns nil when bucket or client is missing, which disables archiving.
func NewS3Archiver(client S3API, bucket string) *S3Archiver {
	if client == nil || bucket == "" {
		return nil
	}
	return &S3Archiver{client: client, bucket: bucket, now: time.Now}
}

// Archive uploads path as exports/<table>/<yyyy>/<mm>/<dd>/<table>-<unix>.xlsx.
func (a *S3Archiver) Archive(ctx context.Context, table, path string) error {
	if a == nil {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("export: open %s: %w", path, err)
	}
	defer f.Close()

	key := archiveKey(table, a.now().UTC())
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(xlsxContentType),
	})
	if err != nil {
		return fmt.Errorf("export: s3 put %s: %w", key, err)
	}
	return nil
}

func archiveKey(table string, now time.Time) string {
	return fmt.Sprintf("exports/%s/%d/%02d/%02d/%s-%d.xlsx",
		table, now.Year(), now.Month(), now.Day(), table, now.Unix())
}
