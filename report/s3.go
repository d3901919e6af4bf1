package report

import (
	"bytes"
	"context"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/pkg/errors"
)

// S3Sink uploads the JSON and CSV of each document to a bucket.
type S3Sink struct {
	uploader s3manageriface.UploaderAPI
	bucket   string
	prefix   string
}

// NewS3Sink creates a sink for bucket in region. Credentials come from the
// standard AWS environment variables, shared config or instance role.
//
// Arguments:
//   - region: The bucket region.
//   - bucket: The bucket name.
//   - prefix: Key prefix, such as "reports/"; may be empty.
//
// Returns:
//   - *S3Sink: The sink.
//   - error: An error if the AWS session cannot be created.
func NewS3Sink(region, bucket, prefix string) (*S3Sink, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create AWS session")
	}
	return NewS3SinkWithUploader(s3manager.NewUploader(sess), bucket, prefix), nil
}

// NewS3SinkWithUploader creates a sink on an existing uploader.
func NewS3SinkWithUploader(uploader s3manageriface.UploaderAPI, bucket, prefix string) *S3Sink {
	return &S3Sink{uploader: uploader, bucket: bucket, prefix: prefix}
}

// Name identifies the sink in logs.
func (s *S3Sink) Name() string {
	return "s3"
}

// Key returns the object key of a file name.
func (s *S3Sink) Key(name string) string {
	return path.Join(s.prefix, name)
}

// Publish uploads <name>.json and <name>.csv.
func (s *S3Sink) Publish(ctx context.Context, d Document) error {
	data, err := EncodeJSON(d)
	if err != nil {
		return err
	}
	if err := s.upload(ctx, d.Name()+".json", "application/json", data); err != nil {
		return err
	}

	data, err = EncodeCSV(d)
	if err != nil {
		return err
	}
	return s.upload(ctx, d.Name()+".csv", "text/csv", data)
}

func (s *S3Sink) upload(ctx context.Context, name, contentType string, data []byte) error {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.Key(name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	return errors.Wrapf(err, "failed to upload %s", name)
}
