package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klass-lk/postboard/internal/model"
	"go.uber.org/zap"
)

type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3FileService keeps uploads in a bucket. The server proxies reads, so URLs
// stay /uploads/<name> and the bucket can remain private.
type S3FileService struct {
	client S3API
	bucket string
	prefix string
}

func NewS3FileService(client S3API, bucket, prefix string) *S3FileService {
	return &S3FileService{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

func (s *S3FileService) key(name string) string {
	return path.Join(s.prefix, name)
}

// Upload writes with If-None-Match so an existing key is never replaced. Stores
// that do not implement conditional writes get one unconditional attempt; the
// generated name is unique enough on its own.
func (s *S3FileService) Upload(ctx context.Context, payload model.UploadPayload) (string, error) {
	conditional := true
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := GenerateName(payload)
		err := s.put(ctx, name, payload.Data, conditional)
		switch {
		case err == nil:
			zap.L().Debug("upload stored in bucket", zap.String("bucket", s.bucket), zap.String("name", name))
			return URLFor(name), nil
		case isAPIError(err, "PreconditionFailed", "ConditionalRequestConflict"):
			zap.L().Debug("upload name collision, retrying", zap.String("name", name))
		case conditional && isAPIError(err, "NotImplemented"):
			zap.L().Warn("bucket rejects conditional writes, retrying unconditionally", zap.String("bucket", s.bucket))
			conditional = false
		default:
			return "", &model.UploadError{Op: "put object", Err: err}
		}
	}
	return "", &model.UploadError{Op: "put object", Err: fmt.Errorf("no free object key after %d attempts", maxNameAttempts)}
}

func (s *S3FileService) put(ctx context.Context, name string, data []byte, conditional bool) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(name)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(mimetype.Detect(data).String()),
	}
	if conditional {
		input.IfNoneMatch = aws.String("*")
	}
	_, err := s.client.PutObject(ctx, input)
	return err
}

func isAPIError(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}

func (s *S3FileService) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	name, err := CleanName(name)
	if err != nil {
		return nil, err
	}
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return result.Body, nil
}

func (s *S3FileService) Delete(ctx context.Context, url string) error {
	name, err := NameFromURL(url)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	return err
}
