package webservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"user-profile/internal/domain"
)

// S3Service reads user documents stored as {KeyPrefix}/{id}.json in a bucket
// on Amazon S3 (or a compatible API).
type S3Service struct {
	downloader *manager.Downloader
	bucket     string
	keyPrefix  string
}

func NewS3Service(client *s3.Client, bucket, keyPrefix string) *S3Service {
	return &S3Service{
		downloader: manager.NewDownloader(client, func(d *manager.Downloader) {
			d.Concurrency = 1
		}),
		bucket:    bucket,
		keyPrefix: strings.Trim(keyPrefix, "/"),
	}
}

func (s *S3Service) GetUser(userID string) Call {
	return NewCall(func(ctx context.Context) (*domain.User, error) {
		return s.fetch(ctx, userID)
	})
}

func (s *S3Service) fetch(ctx context.Context, userID string) (*domain.User, error) {
	if s.bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	key, err := userKey(s.keyPrefix, userID)
	if err != nil {
		return nil, err
	}

	// one byte past the limit is enough to tell an oversized document apart
	buf := manager.NewWriteAtBuffer(nil)
	n, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=0-%d", maxUserPayload)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("get user %s: %w", userID, ErrUserNotFound)
		}
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	if n > maxUserPayload {
		return nil, fmt.Errorf("user document %s exceeds %d bytes", key, maxUserPayload)
	}

	return decodeUser(bytes.NewReader(buf.Bytes()), userID)
}

func userKey(prefix, userID string) (string, error) {
	id := strings.TrimSpace(userID)
	if id == "" || strings.Contains(id, "/") || id == "." || id == ".." {
		return "", fmt.Errorf("invalid user id %q", userID)
	}
	if prefix == "" {
		return id + ".json", nil
	}
	return prefix + "/" + id + ".json", nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

var _ Service = (*S3Service)(nil)
