// Package verification stores verification selfies in S3 and returns the
// durable reference recorded on activity records.
//
// Image bytes are streamed from the local file as-is; nothing here decodes
// or inspects them.
package verification

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

// Tag is the category a selfie verifies.
type Tag string

const (
	TagClockIn    Tag = "clock_in"
	TagClockOut   Tag = "clock_out"
	TagBreakStart Tag = "break_start"
	TagBreakEnd   Tag = "break_end"
)

// ParseTag validates s as a selfie tag.
func ParseTag(s string) (Tag, error) {
	switch t := Tag(s); t {
	case TagClockIn, TagClockOut, TagBreakStart, TagBreakEnd:
		return t, nil
	}
	return "", fmt.Errorf("selfie not accepted for %q: tags are clock_in, clock_out, break_start, break_end", s)
}

// TagFor returns the tag for an activity type, if selfies apply to it.
func TagFor(t model.ActivityType) (Tag, bool) {
	tag, err := ParseTag(string(t))
	return tag, err == nil
}

// PutObjectAPI is the subset of the S3 client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader puts selfies under bucket/prefix/user/date/.
type Uploader struct {
	client PutObjectAPI
	bucket string
	prefix string
	newID  func() string
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithIDFunc sets the generator for the unique part of object keys.
func WithIDFunc(fn func() string) Option {
	return func(u *Uploader) {
		if fn != nil {
			u.newID = fn
		}
	}
}

// NewUploader creates an Uploader over client.
func NewUploader(client PutObjectAPI, bucket, prefix string, opts ...Option) *Uploader {
	u := &Uploader{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		newID:  func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// NewS3Uploader creates an Uploader using the default AWS credential chain.
func NewS3Uploader(ctx context.Context, bucket, prefix string, opts ...Option) (*Uploader, error) {
	if bucket == "" {
		return nil, fmt.Errorf("selfie bucket is not configured")
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewUploader(s3.NewFromConfig(cfg), bucket, prefix, opts...), nil
}

// Upload stores the image at localPath for userID's session on date
// (YYYY-MM-DD) and returns its durable URL.
func (u *Uploader) Upload(ctx context.Context, localPath string, tag Tag, userID, date string) (string, error) {
	if _, err := ParseTag(string(tag)); err != nil {
		return "", err
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return "", fmt.Errorf("selfie date %q: %w", date, err)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open selfie: %w", err)
	}
	defer f.Close()

	key := u.objectKey(localPath, tag, userID, date)
	input := &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   f,
		Metadata: map[string]string{
			"user-id": userID,
			"tag":     string(tag),
			"date":    date,
		},
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(localPath))); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := u.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to put object %s in bucket %s: %w", key, u.bucket, err)
	}

	url := fmt.Sprintf("https://%s.s3.amazonaws.com/%s", u.bucket, key)
	slog.Info("selfie uploaded", "user", userID, "tag", tag, "key", key)
	return url, nil
}

func (u *Uploader) objectKey(localPath string, tag Tag, userID, date string) string {
	name := fmt.Sprintf("%s-%s%s", tag, u.newID(), strings.ToLower(filepath.Ext(localPath)))
	parts := []string{userID, date, name}
	if u.prefix != "" {
		parts = append([]string{u.prefix}, parts...)
	}
	return path.Join(parts...)
}
