package verification

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func writeImage(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("not really a jpeg"), 0o600))
	return p
}

func newTestUploader(client PutObjectAPI) *Uploader {
	return NewUploader(client, "absensi-selfies", "/selfies/",
		WithIDFunc(func() string { return "0001" }))
}

func TestUpload_PutsObjectAndReturnsURL(t *testing.T) {
	fake := &fakePutter{}
	u := newTestUploader(fake)

	url, err := u.Upload(context.Background(), writeImage(t, "me.JPG"), TagClockIn, "alice", "2025-01-06")

	require.NoError(t, err)
	assert.Equal(t, "https://absensi-selfies.s3.amazonaws.com/selfies/alice/2025-01-06/clock_in-0001.jpg", url)
	require.Len(t, fake.inputs, 1)
	in := fake.inputs[0]
	assert.Equal(t, "absensi-selfies", aws.ToString(in.Bucket))
	assert.Equal(t, "selfies/alice/2025-01-06/clock_in-0001.jpg", aws.ToString(in.Key))
	assert.Equal(t, "image/jpeg", aws.ToString(in.ContentType))
	assert.Equal(t, "clock_in", in.Metadata["tag"])
	assert.Equal(t, "2025-01-06", in.Metadata["date"])
	assert.Equal(t, []byte("not really a jpeg"), fake.bodies[0])
}

func TestUpload_RejectsUnknownTag(t *testing.T) {
	fake := &fakePutter{}
	u := newTestUploader(fake)

	_, err := u.Upload(context.Background(), writeImage(t, "x.png"), Tag("overtime_start"), "alice", "2025-01-06")

	assert.Error(t, err)
	assert.Empty(t, fake.inputs)
}

func TestUpload_Errors(t *testing.T) {
	u := newTestUploader(&fakePutter{})
	_, err := u.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"), TagBreakEnd, "alice", "2025-01-06")
	assert.ErrorIs(t, err, os.ErrNotExist)

	boom := errors.New("access denied")
	u = newTestUploader(&fakePutter{err: boom})
	_, err = u.Upload(context.Background(), writeImage(t, "a.jpg"), TagClockOut, "alice", "2025-01-06")
	assert.ErrorIs(t, err, boom)
}

func TestUpload_KeyUsesSessionDate(t *testing.T) {
	fake := &fakePutter{}
	u := newTestUploader(fake)

	// An overnight session clocked out after midnight keeps its start day.
	_, err := u.Upload(context.Background(), writeImage(t, "out.jpg"), TagClockOut, "alice", "2025-01-06")
	require.NoError(t, err)
	require.Len(t, fake.inputs, 1)
	assert.Equal(t, "selfies/alice/2025-01-06/clock_out-0001.jpg", aws.ToString(fake.inputs[0].Key))

	_, err = u.Upload(context.Background(), writeImage(t, "out.jpg"), TagClockOut, "alice", "")
	assert.Error(t, err)
	assert.Len(t, fake.inputs, 1)
}

func TestTagFor(t *testing.T) {
	tag, ok := TagFor(model.ActivityBreakStart)
	assert.True(t, ok)
	assert.Equal(t, TagBreakStart, tag)

	_, ok = TagFor(model.ActivityClientVisitStart)
	assert.False(t, ok)
}

func TestNewS3Uploader_RequiresBucket(t *testing.T) {
	_, err := NewS3Uploader(context.Background(), "", "selfies")
	assert.Error(t, err)
}
