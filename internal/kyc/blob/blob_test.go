package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycgate/internal/platform/config"
	"kycgate/pkg/platform/sentinel"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "doc.pdf", []byte("%PDF-1.4"), "application/pdf"))

	got, err := store.Get(ctx, "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), got)

	require.NoError(t, store.Delete(ctx, "doc.pdf"))
	_, err = store.Get(ctx, "doc.pdf")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, store.Delete(ctx, "doc.pdf"), "deleting a missing blob is a no-op")
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestFSStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFS(dir)
	require.NoError(t, err)
	exerciseStore(t, store)

	t.Run("rejects path traversal", func(t *testing.T) {
		err := store.Put(context.Background(), "../escape.pdf", []byte("x"), "")
		require.Error(t, err)
		_, statErr := os.Stat(filepath.Join(filepath.Dir(dir), "escape.pdf"))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		require.NoError(t, store.Put(context.Background(), "a.png", []byte("x"), ""))
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "a.png", entries[0].Name())
	})
}

type fakeObjectAPI struct {
	objects map[string][]byte
	putErr  error
}

func (f *fakeObjectAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Bucket+"/"+*in.Key] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeObjectAPI) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	api := &fakeObjectAPI{objects: map[string][]byte{}}
	store := NewS3WithAPI(api, "kyc-bucket")
	exerciseStore(t, store)

	t.Run("keys live under the kyc prefix", func(t *testing.T) {
		require.NoError(t, store.Put(context.Background(), "x.jpg", []byte("x"), "image/jpeg"))
		assert.Contains(t, api.objects, "kyc-bucket/kyc/x.jpg")
	})

	t.Run("wraps put failures", func(t *testing.T) {
		api.putErr = errors.New("access denied")
		defer func() { api.putErr = nil }()
		err := store.Put(context.Background(), "y.jpg", []byte("x"), "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access denied")
	})
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	store, err := New(ctx, config.StorageConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = New(ctx, config.StorageConfig{Backend: "fs", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FSStore{}, store)

	_, err = New(ctx, config.StorageConfig{Backend: "s3"})
	assert.Error(t, err, "bucket is required")

	_, err = New(ctx, config.StorageConfig{Backend: "tape"})
	assert.Error(t, err)
}
