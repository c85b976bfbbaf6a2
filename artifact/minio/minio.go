// Package minio provides an artifact.Backend for MinIO and
// S3-compatible object storage, so batches can run against a bucket
// instead of a local directory.
package minio

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/spectralseg/spectralseg/artifact"
)

// Backend implements artifact.Backend on a MinIO bucket.
type Backend struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewBackend creates a Backend over the given bucket.
// rootPrefix is prepended to all artifact names (e.g. "voc2012/").
func NewBackend(client *minio.Client, bucket, rootPrefix string) *Backend {
	return &Backend{client: client, bucket: bucket, prefix: rootPrefix}
}

func (b *Backend) key(name string) string {
	return path.Join(b.prefix, name)
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NotFound"
}

// Get reads the object stored under name.
func (b *Backend) Get(ctx context.Context, name string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, b.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, artifact.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Put writes data under name. Object stores publish objects atomically,
// which satisfies the Backend contract without a rename step.
func (b *Backend) Put(ctx context.Context, name string, data []byte) error {
	_, err := b.client.PutObject(ctx, b.bucket, b.key(name),
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	return err
}

// Exists reports whether an object is present under name.
func (b *Backend) Exists(ctx context.Context, name string) (bool, error) {
	_, err := b.client.StatObject(ctx, b.bucket, b.key(name), minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns all object names with the given prefix, sorted,
// with the root prefix stripped.
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := b.key(prefix)

	var names []string
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:    fullPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		name := obj.Key
		if b.prefix != "" {
			name = strings.TrimPrefix(strings.TrimPrefix(name, b.prefix), "/")
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
