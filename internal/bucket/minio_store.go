package bucket

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
)

// MinIOStore adapts minio.Client to the coordinator's objectStore interface.
// The sharing engine reuses it for object reads and policy writes.
type MinIOStore struct {
	client *minio.Client
	region string
}

// NewMinIOStore constructs an adapter.
func NewMinIOStore(client *minio.Client, region string) *MinIOStore {
	return &MinIOStore{client: client, region: region}
}

// BucketExists reports whether the container exists in the object store.
func (s *MinIOStore) BucketExists(ctx context.Context, name string) (bool, error) {
	return s.client.BucketExists(ctx, name)
}

// MakeBucket provisions a container.
func (s *MinIOStore) MakeBucket(ctx context.Context, name string) error {
	return s.client.MakeBucket(ctx, name, minio.MakeBucketOptions{Region: s.region})
}

// RemoveBucket removes a container. MinIO requires it to be empty.
func (s *MinIOStore) RemoveBucket(ctx context.Context, name string) error {
	return s.client.RemoveBucket(ctx, name)
}

// PutObject streams a blob into the container and returns the stored size.
func (s *MinIOStore) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, size int64, contentType string) (int64, error) {
	info, err := s.client.PutObject(ctx, bucketName, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

// GetObject opens a blob for streaming. The Stat call forces MinIO's lazy
// error to surface here instead of on the first read.
func (s *MinIOStore) GetObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, ObjectStat, error) {
	obj, err := s.client.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectStat{}, translateMinIOError(err)
	}

	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, ObjectStat{}, translateMinIOError(err)
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return obj, ObjectStat{
		Filename:    objectName,
		SizeBytes:   info.Size,
		ContentType: contentType,
	}, nil
}

// ListObjects enumerates object names in a container. On a mid-listing
// failure the names collected so far are returned along with the error so
// callers can degrade to a partial result.
func (s *MinIOStore) ListObjects(ctx context.Context, bucketName string) ([]string, error) {
	var names []string
	for info := range s.client.ListObjects(ctx, bucketName, minio.ListObjectsOptions{}) {
		if info.Err != nil {
			return names, info.Err
		}
		names = append(names, info.Key)
	}
	return names, nil
}

// RemoveObject deletes a blob from the container.
func (s *MinIOStore) RemoveObject(ctx context.Context, bucketName, objectName string) error {
	return s.client.RemoveObject(ctx, bucketName, objectName, minio.RemoveObjectOptions{})
}

// SetBucketPolicy replaces the container's access policy document.
func (s *MinIOStore) SetBucketPolicy(ctx context.Context, bucketName, policy string) error {
	return s.client.SetBucketPolicy(ctx, bucketName, policy)
}

func translateMinIOError(err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return ErrObjectNotFound
	}
	return err
}
