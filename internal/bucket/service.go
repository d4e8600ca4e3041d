package bucket

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"cloudbucket/internal/auth"
	"cloudbucket/internal/metrics"
	"cloudbucket/internal/namespace"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// metadataStore abstracts the relational side of the coordinator.
type metadataStore interface {
	UpsertBucket(ctx context.Context, ownerID uuid.UUID, name string) (Bucket, error)
	FindBucket(ctx context.Context, ownerID uuid.UUID, name string) (Bucket, error)
	DeleteBucket(ctx context.Context, ownerID uuid.UUID, name string) (bool, error)
	UpsertFile(ctx context.Context, bucketID uuid.UUID, name string, sizeBytes int64) (File, error)
	ListFiles(ctx context.Context, bucketID uuid.UUID) ([]File, error)
	DeleteFileByName(ctx context.Context, bucketID uuid.UUID, name string) (bool, error)
	RecordVersion(ctx context.Context, fileID, userID uuid.UUID, contentHash string) error
}

// objectStore abstracts the binary side of the coordinator.
type objectStore interface {
	BucketExists(ctx context.Context, name string) (bool, error)
	MakeBucket(ctx context.Context, name string) error
	RemoveBucket(ctx context.Context, name string) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, size int64, contentType string) (int64, error)
	GetObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, ObjectStat, error)
	ListObjects(ctx context.Context, bucketName string) ([]string, error)
	RemoveObject(ctx context.Context, bucketName, objectName string) error
}

// Service is the storage coordinator. It keeps the metadata store mirroring
// the object store under a fixed write ordering: the object store mutates
// first, metadata second, so a partial failure leaves metadata undercounting
// reality rather than pointing at blobs that do not exist.
type Service struct {
	repo  metadataStore
	store objectStore
	logg  *zap.Logger
}

// NewService constructs the coordinator.
func NewService(repo metadataStore, store objectStore, logg *zap.Logger) *Service {
	if logg == nil {
		logg = zap.NewNop()
	}
	return &Service{repo: repo, store: store, logg: logg}
}

// CreateContainer provisions the owner's container for the label and
// registers the bucket row. Repeating the call is a no-op success.
func (s *Service) CreateContainer(ctx context.Context, principal auth.Principal, label string) (Bucket, error) {
	name, err := s.containerName(principal, label)
	if err != nil {
		return Bucket{}, err
	}

	exists, err := s.store.BucketExists(ctx, name)
	if err != nil {
		return Bucket{}, fmt.Errorf("check container %q: %w", name, err)
	}
	if !exists {
		if err := s.store.MakeBucket(ctx, name); err != nil {
			return Bucket{}, fmt.Errorf("create container %q: %w", name, err)
		}
	}

	bucket, err := s.repo.UpsertBucket(ctx, principal.ID, name)
	if err != nil {
		if errors.Is(err, ErrBucketOwnedByOther) {
			return Bucket{}, ErrBucketOwnedByOther
		}
		// container exists but the row does not: divergence until retried
		s.divergence("create_container", name, "", err)
		return Bucket{}, fmt.Errorf("register bucket %q: %w", name, err)
	}

	return bucket, nil
}

// PutObject streams the payload into the container, then records the file
// row and a content-hash version entry. A metadata failure after the blob
// write leaves an orphan blob; that divergence is logged and counted, never
// compensated by deleting the blob.
func (s *Service) PutObject(ctx context.Context, principal auth.Principal, label, objectName string, reader io.Reader, size int64, contentType string) (File, error) {
	name, err := s.containerName(principal, label)
	if err != nil {
		return File{}, err
	}

	exists, err := s.store.BucketExists(ctx, name)
	if err != nil {
		return File{}, fmt.Errorf("check container %q: %w", name, err)
	}
	if !exists {
		return File{}, ErrBucketNotFound
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	hasher := sha256.New()
	written, err := s.store.PutObject(ctx, name, objectName, io.TeeReader(reader, hasher), size, contentType)
	if err != nil {
		return File{}, fmt.Errorf("store object %q: %w", objectName, err)
	}
	if written != size {
		// the truncated blob is useless; best-effort cleanup before failing
		_ = s.store.RemoveObject(ctx, name, objectName)
		return File{}, ErrSizeMismatch
	}

	bucket, err := s.repo.FindBucket(ctx, principal.ID, name)
	if err != nil {
		if errors.Is(err, ErrBucketNotFound) {
			s.divergence("put_object", name, objectName, err)
			return File{}, ErrBucketNotFound
		}
		s.divergence("put_object", name, objectName, err)
		return File{}, fmt.Errorf("find bucket %q: %w", name, err)
	}

	file, err := s.repo.UpsertFile(ctx, bucket.ID, objectName, written)
	if err != nil {
		s.divergence("put_object", name, objectName, err)
		return File{}, fmt.Errorf("record file %q: %w", objectName, err)
	}

	contentHash := hex.EncodeToString(hasher.Sum(nil))
	if err := s.repo.RecordVersion(ctx, file.ID, principal.ID, contentHash); err != nil {
		// audit trail only; the upload itself already succeeded
		s.logg.Warn("record file version failed",
			zap.String("container", name),
			zap.String("object", objectName),
			zap.Error(err))
	}

	metrics.Uploads.Inc()
	return file, nil
}

// GetObject opens an owner's blob for streaming.
func (s *Service) GetObject(ctx context.Context, principal auth.Principal, label, objectName string) (io.ReadCloser, ObjectStat, error) {
	name, err := s.containerName(principal, label)
	if err != nil {
		return nil, ObjectStat{}, err
	}

	reader, stat, err := s.store.GetObject(ctx, name, objectName)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, ObjectStat{}, ErrObjectNotFound
		}
		return nil, ObjectStat{}, fmt.Errorf("fetch object %q: %w", objectName, err)
	}

	metrics.Downloads.WithLabelValues("owner").Inc()
	return reader, stat, nil
}

// ListObjects enumerates the container from the object store, which is
// authoritative for existence, and joins file rows for identifiers.
// Metadata drift yields nil identifiers; a mid-listing store failure
// degrades to the partial result. Listing never fails on drift.
func (s *Service) ListObjects(ctx context.Context, principal auth.Principal, label string) ([]ObjectEntry, error) {
	name, err := s.containerName(principal, label)
	if err != nil {
		return nil, err
	}

	exists, err := s.store.BucketExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("check container %q: %w", name, err)
	}
	if !exists {
		return nil, ErrBucketNotFound
	}

	names, listErr := s.store.ListObjects(ctx, name)
	if listErr != nil {
		s.logg.Warn("partial container listing",
			zap.String("container", name),
			zap.Error(listErr))
	}

	idsByName := make(map[string]uuid.UUID)
	if bucket, err := s.repo.FindBucket(ctx, principal.ID, name); err == nil {
		if files, err := s.repo.ListFiles(ctx, bucket.ID); err == nil {
			for _, file := range files {
				idsByName[file.Name] = file.ID
			}
		} else {
			s.logg.Warn("metadata join failed during listing",
				zap.String("container", name),
				zap.Error(err))
		}
	} else if !errors.Is(err, ErrBucketNotFound) {
		s.logg.Warn("metadata join failed during listing",
			zap.String("container", name),
			zap.Error(err))
	}

	entries := make([]ObjectEntry, 0, len(names))
	for _, objectName := range names {
		entry := ObjectEntry{Filename: objectName}
		if id, ok := idsByName[objectName]; ok {
			fileID := id
			entry.FileID = &fileID
		} else {
			metrics.StoreDivergence.WithLabelValues("list_objects").Inc()
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// DeleteObjects removes each named blob and then its metadata row. The
// batch runs to completion; per-name failures are collected and reported
// together. A missing metadata row behind a removed blob is not a failure.
func (s *Service) DeleteObjects(ctx context.Context, principal auth.Principal, label string, objectNames []string) (BatchDeleteResult, error) {
	name, err := s.containerName(principal, label)
	if err != nil {
		return BatchDeleteResult{}, err
	}

	exists, err := s.store.BucketExists(ctx, name)
	if err != nil {
		return BatchDeleteResult{}, fmt.Errorf("check container %q: %w", name, err)
	}
	if !exists {
		return BatchDeleteResult{}, ErrBucketNotFound
	}

	var bucketID uuid.UUID
	haveBucketRow := false
	if bucket, err := s.repo.FindBucket(ctx, principal.ID, name); err == nil {
		bucketID = bucket.ID
		haveBucketRow = true
	} else if !errors.Is(err, ErrBucketNotFound) {
		return BatchDeleteResult{}, fmt.Errorf("find bucket %q: %w", name, err)
	}

	result := BatchDeleteResult{Deleted: []string{}, Failed: []DeleteFailure{}}
	for _, objectName := range objectNames {
		if err := s.store.RemoveObject(ctx, name, objectName); err != nil {
			result.Failed = append(result.Failed, DeleteFailure{
				Filename: objectName,
				Reason:   "object store removal failed",
			})
			s.logg.Warn("remove object failed",
				zap.String("container", name),
				zap.String("object", objectName),
				zap.Error(err))
			continue
		}

		if haveBucketRow {
			if _, err := s.repo.DeleteFileByName(ctx, bucketID, objectName); err != nil {
				// blob is gone but the row lingers: stale-exists divergence
				s.divergence("delete_objects", name, objectName, err)
				result.Failed = append(result.Failed, DeleteFailure{
					Filename: objectName,
					Reason:   "metadata removal failed",
				})
				continue
			}
		}

		result.Deleted = append(result.Deleted, objectName)
	}

	return result, nil
}

// DeleteContainer force-deletes the container: every blob first, then the
// container, then the metadata rows (files, grants and versions cascade
// from the bucket row).
func (s *Service) DeleteContainer(ctx context.Context, principal auth.Principal, label string) error {
	name, err := s.containerName(principal, label)
	if err != nil {
		return err
	}

	exists, err := s.store.BucketExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check container %q: %w", name, err)
	}
	if !exists {
		return ErrBucketNotFound
	}

	objectNames, err := s.store.ListObjects(ctx, name)
	if err != nil {
		return fmt.Errorf("list container %q: %w", name, err)
	}
	for _, objectName := range objectNames {
		if err := s.store.RemoveObject(ctx, name, objectName); err != nil {
			return fmt.Errorf("empty container %q: %w", name, err)
		}
	}

	if err := s.store.RemoveBucket(ctx, name); err != nil {
		return fmt.Errorf("remove container %q: %w", name, err)
	}

	found, err := s.repo.DeleteBucket(ctx, principal.ID, name)
	if err != nil {
		s.divergence("delete_container", name, "", err)
		return fmt.Errorf("delete bucket %q: %w", name, err)
	}
	if !found {
		// container existed without a row; already divergent before this call
		s.logg.Warn("deleted container had no bucket row",
			zap.String("container", name))
	}

	return nil
}

func (s *Service) containerName(principal auth.Principal, label string) (string, error) {
	if err := namespace.ValidateLabel(label); err != nil {
		return "", err
	}
	return namespace.ContainerName(principal.Username, label), nil
}

// divergence logs and counts a detected disagreement between the two
// stores. Reconciliation is out of band; nothing here retries or rolls back.
func (s *Service) divergence(op, container, object string, err error) {
	metrics.StoreDivergence.WithLabelValues(op).Inc()
	s.logg.Error("store divergence",
		zap.String("op", op),
		zap.String("container", container),
		zap.String("object", object),
		zap.Error(err))
}
