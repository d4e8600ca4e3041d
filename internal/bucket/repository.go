package bucket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repositoryTimeout = 5 * time.Second

// Repository persists bucket and file metadata.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a bucket repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertBucket registers the container name for the owner. Repeating the
// call for the same owner returns the existing row; a name already held by
// a different owner maps to ErrBucketOwnedByOther.
func (r *Repository) UpsertBucket(ctx context.Context, ownerID uuid.UUID, name string) (Bucket, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
INSERT INTO buckets (id, name, owner_id)
VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
WHERE buckets.owner_id = EXCLUDED.owner_id
RETURNING id, name, owner_id, created_at;`

	row := r.pool.QueryRow(ctx, query, uuid.New(), name, ownerID)

	var bucket Bucket
	if err := row.Scan(&bucket.ID, &bucket.Name, &bucket.OwnerID, &bucket.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// conflict row exists but belongs to someone else
			return Bucket{}, ErrBucketOwnedByOther
		}
		return Bucket{}, fmt.Errorf("upsert bucket: %w", err)
	}

	return bucket, nil
}

// FindBucket fetches the owner's bucket row by derived container name.
func (r *Repository) FindBucket(ctx context.Context, ownerID uuid.UUID, name string) (Bucket, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
SELECT id, name, owner_id, created_at
FROM buckets
WHERE name = $1 AND owner_id = $2;`

	var bucket Bucket
	err := r.pool.QueryRow(ctx, query, name, ownerID).Scan(&bucket.ID, &bucket.Name, &bucket.OwnerID, &bucket.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bucket{}, ErrBucketNotFound
		}
		return Bucket{}, fmt.Errorf("find bucket: %w", err)
	}

	return bucket, nil
}

// DeleteBucket removes the owner's bucket row; files, grants and versions
// go with it via FK cascade. The bool reports whether a row existed.
func (r *Repository) DeleteBucket(ctx context.Context, ownerID uuid.UUID, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM buckets WHERE name = $1 AND owner_id = $2;`, name, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete bucket: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpsertFile inserts the metadata row for an uploaded object, refreshing
// size and timestamp when the name is re-uploaded.
func (r *Repository) UpsertFile(ctx context.Context, bucketID uuid.UUID, name string, sizeBytes int64) (File, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
INSERT INTO files (id, bucket_id, name, size_bytes, access_type)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (bucket_id, name)
DO UPDATE SET size_bytes = EXCLUDED.size_bytes, uploaded_at = NOW()
RETURNING id, bucket_id, name, size_bytes, access_type, locked_by_user_id, uploaded_at;`

	row := r.pool.QueryRow(ctx, query, uuid.New(), bucketID, name, sizeBytes, AccessPrivate)

	var file File
	if err := row.Scan(&file.ID, &file.BucketID, &file.Name, &file.SizeBytes, &file.AccessType, &file.LockedByUserID, &file.UploadedAt); err != nil {
		return File{}, fmt.Errorf("upsert file: %w", err)
	}
	return file, nil
}

// ListFiles returns all file rows for a bucket.
func (r *Repository) ListFiles(ctx context.Context, bucketID uuid.UUID) ([]File, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
SELECT id, bucket_id, name, size_bytes, access_type, locked_by_user_id, uploaded_at
FROM files
WHERE bucket_id = $1;`

	rows, err := r.pool.Query(ctx, query, bucketID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var file File
		if err := rows.Scan(&file.ID, &file.BucketID, &file.Name, &file.SizeBytes, &file.AccessType, &file.LockedByUserID, &file.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return files, nil
}

// DeleteFileByName removes a file row. A missing row is not an error: the
// object store is authoritative and the row may have drifted away.
func (r *Repository) DeleteFileByName(ctx context.Context, bucketID uuid.UUID, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM files WHERE bucket_id = $1 AND name = $2;`, bucketID, name)
	if err != nil {
		return false, fmt.Errorf("delete file: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RecordVersion appends a content-hash audit row for an upload.
func (r *Repository) RecordVersion(ctx context.Context, fileID, userID uuid.UUID, contentHash string) error {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
INSERT INTO file_versions (id, file_id, user_id, content_hash)
VALUES ($1, $2, $3, $4);`

	if _, err := r.pool.Exec(ctx, query, uuid.New(), fileID, userID, contentHash); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	return nil
}
