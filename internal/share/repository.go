package share

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repositoryTimeout = 5 * time.Second

// Repository persists and resolves sharing grants.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a share repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindFileByBucketName resolves a file through its container name. The
// owner is returned rather than filtered so the caller can distinguish
// not-found from not-owned.
func (r *Repository) FindFileByBucketName(ctx context.Context, bucketName, filename string) (FileRef, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
SELECT f.id, b.id, b.name, b.owner_id
FROM files f
JOIN buckets b ON b.id = f.bucket_id
WHERE b.name = $1 AND f.name = $2;`

	var ref FileRef
	err := r.pool.QueryRow(ctx, query, bucketName, filename).Scan(&ref.FileID, &ref.BucketID, &ref.BucketName, &ref.OwnerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FileRef{}, ErrFileNotFound
		}
		return FileRef{}, fmt.Errorf("find file: %w", err)
	}

	return ref, nil
}

// GrantExistsForFile reports whether any grant exists for the file.
func (r *Repository) GrantExistsForFile(ctx context.Context, fileID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM file_permissions WHERE file_id = $1);`, fileID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check grant: %w", err)
	}
	return exists, nil
}

// FindUserIDByUsername resolves a grantee username.
func (r *Repository) FindUserIDByUsername(ctx context.Context, username string) (uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT id FROM users WHERE username = $1;`, username).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrGranteeNotFound
		}
		return uuid.Nil, fmt.Errorf("find grantee: %w", err)
	}
	return id, nil
}

// InsertGrant creates the grant row. The UNIQUE(file_id) constraint is the
// authoritative single-grant mechanism; a violation maps to ErrAlreadyShared
// so concurrent second grants fail identically to pre-checked ones.
func (r *Repository) InsertGrant(ctx context.Context, fileID, granteeID uuid.UUID, permission string) (Grant, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
INSERT INTO file_permissions (id, file_id, shared_with_user_id, permission_type)
VALUES ($1, $2, $3, $4)
RETURNING id, file_id, shared_with_user_id, permission_type, created_at;`

	row := r.pool.QueryRow(ctx, query, uuid.New(), fileID, granteeID, permission)

	var grant Grant
	if err := row.Scan(&grant.ID, &grant.FileID, &grant.SharedWithUserID, &grant.PermissionType, &grant.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return Grant{}, ErrAlreadyShared
		}
		return Grant{}, fmt.Errorf("insert grant: %w", err)
	}

	return grant, nil
}

// ListGrantsForUser returns everything shared with the user. The inner
// joins drop grants whose file or bucket row has since been deleted, so a
// dangling grant degrades to absence instead of an error.
func (r *Repository) ListGrantsForUser(ctx context.Context, userID uuid.UUID) ([]SharedFile, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
SELECT f.name, b.name, p.permission_type
FROM file_permissions p
JOIN files f ON f.id = p.file_id
JOIN buckets b ON b.id = f.bucket_id
WHERE p.shared_with_user_id = $1
ORDER BY p.created_at DESC;`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var shared []SharedFile
	for rows.Next() {
		var entry SharedFile
		if err := rows.Scan(&entry.Filename, &entry.Bucket, &entry.PermissionType); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		shared = append(shared, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}
	return shared, nil
}

// GrantExistsFor reports whether the user holds a grant on the file.
func (r *Repository) GrantExistsFor(ctx context.Context, fileID, userID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM file_permissions WHERE file_id = $1 AND shared_with_user_id = $2);`,
		fileID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check grant: %w", err)
	}
	return exists, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
