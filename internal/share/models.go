package share

import (
	"time"

	"github.com/google/uuid"
)

// Permission types. Only read grants are issued; write exists as a model
// slot for the schema check constraint.
const (
	PermissionRead  = "read"
	PermissionWrite = "write"
)

// Grant authorizes exactly one other user to read one file. At most one
// grant may exist per file; there is no revoke, grants disappear only via
// the file/bucket delete cascade.
type Grant struct {
	ID               uuid.UUID `json:"id"`
	FileID           uuid.UUID `json:"file_id"`
	SharedWithUserID uuid.UUID `json:"shared_with_user_id"`
	PermissionType   string    `json:"permission_type"`
	CreatedAt        time.Time `json:"created_at"`
}

// FileRef locates a file together with its bucket and owner, as needed by
// the grant and authorization paths.
type FileRef struct {
	FileID     uuid.UUID
	BucketID   uuid.UUID
	BucketName string
	OwnerID    uuid.UUID
}

// SharedFile is one entry of a grantee's shared-with-me listing.
type SharedFile struct {
	Filename       string `json:"filename"`
	Bucket         string `json:"bucket"`
	PermissionType string `json:"permission_type"`
}
