package bucket

import (
	"time"

	"github.com/google/uuid"
)

// Access types carried on file metadata. Uploads default to private; no
// endpoint currently flips an object to public.
const (
	AccessPrivate = "private"
	AccessPublic  = "public"
)

// Bucket is the metadata record mirroring an object-store container.
type Bucket struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// File is the metadata record mirroring a stored object.
type File struct {
	ID             uuid.UUID  `json:"id"`
	BucketID       uuid.UUID  `json:"bucket_id"`
	Name           string     `json:"name"`
	SizeBytes      int64      `json:"size_bytes"`
	AccessType     string     `json:"access_type"`
	LockedByUserID *uuid.UUID `json:"locked_by_user_id,omitempty"`
	UploadedAt     time.Time  `json:"uploaded_at"`
}

// ObjectEntry is one row of a container listing. The object store is
// authoritative for existence; FileID is nil when the metadata row has
// drifted away.
type ObjectEntry struct {
	Filename string     `json:"filename"`
	FileID   *uuid.UUID `json:"file_id"`
}

// ObjectStat describes a blob about to be streamed to a client.
type ObjectStat struct {
	Filename    string
	SizeBytes   int64
	ContentType string
}

// DeleteFailure records one failed name from a batch delete.
type DeleteFailure struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// BatchDeleteResult reports the full outcome of a batch delete. The batch
// never aborts early; callers get every per-name result.
type BatchDeleteResult struct {
	Deleted []string        `json:"deleted"`
	Failed  []DeleteFailure `json:"failed"`
}
