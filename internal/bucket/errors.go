package bucket

import "errors"

var (
	// ErrBucketNotFound indicates the container is unknown for this owner.
	ErrBucketNotFound = errors.New("bucket not found")
	// ErrBucketOwnedByOther is returned when the derived container name is
	// already registered to a different owner. The namespace scheme should
	// make this impossible; the check is defensive.
	ErrBucketOwnedByOther = errors.New("bucket name owned by another user")
	// ErrObjectNotFound signals the blob is absent from the object store.
	ErrObjectNotFound = errors.New("object not found")
	// ErrSizeMismatch is returned when the stored byte count does not match
	// the declared upload length.
	ErrSizeMismatch = errors.New("payload size mismatch")
)
