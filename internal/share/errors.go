package share

import "errors"

var (
	// ErrFileNotFound signals the file (or its bucket) could not be resolved.
	ErrFileNotFound = errors.New("file not found")
	// ErrNotOwner is returned when the requester does not own the file's bucket.
	ErrNotOwner = errors.New("not authorized to share this file")
	// ErrAlreadyShared enforces the single-grant invariant.
	ErrAlreadyShared = errors.New("file has already been shared")
	// ErrGranteeNotFound signals the target username does not exist.
	ErrGranteeNotFound = errors.New("shared user not found")
	// ErrSelfShare is returned when the owner names themselves as grantee.
	ErrSelfShare = errors.New("cannot share a file with its owner")
	// ErrNoGrant is returned on the download path when the requester is
	// neither owner nor grantee.
	ErrNoGrant = errors.New("no access to this file")
	// ErrPolicyMirror signals the object-store policy mirror failed after
	// the grant row was committed. The grant stands; the mirror is
	// defense in depth, not the authorization source of truth.
	ErrPolicyMirror = errors.New("failed to mirror grant to object store policy")
)
