// Package namespace derives globally unique object-store container names
// from (owner username, user-chosen label). The owner prefix guarantees two
// users picking the same label never collide, and the derivation is
// deterministic so a repeated create resolves to the same container.
package namespace

import (
	"errors"
	"regexp"
)

// Separator joins the owner username and the label. It is rejected inside
// both components, which is what makes the derived name unambiguous.
const Separator = "-"

var (
	// ErrInvalidUsername is returned when a username violates the naming rules.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidLabel is returned when a bucket label violates the naming rules.
	ErrInvalidLabel = errors.New("invalid bucket label")
)

// Usernames and labels are restricted to lowercase alphanumerics so that
// every derived container name satisfies S3/MinIO bucket naming rules
// (3-63 chars, lowercase, starts and ends alphanumeric) without a second
// validation pass.
var (
	usernamePattern = regexp.MustCompile(`^[a-z0-9]{3,32}$`)
	labelPattern    = regexp.MustCompile(`^[a-z0-9]{1,30}$`)
)

// ValidateUsername reports whether the username may own containers.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// ValidateLabel reports whether the label may name a container.
func ValidateLabel(label string) error {
	if !labelPattern.MatchString(label) {
		return ErrInvalidLabel
	}
	return nil
}

// ContainerName derives the object-store container name for an owner's
// label. Both components must already be validated.
func ContainerName(ownerUsername, label string) string {
	return ownerUsername + Separator + label
}
