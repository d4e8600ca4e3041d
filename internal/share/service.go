package share

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"cloudbucket/internal/auth"
	"cloudbucket/internal/bucket"
	"cloudbucket/internal/metrics"
	"cloudbucket/internal/namespace"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// grantStore abstracts the relational side of the sharing engine.
type grantStore interface {
	FindFileByBucketName(ctx context.Context, bucketName, filename string) (FileRef, error)
	GrantExistsForFile(ctx context.Context, fileID uuid.UUID) (bool, error)
	FindUserIDByUsername(ctx context.Context, username string) (uuid.UUID, error)
	InsertGrant(ctx context.Context, fileID, granteeID uuid.UUID, permission string) (Grant, error)
	ListGrantsForUser(ctx context.Context, userID uuid.UUID) ([]SharedFile, error)
	GrantExistsFor(ctx context.Context, fileID, userID uuid.UUID) (bool, error)
}

// objectStore is the slice of the object-store adapter the engine needs:
// streaming reads for the shared download path and policy writes for the
// best-effort grant mirror.
type objectStore interface {
	GetObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, bucket.ObjectStat, error)
	SetBucketPolicy(ctx context.Context, bucketName, policy string) error
}

// Service is the sharing and authorization engine. The relational grant is
// the authorization source of truth; the mirrored object-store policy is an
// optimization layer that is never consulted on the download path.
type Service struct {
	repo  grantStore
	store objectStore
	logg  *zap.Logger
}

// NewService constructs the sharing engine.
func NewService(repo grantStore, store objectStore, logg *zap.Logger) *Service {
	if logg == nil {
		logg = zap.NewNop()
	}
	return &Service{repo: repo, store: store, logg: logg}
}

// CreateGrant shares one of the requester's files with another user. A file
// can be shared at most once, ever: a second grant fails with
// ErrAlreadyShared no matter who the grantee is. The pre-check gives the
// friendly error; the UNIQUE(file_id) constraint in the metadata store is
// what actually holds under concurrent calls.
func (s *Service) CreateGrant(ctx context.Context, principal auth.Principal, label, filename, granteeUsername string) (Grant, error) {
	if err := namespace.ValidateLabel(label); err != nil {
		return Grant{}, err
	}
	bucketName := namespace.ContainerName(principal.Username, label)

	ref, err := s.repo.FindFileByBucketName(ctx, bucketName, filename)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return Grant{}, ErrFileNotFound
		}
		return Grant{}, fmt.Errorf("resolve file: %w", err)
	}
	if ref.OwnerID != principal.ID {
		return Grant{}, ErrNotOwner
	}

	shared, err := s.repo.GrantExistsForFile(ctx, ref.FileID)
	if err != nil {
		return Grant{}, fmt.Errorf("check existing grant: %w", err)
	}
	if shared {
		return Grant{}, ErrAlreadyShared
	}

	granteeID, err := s.repo.FindUserIDByUsername(ctx, granteeUsername)
	if err != nil {
		if errors.Is(err, ErrGranteeNotFound) {
			return Grant{}, ErrGranteeNotFound
		}
		return Grant{}, fmt.Errorf("resolve grantee: %w", err)
	}
	if granteeID == principal.ID {
		return Grant{}, ErrSelfShare
	}

	grant, err := s.repo.InsertGrant(ctx, ref.FileID, granteeID, PermissionRead)
	if err != nil {
		if errors.Is(err, ErrAlreadyShared) {
			return Grant{}, ErrAlreadyShared
		}
		return Grant{}, fmt.Errorf("insert grant: %w", err)
	}

	// Best-effort mirror into the object store's native policy mechanism.
	// The grant row above is already committed and stays committed.
	policy, err := readPolicyDocument(bucketName, filename, granteeUsername)
	if err != nil {
		s.logg.Error("build policy document", zap.Error(err))
		return grant, ErrPolicyMirror
	}
	if err := s.store.SetBucketPolicy(ctx, bucketName, policy); err != nil {
		s.logg.Error("mirror grant to bucket policy",
			zap.String("container", bucketName),
			zap.String("object", filename),
			zap.Error(err))
		return grant, ErrPolicyMirror
	}

	return grant, nil
}

// ListSharedWithMe returns everything shared with the principal. Grants
// whose file or bucket has since been deleted are skipped, not fatal.
func (s *Service) ListSharedWithMe(ctx context.Context, principal auth.Principal) ([]SharedFile, error) {
	shared, err := s.repo.ListGrantsForUser(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("list shared files: %w", err)
	}
	if shared == nil {
		shared = []SharedFile{}
	}
	return shared, nil
}

// AuthorizeDownload resolves whether the principal may read the named file:
// the owner path first, then the grantee path. Anyone else is refused.
// bucketName is the full container name here, not an owner-relative label.
func (s *Service) AuthorizeDownload(ctx context.Context, principal auth.Principal, bucketName, filename string) (FileRef, error) {
	ref, err := s.repo.FindFileByBucketName(ctx, bucketName, filename)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return FileRef{}, ErrFileNotFound
		}
		return FileRef{}, fmt.Errorf("resolve file: %w", err)
	}

	if ref.OwnerID == principal.ID {
		return ref, nil
	}

	granted, err := s.repo.GrantExistsFor(ctx, ref.FileID, principal.ID)
	if err != nil {
		return FileRef{}, fmt.Errorf("check grant: %w", err)
	}
	if !granted {
		return FileRef{}, ErrNoGrant
	}

	return ref, nil
}

// DownloadShared authorizes and then streams a shared file.
func (s *Service) DownloadShared(ctx context.Context, principal auth.Principal, bucketName, filename string) (io.ReadCloser, bucket.ObjectStat, error) {
	ref, err := s.AuthorizeDownload(ctx, principal, bucketName, filename)
	if err != nil {
		return nil, bucket.ObjectStat{}, err
	}

	reader, stat, err := s.store.GetObject(ctx, ref.BucketName, filename)
	if err != nil {
		if errors.Is(err, bucket.ErrObjectNotFound) {
			// grant points at a blob the store no longer has
			s.logg.Warn("shared download hit missing blob",
				zap.String("container", ref.BucketName),
				zap.String("object", filename))
			return nil, bucket.ObjectStat{}, ErrFileNotFound
		}
		return nil, bucket.ObjectStat{}, fmt.Errorf("fetch shared object: %w", err)
	}

	metrics.Downloads.WithLabelValues("shared").Inc()
	return reader, stat, nil
}

// policyDocument is the AWS-style policy mirrored into the object store for
// a grant: s3:GetObject on the single shared object, for the grantee only.
type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string          `json:"Effect"`
	Principal policyPrincipal `json:"Principal"`
	Action    []string        `json:"Action"`
	Resource  []string        `json:"Resource"`
}

type policyPrincipal struct {
	AWS []string `json:"AWS"`
}

func readPolicyDocument(bucketName, objectName, granteeUsername string) (string, error) {
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{
			{
				Effect: "Allow",
				Principal: policyPrincipal{
					AWS: []string{fmt.Sprintf("arn:aws:iam::minio:user/%s", granteeUsername)},
				},
				Action:   []string{"s3:GetObject"},
				Resource: []string{fmt.Sprintf("arn:aws:s3:::%s/%s", bucketName, objectName)},
			},
		},
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal policy: %w", err)
	}
	return string(encoded), nil
}
