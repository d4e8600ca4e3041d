package bucket

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"sort"
	"testing"

	"cloudbucket/internal/auth"
	"cloudbucket/internal/namespace"

	"github.com/google/uuid"
)

func alice() auth.Principal {
	return auth.Principal{ID: uuid.New(), Username: "alice"}
}

func newTestService() (*Service, *fakeMeta, *fakeObjectStore) {
	meta := newFakeMeta()
	store := newFakeObjectStore()
	return NewService(meta, store, nil), meta, store
}

func TestCreateContainerIsIdempotent(t *testing.T) {
	service, meta, store := newTestService()
	principal := alice()

	first, err := service.CreateContainer(context.Background(), principal, "docs")
	if err != nil {
		t.Fatalf("CreateContainer returned error: %v", err)
	}
	if first.Name != "alice-docs" {
		t.Fatalf("expected container alice-docs, got %s", first.Name)
	}

	second, err := service.CreateContainer(context.Background(), principal, "docs")
	if err != nil {
		t.Fatalf("second CreateContainer returned error: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same bucket row, got %s and %s", first.ID, second.ID)
	}
	if len(meta.buckets) != 1 {
		t.Fatalf("expected 1 bucket row, got %d", len(meta.buckets))
	}
	if store.makeCalls != 1 {
		t.Fatalf("expected 1 MakeBucket call, got %d", store.makeCalls)
	}
}

func TestCreateContainerConflictsAcrossOwners(t *testing.T) {
	service, meta, _ := newTestService()
	principal := alice()

	// pre-seeded row for the same derived name under a different owner
	meta.buckets["alice-docs"] = Bucket{ID: uuid.New(), OwnerID: uuid.New(), Name: "alice-docs"}

	_, err := service.CreateContainer(context.Background(), principal, "docs")
	if !errors.Is(err, ErrBucketOwnedByOther) {
		t.Fatalf("expected ErrBucketOwnedByOther, got %v", err)
	}
}

func TestCreateContainerRejectsInvalidLabel(t *testing.T) {
	service, _, _ := newTestService()

	_, err := service.CreateContainer(context.Background(), alice(), "My Docs")
	if !errors.Is(err, namespace.ErrInvalidLabel) {
		t.Fatalf("expected ErrInvalidLabel, got %v", err)
	}
}

func TestPutObjectRoundTrip(t *testing.T) {
	service, meta, _ := newTestService()
	principal := alice()

	if _, err := service.CreateContainer(context.Background(), principal, "docs"); err != nil {
		t.Fatalf("CreateContainer returned error: %v", err)
	}

	content := []byte("hello world!")
	file, err := service.PutObject(context.Background(), principal, "docs", "report.txt", bytes.NewReader(content), int64(len(content)), "text/plain")
	if err != nil {
		t.Fatalf("PutObject returned error: %v", err)
	}
	if file.SizeBytes != int64(len(content)) {
		t.Fatalf("expected size %d, got %d", len(content), file.SizeBytes)
	}

	reader, stat, err := service.GetObject(context.Background(), principal, "docs", "report.txt")
	if err != nil {
		t.Fatalf("GetObject returned error: %v", err)
	}
	defer reader.Close()

	got, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read object: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("round-trip mismatch: got %q", got)
	}
	if stat.SizeBytes != int64(len(content)) {
		t.Fatalf("unexpected stat size %d", stat.SizeBytes)
	}

	if len(meta.versions) != 1 {
		t.Fatalf("expected 1 version row, got %d", len(meta.versions))
	}
	sum := sha256.Sum256(content)
	if meta.versions[0].contentHash != hex.EncodeToString(sum[:]) {
		t.Fatalf("unexpected content hash %s", meta.versions[0].contentHash)
	}
}

func TestPutObjectReuploadKeepsOneRow(t *testing.T) {
	service, meta, _ := newTestService()
	principal := alice()

	if _, err := service.CreateContainer(context.Background(), principal, "docs"); err != nil {
		t.Fatalf("CreateContainer returned error: %v", err)
	}

	for _, payload := range []string{"v1", "version two"} {
		if _, err := service.PutObject(context.Background(), principal, "docs", "report.txt", bytes.NewReader([]byte(payload)), int64(len(payload)), "text/plain"); err != nil {
			t.Fatalf("PutObject returned error: %v", err)
		}
	}

	bucketRow := meta.buckets["alice-docs"]
	files := meta.files[bucketRow.ID]
	if len(files) != 1 {
		t.Fatalf("expected exactly 1 file row, got %d", len(files))
	}
	if files["report.txt"].SizeBytes != int64(len("version two")) {
		t.Fatalf("expected size refreshed on re-upload")
	}
}

func TestPutObjectUnknownContainer(t *testing.T) {
	service, _, _ := newTestService()

	_, err := service.PutObject(context.Background(), alice(), "docs", "a.txt", bytes.NewReader([]byte("x")), 1, "")
	if !errors.Is(err, ErrBucketNotFound) {
		t.Fatalf("expected ErrBucketNotFound, got %v", err)
	}
}

func TestPutObjectSizeMismatchRemovesBlob(t *testing.T) {
	service, _, store := newTestService()
	principal := alice()

	if _, err := service.CreateContainer(context.Background(), principal, "docs"); err != nil {
		t.Fatalf("CreateContainer returned error: %v", err)
	}

	store.shortWrite = true
	content := []byte("truncated payload")
	_, err := service.PutObject(context.Background(), principal, "docs", "a.bin", bytes.NewReader(content), int64(len(content)), "")
	if !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("expected ErrSizeMismatch, got %v", err)
	}
	if _, ok := store.containers["alice-docs"]["a.bin"]; ok {
		t.Fatalf("expected truncated blob to be removed")
	}
}

func TestPutObjectMetadataFailureLeavesBlob(t *testing.T) {
	service, meta, store := newTestService()
	principal := alice()

	if _, err := service.CreateContainer(context.Background(), principal, "docs"); err != nil {
		t.Fatalf("CreateContainer returned error: %v", err)
	}

	meta.failUpsertFile = true
	content := []byte("orphan")
	_, err := service.PutObject(context.Background(), principal, "docs", "orphan.txt", bytes.NewReader(content), int64(len(content)), "")
	if err == nil {
		t.Fatalf("expected error from metadata failure")
	}

	// no compensating rollback: the blob stays, metadata undercounts
	if _, ok := store.containers["alice-docs"]["orphan.txt"]; !ok {
		t.Fatalf("expected orphan blob to remain in the object store")
	}
	bucketRow := meta.buckets["alice-docs"]
	if len(meta.files[bucketRow.ID]) != 0 {
		t.Fatalf("expected no file row after metadata failure")
	}
}

func TestListObjectsToleratesMetadataDrift(t *testing.T) {
	service, _, store := newTestService()
	principal := alice()

	if _, err := service.CreateContainer(context.Background(), principal, "docs"); err != nil {
		t.Fatalf("CreateContainer returned error: %v", err)
	}
	content := []byte("tracked")
	if _, err := service.PutObject(context.Background(), principal, "docs", "tracked.txt", bytes.NewReader(content), int64(len(content)), ""); err != nil {
		t.Fatalf("PutObject returned error: %v", err)
	}

	// blob written behind the coordinator's back: present in the store only
	store.containers["alice-docs"]["drifted.txt"] = []byte("drifted")

	entries, err := service.ListObjects(context.Background(), principal, "docs")
	if err != nil {
		t.Fatalf("ListObjects returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	byName := make(map[string]ObjectEntry)
	for _, entry := range entries {
		byName[entry.Filename] = entry
	}
	if byName["tracked.txt"].FileID == nil {
		t.Fatalf("expected tracked.txt to carry a file id")
	}
	if byName["drifted.txt"].FileID != nil {
		t.Fatalf("expected drifted.txt to have a nil file id")
	}
}

func TestListObjectsUnknownContainer(t *testing.T) {
	service, _, _ := newTestService()

	_, err := service.ListObjects(context.Background(), alice(), "nope")
	if !errors.Is(err, ErrBucketNotFound) {
		t.Fatalf("expected ErrBucketNotFound, got %v", err)
	}
}

func TestDeleteObjectsCollectsFailures(t *testing.T) {
	service, _, store := newTestService()
	principal := alice()

	if _, err := service.CreateContainer(context.Background(), principal, "docs"); err != nil {
		t.Fatalf("CreateContainer returned error: %v", err)
	}
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		if _, err := service.PutObject(context.Background(), principal, "docs", name, bytes.NewReader([]byte("x")), 1, ""); err != nil {
			t.Fatalf("PutObject(%s) returned error: %v", name, err)
		}
	}
	store.failRemove["b.txt"] = true

	result, err := service.DeleteObjects(context.Background(), principal, "docs", []string{"a.txt", "b.txt", "c.txt"})
	if err != nil {
		t.Fatalf("DeleteObjects returned error: %v", err)
	}

	sort.Strings(result.Deleted)
	if len(result.Deleted) != 2 || result.Deleted[0] != "a.txt" || result.Deleted[1] != "c.txt" {
		t.Fatalf("expected a.txt and c.txt deleted, got %v", result.Deleted)
	}
	if len(result.Failed) != 1 || result.Failed[0].Filename != "b.txt" {
		t.Fatalf("expected b.txt to fail, got %v", result.Failed)
	}
}

func TestDeleteObjectsToleratesMissingMetadataRow(t *testing.T) {
	service, _, store := newTestService()
	principal := alice()

	if _, err := service.CreateContainer(context.Background(), principal, "docs"); err != nil {
		t.Fatalf("CreateContainer returned error: %v", err)
	}
	// blob with no file row
	store.containers["alice-docs"]["stray.txt"] = []byte("stray")

	result, err := service.DeleteObjects(context.Background(), principal, "docs", []string{"stray.txt"})
	if err != nil {
		t.Fatalf("DeleteObjects returned error: %v", err)
	}
	if len(result.Deleted) != 1 || len(result.Failed) != 0 {
		t.Fatalf("expected clean delete of stray blob, got %+v", result)
	}
}

func TestDeleteContainerCascades(t *testing.T) {
	service, meta, store := newTestService()
	principal := alice()

	if _, err := service.CreateContainer(context.Background(), principal, "docs"); err != nil {
		t.Fatalf("CreateContainer returned error: %v", err)
	}
	content := []byte("data")
	if _, err := service.PutObject(context.Background(), principal, "docs", "a.txt", bytes.NewReader(content), int64(len(content)), ""); err != nil {
		t.Fatalf("PutObject returned error: %v", err)
	}

	if err := service.DeleteContainer(context.Background(), principal, "docs"); err != nil {
		t.Fatalf("DeleteContainer returned error: %v", err)
	}

	if _, ok := store.containers["alice-docs"]; ok {
		t.Fatalf("expected container removed from object store")
	}
	if _, ok := meta.buckets["alice-docs"]; ok {
		t.Fatalf("expected bucket row removed")
	}
}

func TestDeleteContainerUnknown(t *testing.T) {
	service, _, _ := newTestService()

	err := service.DeleteContainer(context.Background(), alice(), "nope")
	if !errors.Is(err, ErrBucketNotFound) {
		t.Fatalf("expected ErrBucketNotFound, got %v", err)
	}
}

// --- fakes ---

type versionRec struct {
	fileID      uuid.UUID
	userID      uuid.UUID
	contentHash string
}

type fakeMeta struct {
	buckets        map[string]Bucket
	files          map[uuid.UUID]map[string]File
	versions       []versionRec
	failUpsertFile bool
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{
		buckets: make(map[string]Bucket),
		files:   make(map[uuid.UUID]map[string]File),
	}
}

func (f *fakeMeta) UpsertBucket(ctx context.Context, ownerID uuid.UUID, name string) (Bucket, error) {
	if existing, ok := f.buckets[name]; ok {
		if existing.OwnerID != ownerID {
			return Bucket{}, ErrBucketOwnedByOther
		}
		return existing, nil
	}
	bucket := Bucket{ID: uuid.New(), OwnerID: ownerID, Name: name}
	f.buckets[name] = bucket
	f.files[bucket.ID] = make(map[string]File)
	return bucket, nil
}

func (f *fakeMeta) FindBucket(ctx context.Context, ownerID uuid.UUID, name string) (Bucket, error) {
	bucket, ok := f.buckets[name]
	if !ok || bucket.OwnerID != ownerID {
		return Bucket{}, ErrBucketNotFound
	}
	return bucket, nil
}

func (f *fakeMeta) DeleteBucket(ctx context.Context, ownerID uuid.UUID, name string) (bool, error) {
	bucket, ok := f.buckets[name]
	if !ok || bucket.OwnerID != ownerID {
		return false, nil
	}
	delete(f.buckets, name)
	delete(f.files, bucket.ID)
	return true, nil
}

func (f *fakeMeta) UpsertFile(ctx context.Context, bucketID uuid.UUID, name string, sizeBytes int64) (File, error) {
	if f.failUpsertFile {
		return File{}, errors.New("metadata store unavailable")
	}
	byName, ok := f.files[bucketID]
	if !ok {
		byName = make(map[string]File)
		f.files[bucketID] = byName
	}
	if existing, ok := byName[name]; ok {
		existing.SizeBytes = sizeBytes
		byName[name] = existing
		return existing, nil
	}
	file := File{ID: uuid.New(), BucketID: bucketID, Name: name, SizeBytes: sizeBytes, AccessType: AccessPrivate}
	byName[name] = file
	return file, nil
}

func (f *fakeMeta) ListFiles(ctx context.Context, bucketID uuid.UUID) ([]File, error) {
	var files []File
	for _, file := range f.files[bucketID] {
		files = append(files, file)
	}
	return files, nil
}

func (f *fakeMeta) DeleteFileByName(ctx context.Context, bucketID uuid.UUID, name string) (bool, error) {
	byName, ok := f.files[bucketID]
	if !ok {
		return false, nil
	}
	if _, ok := byName[name]; !ok {
		return false, nil
	}
	delete(byName, name)
	return true, nil
}

func (f *fakeMeta) RecordVersion(ctx context.Context, fileID, userID uuid.UUID, contentHash string) error {
	f.versions = append(f.versions, versionRec{fileID: fileID, userID: userID, contentHash: contentHash})
	return nil
}

type fakeObjectStore struct {
	containers map[string]map[string][]byte
	failRemove map[string]bool
	shortWrite bool
	makeCalls  int
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{
		containers: make(map[string]map[string][]byte),
		failRemove: make(map[string]bool),
	}
}

func (f *fakeObjectStore) BucketExists(ctx context.Context, name string) (bool, error) {
	_, ok := f.containers[name]
	return ok, nil
}

func (f *fakeObjectStore) MakeBucket(ctx context.Context, name string) error {
	f.makeCalls++
	f.containers[name] = make(map[string][]byte)
	return nil
}

func (f *fakeObjectStore) RemoveBucket(ctx context.Context, name string) error {
	objects, ok := f.containers[name]
	if !ok {
		return errors.New("no such bucket")
	}
	if len(objects) != 0 {
		return errors.New("bucket not empty")
	}
	delete(f.containers, name)
	return nil
}

func (f *fakeObjectStore) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, size int64, contentType string) (int64, error) {
	objects, ok := f.containers[bucketName]
	if !ok {
		return 0, errors.New("no such bucket")
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return 0, err
	}
	objects[objectName] = data
	written := int64(len(data))
	if f.shortWrite {
		written--
	}
	return written, nil
}

func (f *fakeObjectStore) GetObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, ObjectStat, error) {
	objects, ok := f.containers[bucketName]
	if !ok {
		return nil, ObjectStat{}, ErrObjectNotFound
	}
	data, ok := objects[objectName]
	if !ok {
		return nil, ObjectStat{}, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), ObjectStat{
		Filename:    objectName,
		SizeBytes:   int64(len(data)),
		ContentType: "application/octet-stream",
	}, nil
}

func (f *fakeObjectStore) ListObjects(ctx context.Context, bucketName string) ([]string, error) {
	objects, ok := f.containers[bucketName]
	if !ok {
		return nil, errors.New("no such bucket")
	}
	var names []string
	for name := range objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeObjectStore) RemoveObject(ctx context.Context, bucketName, objectName string) error {
	if f.failRemove[objectName] {
		return errors.New("remove failed")
	}
	if objects, ok := f.containers[bucketName]; ok {
		delete(objects, objectName)
	}
	return nil
}
