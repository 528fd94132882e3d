package storage_writer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isseis/go-formfill-exporter/kv_store"
)

// MockPicker is a DirectoryPicker returning queued answers.
type MockPicker struct {
	PickFunc func(ctx context.Context) (string, error)
	Calls    int
}

func (m *MockPicker) PickDirectory(ctx context.Context) (string, error) {
	m.Calls++
	return m.PickFunc(ctx)
}

// MockSharer records shared files.
type MockSharer struct {
	IsAvailable bool
	ShareFunc   func(ctx context.Context, uri, mimeType, title string) error
	Shared      []string
}

func (m *MockSharer) Available() bool { return m.IsAvailable }

func (m *MockSharer) Share(ctx context.Context, uri, mimeType, title string) error {
	m.Shared = append(m.Shared, uri)
	if m.ShareFunc != nil {
		return m.ShareFunc(ctx, uri, mimeType, title)
	}
	return nil
}

// MockBackend is a StorageBackend whose behavior is set per test.
type MockBackend struct {
	PrepareFunc     func(ctx context.Context) error
	CreateEntryFunc func(ctx context.Context, name, mimeType string) (string, error)
	WriteEntryFunc  func(ctx context.Context, uri string, data []byte) error
	Invalidated     int
	Deleted         []string
}

func (m *MockBackend) Kind() BackendKind   { return KindScopedGrant }
func (m *MockBackend) RequiresGrant() bool { return true }

func (m *MockBackend) Prepare(ctx context.Context) error {
	if m.PrepareFunc != nil {
		return m.PrepareFunc(ctx)
	}
	return nil
}

func (m *MockBackend) CreateEntry(ctx context.Context, name, mimeType string) (string, error) {
	if m.CreateEntryFunc != nil {
		return m.CreateEntryFunc(ctx, name, mimeType)
	}
	return "mock://" + name, nil
}

func (m *MockBackend) WriteEntry(ctx context.Context, uri string, data []byte) error {
	if m.WriteEntryFunc != nil {
		return m.WriteEntryFunc(ctx, uri, data)
	}
	return nil
}

func (m *MockBackend) DeleteEntry(ctx context.Context, uri string) error {
	m.Deleted = append(m.Deleted, uri)
	return nil
}

func (m *MockBackend) Invalidate(ctx context.Context) error {
	m.Invalidated++
	return nil
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export-test.part")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newStore(t *testing.T) kv_store.Store {
	t.Helper()
	store, err := kv_store.NewJSONStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAddNumericSuffixToFileName(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want string
	}{
		{"doc.pdf", 2, "doc_2.pdf"},
		{"name", 2, "name_2"},
		{"Rapport_rempli.jpg", 1, "Rapport_rempli_1.jpg"},
		{"archive.tar.gz", 3, "archive.tar_3.gz"},
		{".pdf", 2, ".pdf_2"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AddNumericSuffixToFileName(tt.name, tt.n), "%s,%d", tt.name, tt.n)
	}
}

func TestSandboxSave_Overwrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "documents")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc_rempli.pdf"), []byte("old"), 0644))

	tmp := writeTemp(t, "new")
	w := NewWriter(NewSandboxDirectoryBackend(dir))
	res, err := w.Save(context.Background(), DownloadedFile{Path: tmp, MimeType: "application/pdf", FileName: "doc_rempli.pdf"})
	require.NoError(t, err)

	assert.Equal(t, "doc_rempli.pdf", res.FileName)
	data, err := os.ReadFile(filepath.Join(dir, "doc_rempli.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	assert.NoFileExists(t, tmp, "temporary file should be cleaned up")
	assert.Equal(t, fileURI(filepath.Join(dir, "doc_rempli.pdf")), res.URI)
}

func TestSandboxSave_NoDirectory(t *testing.T) {
	tmp := writeTemp(t, "data")
	w := NewWriter(NewSandboxDirectoryBackend(""))
	_, err := w.Save(context.Background(), DownloadedFile{Path: tmp, FileName: "a.pdf"})
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.FileExists(t, tmp)
}

func TestScopedSave_PromptsOnceAndPersistsGrant(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := newStore(t)
	picker := &MockPicker{PickFunc: func(ctx context.Context) (string, error) { return dir, nil }}
	w := NewWriter(NewScopedGrantBackend(store, picker))

	res, err := w.Save(ctx, DownloadedFile{Path: writeTemp(t, "one"), FileName: "doc.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "doc.pdf", res.FileName)

	token, ok, err := store.Get(ctx, DirectoryPermissionKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, dir, token)

	res, err = w.Save(ctx, DownloadedFile{Path: writeTemp(t, "two"), FileName: "doc.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "doc_1.pdf", res.FileName, "existing entry must not be overwritten")
	assert.Equal(t, 1, picker.Calls, "cached grant should be reused")

	first, _ := os.ReadFile(filepath.Join(dir, "doc.pdf"))
	second, _ := os.ReadFile(filepath.Join(dir, "doc_1.pdf"))
	assert.Equal(t, "one", string(first))
	assert.Equal(t, "two", string(second))
}

func TestScopedSave_FilenameAllocationFails(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := newStore(t)
	require.NoError(t, store.Set(ctx, DirectoryPermissionKey, dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.pdf"), nil, 0644))
	for n := 1; n < MaxNameAttempts; n++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("doc_%d.pdf", n)), nil, 0644))
	}

	picker := &MockPicker{PickFunc: func(ctx context.Context) (string, error) { return "", errors.New("unexpected") }}
	w := NewWriter(NewScopedGrantBackend(store, picker))
	tmp := writeTemp(t, "x")
	_, err := w.Save(ctx, DownloadedFile{Path: tmp, FileName: "doc.pdf"})

	assert.ErrorIs(t, err, ErrFilenameAllocationFailed)
	assert.Equal(t, 0, picker.Calls)
	assert.FileExists(t, tmp)
}

func TestScopedSave_VanishedGrantIsRenewedOnce(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.Set(ctx, DirectoryPermissionKey, filepath.Join(t.TempDir(), "gone")))

	fresh := t.TempDir()
	picker := &MockPicker{PickFunc: func(ctx context.Context) (string, error) { return fresh, nil }}
	w := NewWriter(NewScopedGrantBackend(store, picker))

	res, err := w.Save(ctx, DownloadedFile{Path: writeTemp(t, "x"), FileName: "doc.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 1, picker.Calls)
	assert.FileExists(t, filepath.Join(fresh, "doc.pdf"))
	assert.Equal(t, fileURI(filepath.Join(fresh, "doc.pdf")), res.URI)

	token, _, _ := store.Get(ctx, DirectoryPermissionKey)
	assert.Equal(t, fresh, token)
}

func TestScopedSave_PickerCancelled(t *testing.T) {
	store := newStore(t)
	picker := &MockPicker{PickFunc: func(ctx context.Context) (string, error) { return "", ErrGrantCancelled }}
	w := NewWriter(NewScopedGrantBackend(store, picker))

	_, err := w.Save(context.Background(), DownloadedFile{Path: writeTemp(t, "x"), FileName: "doc.pdf"})
	assert.ErrorIs(t, err, ErrGrantCancelled)
	assert.Equal(t, 1, picker.Calls, "cancellation is not retried")
}

func TestSave_PermissionDeniedTwiceIsFatal(t *testing.T) {
	backend := &MockBackend{
		WriteEntryFunc: func(ctx context.Context, uri string, data []byte) error {
			return &StorageError{Op: "write", Err: ErrPermissionDenied}
		},
	}
	tmp := writeTemp(t, "x")
	w := NewWriter(backend)
	_, err := w.Save(context.Background(), DownloadedFile{Path: tmp, FileName: "doc.pdf"})

	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, 1, backend.Invalidated, "grant renewed exactly once")
	assert.Equal(t, []string{"mock://doc.pdf", "mock://doc.pdf"}, backend.Deleted)
	assert.FileExists(t, tmp)
}

// flakyWriteBackend fails the first fails writes of an otherwise real backend.
type flakyWriteBackend struct {
	*ScopedGrantBackend
	fails int
}

func (b *flakyWriteBackend) WriteEntry(ctx context.Context, uri string, data []byte) error {
	if b.fails > 0 {
		b.fails--
		return &StorageError{Op: "write", Err: ErrPermissionDenied}
	}
	return b.ScopedGrantBackend.WriteEntry(ctx, uri, data)
}

func TestScopedSave_FailedWriteLeavesNoEntry(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	picker := &MockPicker{PickFunc: func(ctx context.Context) (string, error) { return dir, nil }}
	backend := &flakyWriteBackend{ScopedGrantBackend: NewScopedGrantBackend(newStore(t), picker), fails: 1}
	w := NewWriter(backend)

	res, err := w.Save(ctx, DownloadedFile{Path: writeTemp(t, "content"), FileName: "doc.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "doc.pdf", res.FileName, "retry reuses the desired name")
	assert.Equal(t, 2, picker.Calls)
	assert.NoFileExists(t, filepath.Join(dir, "doc_1.pdf"))
	data, err := os.ReadFile(filepath.Join(dir, "doc.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestDeleteEntry_MissingIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	backend := NewSandboxDirectoryBackend(dir)
	uri := fileURI(filepath.Join(dir, "gone.pdf"))
	assert.NoError(t, backend.DeleteEntry(context.Background(), uri))
}

func TestSave_PermissionDeniedThenSuccess(t *testing.T) {
	writes := 0
	backend := &MockBackend{
		WriteEntryFunc: func(ctx context.Context, uri string, data []byte) error {
			writes++
			if writes == 1 {
				return ErrPermissionDenied
			}
			return nil
		},
	}
	var cleaned []string
	tmp := writeTemp(t, "x")
	w := NewWriter(backend, WithCleaner(func(path string) { cleaned = append(cleaned, path) }))
	res, err := w.Save(context.Background(), DownloadedFile{Path: tmp, FileName: "doc.pdf"})

	require.NoError(t, err)
	assert.Equal(t, "mock://doc.pdf", res.URI)
	assert.Equal(t, 2, writes)
	assert.Equal(t, 1, backend.Invalidated)
	assert.Equal(t, []string{tmp}, cleaned)
}

func TestShare_Unavailable(t *testing.T) {
	w := NewWriter(NewSandboxDirectoryBackend(t.TempDir()), WithSharer(&MockSharer{IsAvailable: false}, t.TempDir()))
	_, err := w.Share(context.Background(), DownloadedFile{Path: writeTemp(t, "x"), FileName: "a.pdf"}, "Share")
	assert.ErrorIs(t, err, ErrSharingUnavailable)
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	_, err = NewWriter(NewSandboxDirectoryBackend(t.TempDir())).Share(context.Background(), DownloadedFile{}, "Share")
	assert.ErrorIs(t, err, ErrSharingUnavailable)
}

func TestShare_PromotesIntoCache(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "cache")
	sharer := &MockSharer{IsAvailable: true}
	w := NewWriter(NewSandboxDirectoryBackend(t.TempDir()), WithSharer(sharer, cache))

	tmp := writeTemp(t, "payload")
	res, err := w.Share(context.Background(), DownloadedFile{Path: tmp, MimeType: "image/jpeg", FileName: "doc_page_1_rempli.jpg"}, "Share")
	require.NoError(t, err)

	dest := filepath.Join(cache, "doc_page_1_rempli.jpg")
	assert.Equal(t, fileURI(dest), res.URI)
	assert.Equal(t, []string{fileURI(dest)}, sharer.Shared)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.NoFileExists(t, tmp)
}

func TestFileURIRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Rapport été.pdf")
	assert.Equal(t, path, pathFromURI(fileURI(path)))
	assert.Equal(t, "/plain/path", pathFromURI("/plain/path"))
}
