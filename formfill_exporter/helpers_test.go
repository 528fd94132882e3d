package formfill_exporter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	ffapi "github.com/isseis/go-formfill-exporter/formfill_api"
	sw "github.com/isseis/go-formfill-exporter/storage_writer"
)

const pdfBody = "%PDF-1.4\n%test document\n"

// jpegBody starts with the JPEG magic so sniffing recognizes it.
var jpegBody = "\xff\xd8\xff\xe0\x00\x10JFIF\x00test"

// fakeBackend serves form-fill detail and export routes and records every
// export request it receives.
type fakeBackend struct {
	server *httptest.Server

	// Detail serves GET {detailPath}/{id}; nil answers 404.
	Detail http.HandlerFunc
	// Export serves every request ending in /export.
	Export http.HandlerFunc

	mu       sync.Mutex
	exports  []*http.Request
	requests int
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests++
		isExport := strings.HasSuffix(r.URL.Path, "/export")
		if isExport {
			b.exports = append(b.exports, r.Clone(context.Background()))
		}
		detail, export := b.Detail, b.Export
		b.mu.Unlock()

		switch {
		case isExport && export != nil:
			export(w, r)
		case !isExport && detail != nil:
			detail(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) URL() string { return b.server.URL }

func (b *fakeBackend) exportRequests() []*http.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*http.Request(nil), b.exports...)
}

func (b *fakeBackend) exportPaths() []string {
	var paths []string
	for _, r := range b.exportRequests() {
		paths = append(paths, r.URL.Path)
	}
	return paths
}

func (b *fakeBackend) requestCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests
}

// detailJSON answers every detail lookup with body.
func detailJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}
}

// serveDocument writes body with contentType; an empty contentType suppresses the header.
func serveDocument(w http.ResponseWriter, contentType, body string) {
	if contentType == "" {
		w.Header()["Content-Type"] = nil
	} else {
		w.Header().Set("Content-Type", contentType)
	}
	io.WriteString(w, body)
}

// MockPrompter answers prompts from its fields and records notifications.
type MockPrompter struct {
	ChooseActionFunc func(ctx context.Context, fileName string) (Action, error)
	Format           Format
	FormatOK         bool
	Confirm          bool

	mu            sync.Mutex
	ActionPrompts []string
	FormatPrompts int
	ConfirmPages  []int
	Notifications []string
}

func (m *MockPrompter) ChooseAction(ctx context.Context, fileName string) (Action, error) {
	m.mu.Lock()
	m.ActionPrompts = append(m.ActionPrompts, fileName)
	fn := m.ChooseActionFunc
	m.mu.Unlock()
	if fn == nil {
		return ActionSave, nil
	}
	return fn(ctx, fileName)
}

func (m *MockPrompter) ChooseFormat(ctx context.Context, documentName string) (Format, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FormatPrompts++
	return m.Format, m.FormatOK, nil
}

func (m *MockPrompter) ConfirmMultiPageSave(ctx context.Context, documentName string, pages int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConfirmPages = append(m.ConfirmPages, pages)
	return m.Confirm, nil
}

func (m *MockPrompter) Notify(ctx context.Context, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notifications = append(m.Notifications, message)
}

func (m *MockPrompter) lastNotification() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Notifications) == 0 {
		return ""
	}
	return m.Notifications[len(m.Notifications)-1]
}

// MockPrinter records printed files and their contents at print time.
type MockPrinter struct {
	Printed  []string
	Contents []string
	Err      error
}

func (m *MockPrinter) Print(ctx context.Context, path, documentName string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	m.Printed = append(m.Printed, path)
	m.Contents = append(m.Contents, string(data))
	return m.Err
}

// MockSharer records shared URIs.
type MockSharer struct {
	Shared []string
}

func (m *MockSharer) Available() bool { return true }

func (m *MockSharer) Share(ctx context.Context, uri, mimeType, title string) error {
	m.Shared = append(m.Shared, uri)
	return nil
}

// MockFileSystem delegates to DefaultFileSystem unless a Func is set.
type MockFileSystem struct {
	DefaultFileSystem
	CreateFileFunc func(filename string, dirPerm, filePerm os.FileMode) (io.WriteCloser, error)
	RemoveFunc     func(path string) error
}

func (m *MockFileSystem) CreateFile(filename string, dirPerm, filePerm os.FileMode) (io.WriteCloser, error) {
	if m.CreateFileFunc != nil {
		return m.CreateFileFunc(filename, dirPerm, filePerm)
	}
	return m.DefaultFileSystem.CreateFile(filename, dirPerm, filePerm)
}

func (m *MockFileSystem) Remove(path string) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(path)
	}
	return m.DefaultFileSystem.Remove(path)
}

// MockPicker always grants dir.
type MockPicker struct {
	Dir string
}

func (m *MockPicker) PickDirectory(ctx context.Context) (string, error) {
	if m.Dir == "" {
		return "", sw.ErrGrantCancelled
	}
	return m.Dir, nil
}

// memStore is an in-memory permission store.
type memStore struct {
	mu     sync.Mutex
	values map[string]string
}

func (s *memStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *memStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = map[string]string{}
	}
	s.values[key] = value
	return nil
}

func (s *memStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// testEnv is an exporter wired to a fake backend and a sandbox directory.
type testEnv struct {
	backend  *fakeBackend
	prompter *MockPrompter
	sharer   *MockSharer
	docDir   string
	tempDir  string
	cacheDir string
	exporter *Exporter
	cleaned  []string
	cleanMu  sync.Mutex
}

type envOption func(*envConfig)

type envConfig struct {
	basePath string
	backend  sw.StorageBackend
	fs       FileSystemOperations
	opts     []ExporterOption
}

func withBasePath(p string) envOption { return func(c *envConfig) { c.basePath = p } }
func withStorageBackend(b sw.StorageBackend) envOption {
	return func(c *envConfig) { c.backend = b }
}
func withFileSystem(fs FileSystemOperations) envOption { return func(c *envConfig) { c.fs = fs } }
func withExporterOptions(opts ...ExporterOption) envOption {
	return func(c *envConfig) { c.opts = append(c.opts, opts...) }
}

func newTestEnv(t *testing.T, options ...envOption) *testEnv {
	t.Helper()
	env := &testEnv{
		backend:  newFakeBackend(t),
		prompter: &MockPrompter{},
		sharer:   &MockSharer{},
		docDir:   filepath.Join(t.TempDir(), "documents"),
		tempDir:  filepath.Join(t.TempDir(), "tmp"),
		cacheDir: filepath.Join(t.TempDir(), "cache"),
	}
	cfg := &envConfig{fs: &DefaultFileSystem{}}
	for _, opt := range options {
		opt(cfg)
	}
	if cfg.backend == nil {
		cfg.backend = sw.NewSandboxDirectoryBackend(env.docDir)
	}

	client, err := ffapi.NewClient(env.backend.URL()+cfg.basePath, ffapi.StaticToken("token"))
	require.NoError(t, err)
	writer := sw.NewWriter(cfg.backend, sw.WithSharer(env.sharer, env.cacheDir))

	opts := append([]ExporterOption{
		WithLogger(&silentLogger{}),
		WithCleanupObserver(func(path string, err error) {
			env.cleanMu.Lock()
			env.cleaned = append(env.cleaned, path)
			env.cleanMu.Unlock()
		}),
	}, cfg.opts...)
	env.exporter = NewExporterWithDependencies(client, writer, env.prompter, cfg.fs, env.tempDir, opts...)
	return env
}

// partFiles lists the temporary download files left in the temp directory.
func (env *testEnv) partFiles(t *testing.T) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(env.tempDir, "*.part"))
	require.NoError(t, err)
	return matches
}

func (env *testEnv) cleanedPaths() []string {
	env.cleanMu.Lock()
	defer env.cleanMu.Unlock()
	return append([]string(nil), env.cleaned...)
}

type silentLogger struct{}

func (silentLogger) Debug(string, ...any) {}
func (silentLogger) Info(string, ...any) {}
func (silentLogger) Warn(string, ...any) {}
func (silentLogger) Error(string, ...any) {}
func (silentLogger) FlushWebhook() error { return nil }

var errBoom = errors.New("boom")
