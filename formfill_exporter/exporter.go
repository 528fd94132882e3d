// Package formfill_exporter downloads exported form-fill documents from the
// backend and delivers them to storage, the share facility or a printer.
package formfill_exporter

import (
	"context"
	"fmt"
	"os"

	ffapi "github.com/isseis/go-formfill-exporter/formfill_api"
	sw "github.com/isseis/go-formfill-exporter/storage_writer"
)

// Logger defines the interface for logging operations within the exporter.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	FlushWebhook() error
}

// FormFillClient is the backend surface used by the exporter.
type FormFillClient interface {
	ExportOpener
	GetFormFill(ctx context.Context, id ffapi.FormFillID) (*ffapi.FormFill, error)
	BasePath() string
}

// StorageWriter persists or shares downloaded files.
type StorageWriter interface {
	Save(ctx context.Context, f sw.DownloadedFile) (sw.StorageWriteResult, error)
	Share(ctx context.Context, f sw.DownloadedFile, title string) (sw.StorageWriteResult, error)
	Backend() sw.StorageBackend
}

// Action is what the user wants done with a downloaded document.
type Action int

const (
	ActionCancel Action = iota
	ActionSave
	ActionShare
)

func (a Action) String() string {
	switch a {
	case ActionSave:
		return "save"
	case ActionShare:
		return "share"
	default:
		return "cancel"
	}
}

// ParseAction parses "save", "share" or "cancel".
func ParseAction(s string) (Action, error) {
	switch s {
	case "save":
		return ActionSave, nil
	case "share":
		return ActionShare, nil
	case "cancel":
		return ActionCancel, nil
	default:
		return ActionCancel, fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, s)
	}
}

// Prompter asks the user for decisions and shows messages.
type Prompter interface {
	// ChooseAction asks what to do with fileName: cancel, save or share.
	ChooseAction(ctx context.Context, fileName string) (Action, error)
	// ChooseFormat asks for the export format. ok is false if the user cancelled.
	ChooseFormat(ctx context.Context, documentName string) (format Format, ok bool, err error)
	// ConfirmMultiPageSave warns that pages files will be saved. Sharing is not offered.
	ConfirmMultiPageSave(ctx context.Context, documentName string, pages int) (bool, error)
	// Notify shows a success or error message.
	Notify(ctx context.Context, message string)
}

// Printer hands a downloaded PDF to the host's print facility.
type Printer interface {
	Print(ctx context.Context, path, documentName string) error
}

// ExportResult is the outcome of a finished operation.
type ExportResult struct {
	// Cancelled is set when the user cancelled at a prompt.
	Cancelled bool
	Action    Action
	// Files lists every file saved or shared, including those saved before a
	// later page failed.
	Files   []sw.StorageWriteResult
	Message string
	Stats   ExportStats
}

// Exporter orchestrates exports. At most one operation runs at a time.
type Exporter struct {
	client     FormFillClient
	writer     StorageWriter
	prompter   Prompter
	printer    Printer
	fs         FileSystemOperations
	tempDir    string // Directory receiving in-flight downloads
	logger     Logger
	cleaner    *cleaner
	downloader *Downloader
	guard      exportGuard
}

// ExporterOption defines a function type to set options for Exporter.
type ExporterOption func(*Exporter)

// WithLogger sets the logger for Exporter.
// If not set, a fallback logger writing to stdout is used.
func WithLogger(log Logger) ExporterOption {
	return func(e *Exporter) {
		e.logger = log
	}
}

// WithPrinter enables PrintDocument.
func WithPrinter(p Printer) ExporterOption {
	return func(e *Exporter) {
		e.printer = p
	}
}

// getLogger returns the logger, falling back to a default logger if none is set.
func (e *Exporter) getLogger() Logger {
	if e.logger != nil {
		return e.logger
	}
	return &fallbackLogger{}
}

// fallbackLogger prints to stdout.
type fallbackLogger struct{}

func (f *fallbackLogger) Debug(msg string, args ...any) {
	fmt.Printf("[DEBUG] %s\n", formatLogMessage(msg, args...))
}

func (f *fallbackLogger) Info(msg string, args ...any) {
	fmt.Printf("[INFO] %s\n", formatLogMessage(msg, args...))
}

func (f *fallbackLogger) Warn(msg string, args ...any) {
	fmt.Printf("[WARN] %s\n", formatLogMessage(msg, args...))
}

func (f *fallbackLogger) Error(msg string, args ...any) {
	fmt.Printf("[ERROR] %s\n", formatLogMessage(msg, args...))
}

func (f *fallbackLogger) FlushWebhook() error {
	return nil
}

// formatLogMessage appends key=value pairs to msg. A trailing odd arg is ignored.
func formatLogMessage(msg string, args ...any) string {
	result := msg
	for i := 0; i+1 < len(args); i += 2 {
		result += fmt.Sprintf(" %v=%v", args[i], args[i+1])
	}
	return result
}

// NewExporter constructs an Exporter over a backend client. If tempDir is empty,
// downloads are staged under the system temporary directory.
func NewExporter(client *ffapi.Client, writer StorageWriter, prompter Prompter, tempDir string, opts ...ExporterOption) *Exporter {
	return NewExporterWithDependencies(client, writer, prompter, &DefaultFileSystem{}, tempDir, opts...)
}

// NewExporterWithDependencies constructs an Exporter with injected dependencies. Intended for testing and advanced use.
func NewExporterWithDependencies(client FormFillClient, writer StorageWriter, prompter Prompter, fs FileSystemOperations, tempDir string, opts ...ExporterOption) *Exporter {
	if fs == nil {
		fs = &DefaultFileSystem{}
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	e := &Exporter{
		client:   client,
		writer:   writer,
		prompter: prompter,
		fs:       fs,
		tempDir:  tempDir,
	}
	e.cleaner = &cleaner{fs: fs, logger: e.getLogger}
	for _, opt := range opts {
		opt(e)
	}
	e.downloader = NewDownloader(client, fs, e.getLogger(), e.cleaner.remove)
	return e
}

// IsExporting reports whether an operation is running.
func (e *Exporter) IsExporting() bool {
	return e.guard.current().Stage != StageIdle
}

// Progress describes the running operation; "" when idle.
func (e *Exporter) Progress() string {
	return e.guard.current().Progress()
}

// State returns the current phase.
func (e *Exporter) State() Phase {
	return e.guard.current()
}
