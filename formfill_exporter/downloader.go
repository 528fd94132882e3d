package formfill_exporter

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	ffapi "github.com/isseis/go-formfill-exporter/formfill_api"
	sw "github.com/isseis/go-formfill-exporter/storage_writer"
)

// OutcomeKind classifies one download attempt against one candidate.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeUnauthorized
	OutcomeNotFound
	OutcomeServerOrClientError
	OutcomeContentTypeMismatch
	OutcomeNetworkError
	// OutcomeStorageError means the temporary file could not be created.
	// The candidate is irrelevant, so callers must not try another one.
	OutcomeStorageError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeServerOrClientError:
		return "server_or_client_error"
	case OutcomeContentTypeMismatch:
		return "content_type_mismatch"
	case OutcomeNetworkError:
		return "network_error"
	case OutcomeStorageError:
		return "storage_error"
	default:
		return "unknown"
	}
}

// DownloadOutcome is the result of one attempt. Path, MimeType and FileName are
// set only on success; Status is the HTTP status when one was received.
type DownloadOutcome struct {
	Kind     OutcomeKind
	Status   int
	Path     string
	MimeType string
	FileName string
	Err      error
}

// ExportOpener opens export responses.
type ExportOpener interface {
	OpenExport(ctx context.Context, path string, query url.Values) (*ffapi.ExportResponse, error)
}

// Downloader performs single export attempts against one candidate route.
type Downloader struct {
	client  ExportOpener
	fs      FileSystemOperations
	logger  Logger
	cleanup func(path string)
}

// NewDownloader creates a Downloader. cleanup removes rejected temporary files
// and must not fail; nil uses fs.Remove and ignores its error.
func NewDownloader(client ExportOpener, fs FileSystemOperations, log Logger, cleanup func(path string)) *Downloader {
	if fs == nil {
		fs = &DefaultFileSystem{}
	}
	if log == nil {
		log = &fallbackLogger{}
	}
	if cleanup == nil {
		cleanup = func(path string) { _ = fs.Remove(path) }
	}
	return &Downloader{client: client, fs: fs, logger: log, cleanup: cleanup}
}

// exportPath returns the request path of req under candidate.
func exportPath(candidate CandidatePath, formFillID int64) string {
	return string(candidate) + "/" + strconv.FormatInt(formFillID, 10) + "/export"
}

// classifyStatus maps an HTTP status to the outcome of the attempt.
func classifyStatus(code int) OutcomeKind {
	switch {
	case code >= 200 && code < 300:
		return OutcomeSuccess
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return OutcomeUnauthorized
	case code == http.StatusNotFound:
		return OutcomeNotFound
	case code == http.StatusMethodNotAllowed, code == http.StatusConflict,
		code >= http.StatusInternalServerError && code <= http.StatusGatewayTimeout:
		return OutcomeServerOrClientError
	default:
		return OutcomeNetworkError
	}
}

// Download requests req from candidate and streams a successful body into a
// uniquely named temporary file in destDir. Exactly one outcome is returned.
func (d *Downloader) Download(ctx context.Context, candidate CandidatePath, req ExportRequest, destDir string) DownloadOutcome {
	query := url.Values{"format": {string(req.Format)}}
	if page := req.pageParam(); page != "" {
		query.Set("page", page)
	}
	path := exportPath(candidate, req.FormFillID)

	resp, err := d.client.OpenExport(ctx, path, query)
	if err != nil {
		d.logger.Debug("Export request failed", "path", path, "error", err)
		return DownloadOutcome{Kind: OutcomeNetworkError, Err: err}
	}
	defer resp.Body.Close()

	if kind := classifyStatus(resp.StatusCode); kind != OutcomeSuccess {
		d.logger.Debug("Export request rejected", "path", path, "status", resp.StatusCode, "outcome", kind.String())
		return DownloadOutcome{Kind: kind, Status: resp.StatusCode, Err: fmt.Errorf("status %d from %s", resp.StatusCode, path)}
	}

	tempPath := filepath.Join(destDir, "export-"+uuid.NewString()+".part")
	file, err := d.fs.CreateFile(tempPath, 0755, 0600)
	if err != nil {
		d.logger.Warn("Failed to create temporary file", "path", tempPath, "error", err)
		return DownloadOutcome{
			Kind:   OutcomeStorageError,
			Status: resp.StatusCode,
			Err:    &sw.StorageError{Op: "create temporary file", Err: fmt.Errorf("%w: %w", sw.ErrStorageUnavailable, err)},
		}
	}
	head := &headBuffer{limit: sniffLen}
	_, copyErr := io.Copy(io.MultiWriter(file, head), resp.Body)
	closeErr := file.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		d.cleanup(tempPath)
		d.logger.Debug("Export stream failed", "path", path, "error", copyErr)
		return DownloadOutcome{Kind: OutcomeNetworkError, Status: resp.StatusCode, Err: copyErr}
	}

	contentType := resp.ContentType
	if strings.TrimSpace(contentType) == "" {
		contentType = http.DetectContentType(head.buf)
	}
	mimeType, ok := acceptContentType(req.Format, contentType)
	if !ok {
		d.cleanup(tempPath)
		d.logger.Debug("Export content type rejected", "path", path, "content_type", contentType, "format", string(req.Format))
		return DownloadOutcome{
			Kind:   OutcomeContentTypeMismatch,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("content type %q for %s export", contentType, req.Format),
		}
	}

	return DownloadOutcome{
		Kind:     OutcomeSuccess,
		Status:   resp.StatusCode,
		Path:     tempPath,
		MimeType: mimeType,
		FileName: req.FileName(),
	}
}

// mediaType returns the lower-cased media type of a Content-Type header value.
func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// acceptContentType validates contentType for format and returns the MIME type
// to report, replacing application/octet-stream with the format's own type.
func acceptContentType(format Format, contentType string) (string, bool) {
	mt := mediaType(contentType)
	if mt == "application/json" || strings.HasPrefix(mt, "text/") {
		return "", false
	}
	switch format {
	case FormatPDF:
		switch mt {
		case "application/pdf":
			return mt, true
		case "application/octet-stream":
			return "application/pdf", true
		}
	case FormatJPG:
		switch mt {
		case "image/jpeg", "image/png":
			return mt, true
		case "image/jpg", "application/octet-stream":
			return "image/jpeg", true
		}
	}
	return "", false
}

const sniffLen = 512

// headBuffer keeps the first limit bytes written to it.
type headBuffer struct {
	buf   []byte
	limit int
}

func (h *headBuffer) Write(p []byte) (int, error) {
	if room := h.limit - len(h.buf); room > 0 {
		if len(p) < room {
			room = len(p)
		}
		h.buf = append(h.buf, p[:room]...)
	}
	return len(p), nil
}
