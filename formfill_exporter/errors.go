package formfill_exporter

import (
	"context"
	"errors"
	"fmt"

	sw "github.com/isseis/go-formfill-exporter/storage_writer"
)

var (
	// ErrSessionInvalid means the backend rejected the session (401/403).
	ErrSessionInvalid = errors.New("session invalid")
	// ErrRouteNotFound means every candidate route answered 404.
	ErrRouteNotFound = errors.New("export route not found")
	// ErrTransientService means the last non-404 failure was a 405/409/5xx.
	ErrTransientService = errors.New("export service unavailable")
	// ErrContentTypeMismatch means the last non-404 failure returned a body of the wrong type.
	ErrContentTypeMismatch = errors.New("unexpected content type")
	// ErrNetwork means the last non-404 failure was a transport error or an unexpected status.
	ErrNetwork = errors.New("network error")
	// ErrExportInProgress is returned when an export is started while another runs.
	ErrExportInProgress = errors.New("export already in progress")
	// ErrInvalidRequest means the request cannot be sent as given.
	ErrInvalidRequest = errors.New("invalid export request")
	// ErrPrintingUnavailable means no printer is configured.
	ErrPrintingUnavailable = errors.New("printing unavailable")
)

// ExportError attaches the failing operation, and the page for multi-page
// exports, to an underlying error.
type ExportError struct {
	Op   string
	Page int
	Err  error
}

func (e *ExportError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("%s page %d: %v", e.Op, e.Page, e.Err)
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// UserMessage returns the message shown to the user for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := userMessage(err)
	var exportErr *ExportError
	if errors.As(err, &exportErr) && exportErr.Page > 0 {
		return fmt.Sprintf("Page %d: %s", exportErr.Page, msg)
	}
	return msg
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrExportInProgress):
		return "An export is already in progress."
	case errors.Is(err, ErrSessionInvalid):
		return "Your session has expired. Please sign in again."
	case errors.Is(err, ErrRouteNotFound):
		return "The export service could not find this document."
	case errors.Is(err, ErrTransientService):
		return "The export service is temporarily unavailable. Please try again later."
	case errors.Is(err, ErrContentTypeMismatch):
		return "The server returned an unexpected response instead of the document."
	case errors.Is(err, ErrNetwork):
		return "A network error occurred while downloading the document."
	case errors.Is(err, sw.ErrSharingUnavailable):
		return "Sharing is not available on this device."
	case errors.Is(err, sw.ErrStorageUnavailable):
		return "No storage location is available for saving."
	case errors.Is(err, sw.ErrGrantCancelled):
		return "No folder was selected."
	case errors.Is(err, sw.ErrPermissionDenied):
		return "Permission to write to the selected folder was denied."
	case errors.Is(err, sw.ErrFilenameAllocationFailed):
		return "Could not find a free file name in the selected folder."
	case errors.Is(err, ErrPrintingUnavailable):
		return "Printing is not available."
	case errors.Is(err, ErrInvalidRequest):
		return "The export request is invalid."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The export was interrupted."
	default:
		return "Export failed: " + err.Error()
	}
}
