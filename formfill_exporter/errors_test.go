package formfill_exporter

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	sw "github.com/isseis/go-formfill-exporter/storage_writer"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrSessionInvalid, "Your session has expired. Please sign in again."},
		{&ExportError{Op: "download", Err: ErrRouteNotFound}, "The export service could not find this document."},
		{&ExportError{Op: "download", Page: 2, Err: ErrTransientService}, "Page 2: The export service is temporarily unavailable. Please try again later."},
		{fmt.Errorf("%w: x", ErrContentTypeMismatch), "The server returned an unexpected response instead of the document."},
		{sw.ErrSharingUnavailable, "Sharing is not available on this device."},
		{&sw.StorageError{Op: "prepare", Err: sw.ErrStorageUnavailable}, "No storage location is available for saving."},
		{&ExportError{Op: "save", Err: sw.ErrPermissionDenied}, "Permission to write to the selected folder was denied."},
		{sw.ErrFilenameAllocationFailed, "Could not find a free file name in the selected folder."},
		{ErrExportInProgress, "An export is already in progress."},
		{context.Canceled, "The export was interrupted."},
		{errors.New("disk on fire"), "Export failed: disk on fire"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UserMessage(tt.err))
	}
}

func TestExportError(t *testing.T) {
	err := &ExportError{Op: "save", Page: 3, Err: sw.ErrPermissionDenied}
	assert.Equal(t, "save page 3: permission denied", err.Error())
	assert.ErrorIs(t, err, sw.ErrPermissionDenied)
	assert.Equal(t, "download: session invalid", (&ExportError{Op: "download", Err: ErrSessionInvalid}).Error())
}

func TestFailureError(t *testing.T) {
	assert.ErrorIs(t, failureError(DownloadOutcome{Kind: OutcomeServerOrClientError}), ErrTransientService)
	assert.ErrorIs(t, failureError(DownloadOutcome{Kind: OutcomeContentTypeMismatch}), ErrContentTypeMismatch)
	inner := errors.New("reset")
	err := failureError(DownloadOutcome{Kind: OutcomeNetworkError, Err: inner})
	assert.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, inner)
}
