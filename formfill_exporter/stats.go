package formfill_exporter

import "fmt"

// ExportStats holds the statistics of one export operation.
type ExportStats struct {
	PagesRequested    int // Number of pages the operation set out to export
	PagesSaved        int // Number of files saved through the storage backend
	PagesShared       int // Number of files handed to the share facility
	CandidateAttempts int // Number of download attempts across candidate routes
	CleanupAttempts   int // Number of temporary files the operation tried to remove
	CleanupErrs       int // Number of temporary files that could not be removed
}

// String returns a string representation of the export statistics
func (s ExportStats) String() string {
	return fmt.Sprintf("pages_requested=%d, saved=%d, shared=%d, candidate_attempts=%d, cleanup_attempts=%d, cleanup_errors=%d",
		s.PagesRequested, s.PagesSaved, s.PagesShared, s.CandidateAttempts, s.CleanupAttempts, s.CleanupErrs)
}

// Completed reports whether every requested page was saved or shared.
func (s ExportStats) Completed() bool {
	return s.PagesRequested > 0 && s.PagesSaved+s.PagesShared == s.PagesRequested
}
