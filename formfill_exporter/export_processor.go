package formfill_exporter

import (
	"context"
	"errors"
	"fmt"
	"time"

	ffapi "github.com/isseis/go-formfill-exporter/formfill_api"
	sw "github.com/isseis/go-formfill-exporter/storage_writer"
)

// ExportPDF downloads the form fill as a PDF and saves or shares it.
func (e *Exporter) ExportPDF(ctx context.Context, formFillID int64, documentName string) (*ExportResult, error) {
	return e.run(ctx, "pdf", func(ctx context.Context, stats *ExportStats) (*ExportResult, error) {
		return e.exportPDF(ctx, formFillID, documentName, stats)
	})
}

// ExportJPG downloads the form fill as JPEG. On a document of several pages,
// AllPages and the auto selector save every page in turn after a confirmation;
// sharing is not offered for that case. A single-page document is exported
// like a single page with the auto selector.
func (e *Exporter) ExportJPG(ctx context.Context, formFillID int64, documentName string, page PageSelector) (*ExportResult, error) {
	return e.run(ctx, "jpg", func(ctx context.Context, stats *ExportStats) (*ExportResult, error) {
		return e.exportJPG(ctx, formFillID, documentName, page, stats)
	})
}

// ExportJPGPages downloads every page as JPEG and applies action to each page
// without a confirmation prompt. Unlike ExportJPG, action may be ActionShare.
func (e *Exporter) ExportJPGPages(ctx context.Context, formFillID int64, documentName string, action Action) (*ExportResult, error) {
	return e.run(ctx, "jpg_pages", func(ctx context.Context, stats *ExportStats) (*ExportResult, error) {
		if action != ActionSave && action != ActionShare {
			return nil, fmt.Errorf("%w: per-page action must be save or share, got %s", ErrInvalidRequest, action)
		}
		req := ExportRequest{FormFillID: formFillID, Format: FormatJPG, Page: AllPages, DocumentName: documentName}
		if err := req.Validate(); err != nil {
			return nil, err
		}
		candidates, formFill := e.resolve(ctx, formFillID)
		return e.exportPages(ctx, candidates, req, pageCountOf(formFill), action, stats)
	})
}

// ExportWithChoice asks for the format first, then behaves like ExportPDF or
// ExportJPG with the auto page selector.
func (e *Exporter) ExportWithChoice(ctx context.Context, formFillID int64, documentName string) (*ExportResult, error) {
	return e.run(ctx, "choice", func(ctx context.Context, stats *ExportStats) (*ExportResult, error) {
		format, ok, err := e.prompter.ChooseFormat(ctx, documentName)
		if err != nil {
			return nil, &ExportError{Op: "prompt", Err: err}
		}
		if !ok {
			return &ExportResult{Cancelled: true}, nil
		}
		switch format {
		case FormatPDF:
			return e.exportPDF(ctx, formFillID, documentName, stats)
		case FormatJPG:
			return e.exportJPG(ctx, formFillID, documentName, PageSelector{}, stats)
		default:
			return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidRequest, format)
		}
	})
}

// PrintDocument downloads the PDF and hands it to the printer.
func (e *Exporter) PrintDocument(ctx context.Context, formFillID int64, documentName string) (*ExportResult, error) {
	return e.run(ctx, "print", func(ctx context.Context, stats *ExportStats) (*ExportResult, error) {
		if e.printer == nil {
			return nil, ErrPrintingUnavailable
		}
		req := ExportRequest{FormFillID: formFillID, Format: FormatPDF, DocumentName: documentName}
		if err := req.Validate(); err != nil {
			return nil, err
		}
		candidates, _ := e.resolve(ctx, formFillID)
		stats.PagesRequested = 1
		out, err := e.downloadPage(ctx, candidates, req, 1, 1, stats)
		if err != nil {
			return nil, err
		}
		defer e.cleaner.remove(out.Path)
		if err := e.guard.finalizing(); err != nil {
			return nil, err
		}
		if err := e.printer.Print(ctx, out.Path, documentName); err != nil {
			return nil, &ExportError{Op: "print", Err: err}
		}
		return &ExportResult{Message: out.FileName + " sent to printer"}, nil
	})
}

// run executes fn as the single running operation, records metrics and shows
// the resulting message. A busy exporter returns ErrExportInProgress untouched.
func (e *Exporter) run(ctx context.Context, op string, fn func(context.Context, *ExportStats) (*ExportResult, error)) (*ExportResult, error) {
	log := e.getLogger()
	if err := e.guard.begin(); err != nil {
		log.Warn("Export rejected", "operation", op, "error", err)
		operationsTotal.WithLabelValues(op, "busy").Inc()
		return nil, err
	}
	defer e.guard.end()

	start := time.Now()
	attemptsBefore, errsBefore := e.cleaner.counts()
	stats := &ExportStats{}
	res, err := fn(ctx, stats)
	attemptsAfter, errsAfter := e.cleaner.counts()
	stats.CleanupAttempts = attemptsAfter - attemptsBefore
	stats.CleanupErrs = errsAfter - errsBefore

	if res == nil {
		res = &ExportResult{}
	}
	res.Stats = *stats
	operationsTotal.WithLabelValues(op, outcomeLabel(res, err)).Inc()
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Error("Export failed", "operation", op, "error", err, "stats", stats.String())
		e.prompter.Notify(ctx, UserMessage(err))
		return res, err
	}
	log.Info("Export finished", "operation", op, "cancelled", res.Cancelled, "stats", stats.String())
	if res.Message != "" {
		e.prompter.Notify(ctx, res.Message)
	}
	return res, nil
}

func (e *Exporter) exportPDF(ctx context.Context, formFillID int64, documentName string, stats *ExportStats) (*ExportResult, error) {
	req := ExportRequest{FormFillID: formFillID, Format: FormatPDF, DocumentName: documentName}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	candidates, _ := e.resolve(ctx, formFillID)
	return e.exportSingle(ctx, candidates, req, stats)
}

func (e *Exporter) exportJPG(ctx context.Context, formFillID int64, documentName string, page PageSelector, stats *ExportStats) (*ExportResult, error) {
	req := ExportRequest{FormFillID: formFillID, Format: FormatJPG, Page: page, DocumentName: documentName}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	candidates, formFill := e.resolve(ctx, formFillID)

	pages := pageCountOf(formFill)
	if _, single := page.Number(); single {
		return e.exportSingle(ctx, candidates, req, stats)
	}
	if pages <= 1 {
		req.Page = PageSelector{}
		return e.exportSingle(ctx, candidates, req, stats)
	}

	ok, err := e.prompter.ConfirmMultiPageSave(ctx, documentName, pages)
	if err != nil {
		return nil, &ExportError{Op: "prompt", Err: err}
	}
	if !ok {
		return &ExportResult{Cancelled: true}, nil
	}
	return e.exportPages(ctx, candidates, req, pages, ActionSave, stats)
}

// exportSingle downloads one file and asks what to do with it.
func (e *Exporter) exportSingle(ctx context.Context, candidates []CandidatePath, req ExportRequest, stats *ExportStats) (*ExportResult, error) {
	stats.PagesRequested = 1
	out, err := e.downloadPage(ctx, candidates, req, 1, 1, stats)
	if err != nil {
		return nil, err
	}
	defer e.cleaner.remove(out.Path)

	if err := e.guard.finalizing(); err != nil {
		return nil, err
	}
	action, err := e.prompter.ChooseAction(ctx, out.FileName)
	if err != nil {
		return nil, &ExportError{Op: "prompt", Err: err}
	}
	if action == ActionCancel {
		return &ExportResult{Cancelled: true, Action: ActionCancel}, nil
	}

	res := &ExportResult{Action: action}
	stored, err := e.deliver(ctx, action, out, req.DocumentName, 0, stats)
	if err != nil {
		return res, err
	}
	res.Files = append(res.Files, stored)
	if action == ActionSave {
		res.Message = e.savedMessage(stored.FileName)
	}
	return res, nil
}

// exportPages downloads and delivers pages 1..pages strictly in order. The
// first failure stops the loop; files delivered before it are kept.
func (e *Exporter) exportPages(ctx context.Context, candidates []CandidatePath, req ExportRequest, pages int, action Action, stats *ExportStats) (*ExportResult, error) {
	res := &ExportResult{Action: action}
	stats.PagesRequested = pages
	for page := 1; page <= pages; page++ {
		pageReq := req
		pageReq.Page = PageNumber(page)

		out, err := e.downloadPage(ctx, candidates, pageReq, page, pages, stats)
		if err != nil {
			return res, err
		}
		stored, err := e.finalizePage(ctx, action, out, req.DocumentName, page, stats)
		if err != nil {
			return res, err
		}
		res.Files = append(res.Files, stored)
	}

	switch action {
	case ActionSave:
		res.Message = e.withFolderSuffix(fmt.Sprintf("%d pages saved", pages))
	case ActionShare:
		res.Message = fmt.Sprintf("%d pages shared", pages)
	}
	return res, nil
}

func (e *Exporter) finalizePage(ctx context.Context, action Action, out DownloadOutcome, documentName string, page int, stats *ExportStats) (sw.StorageWriteResult, error) {
	defer e.cleaner.remove(out.Path)
	if err := e.guard.finalizing(); err != nil {
		return sw.StorageWriteResult{}, err
	}
	return e.deliver(ctx, action, out, documentName, page, stats)
}

// deliver saves or shares a downloaded file.
func (e *Exporter) deliver(ctx context.Context, action Action, out DownloadOutcome, documentName string, page int, stats *ExportStats) (sw.StorageWriteResult, error) {
	file := sw.DownloadedFile{Path: out.Path, MimeType: out.MimeType, FileName: out.FileName}
	switch action {
	case ActionSave:
		stored, err := e.writer.Save(ctx, file)
		if err != nil {
			return sw.StorageWriteResult{}, &ExportError{Op: "save", Page: page, Err: err}
		}
		stats.PagesSaved++
		pagesStored.WithLabelValues("save").Inc()
		return stored, nil
	case ActionShare:
		stored, err := e.writer.Share(ctx, file, "Share "+documentName)
		if err != nil {
			return sw.StorageWriteResult{}, &ExportError{Op: "share", Page: page, Err: err}
		}
		stats.PagesShared++
		pagesStored.WithLabelValues("share").Inc()
		return stored, nil
	default:
		return sw.StorageWriteResult{}, fmt.Errorf("%w: unsupported action %s", ErrInvalidRequest, action)
	}
}

// downloadPage enters Downloading(page/pages) and runs the candidate loop.
// page is reported in errors only when pages > 1.
func (e *Exporter) downloadPage(ctx context.Context, candidates []CandidatePath, req ExportRequest, page, pages int, stats *ExportStats) (DownloadOutcome, error) {
	if err := e.guard.downloading(page, pages); err != nil {
		return DownloadOutcome{}, err
	}
	errPage := 0
	if pages > 1 {
		errPage = page
	}
	return e.downloadFromCandidates(ctx, candidates, req, errPage, stats)
}

// downloadFromCandidates tries each candidate in order. Success, Unauthorized
// and local storage failures stop the loop; every other outcome moves on.
func (e *Exporter) downloadFromCandidates(ctx context.Context, candidates []CandidatePath, req ExportRequest, page int, stats *ExportStats) (DownloadOutcome, error) {
	log := e.getLogger()
	var last *DownloadOutcome
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return DownloadOutcome{}, &ExportError{Op: "download", Page: page, Err: err}
		}
		stats.CandidateAttempts++
		out := e.downloader.Download(ctx, candidate, req, e.tempDir)
		candidateAttempts.WithLabelValues(out.Kind.String()).Inc()

		switch out.Kind {
		case OutcomeSuccess:
			log.Debug("Export downloaded", "candidate", string(candidate), "file", out.FileName, "mime_type", out.MimeType)
			return out, nil
		case OutcomeUnauthorized:
			return out, &ExportError{Op: "download", Page: page, Err: fmt.Errorf("%w: status %d", ErrSessionInvalid, out.Status)}
		case OutcomeStorageError:
			return out, &ExportError{Op: "download", Page: page, Err: out.Err}
		case OutcomeNotFound:
			continue
		default:
			log.Debug("Candidate failed", "candidate", string(candidate), "outcome", out.Kind.String(), "error", out.Err)
			failed := out
			last = &failed
		}
	}

	if last == nil {
		return DownloadOutcome{}, &ExportError{Op: "download", Page: page, Err: ErrRouteNotFound}
	}
	if err := ctx.Err(); err != nil {
		return *last, &ExportError{Op: "download", Page: page, Err: err}
	}
	return *last, &ExportError{Op: "download", Page: page, Err: failureError(*last)}
}

// failureError maps the last non-404 failure onto the error taxonomy.
func failureError(out DownloadOutcome) error {
	var kind error
	switch out.Kind {
	case OutcomeServerOrClientError:
		kind = ErrTransientService
	case OutcomeContentTypeMismatch:
		kind = ErrContentTypeMismatch
	default:
		kind = ErrNetwork
	}
	if out.Err != nil {
		return fmt.Errorf("%w: %w", kind, out.Err)
	}
	return kind
}

func (e *Exporter) savedMessage(fileName string) string {
	return e.withFolderSuffix(fileName + " saved")
}

func (e *Exporter) withFolderSuffix(msg string) string {
	if e.writer.Backend().RequiresGrant() {
		return msg + " in the selected folder"
	}
	return msg
}

// pageCountOf returns the page count of formFill, or 1 when unknown.
func pageCountOf(formFill *ffapi.FormFill) int {
	if formFill == nil || formFill.PageCount < 1 {
		return 1
	}
	return formFill.PageCount
}

// IsSessionError reports whether err requires the user to sign in again.
func IsSessionError(err error) bool {
	return errors.Is(err, ErrSessionInvalid)
}
