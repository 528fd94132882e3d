package formfill_exporter

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	ffapi "github.com/isseis/go-formfill-exporter/formfill_api"
)

// CandidatePath is a route prefix under which the export endpoint may live,
// relative to the API base URL. Values are normalized by NormalizeCandidatePath.
type CandidatePath string

// BaselinePrefixes are the historically valid export route prefixes, in the
// order they are tried after any derived hint.
var BaselinePrefixes = []CandidatePath{
	"/form-fills",
	"/form_fills",
	"/formfills",
	"/api/form-fills",
	"/api/form_fills",
	"/api/formfills",
	"/api/v1/form-fills",
	"/api/v1/form_fills",
	"/api/v1/formfills",
}

// NormalizeCandidatePath returns p with a leading slash, no trailing slash, no
// empty segments and no query or fragment. The root path normalizes to "".
func NormalizeCandidatePath(p string) CandidatePath {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	segments := strings.Split(p, "/")
	kept := segments[:0]
	for _, s := range segments {
		if s != "" {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return CandidatePath("/" + strings.Join(kept, "/"))
}

// DeriveHintPath derives a route prefix from the URL the form fill's detail
// was served from. A last segment equal to the id, or any trailing numeric
// segment, is dropped, and basePath is stripped so the hint is relative to the
// base URL. It returns "" when nothing can be derived.
func DeriveHintPath(requestURL string, formFillID int64, basePath string) CandidatePath {
	if requestURL == "" {
		return ""
	}
	u, err := url.Parse(requestURL)
	if err != nil {
		return ""
	}
	path := string(NormalizeCandidatePath(u.Path))
	if path == "" {
		return ""
	}

	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	last := segments[len(segments)-1]
	if last == strconv.FormatInt(formFillID, 10) || isNumeric(last) {
		segments = segments[:len(segments)-1]
	}
	hint := NormalizeCandidatePath(strings.Join(segments, "/"))

	base := NormalizeCandidatePath(basePath)
	if base != "" {
		if hint == base {
			return ""
		}
		if strings.HasPrefix(string(hint), string(base)+"/") {
			hint = hint[len(base):]
		}
	}
	return hint
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// buildCandidates prepends hint to the baseline prefixes and removes duplicates.
func buildCandidates(hint CandidatePath) []CandidatePath {
	candidates := make([]CandidatePath, 0, len(BaselinePrefixes)+1)
	seen := make(map[CandidatePath]bool, len(BaselinePrefixes)+1)
	add := func(p CandidatePath) {
		p = NormalizeCandidatePath(string(p))
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		candidates = append(candidates, p)
	}
	add(hint)
	for _, p := range BaselinePrefixes {
		add(p)
	}
	return candidates
}

// ResolveCandidatePaths returns the ordered route prefixes to try for the form
// fill. It never fails: a failed detail lookup only loses the derived hint.
func (e *Exporter) ResolveCandidatePaths(ctx context.Context, formFillID int64) []CandidatePath {
	candidates, _ := e.resolve(ctx, formFillID)
	return candidates
}

// resolve is ResolveCandidatePaths that also returns the form fill detail, or
// nil if the lookup failed.
func (e *Exporter) resolve(ctx context.Context, formFillID int64) ([]CandidatePath, *ffapi.FormFill) {
	log := e.getLogger()
	formFill, err := e.client.GetFormFill(ctx, ffapi.FormFillID(formFillID))
	if err != nil {
		log.Debug("Form fill lookup failed, using baseline routes", "form_fill_id", formFillID, "error", err)
		return buildCandidates(""), nil
	}
	hint := DeriveHintPath(formFill.RequestURL, formFillID, e.client.BasePath())
	candidates := buildCandidates(hint)
	log.Debug("Resolved candidate routes", "form_fill_id", formFillID, "hint", string(hint), "count", len(candidates))
	return candidates, formFill
}
