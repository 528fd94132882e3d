package formfill_api

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// ExportResponse is an open export response. The caller must close Body.
type ExportResponse struct {
	StatusCode  int
	ContentType string
	Header      http.Header
	Body        io.ReadCloser
}

// OpenExport issues an authenticated GET to path (relative to the base URL)
// with the given query and returns the response regardless of its status code.
// Classifying the status is the caller's concern.
func (c *Client) OpenExport(ctx context.Context, path string, query url.Values) (*ExportResponse, error) {
	req, err := c.newRequest(ctx, path, query, "application/pdf, image/*, application/octet-stream")
	if err != nil {
		return nil, err
	}
	resp, err := c.generationClient.Do(req)
	if err != nil {
		return nil, HttpError(err.Error())
	}
	return &ExportResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Header:      resp.Header,
		Body:        resp.Body,
	}, nil
}
