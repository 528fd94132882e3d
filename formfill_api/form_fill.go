package formfill_api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
)

// jsonFormFillValue is one mapped field value in the raw detail response.
type jsonFormFillValue struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
	Page  int             `json:"page"`
}

// jsonFormFill is the raw detail response. The page count has been published
// under several names over time; all of them are accepted.
type jsonFormFill struct {
	ID         int64               `json:"id"`
	Status     string              `json:"status"`
	Name       string              `json:"name"`
	PagesTotal int                 `json:"pages_total"`
	PageCount  int                 `json:"page_count"`
	TotalPages int                 `json:"total_pages"`
	NumPages   int                 `json:"num_pages"`
	Pages      json.RawMessage     `json:"pages"`
	Values     []jsonFormFillValue `json:"values"`
}

// FormFillValue is one mapped field value.
type FormFillValue struct {
	Key   string
	Value json.RawMessage
	Page  int
}

// FormFill is the detail representation of a form fill.
type FormFill struct {
	ID     FormFillID
	Status string
	Name   string
	// PageCount is the number of pages of the generated document, or 0 if the
	// backend did not report it.
	PageCount int
	Values    []FormFillValue
	// RequestURL is the URL the detail response was finally served from.
	RequestURL string
}

// pageCount returns the first positive page count among the known fields,
// falling back to the highest page referenced by a value.
func (j *jsonFormFill) pageCount() int {
	for _, n := range []int{j.PagesTotal, j.PageCount, j.TotalPages, j.NumPages} {
		if n > 0 {
			return n
		}
	}
	if len(j.Pages) > 0 {
		var n int
		if err := json.Unmarshal(j.Pages, &n); err == nil && n > 0 {
			return n
		}
		var list []json.RawMessage
		if err := json.Unmarshal(j.Pages, &list); err == nil && len(list) > 0 {
			return len(list)
		}
	}
	maxPage := 0
	for _, v := range j.Values {
		if v.Page > maxPage {
			maxPage = v.Page
		}
	}
	return maxPage
}

func (j *jsonFormFill) toFormFill(requestURL string) *FormFill {
	values := make([]FormFillValue, 0, len(j.Values))
	for _, v := range j.Values {
		values = append(values, FormFillValue(v))
	}
	return &FormFill{
		ID:         FormFillID(j.ID),
		Status:     j.Status,
		Name:       j.Name,
		PageCount:  j.pageCount(),
		Values:     values,
		RequestURL: requestURL,
	}
}

// GetFormFill fetches the detail representation of the form fill id.
// Returns:
//   - error: HttpError on transport or decoding failure
//   - error: *StatusError on a non-2xx response
func (c *Client) GetFormFill(ctx context.Context, id FormFillID) (*FormFill, error) {
	req, err := c.newRequest(ctx, c.detailPath+"/"+id.String(), nil, "application/json")
	if err != nil {
		return nil, err
	}
	resp, err := c.previewClient.Do(req)
	if err != nil {
		return nil, HttpError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Op: "get form fill " + strconv.FormatInt(int64(id), 10), Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, HttpError(err.Error())
	}
	var raw jsonFormFill
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, HttpError("decode form fill: " + err.Error())
	}
	return raw.toFormFill(finalURL(resp, req)), nil
}

// finalURL returns the URL of the request that produced resp, which differs from
// the original request after redirects.
func finalURL(resp *http.Response, req *http.Request) string {
	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String()
	}
	return req.URL.String()
}
