// Package formfill_api is the authenticated HTTP transport to the form-fill backend.
package formfill_api

import (
	"fmt"
	"strconv"
)

// FormFillID identifies a form fill on the backend.
type FormFillID int64

// String returns the decimal representation used in URLs.
func (id FormFillID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

type InvalidUrlError string

func (e InvalidUrlError) Error() string {
	return "invalid URL " + strconv.Quote(string(e)) + " in base_url"
}

// HttpError reports a transport-level failure: the request could not be built,
// sent, or its body could not be read.
type HttpError string

func (e HttpError) Error() string {
	return "http error " + strconv.Quote(string(e))
}

// StatusError reports a response whose status code the caller did not accept.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Code)
}
