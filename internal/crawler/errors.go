package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// FetchErrorKind classifies why a fetch failed.
type FetchErrorKind string

// Fetch failure kinds. None of them are fatal to a session.
const (
	KindTimeout                FetchErrorKind = "timeout"
	KindConnectionFailed       FetchErrorKind = "connection_failed"
	KindNonSuccessStatus       FetchErrorKind = "non_success_status"
	KindUnsupportedContentType FetchErrorKind = "unsupported_content_type"
)

// FetchError is returned by Fetcher implementations.
type FetchError struct {
	Kind        FetchErrorKind
	URL         string
	StatusCode  int
	ContentType string
	Err         error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindNonSuccessStatus:
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	case KindUnsupportedContentType:
		return fmt.Sprintf("fetch %s: unsupported content type %q", e.URL, e.ContentType)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewStatusError builds a NonSuccessStatus error.
func NewStatusError(url string, code int) *FetchError {
	return &FetchError{Kind: KindNonSuccessStatus, URL: url, StatusCode: code}
}

// NewContentTypeError builds an UnsupportedContentType error.
func NewContentTypeError(url, contentType string) *FetchError {
	return &FetchError{Kind: KindUnsupportedContentType, URL: url, ContentType: contentType}
}

// ClassifyFetchError maps a transport error onto a FetchError. Errors that are
// already FetchErrors are returned unchanged.
func ClassifyFetchError(url string, err error) *FetchError {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	kind := KindConnectionFailed
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case strings.Contains(strings.ToLower(err.Error()), "timeout"):
		kind = KindTimeout
	}
	return &FetchError{Kind: kind, URL: url, Err: err}
}

// IsHTML reports whether a Content-Type header denotes an HTML document.
func IsHTML(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/html")
}

// IsSuccess reports whether the HTTP status is 2xx.
func IsSuccess(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}
