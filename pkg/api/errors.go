package api

import (
	"context"
	"errors"
	"fmt"

	"dualbot/pkg/event"
)

const (
	ErrorTransport  = "transport_error"
	ErrorHTTPStatus = "http_status"
	ErrorDecode     = "decode_error"
	ErrorAPI        = "api_error"
	ErrorCanceled   = "canceled"
)

// Error is a categorized outbound call failure returned to the handler that issued the call.
type Error struct {
	Category    string
	Platform    event.Platform
	Method      string
	Code        int
	Description string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	prefix := fmt.Sprintf("%s %s %s", e.Platform, e.Method, e.Category)
	switch {
	case e.Code != 0 && e.Description != "":
		return fmt.Sprintf("%s: %d %s", prefix, e.Code, e.Description)
	case e.Code != 0:
		return fmt.Sprintf("%s: %d", prefix, e.Code)
	case e.Description != "":
		return prefix + ": " + e.Description
	default:
		return prefix
	}
}

// CategoryFromError returns the stable category for an error when available.
func CategoryFromError(err error) string {
	if err == nil {
		return ""
	}

	var categorized *Error
	if errors.As(err, &categorized) {
		return categorized.Category
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorCanceled
	}

	return ErrorTransport
}

// IsAPIError reports whether err is a platform-level rejection with the given code.
func IsAPIError(err error, code int) bool {
	var categorized *Error
	if !errors.As(err, &categorized) {
		return false
	}

	return categorized.Category == ErrorAPI && categorized.Code == code
}
