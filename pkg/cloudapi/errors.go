package cloudapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

var (
	// ErrNoAccessToken is returned when an authenticated call is made before a token is set.
	ErrNoAccessToken = errors.New("access token is not set")

	// ErrEntryNotFound is returned when the API answers successfully but without the requested entry.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrNoIDs is returned when a call that acts on ids is given none.
	ErrNoIDs = errors.New("no ids given")

	// ErrUnexpectedResponse is returned when a successful response body has the wrong shape.
	ErrUnexpectedResponse = errors.New("unexpected response body")
)

// APIError is a non-2xx response from the API.
//
// The API reports failures as {"errorCode": 401, "errorId": "...", "errorMessage": "..."};
// fields missing from the body are left empty and Message falls back to the status text.
type APIError struct {
	StatusCode int
	ErrorCode  int
	ErrorID    string
	Message    string
	// RetryAfter is the server's Retry-After hint, 0 when absent.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.ErrorID != "" {
		return fmt.Sprintf("feedly API error %d (%s): %s", e.StatusCode, e.ErrorID, e.Message)
	}
	return fmt.Sprintf("feedly API error %d: %s", e.StatusCode, e.Message)
}

// HTTPStatus returns the status code. The retry package uses it to classify the error.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// RetryAfterDelay returns the Retry-After hint.
func (e *APIError) RetryAfterDelay() time.Duration { return e.RetryAfter }

// IsNotFound reports whether err is a 404 response or ErrEntryNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound) || hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized reports whether err is a 401 response or ErrNoAccessToken.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrNoAccessToken) || hasStatus(err, http.StatusUnauthorized)
}

// IsRateLimited reports whether err is a 429 response.
func IsRateLimited(err error) bool {
	return hasStatus(err, http.StatusTooManyRequests)
}

func hasStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// newAPIError builds an APIError from a failed response.
func newAPIError(status int, header http.Header, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: status,
		RetryAfter: parseRetryAfter(header.Get("Retry-After"), time.Now()),
	}

	if gjson.ValidBytes(body) {
		doc := gjson.ParseBytes(body)
		apiErr.ErrorCode = int(doc.Get("errorCode").Int())
		apiErr.ErrorID = doc.Get("errorId").String()
		apiErr.Message = doc.Get("errorMessage").String()
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.ToLower(http.StatusText(status))
	}
	return apiErr
}

// parseRetryAfter accepts both forms of the header: delay seconds and an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
