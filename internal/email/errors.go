package email

import (
	"encoding/json"
	"fmt"
	"strings"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// DeliveryError is a non-2xx answer from the mail API. It is wrapped in a
// domain EDELIVERY error and only ever logged, never shown to the submitter.
type DeliveryError struct {
	StatusCode int
	Code       string // Provider error code, when the body carries one
	Body       string // Truncated response body
}

func (e *DeliveryError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("mail API status %d (%s): %s", e.StatusCode, e.Code, e.Body)
	}
	return fmt.Sprintf("mail API status %d: %s", e.StatusCode, e.Body)
}

// graphError is the error envelope returned by the Graph API.
type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newDeliveryError(status int, body []byte) *DeliveryError {
	e := &DeliveryError{StatusCode: status, Body: truncate(string(body), maxErrorBody)}

	var ge graphError
	if err := json.Unmarshal(body, &ge); err == nil {
		e.Code = ge.Error.Code
	}
	return e
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "") + "..."
}
