package eduquest

import (
	"encoding/json"
	"fmt"
)

// Sentinel errors returned by the SDK.
var (
	// ErrNoToken is returned when no session token is available.
	ErrNoToken = fmt.Errorf("eduquest: no session token provided")

	// ErrTokenInvalid is returned when the session token is invalid or expired.
	ErrTokenInvalid = fmt.Errorf("eduquest: token is invalid or expired")
)

// APIError represents an error response from the EduQuest API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("eduquest: API error %d [%s]: %s", e.StatusCode, e.Code, e.Message)
}

// apiErrorWrapper matches the EduQuest API error envelope.
type apiErrorWrapper struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseAPIError(statusCode int, body []byte) error {
	var wrapper apiErrorWrapper
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Error.Code != "" {
		return &APIError{
			StatusCode: statusCode,
			Code:       wrapper.Error.Code,
			Message:    wrapper.Error.Message,
		}
	}

	return &APIError{
		StatusCode: statusCode,
		Code:       "unknown",
		Message:    string(body),
	}
}

// IsAPIError checks whether err is an APIError and returns it.
func IsAPIError(err error) (*APIError, bool) {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr, true
	}
	return nil, false
}
