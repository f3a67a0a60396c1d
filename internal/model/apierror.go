package model

import (
	"fmt"
	"regexp"
	"strconv"
)

// tooOldRx matches the watch-stream "resource version too old" message, e.g.
// "too old resource version: 355452234 (358305898)"; group 1 is the
// resourceVersion the server says is still acceptable.
var tooOldRx = regexp.MustCompile(`too old resource version: \d+ \((\d+)\)`)

// ApiError is a decoded Kubernetes Status{status:"Failure"} response.
type ApiError struct {
	Code    int
	Reason  string
	Message string
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("ApiError(code=%d, reason=%q, message=%q)", e.Code, e.Reason, e.Message)
}

// IsRetryable reports whether the HTTP status is one treated as transient:
// 429/500/502/503/504.
func (e *ApiError) IsRetryable() bool {
	switch e.Code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsResourceVersionTooOld reports whether Message matches the "too old
// resource version" pattern the API server emits on a 410 Gone.
func (e *ApiError) IsResourceVersionTooOld() bool {
	return tooOldRx.MatchString(e.Message)
}

// ExtractResourceVersion returns the acceptable resourceVersion embedded in
// a "too old" message. Only valid when IsResourceVersionTooOld is true.
func (e *ApiError) ExtractResourceVersion() (uint64, bool) {
	m := tooOldRx.FindStringSubmatch(e.Message)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
