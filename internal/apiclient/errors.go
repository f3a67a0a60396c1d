package apiclient

import (
	"context"
	"errors"
	"net"
	"net/url"

	"github.com/kubeobserve/kubeobserve/internal/errcat"
	"github.com/kubeobserve/kubeobserve/internal/model"
)

// classifyApiError maps a decoded Status{status:"Failure"} response to the
// retry category watchtask's state machine acts on, per spec.md §4.4.
func classifyApiError(apiErr *model.ApiError) error {
	if apiErr.IsResourceVersionTooOld() {
		return errcat.ResourceVersionTooOld.New(apiErr)
	}
	if apiErr.IsRetryable() {
		return errcat.Retryable.New(apiErr)
	}
	return errcat.Fatal.New(apiErr)
}

// classifyTransportError maps a network/transport-level failure (dial
// refused, TLS handshake failure, connection reset mid-stream, context
// deadline) to Retryable, except for an explicit caller cancellation.
func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return errcat.Cancelled.New(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errcat.Retryable.New(err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return errcat.Retryable.New(err)
		}
		return classifyTransportError(urlErr.Err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return errcat.Retryable.New(err)
	}

	return errcat.Retryable.New(err)
}
