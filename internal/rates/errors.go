package rates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
)

// ErrNoConnectivity marks failures to reach the rate provider at all, including
// timeouts.
var ErrNoConnectivity = errors.New("rates: no connectivity")

// IsNoConnectivity reports whether err is a connectivity or timeout failure.
func IsNoConnectivity(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNoConnectivity) || isNetworkFailure(err)
}

// isNetworkFailure looks through *url.Error, which itself satisfies net.Error,
// so that bad schemes and malformed URLs stay generic failures.
func isNetworkFailure(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		err = urlErr.Err
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// transportError classifies a failed request or body read.
func transportError(op string, err error) error {
	if isNetworkFailure(err) {
		return fmt.Errorf("%w: %s: %w", ErrNoConnectivity, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
