package openweather

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/sean-rowe/best-bike-day/internal/core/domain"
)

// statusError is a non-2xx provider answer, carried as the cause of a provider error.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("HTTP %d", e.status)
	}

	return fmt.Sprintf("HTTP %d: %s", e.status, strings.TrimSpace(e.body))
}

func newStatusError(status int, body string) error {
	return domain.NewProviderError(fmt.Sprintf("HTTP %d", status), &statusError{status: status, body: body})
}

// statusOf returns the HTTP status carried by err, or 0.
func statusOf(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.status
	}

	return 0
}

// redactURL rewrites a transport *url.Error so its text carries the endpoint
// without the query string, which holds the API key.
func redactURL(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}

	endpoint := "request"
	if u, parseErr := url.Parse(urlErr.URL); parseErr == nil {
		endpoint = u.Scheme + "://" + u.Host + u.Path
	}

	return fmt.Errorf("%s %q: %w", urlErr.Op, endpoint, urlErr.Err)
}

// classify maps transport and decoding failures onto the domain taxonomy.
// Unresolvable hosts and refused connections mean no connectivity; deadlines and
// network timeouts mean the provider was too slow; anything else is a provider failure.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var we *domain.WeatherError
	if errors.As(err, &we) {
		return err
	}

	err = redactURL(err)

	if errors.Is(err, context.Canceled) {
		return err
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTimeout {
		return domain.NewConnectivityError(err)
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) {
		return domain.NewConnectivityError(err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewTimeoutError(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewTimeoutError(err)
	}

	if strings.Contains(err.Error(), "would exceed context deadline") {
		return domain.NewTimeoutError(err)
	}

	return domain.NewProviderError(err.Error(), err)
}
