// Package provider wraps third-party download-link services behind a
// uniform interface. Each adapter turns a normalized request into a
// candidate media URL, or a classified failure the pipeline can skip past.
package provider

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shortsget/shortsget/internal/request"
)

// Failure reasons. Adapters wrap these so the pipeline can aggregate
// per-provider diagnostics without inspecting provider-specific errors.
var (
	// ErrNetwork covers transport failures, timeouts and non-2xx statuses.
	ErrNetwork = errors.New("provider unreachable")
	// ErrBadResponse means a 2xx body that does not parse into the
	// expected shape.
	ErrBadResponse = errors.New("unexpected provider response")
	// ErrNoFormats means the provider answered but offered nothing
	// usable for the requested format.
	ErrNoFormats = errors.New("no matching formats")
)

// Candidate is one provider's answer: a media URL plus display metadata.
// The URL has not been validated yet.
type Candidate struct {
	Title           string
	Thumbnail       string
	DurationSeconds int
	Author          string
	MediaURL        string
	Quality         string
	Ext             string
}

// Provider resolves a download request against one external service.
// Implementations are stateless; multi-step protocols (metadata call
// followed by a conversion call) are hidden behind a single Resolve.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, req request.Request) (*Candidate, error)
}

// newHTTPClient builds the client used by adapters. Redirects are
// followed so tunnel/redirector URLs settle on their final host.
func newHTTPClient(timeout time.Duration) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConnsPerHost = 4
	t.ResponseHeaderTimeout = timeout
	return &http.Client{
		Timeout:   timeout,
		Transport: t,
	}
}
