// Package resolver orchestrates the provider chain: it tries each
// adapter in order, validates the candidate it returns, and stops at
// the first validated media URL.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shortsget/shortsget/internal/provider"
	"github.com/shortsget/shortsget/internal/request"
	"github.com/shortsget/shortsget/internal/validate"
)

// Resolved is a validated resolution result. It is never mutated; a
// stale URL is replaced by resolving again, not by patching this value.
type Resolved struct {
	Title           string
	Thumbnail       string
	DurationSeconds int
	Author          string
	MediaURL        string
	Quality         string
	Ext             string
	Format          request.Format
	Provider        string
	SourceURL       string
}

// Failure records why one provider did not produce a usable result.
type Failure struct {
	Provider string
	Err      error
}

// ExhaustedError is returned when every provider failed or produced
// only invalid candidates. It carries one Failure per configured
// provider, in chain order.
type ExhaustedError struct {
	Failures []Failure
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Provider, f.Err)
	}
	return "all providers exhausted: " + strings.Join(parts, "; ")
}

// errNotMedia marks candidates rejected by the validator.
var errNotMedia = fmt.Errorf("candidate is not a direct media URL")

// MediaValidator is the probe the pipeline applies to candidates.
type MediaValidator interface {
	IsDirectMedia(ctx context.Context, url string) bool
}

// Resolver runs the provider chain.
type Resolver struct {
	providers []provider.Provider
	validator MediaValidator
	timeout   time.Duration // per-adapter budget, 0 means no extra cap
}

// New builds a Resolver over the given chain.
func New(providers []provider.Provider, validator MediaValidator) *Resolver {
	return &Resolver{providers: providers, validator: validator}
}

// WithTimeout caps each provider attempt at d. Third-party endpoints
// are known to hang, so callers should always set this.
func (r *Resolver) WithTimeout(d time.Duration) *Resolver {
	r.timeout = d
	return r
}

// Providers returns the names of the configured chain, in order.
func (r *Resolver) Providers() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

// Resolve tries each provider in order and returns the first candidate
// that passes validation. On success at most the providers before the
// winning one have been consulted. On exhaustion it returns an
// *ExhaustedError listing every provider's failure; it never falls back
// to the source page URL.
func (r *Resolver) Resolve(ctx context.Context, req request.Request) (*Resolved, error) {
	if len(r.providers) == 0 {
		return nil, &ExhaustedError{}
	}

	var failures []Failure
	for _, p := range r.providers {
		cand, err := r.attempt(ctx, p, req)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"provider": p.Name(),
				"video_id": req.VideoID,
			}).WithError(err).Debug("provider attempt failed")
			failures = append(failures, Failure{Provider: p.Name(), Err: err})
			continue
		}

		// A provider echoing the source page back is a failure, not a
		// result. Same for candidates the probe classifies as pages.
		if cand.MediaURL == "" || validate.IsSourcePage(cand.MediaURL) ||
			!r.validator.IsDirectMedia(ctx, cand.MediaURL) {
			failures = append(failures, Failure{Provider: p.Name(), Err: errNotMedia})
			continue
		}

		quality := cand.Quality
		if quality == "" {
			quality = string(req.Quality)
		}

		logrus.WithFields(logrus.Fields{
			"provider": p.Name(),
			"video_id": req.VideoID,
			"quality":  quality,
		}).Info("resolved media URL")

		return &Resolved{
			Title:           cand.Title,
			Thumbnail:       cand.Thumbnail,
			DurationSeconds: cand.DurationSeconds,
			Author:          cand.Author,
			MediaURL:        cand.MediaURL,
			Quality:         quality,
			Ext:             cand.Ext,
			Format:          req.Format,
			Provider:        p.Name(),
			SourceURL:       req.SourceURL,
		}, nil
	}

	return nil, &ExhaustedError{Failures: failures}
}

func (r *Resolver) attempt(ctx context.Context, p provider.Provider, req request.Request) (*provider.Candidate, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return p.Resolve(ctx, req)
}
