// Package downloader turns a resolved media URL into a file on disk.
// It owns the client side of the retry story: a rejected URL triggers a
// fresh resolution with exponential backoff, and when fetching is
// impossible the caller still gets a usable fallback action.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/shortsget/shortsget/internal/request"
	"github.com/shortsget/shortsget/internal/resolver"
	"github.com/shortsget/shortsget/internal/validate"
)

// Payloads smaller than this are error pages in disguise, not media.
const minPayloadBytes = 1000

// State is the downloader's position in its fixed progression.
type State int

const (
	StateResolving State = iota
	StateFetching
	StateSaving
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateFetching:
		return "fetching"
	case StateSaving:
		return "saving"
	case StateDone:
		return "done"
	default:
		return "failed"
	}
}

// Outcome says what the caller should do with the Result.
type Outcome int

const (
	// OutcomeSaved means the file was written to Result.Path.
	OutcomeSaved Outcome = iota
	// OutcomeOpenDirect means fetching failed but Result.URL is a
	// validated direct link the user can open themselves.
	OutcomeOpenDirect
	// OutcomeOpenPage means nothing was fetchable; Result.URL is the
	// source page, the last-resort action that always exists.
	OutcomeOpenPage
)

// Result is the terminal state of one Download call.
type Result struct {
	Outcome  Outcome
	Path     string
	URL      string
	Size     int64
	Resolved *resolver.Resolved
}

// ErrPayloadTooSmall marks fetches whose body was suspiciously small.
var ErrPayloadTooSmall = errors.New("payload too small to be media")

// Progress receives state transitions and byte counts. total is -1 when
// the server did not announce a length.
type Progress func(state State, written, total int64)

// MediaResolver is the pipeline the downloader re-invokes on retries.
type MediaResolver interface {
	Resolve(ctx context.Context, req request.Request) (*resolver.Resolved, error)
}

// Downloader fetches resolved media to the output directory.
type Downloader struct {
	resolver    MediaResolver
	outputDir   string
	maxAttempts int
	client      *http.Client
	onProgress  Progress
}

// New creates a Downloader. maxAttempts caps top-level resolve+fetch
// attempts; values below 1 mean a single attempt.
func New(res MediaResolver, outputDir string, maxAttempts int) *Downloader {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Downloader{
		resolver:    res,
		outputDir:   outputDir,
		maxAttempts: maxAttempts,
		client: &http.Client{
			// No overall timeout: media bodies are large. The context
			// and the header timeout bound the hang risk instead.
			Transport: headerTimeoutTransport(30 * time.Second),
		},
	}
}

// OnProgress registers a progress callback.
func (d *Downloader) OnProgress(fn Progress) {
	d.onProgress = fn
}

func headerTimeoutTransport(d time.Duration) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = d
	return t
}

// Download resolves req and saves the media file. A rejected or stale
// URL causes a fresh resolution, up to the attempt budget, with 1s, 2s,
// 4s... waits in between. Provider exhaustion is terminal immediately
// and is never retried.
func (d *Downloader) Download(ctx context.Context, req request.Request) (*Result, error) {
	wait := newBackoffSchedule()

	var lastResolved *resolver.Resolved
	var lastErr error

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, wait.NextBackOff()); err != nil {
				return nil, err
			}
			logrus.WithField("attempt", attempt).Info("re-resolving after failed fetch")
		}

		d.report(StateResolving, 0, -1)

		resolved, err := d.resolver.Resolve(ctx, req)
		if err != nil {
			var exhausted *resolver.ExhaustedError
			if errors.As(err, &exhausted) {
				d.report(StateFailed, 0, -1)
				return &Result{Outcome: OutcomeOpenPage, URL: req.SourceURL}, err
			}
			lastErr = err
			continue
		}
		lastResolved = resolved

		// Cannot stream-save a page; hand it to the user instead.
		if validate.IsSourcePage(resolved.MediaURL) {
			d.report(StateFailed, 0, -1)
			return &Result{Outcome: OutcomeOpenPage, URL: resolved.MediaURL, Resolved: resolved}, nil
		}

		path, size, err := d.fetch(ctx, resolved)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			logrus.WithError(err).WithField("url", resolved.MediaURL).Warn("fetch failed")
			continue
		}

		d.report(StateDone, size, size)
		return &Result{Outcome: OutcomeSaved, Path: path, Size: size, Resolved: resolved}, nil
	}

	d.report(StateFailed, 0, -1)

	if lastResolved != nil {
		return &Result{
			Outcome:  OutcomeOpenDirect,
			URL:      lastResolved.MediaURL,
			Resolved: lastResolved,
		}, fmt.Errorf("download failed after %d attempts: %w", d.maxAttempts, lastErr)
	}
	return &Result{Outcome: OutcomeOpenPage, URL: req.SourceURL},
		fmt.Errorf("download failed after %d attempts: %w", d.maxAttempts, lastErr)
}

// fetch streams the media body to a temp file and promotes it to its
// final name once the payload looks plausible.
func (d *Downloader) fetch(ctx context.Context, resolved *resolver.Resolved) (string, int64, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved.MediaURL, nil)
	if err != nil {
		return "", 0, err
	}

	d.report(StateFetching, 0, -1)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return "", 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// The served container wins over whatever was requested; providers
	// routinely return a different one than asked for.
	ext := extensionFor(resp.Header.Get("Content-Type"), resolved)

	if err := os.MkdirAll(d.outputDir, 0755); err != nil {
		return "", 0, err
	}

	tmp, err := os.CreateTemp(d.outputDir, ".shortsget-*")
	if err != nil {
		return "", 0, err
	}
	defer os.Remove(tmp.Name())

	total := resp.ContentLength
	written, err := io.Copy(tmp, &progressReader{
		r:     resp.Body,
		total: total,
		report: func(n, t int64) {
			d.report(StateFetching, n, t)
		},
	})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", 0, err
	}

	if written < minPayloadBytes {
		return "", 0, fmt.Errorf("%w: %d bytes", ErrPayloadTooSmall, written)
	}

	d.report(StateSaving, written, written)

	path := d.targetPath(resolved, ext)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", 0, err
	}

	return path, written, nil
}

func (d *Downloader) targetPath(resolved *resolver.Resolved, ext string) string {
	name := sanitizeFilename(resolved.Title)
	if name == "" {
		name = "shortsget-" + time.Now().Format("20060102-150405")
	}

	path := filepath.Join(d.outputDir, name+"."+ext)
	for i := 1; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(d.outputDir, fmt.Sprintf("%s (%d).%s", name, i, ext))
	}
}

func (d *Downloader) report(state State, written, total int64) {
	if d.onProgress != nil {
		d.onProgress(state, written, total)
	}
}

// extensionFor maps the response content type to a file extension,
// falling back to what the provider claimed and finally to the format.
func extensionFor(contentType string, resolved *resolver.Resolved) string {
	ct := strings.ToLower(contentType)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}

	switch strings.TrimSpace(ct) {
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "video/mp4":
		return "mp4"
	case "video/webm":
		return "webm"
	case "audio/mp4":
		return "m4a"
	case "audio/ogg":
		return "ogg"
	case "audio/wav", "audio/x-wav":
		return "wav"
	}

	if resolved.Ext != "" {
		return resolved.Ext
	}
	if resolved.Format == request.FormatAudio {
		return "mp3"
	}
	return "mp4"
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	replacer := strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-", "*", "",
		"?", "", "\"", "", "<", "", ">", "", "|", "-",
	)
	name = replacer.Replace(name)
	if len(name) > 120 {
		name = name[:120]
	}
	return strings.TrimSpace(name)
}

func newBackoffSchedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// progressReader relays byte counts as the body streams through.
type progressReader struct {
	r      io.Reader
	n      int64
	total  int64
	report func(written, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.n += int64(n)
	if p.report != nil && n > 0 {
		p.report(p.n, p.total)
	}
	return n, err
}
