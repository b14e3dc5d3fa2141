// Package validate classifies candidate URLs as directly fetchable media
// or not, before the pipeline commits to them.
package validate

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shortsget/shortsget/internal/request"
)

// mediaExtensions are accepted as a fallback signal when the HEAD probe
// is inconclusive about the content type.
var mediaExtensions = map[string]bool{
	".mp4": true, ".webm": true, ".mp3": true,
	".m4a": true, ".ogg": true, ".wav": true,
}

var mediaTypePrefixes = []string{"video/", "audio/", "application/octet-stream"}

// isYouTubeHost reports whether host belongs to the platform itself.
// CDN hosts like googlevideo.com deliberately do not count.
func isYouTubeHost(host string) bool {
	host = strings.ToLower(host)
	return host == "youtube.com" || host == "youtu.be" ||
		strings.HasSuffix(host, ".youtube.com")
}

// Validator probes candidate URLs with a bounded HEAD request.
type Validator struct {
	client *http.Client
}

// New builds a Validator whose probes are capped at timeout.
func New(timeout time.Duration) *Validator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Validator{
		client: &http.Client{Timeout: timeout},
	}
}

// IsDirectMedia reports whether url looks like a raw media resource.
//
// A URL pointing back at a YouTube page is always rejected. Otherwise
// the content type from a HEAD probe decides; a known media extension
// in the path is accepted when the header is inconclusive. When the
// probe itself fails the URL is treated as tentatively valid: some CDNs
// reject HEAD but serve GET fine, so the actual download is the final
// arbiter. That choice trades false positives for never rejecting a
// working link.
func (v *Validator) IsDirectMedia(ctx context.Context, rawURL string) bool {
	if IsSourcePage(rawURL) {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false
	}

	resp, err := v.client.Do(req)
	if err != nil {
		logrus.WithField("url", rawURL).Debug("HEAD probe failed, accepting tentatively")
		return true
	}
	defer resp.Body.Close()

	// A probe that lands on a YouTube page after redirects is a page.
	if resp.Request != nil && resp.Request.URL != nil && IsSourcePage(resp.Request.URL.String()) {
		return false
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	for _, prefix := range mediaTypePrefixes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}

	if strings.HasPrefix(contentType, "text/html") {
		return false
	}

	// Header inconclusive (empty, generic, or probe got a 405 with no
	// type); fall back on the path extension.
	return mediaExtensions[strings.ToLower(path.Ext(u.Path))]
}

// IsSourcePage reports whether rawURL resolves back to the source
// platform's own pages rather than a CDN media host.
func IsSourcePage(rawURL string) bool {
	if request.IsPageURL(rawURL) {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return isYouTubeHost(u.Hostname())
}
