// Package request validates and canonicalizes incoming download requests.
package request

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Format is the requested output container class.
type Format string

const (
	FormatVideo Format = "video"
	FormatAudio Format = "audio"
)

// Quality is the requested quality tier. Video tiers map to resolutions;
// audio has a single tier.
type Quality string

const (
	Quality720p Quality = "720p"
	Quality480p Quality = "480p"
	Quality360p Quality = "360p"
	QualityHigh Quality = "high"
)

// VideoQualities lists the video tiers in descending preference order.
var VideoQualities = []Quality{Quality720p, Quality480p, Quality360p}

var (
	ErrInvalidURL     = errors.New("not a recognized YouTube URL")
	ErrInvalidFormat  = errors.New("format must be video or audio")
	ErrInvalidQuality = errors.New("unrecognized quality")
)

// Request is a validated, immutable download request.
type Request struct {
	SourceURL string
	VideoID   string
	Format    Format
	Quality   Quality
}

// IsAudio reports whether the request asks for audio-only output.
func (r Request) IsAudio() bool {
	return r.Format == FormatAudio
}

// urlShapes matches the accepted YouTube URL forms: watch?v=, shorts/,
// embed/ and youtu.be/ links, with an optional scheme.
var urlShapes = regexp.MustCompile(`(?i)^(https?://)?(www\.|m\.)?(youtube\.com/(shorts/|watch\?v=|embed/)|youtu\.be/).+`)

// videoID extracts the 11-character video identifier.
var videoID = regexp.MustCompile(`(?i)(?:youtube\.com/(?:shorts/|watch\?v=|embed/)|youtu\.be/)([a-zA-Z0-9_-]{11})`)

// Normalize validates the raw inputs and produces a canonical Request.
// Format defaults to video; quality defaults to the highest tier of the
// chosen format. The input URL gains an https scheme when none is present.
func Normalize(rawURL, rawFormat, rawQuality string) (Request, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" || !urlShapes.MatchString(rawURL) {
		return Request{}, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	sourceURL := rawURL
	if !strings.HasPrefix(strings.ToLower(sourceURL), "http://") &&
		!strings.HasPrefix(strings.ToLower(sourceURL), "https://") {
		sourceURL = "https://" + sourceURL
	}

	m := videoID.FindStringSubmatch(sourceURL)
	if m == nil {
		return Request{}, fmt.Errorf("%w: no video id in %q", ErrInvalidURL, rawURL)
	}

	format, err := parseFormat(rawFormat)
	if err != nil {
		return Request{}, err
	}

	quality, err := parseQuality(rawQuality, format)
	if err != nil {
		return Request{}, err
	}

	return Request{
		SourceURL: sourceURL,
		VideoID:   m[1],
		Format:    format,
		Quality:   quality,
	}, nil
}

func parseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "video", "mp4":
		return FormatVideo, nil
	case "audio", "mp3":
		return FormatAudio, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
	}
}

func parseQuality(raw string, format Format) (Quality, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))

	if format == FormatAudio {
		// Audio has a single tier.
		switch raw {
		case "", "high", "best":
			return QualityHigh, nil
		default:
			return "", fmt.Errorf("%w: %q for audio", ErrInvalidQuality, raw)
		}
	}

	switch raw {
	case "", "best":
		return Quality720p, nil
	case "720p", "720":
		return Quality720p, nil
	case "480p", "480":
		return Quality480p, nil
	case "360p", "360":
		return Quality360p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidQuality, raw)
	}
}

// IsPageURL reports whether a URL points back at a YouTube page rather
// than a media file. Such URLs are never directly downloadable.
func IsPageURL(rawURL string) bool {
	return urlShapes.MatchString(strings.TrimSpace(rawURL))
}
