package provider

import (
	"strings"

	"github.com/samber/lo"

	"github.com/shortsget/shortsget/internal/request"
)

// Option is one entry of a provider's format list, normalized enough
// for quality selection.
type Option struct {
	URL     string
	Quality string // e.g. "720p", "1080p60"
	Ext     string // e.g. "mp4", "mp3", "m4a"
	Height  int
	Bitrate int
}

// SelectVideo picks a video option for the requested quality. It tries
// an exact match first, then walks the fixed tier list downward from the
// requested tier, and finally settles for the first available option.
// Total over any non-empty input.
func SelectVideo(options []Option, quality request.Quality) (Option, bool) {
	if len(options) == 0 {
		return Option{}, false
	}

	tiers := request.VideoQualities
	start := lo.IndexOf(tiers, quality)
	if start < 0 {
		start = 0
	}

	for _, tier := range tiers[start:] {
		if opt, ok := lo.Find(options, matchesTier(tier)); ok {
			return opt, true
		}
	}

	return options[0], true
}

// SelectAudio prefers mp3-labeled options, breaking ties by highest
// bitrate; without any mp3 entry the highest-bitrate entry wins. Ties
// resolve to the earliest entry, so the result is deterministic for a
// given input order. Total over any non-empty input.
func SelectAudio(options []Option) (Option, bool) {
	if len(options) == 0 {
		return Option{}, false
	}

	mp3s := lo.Filter(options, func(o Option, _ int) bool {
		return strings.EqualFold(o.Ext, "mp3")
	})
	if len(mp3s) > 0 {
		options = mp3s
	}

	return lo.MaxBy(options, func(a, b Option) bool {
		return a.Bitrate > b.Bitrate
	}), true
}

func matchesTier(tier request.Quality) func(Option) bool {
	label := string(tier)
	token := strings.TrimSuffix(label, "p") // "720p" -> "720"
	return func(o Option) bool {
		if o.Height != 0 {
			return o.Height == heightOf(label)
		}
		return qualityToken(o.Quality) == token
	}
}

// qualityToken extracts the leading digits of a quality label, so
// "480p" and "480p60" yield "480" while "1480p" does not match 480.
func qualityToken(q string) string {
	q = strings.TrimSpace(q)
	i := 0
	for i < len(q) && q[i] >= '0' && q[i] <= '9' {
		i++
	}
	return q[:i]
}

func heightOf(label string) int {
	switch label {
	case "720p":
		return 720
	case "480p":
		return 480
	case "360p":
		return 360
	default:
		return 0
	}
}
