package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/shortsget/shortsget/internal/request"
)

// ytdlpProvider shells out to a local yt-dlp binary. It is the only
// adapter with no network dependency of its own and usually the slowest,
// so it sits last in the default chain.
type ytdlpProvider struct {
	binary string
}

// NewYtdlp builds the local-tool adapter.
func NewYtdlp() Provider {
	return &ytdlpProvider{binary: "yt-dlp"}
}

// YtdlpAvailable reports whether a yt-dlp binary is on PATH.
func YtdlpAvailable() bool {
	_, err := exec.LookPath("yt-dlp")
	return err == nil
}

func (p *ytdlpProvider) Name() string {
	return "yt-dlp"
}

type ytdlpFormat struct {
	URL        string  `json:"url"`
	Ext        string  `json:"ext"`
	Height     int     `json:"height"`
	ABR        float64 `json:"abr"`
	VCodec     string  `json:"vcodec"`
	ACodec     string  `json:"acodec"`
	FormatNote string  `json:"format_note"`
}

type ytdlpInfo struct {
	Title     string        `json:"title"`
	Thumbnail string        `json:"thumbnail"`
	Duration  float64       `json:"duration"`
	Uploader  string        `json:"uploader"`
	Formats   []ytdlpFormat `json:"formats"`
}

func (p *ytdlpProvider) Resolve(ctx context.Context, req request.Request) (*Candidate, error) {
	cmd := exec.CommandContext(ctx, p.binary, "--dump-json", "--no-playlist", req.SourceURL)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp: %w: %s", ErrNetwork, firstLine(stderr.String()))
	}

	var info ytdlpInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("yt-dlp: %w: %v", ErrBadResponse, err)
	}

	var options []Option
	for _, f := range info.Formats {
		if f.URL == "" {
			continue
		}
		if req.IsAudio() {
			// audio-only tracks
			if f.ACodec == "none" || f.VCodec != "none" {
				continue
			}
		} else {
			// muxed tracks only, progressive URLs are directly fetchable
			if f.VCodec == "none" || f.ACodec == "none" {
				continue
			}
		}
		options = append(options, Option{
			URL:     f.URL,
			Quality: fmt.Sprintf("%dp", f.Height),
			Ext:     f.Ext,
			Height:  f.Height,
			Bitrate: int(f.ABR * 1000),
		})
	}

	var selected Option
	var ok bool
	if req.IsAudio() {
		selected, ok = SelectAudio(options)
	} else {
		selected, ok = SelectVideo(options, req.Quality)
	}
	if !ok {
		return nil, fmt.Errorf("yt-dlp: %w", ErrNoFormats)
	}

	return &Candidate{
		Title:           info.Title,
		Thumbnail:       info.Thumbnail,
		DurationSeconds: int(info.Duration),
		Author:          info.Uploader,
		MediaURL:        selected.URL,
		Quality:         selected.Quality,
		Ext:             selected.Ext,
	}, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
