package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shortsget/shortsget/internal/request"
)

const defaultRapidAPIHost = "youtube-video-and-shorts-downloader.p.rapidapi.com"

// rapidAPIProvider talks to a RapidAPI-hosted downloader service.
// One POST to /links returns metadata plus per-format link lists.
type rapidAPIProvider struct {
	key    string
	host   string
	client *http.Client
}

// NewRapidAPI builds the RapidAPI adapter. The host is configurable
// because these services get rehosted under new names regularly.
func NewRapidAPI(key, host string, timeout time.Duration) Provider {
	if host == "" {
		host = defaultRapidAPIHost
	}
	return &rapidAPIProvider{
		key:    key,
		host:   host,
		client: newHTTPClient(timeout),
	}
}

func (p *rapidAPIProvider) Name() string {
	return "rapidapi"
}

type rapidAPIFormat struct {
	URL       string `json:"url"`
	Quality   string `json:"quality"`
	Height    int    `json:"height"`
	Bitrate   int    `json:"bitrate"`
	Extension string `json:"extension"`
	MimeType  string `json:"mimeType"`
}

type rapidAPIResponse struct {
	Title     string      `json:"title"`
	Thumbnail string      `json:"thumbnail"`
	Duration  json.Number `json:"duration"`
	Author    string      `json:"author"`
	Formats   struct {
		Video []rapidAPIFormat `json:"video"`
		Audio []rapidAPIFormat `json:"audio"`
	} `json:"formats"`
}

func (p *rapidAPIProvider) Resolve(ctx context.Context, req request.Request) (*Candidate, error) {
	body, err := json.Marshal(map[string]string{"url": req.SourceURL})
	if err != nil {
		return nil, fmt.Errorf("rapidapi: %w: %v", ErrBadResponse, err)
	}

	endpoint := p.host
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		endpoint+"/links", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rapidapi: %w: %v", ErrNetwork, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-RapidAPI-Key", p.key)
	httpReq.Header.Set("X-RapidAPI-Host", p.host)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rapidapi: %w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rapidapi: %w: status %d", ErrNetwork, resp.StatusCode)
	}

	var parsed rapidAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("rapidapi: %w: %v", ErrBadResponse, err)
	}

	if len(parsed.Formats.Video) == 0 && len(parsed.Formats.Audio) == 0 {
		return nil, fmt.Errorf("rapidapi: %w", ErrBadResponse)
	}

	var selected Option
	var ok bool
	if req.IsAudio() {
		selected, ok = SelectAudio(toOptions(parsed.Formats.Audio))
	} else {
		selected, ok = SelectVideo(toOptions(parsed.Formats.Video), req.Quality)
	}
	if !ok || selected.URL == "" {
		return nil, fmt.Errorf("rapidapi: %w for %s", ErrNoFormats, req.Format)
	}

	duration, _ := parsed.Duration.Int64()

	return &Candidate{
		Title:           parsed.Title,
		Thumbnail:       parsed.Thumbnail,
		DurationSeconds: int(duration),
		Author:          parsed.Author,
		MediaURL:        selected.URL,
		Quality:         selected.Quality,
		Ext:             selected.Ext,
	}, nil
}

func toOptions(formats []rapidAPIFormat) []Option {
	options := make([]Option, 0, len(formats))
	for _, f := range formats {
		if f.URL == "" {
			continue
		}
		options = append(options, Option{
			URL:     f.URL,
			Quality: f.Quality,
			Ext:     f.Extension,
			Height:  f.Height,
			Bitrate: f.Bitrate,
		})
	}
	return options
}
