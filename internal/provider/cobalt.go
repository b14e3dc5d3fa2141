package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/shortsget/shortsget/internal/request"
)

const defaultCobaltURL = "https://api.cobalt.tools"

// cobaltProvider talks to a cobalt instance. Cobalt answers with a
// single tunnel URL per request, so quality selection happens on their
// side via the request parameters.
type cobaltProvider struct {
	apiURL string
	client *http.Client
}

// NewCobalt builds the cobalt adapter. Self-hosted instances can be
// pointed at via apiURL.
func NewCobalt(apiURL string, timeout time.Duration) Provider {
	if apiURL == "" {
		apiURL = defaultCobaltURL
	}
	return &cobaltProvider{
		apiURL: strings.TrimRight(apiURL, "/"),
		client: newHTTPClient(timeout),
	}
}

func (p *cobaltProvider) Name() string {
	return "cobalt"
}

type cobaltResponse struct {
	Status   string `json:"status"` // tunnel | redirect | error | picker
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Error    struct {
		Code string `json:"code"`
	} `json:"error"`
}

func (p *cobaltProvider) Resolve(ctx context.Context, req request.Request) (*Candidate, error) {
	payload := map[string]string{
		"url":          req.SourceURL,
		"videoQuality": strings.TrimSuffix(string(req.Quality), "p"),
		"downloadMode": "auto",
	}
	if req.IsAudio() {
		payload["downloadMode"] = "audio"
		payload["audioFormat"] = "mp3"
	}

	body, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("cobalt: %w: %v", ErrNetwork, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("cobalt: %w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cobalt: %w: status %d", ErrNetwork, resp.StatusCode)
	}

	var parsed cobaltResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("cobalt: %w: %v", ErrBadResponse, err)
	}

	switch parsed.Status {
	case "tunnel", "redirect", "stream":
	case "error":
		return nil, fmt.Errorf("cobalt: %w: %s", ErrNoFormats, parsed.Error.Code)
	default:
		return nil, fmt.Errorf("cobalt: %w: status %q", ErrBadResponse, parsed.Status)
	}

	if parsed.URL == "" {
		return nil, fmt.Errorf("cobalt: %w: empty url", ErrBadResponse)
	}

	ext := strings.TrimPrefix(path.Ext(parsed.Filename), ".")
	if ext == "" {
		if req.IsAudio() {
			ext = "mp3"
		} else {
			ext = "mp4"
		}
	}

	title := strings.TrimSuffix(parsed.Filename, path.Ext(parsed.Filename))

	return &Candidate{
		Title:    title,
		MediaURL: parsed.URL,
		Quality:  string(req.Quality),
		Ext:      ext,
	}, nil
}
