package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shortsget/shortsget/internal/request"
)

const convertAPIURL = "https://yt1s.com/api/ajaxSearch"

// convertProvider implements the analyze/convert two-step protocol used
// by the yt1s family of sites: the first call returns a format table
// keyed by conversion tokens, the second call trades a token for a
// download link. Both steps happen inside one Resolve so the pipeline
// sees a single atomic attempt.
type convertProvider struct {
	apiURL string
	client *http.Client
}

// NewConvert builds the yt1s-style adapter.
func NewConvert(timeout time.Duration) Provider {
	return &convertProvider{
		apiURL: convertAPIURL,
		client: newHTTPClient(timeout),
	}
}

func (p *convertProvider) Name() string {
	return "yt1s"
}

type convertEntry struct {
	Quality string `json:"q"`
	Ext     string `json:"f"`
	Key     string `json:"k"`
	Size    string `json:"size"`
}

type analyzeResponse struct {
	Status   string                             `json:"status"`
	Mess     string                             `json:"mess"`
	VideoID  string                             `json:"vid"`
	Title    string                             `json:"title"`
	Duration int                                `json:"t"`
	Author   string                             `json:"a"`
	Links    map[string]map[string]convertEntry `json:"links"`
}

type convertResponse struct {
	Status        string `json:"status"`
	Mess          string `json:"mess"`
	ConvertStatus string `json:"c_status"`
	DownloadLink  string `json:"dlink"`
}

func (p *convertProvider) Resolve(ctx context.Context, req request.Request) (*Candidate, error) {
	analyzed, err := p.analyze(ctx, req)
	if err != nil {
		return nil, err
	}

	class := "mp4"
	if req.IsAudio() {
		class = "mp3"
	}

	entries := analyzed.Links[class]
	if len(entries) == 0 {
		return nil, fmt.Errorf("yt1s: %w: no %s links", ErrNoFormats, class)
	}

	// The format table is a map; iterate in sorted key order so the
	// same response always yields the same selection.
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	options := make([]Option, 0, len(keys))
	for _, k := range keys {
		e := entries[k]
		options = append(options, Option{
			URL:     e.Key, // conversion token, traded for a link below
			Quality: e.Quality,
			Ext:     e.Ext,
			Bitrate: labelBitrate(e.Quality),
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
		return nil, fmt.Errorf("yt1s: %w", ErrNoFormats)
	}

	link, err := p.convert(ctx, analyzed.VideoID, selected.URL)
	if err != nil {
		return nil, err
	}

	return &Candidate{
		Title:           analyzed.Title,
		DurationSeconds: analyzed.Duration,
		Author:          analyzed.Author,
		MediaURL:        link,
		Quality:         selected.Quality,
		Ext:             selected.Ext,
	}, nil
}

// labelBitrate parses labels like "128kbps" into bits per second so
// audio entries can be ranked. Unparseable labels rank lowest.
func labelBitrate(label string) int {
	label = strings.ToLower(strings.TrimSpace(label))
	label = strings.TrimSuffix(label, "kbps")
	n, err := strconv.Atoi(strings.TrimSpace(label))
	if err != nil {
		return 0
	}
	return n * 1000
}

func (p *convertProvider) analyze(ctx context.Context, req request.Request) (*analyzeResponse, error) {
	form := url.Values{
		"q":  {req.SourceURL},
		"vt": {"home"},
	}

	var parsed analyzeResponse
	if err := p.postForm(ctx, p.apiURL+"/index", form, &parsed); err != nil {
		return nil, err
	}

	if parsed.Status != "ok" {
		return nil, fmt.Errorf("yt1s: %w: %s", ErrBadResponse, parsed.Mess)
	}
	return &parsed, nil
}

func (p *convertProvider) convert(ctx context.Context, videoID, token string) (string, error) {
	form := url.Values{
		"vid": {videoID},
		"k":   {token},
	}

	var parsed convertResponse
	if err := p.postForm(ctx, p.apiURL+"/convert", form, &parsed); err != nil {
		return "", err
	}

	if parsed.Status != "ok" || parsed.ConvertStatus != "CONVERTED" || parsed.DownloadLink == "" {
		return "", fmt.Errorf("yt1s: %w: conversion failed: %s", ErrBadResponse, parsed.Mess)
	}
	return parsed.DownloadLink, nil
}

func (p *convertProvider) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("yt1s: %w: %v", ErrNetwork, err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("yt1s: %w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("yt1s: %w: status %d", ErrNetwork, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("yt1s: %w: %v", ErrBadResponse, err)
	}
	return nil
}
