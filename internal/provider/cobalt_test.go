package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCobaltTunnelResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "720", payload["videoQuality"])
		assert.Equal(t, "auto", payload["downloadMode"])

		w.Write([]byte(`{"status": "tunnel", "url": "https://tunnel.example/abc", "filename": "My Short.mp4"}`))
	}))
	defer srv.Close()

	p := NewCobalt(srv.URL, time.Second)

	cand, err := p.Resolve(context.Background(), testRequest(t, "video", "720p"))
	require.NoError(t, err)
	assert.Equal(t, "https://tunnel.example/abc", cand.MediaURL)
	assert.Equal(t, "My Short", cand.Title)
	assert.Equal(t, "mp4", cand.Ext)
	assert.Equal(t, "720p", cand.Quality)
}

func TestCobaltAudioMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "audio", payload["downloadMode"])
		assert.Equal(t, "mp3", payload["audioFormat"])

		w.Write([]byte(`{"status": "tunnel", "url": "https://tunnel.example/a"}`))
	}))
	defer srv.Close()

	p := NewCobalt(srv.URL, time.Second)

	cand, err := p.Resolve(context.Background(), testRequest(t, "audio", ""))
	require.NoError(t, err)
	assert.Equal(t, "mp3", cand.Ext, "no filename, falls back on the requested class")
}

func TestCobaltErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "error", "error": {"code": "error.api.content.video.unavailable"}}`))
	}))
	defer srv.Close()

	p := NewCobalt(srv.URL, time.Second)

	_, err := p.Resolve(context.Background(), testRequest(t, "video", ""))
	assert.ErrorIs(t, err, ErrNoFormats)
	assert.Contains(t, err.Error(), "unavailable")
}

func TestCobaltPickerStatusIsBadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "picker"}`))
	}))
	defer srv.Close()

	p := NewCobalt(srv.URL, time.Second)

	_, err := p.Resolve(context.Background(), testRequest(t, "video", ""))
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestCobaltEmptyURLIsBadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "tunnel", "url": ""}`))
	}))
	defer srv.Close()

	p := NewCobalt(srv.URL, time.Second)

	_, err := p.Resolve(context.Background(), testRequest(t, "video", ""))
	assert.ErrorIs(t, err, ErrBadResponse)
}
