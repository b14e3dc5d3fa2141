package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shortsget/shortsget/internal/request"
)

func testRequest(t *testing.T, format, quality string) request.Request {
	t.Helper()
	req, err := request.Normalize("youtube.com/shorts/abc12345678", format, quality)
	require.NoError(t, err)
	return req
}

func TestRapidAPIResolveVideo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/links", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-RapidAPI-Key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"title": "Test Short",
			"thumbnail": "https://i.ytimg.com/vi/abc12345678/hq.jpg",
			"duration": 42,
			"author": "Someone",
			"formats": {
				"video": [
					{"url": "https://cdn.example/360.mp4", "quality": "360p", "height": 360, "extension": "mp4"},
					{"url": "https://cdn.example/720.mp4", "quality": "720p", "height": 720, "extension": "mp4"}
				],
				"audio": [
					{"url": "https://cdn.example/a.m4a", "quality": "128kbps", "bitrate": 128000, "extension": "m4a"}
				]
			}
		}`))
	}))
	defer srv.Close()

	p := NewRapidAPI("secret", srv.URL, time.Second)

	cand, err := p.Resolve(context.Background(), testRequest(t, "video", "720p"))
	require.NoError(t, err)
	assert.Equal(t, "Test Short", cand.Title)
	assert.Equal(t, "Someone", cand.Author)
	assert.Equal(t, 42, cand.DurationSeconds)
	assert.Equal(t, "https://cdn.example/720.mp4", cand.MediaURL)
	assert.Equal(t, "720p", cand.Quality)
}

func TestRapidAPIResolveAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"title": "Audio Short",
			"formats": {
				"audio": [
					{"url": "https://cdn.example/a.m4a", "bitrate": 256000, "extension": "m4a"},
					{"url": "https://cdn.example/a.mp3", "bitrate": 128000, "extension": "mp3"}
				]
			}
		}`))
	}))
	defer srv.Close()

	p := NewRapidAPI("secret", srv.URL, time.Second)

	cand, err := p.Resolve(context.Background(), testRequest(t, "audio", ""))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/a.mp3", cand.MediaURL, "mp3-labeled entry wins")
}

func TestRapidAPINonOKStatusIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewRapidAPI("secret", srv.URL, time.Second)

	_, err := p.Resolve(context.Background(), testRequest(t, "video", ""))
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestRapidAPIUnparseableBodyIsBadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	p := NewRapidAPI("secret", srv.URL, time.Second)

	_, err := p.Resolve(context.Background(), testRequest(t, "video", ""))
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestRapidAPIEmptyFormatListForRequestedClass(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title": "x", "formats": {"video": [{"url": "https://cdn.example/v.mp4"}]}}`))
	}))
	defer srv.Close()

	p := NewRapidAPI("secret", srv.URL, time.Second)

	_, err := p.Resolve(context.Background(), testRequest(t, "audio", ""))
	assert.ErrorIs(t, err, ErrNoFormats)
}

func TestRapidAPIUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	p := NewRapidAPI("secret", srv.URL, time.Second)

	_, err := p.Resolve(context.Background(), testRequest(t, "video", ""))
	assert.ErrorIs(t, err, ErrNetwork)
}
