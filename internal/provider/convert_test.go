package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConvertTestServer(t *testing.T, convertHandler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/index", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.NotEmpty(t, r.PostForm.Get("q"))

		w.Write([]byte(`{
			"status": "ok",
			"vid": "abc12345678",
			"title": "Analyzed Short",
			"t": 30,
			"a": "Channel",
			"links": {
				"mp4": {
					"136": {"q": "720p", "f": "mp4", "k": "token-720", "size": "12 MB"},
					"135": {"q": "480p", "f": "mp4", "k": "token-480", "size": "8 MB"}
				},
				"mp3": {
					"140": {"q": "128kbps", "f": "mp3", "k": "token-mp3", "size": "1 MB"}
				}
			}
		}`))
	})
	mux.HandleFunc("/convert", convertHandler)
	return httptest.NewServer(mux)
}

func TestConvertTwoStepResolve(t *testing.T) {
	srv := newConvertTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "abc12345678", r.PostForm.Get("vid"))
		assert.Equal(t, "token-720", r.PostForm.Get("k"))

		w.Write([]byte(`{"status": "ok", "c_status": "CONVERTED", "dlink": "https://dl.example/out.mp4"}`))
	})
	defer srv.Close()

	p := &convertProvider{apiURL: srv.URL, client: newHTTPClient(time.Second)}

	cand, err := p.Resolve(context.Background(), testRequest(t, "video", "720p"))
	require.NoError(t, err)
	assert.Equal(t, "Analyzed Short", cand.Title)
	assert.Equal(t, "Channel", cand.Author)
	assert.Equal(t, 30, cand.DurationSeconds)
	assert.Equal(t, "https://dl.example/out.mp4", cand.MediaURL)
	assert.Equal(t, "720p", cand.Quality)
	assert.Equal(t, "mp4", cand.Ext)
}

func TestConvertAudioUsesMP3Table(t *testing.T) {
	srv := newConvertTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "token-mp3", r.PostForm.Get("k"))

		w.Write([]byte(`{"status": "ok", "c_status": "CONVERTED", "dlink": "https://dl.example/out.mp3"}`))
	})
	defer srv.Close()

	p := &convertProvider{apiURL: srv.URL, client: newHTTPClient(time.Second)}

	cand, err := p.Resolve(context.Background(), testRequest(t, "audio", ""))
	require.NoError(t, err)
	assert.Equal(t, "https://dl.example/out.mp3", cand.MediaURL)
	assert.Equal(t, "mp3", cand.Ext)
}

func TestConvertAudioSelectionDeterministic(t *testing.T) {
	// The mp3 table arrives as a JSON object, so decoded map order is
	// random; repeated calls over one fixed response must still pick
	// the same (highest bitrate) entry every time.
	mux := http.NewServeMux()
	mux.HandleFunc("/index", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"status": "ok",
			"vid": "abc12345678",
			"title": "x",
			"links": {
				"mp3": {
					"a": {"q": "64kbps", "f": "mp3", "k": "k64"},
					"b": {"q": "128kbps", "f": "mp3", "k": "k128"},
					"c": {"q": "192kbps", "f": "mp3", "k": "k192"},
					"d": {"q": "320kbps", "f": "mp3", "k": "k320"}
				}
			}
		}`))
	})
	mux.HandleFunc("/convert", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Write([]byte(`{"status": "ok", "c_status": "CONVERTED", "dlink": "https://dl.example/` +
			r.PostForm.Get("k") + `"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := &convertProvider{apiURL: srv.URL, client: newHTTPClient(time.Second)}

	for i := 0; i < 25; i++ {
		cand, err := p.Resolve(context.Background(), testRequest(t, "audio", ""))
		require.NoError(t, err)
		require.Equal(t, "https://dl.example/k320", cand.MediaURL)
	}
}

func TestLabelBitrate(t *testing.T) {
	assert.Equal(t, 128000, labelBitrate("128kbps"))
	assert.Equal(t, 320000, labelBitrate(" 320KBPS "))
	assert.Equal(t, 0, labelBitrate("720p"))
	assert.Equal(t, 0, labelBitrate(""))
}

func TestConvertAnalyzeFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/index", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "error", "mess": "Video unavailable"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := &convertProvider{apiURL: srv.URL, client: newHTTPClient(time.Second)}

	_, err := p.Resolve(context.Background(), testRequest(t, "video", ""))
	assert.ErrorIs(t, err, ErrBadResponse)
	assert.Contains(t, err.Error(), "Video unavailable")
}

func TestConvertIncompleteConversion(t *testing.T) {
	srv := newConvertTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok", "c_status": "CONVERTING"}`))
	})
	defer srv.Close()

	p := &convertProvider{apiURL: srv.URL, client: newHTTPClient(time.Second)}

	_, err := p.Resolve(context.Background(), testRequest(t, "video", ""))
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestConvertServerErrorIsNetworkError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/index", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := &convertProvider{apiURL: srv.URL, client: newHTTPClient(time.Second)}

	_, err := p.Resolve(context.Background(), testRequest(t, "video", ""))
	assert.ErrorIs(t, err, ErrNetwork)
}
