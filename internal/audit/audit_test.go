package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRecorder(t *testing.T) (*Recorder, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	r, err := OpenPath(path)
	require.NoError(t, err)
	return r, path
}

func TestRecordAndRecent(t *testing.T) {
	r, path := openTestRecorder(t)

	r.Record(Record{
		SourceURL: "https://youtube.com/shorts/abc12345678",
		Outcome:   "success",
		Format:    "video",
		Quality:   "720p",
		Provider:  "rapidapi",
		ClientIP:  "203.0.113.9",
	})
	r.Record(Record{
		SourceURL: "https://youtube.com/shorts/def12345678",
		Outcome:   "error",
		Format:    "audio",
		Quality:   "high",
		Error:     "all providers exhausted",
		CreatedAt: time.Now().Add(time.Minute), // newest
	})

	// Close drains the async writers; reopen to read back.
	require.NoError(t, r.Close())
	r, err := OpenPath(path)
	require.NoError(t, err)
	defer r.Close()

	records, total, err := r.Recent(10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, records, 2)

	newest := records[0]
	assert.Equal(t, "https://youtube.com/shorts/def12345678", newest.SourceURL)
	assert.Equal(t, "error", newest.Outcome)
	assert.Equal(t, "all providers exhausted", newest.Error)
	assert.NotEmpty(t, newest.ID, "missing IDs are generated")

	assert.Equal(t, "rapidapi", records[1].Provider)
	assert.Equal(t, "203.0.113.9", records[1].ClientIP)
}

func TestRecentPagination(t *testing.T) {
	r, path := openTestRecorder(t)

	base := time.Now()
	for i := 0; i < 5; i++ {
		r.Record(Record{
			SourceURL: "https://youtube.com/shorts/abc12345678",
			Outcome:   "success",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	require.NoError(t, r.Close())

	r, err := OpenPath(path)
	require.NoError(t, err)
	defer r.Close()

	records, total, err := r.Recent(2, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, records, 2)
}

func TestStats(t *testing.T) {
	r, path := openTestRecorder(t)

	for i := 0; i < 3; i++ {
		r.Record(Record{SourceURL: "u", Outcome: "success", Provider: "rapidapi"})
	}
	r.Record(Record{SourceURL: "u", Outcome: "success", Provider: "cobalt"})
	r.Record(Record{SourceURL: "u", Outcome: "error"})
	require.NoError(t, r.Close())

	r, err := OpenPath(path)
	require.NoError(t, err)
	defer r.Close()

	succeeded, failed, byProvider, err := r.Stats()
	require.NoError(t, err)
	assert.Equal(t, 4, succeeded)
	assert.Equal(t, 1, failed)
	assert.Equal(t, map[string]int{"rapidapi": 3, "cobalt": 1}, byProvider)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder

	r.Record(Record{SourceURL: "u", Outcome: "success"})
	assert.NoError(t, r.Close())

	records, total, err := r.Recent(10, 0)
	assert.NoError(t, err)
	assert.Nil(t, records)
	assert.Zero(t, total)

	succeeded, failed, byProvider, err := r.Stats()
	assert.NoError(t, err)
	assert.Zero(t, succeeded)
	assert.Zero(t, failed)
	assert.Empty(t, byProvider)
}
