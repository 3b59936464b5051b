package api_test

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/bingefriend/episode-importer/pkg/episodes"
)

type fakeEpisodeReader struct {
	byID     map[int]*episodes.Episode
	byShow   map[int][]episodes.Episode
	bySeason map[string][]episodes.Episode
	err      error
}

func (f *fakeEpisodeReader) GetByID(ctx context.Context, id int) (*episodes.Episode, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byID[id], nil
}

func (f *fakeEpisodeReader) ListByShow(ctx context.Context, showID int) ([]episodes.Episode, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byShow[showID], nil
}

func (f *fakeEpisodeReader) ListBySeason(ctx context.Context, showID, season int) ([]episodes.Episode, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.bySeason[fmt.Sprintf("%d-%d", showID, season)], nil
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func testEpisode(id, showID, season, number int) episodes.Episode {
	return episodes.Episode{
		ID:     id,
		ShowID: showID,
		URL:    fmt.Sprintf("https://www.tvmaze.com/episodes/%d", id),
		Name:   strPtr(fmt.Sprintf("Episode %d", number)),
		Season: intPtr(season),
		Number: intPtr(number),
	}
}

func TestGetEpisodeOK(t *testing.T) {
	t.Parallel()

	ep := testEpisode(5001, 42, 1, 1)
	reader := &fakeEpisodeReader{byID: map[int]*episodes.Episode{5001: &ep}}
	e := newTestServer(nil, reader)

	rec := doRequest(e, http.MethodGet, "/api/v1/episodes/5001", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got := decodeObject(t, rec)
	if got["id"] != float64(5001) {
		t.Errorf("id = %v, want 5001", got["id"])
	}
	if got["show_id"] != float64(42) {
		t.Errorf("show_id = %v, want 42", got["show_id"])
	}

	sum := md5.Sum(rec.Body.Bytes())
	wantETag := hex.EncodeToString(sum[:])
	if etag := rec.Header().Get("ETag"); etag != wantETag {
		t.Errorf("ETag = %q, want %q", etag, wantETag)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=3600" {
		t.Errorf("Cache-Control = %q", cc)
	}
}

func TestGetEpisodeNotModified(t *testing.T) {
	t.Parallel()

	ep := testEpisode(5001, 42, 1, 1)
	reader := &fakeEpisodeReader{byID: map[int]*episodes.Episode{5001: &ep}}
	e := newTestServer(nil, reader)

	first := doRequest(e, http.MethodGet, "/api/v1/episodes/5001", "", nil)
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatal("first response carried no ETag")
	}

	second := doRequest(e, http.MethodGet, "/api/v1/episodes/5001", "",
		map[string]string{"If-None-Match": etag})

	if second.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", second.Code)
	}
	if second.Body.Len() != 0 {
		t.Errorf("304 carried a body: %q", second.Body.String())
	}
}

func TestGetEpisodeStaleETagServes(t *testing.T) {
	t.Parallel()

	ep := testEpisode(5001, 42, 1, 1)
	reader := &fakeEpisodeReader{byID: map[int]*episodes.Episode{5001: &ep}}
	e := newTestServer(nil, reader)

	rec := doRequest(e, http.MethodGet, "/api/v1/episodes/5001", "",
		map[string]string{"If-None-Match": "0123456789abcdef0123456789abcdef"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGetEpisodeInvalidID(t *testing.T) {
	t.Parallel()

	e := newTestServer(nil, nil)

	rec := doRequest(e, http.MethodGet, "/api/v1/episodes/abc", "", nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	got := decodeObject(t, rec)
	if got["error"] != "Invalid episode ID format" {
		t.Errorf("error = %v", got["error"])
	}
}

func TestGetEpisodeNotFound(t *testing.T) {
	t.Parallel()

	e := newTestServer(nil, nil)

	rec := doRequest(e, http.MethodGet, "/api/v1/episodes/9999", "", nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	got := decodeObject(t, rec)
	if got["error"] != "Episode not found" {
		t.Errorf("error = %v", got["error"])
	}
}

func TestGetEpisodeReaderError(t *testing.T) {
	t.Parallel()

	reader := &fakeEpisodeReader{err: errors.New("get episode 5001: connection refused")}
	e := newTestServer(nil, reader)

	rec := doRequest(e, http.MethodGet, "/api/v1/episodes/5001", "", nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	got := decodeObject(t, rec)
	if got["error"] != "get episode 5001: connection refused" {
		t.Errorf("error = %v", got["error"])
	}
}

func TestListShowEpisodesOK(t *testing.T) {
	t.Parallel()

	reader := &fakeEpisodeReader{byShow: map[int][]episodes.Episode{
		42: {testEpisode(5001, 42, 1, 1), testEpisode(5002, 42, 1, 2)},
	}}
	e := newTestServer(nil, reader)

	rec := doRequest(e, http.MethodGet, "/api/v1/shows/42/episodes", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unexpected body %q: %v", rec.Body.String(), err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d episodes, want 2", len(got))
	}
	if got[0]["id"] != float64(5001) {
		t.Errorf("first id = %v, want 5001", got[0]["id"])
	}
}

func TestListShowEpisodesEmptyIsArray(t *testing.T) {
	t.Parallel()

	e := newTestServer(nil, &fakeEpisodeReader{})

	rec := doRequest(e, http.MethodGet, "/api/v1/shows/42/episodes", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestListShowEpisodesInvalidID(t *testing.T) {
	t.Parallel()

	e := newTestServer(nil, nil)

	rec := doRequest(e, http.MethodGet, "/api/v1/shows/abc/episodes", "", nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	got := decodeObject(t, rec)
	if got["error"] != "Invalid show ID format" {
		t.Errorf("error = %v", got["error"])
	}
}

func TestListSeasonEpisodesOK(t *testing.T) {
	t.Parallel()

	reader := &fakeEpisodeReader{bySeason: map[string][]episodes.Episode{
		"42-2": {testEpisode(6001, 42, 2, 1), testEpisode(6002, 42, 2, 2)},
	}}
	e := newTestServer(nil, reader)

	rec := doRequest(e, http.MethodGet, "/api/v1/shows/42/seasons/2/episodes", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unexpected body %q: %v", rec.Body.String(), err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d episodes, want 2", len(got))
	}
	if etag := rec.Header().Get("ETag"); etag != `"42-2-2"` {
		t.Errorf("ETag = %q, want %q", etag, `"42-2-2"`)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=3600" {
		t.Errorf("Cache-Control = %q", cc)
	}
}

func TestListSeasonEpisodesEmptyIsArray(t *testing.T) {
	t.Parallel()

	e := newTestServer(nil, &fakeEpisodeReader{})

	rec := doRequest(e, http.MethodGet, "/api/v1/shows/42/seasons/9/episodes", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %q, want []", body)
	}
	if etag := rec.Header().Get("ETag"); etag != `"42-9-0"` {
		t.Errorf("ETag = %q, want %q", etag, `"42-9-0"`)
	}
}

func TestListSeasonEpisodesInvalidParams(t *testing.T) {
	t.Parallel()

	e := newTestServer(nil, nil)

	for _, target := range []string{
		"/api/v1/shows/abc/seasons/2/episodes",
		"/api/v1/shows/42/seasons/two/episodes",
	} {
		rec := doRequest(e, http.MethodGet, target, "", nil)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
		got := decodeObject(t, rec)
		if got["error"] != "Invalid show ID or season number format" {
			t.Errorf("%s: error = %v", target, got["error"])
		}
	}
}

func TestListSeasonEpisodesReaderError(t *testing.T) {
	t.Parallel()

	reader := &fakeEpisodeReader{err: errors.New("list episodes for show 42 season 2: connection refused")}
	e := newTestServer(nil, reader)

	rec := doRequest(e, http.MethodGet, "/api/v1/shows/42/seasons/2/episodes", "", nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
