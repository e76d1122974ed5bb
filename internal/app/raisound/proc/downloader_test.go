package proc

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bogem/id3v2/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcolgate/mp3"
	"raisound/internal/app/raisound/podcast"
)

func newTestDownloader(site *testSite, store Store) *Downloader {
	f := &Fetcher{Store: store, Client: site.Client()}
	return &Downloader{Fetcher: f, Files: &Files{Numbered: true}, Resolver: &MetadataResolver{Fetcher: f}}
}

func twoEpisodes(site *testSite) []podcast.Episode {
	return []podcast.Episode{
		{Ordinal: 1, Title: "Episode 1", AudioURL: site.URL + "/a.mp3"},
		{Ordinal: 2, Title: "Episode 2", AudioURL: site.URL + "/b.mp3"},
	}
}

func folderFiles(t *testing.T, folder string) map[string]string {
	entries, err := os.ReadDir(folder)
	require.NoError(t, err)
	res := map[string]string{}
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(folder, e.Name()))
		require.NoError(t, err)
		res[e.Name()] = string(data)
	}
	return res
}

func TestDownloader_TwoEpisodes(t *testing.T) {
	site := newTestSite(t)
	site.handle("/a.mp3", http.StatusOK, "audio a")
	site.handle("/b.mp3", http.StatusOK, "audio b")
	folder := filepath.Join(t.TempDir(), "show")

	report := newTestDownloader(site, NewMemStore()).DownloadAll(context.Background(), twoEpisodes(site), folder)
	require.Len(t, report.Results, 2)
	for i, res := range report.Results {
		assert.Equal(t, podcast.Succeeded, res.Status, "episode %d", i+1)
		assert.Equal(t, podcast.FromNetwork, res.Origin)
		assert.Equal(t, int64(7), res.Size)
		assert.NoError(t, res.Err)
	}
	assert.Equal(t, filepath.Join(folder, "001 - episode 1.mp3"), report.Results[0].Path)

	assert.Equal(t, map[string]string{
		"001 - episode 1.mp3": "audio a",
		"002 - episode 2.mp3": "audio b",
	}, folderFiles(t, folder))
}

func TestDownloader_SkipExisting(t *testing.T) {
	site := newTestSite(t)
	site.handle("/a.mp3", http.StatusOK, "audio a")
	site.handle("/b.mp3", http.StatusOK, "audio b")
	folder := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(folder, "001 - episode 1.mp3"), []byte("already here"), 0o644))

	report := newTestDownloader(site, NewMemStore()).DownloadAll(context.Background(), twoEpisodes(site), folder)
	require.Len(t, report.Results, 2)
	assert.Equal(t, podcast.Skipped, report.Results[0].Status)
	assert.Equal(t, podcast.Succeeded, report.Results[1].Status)
	assert.Equal(t, 0, site.hitsFor("/a.mp3"), "no network call for skipped episode")
	assert.Equal(t, 1, site.hitsFor("/b.mp3"))

	files := folderFiles(t, folder)
	assert.Equal(t, "already here", files["001 - episode 1.mp3"])
}

func TestDownloader_FailureIsolated(t *testing.T) {
	site := newTestSite(t)
	site.handle("/b.mp3", http.StatusOK, "audio b")
	folder := t.TempDir()

	report := newTestDownloader(site, NewMemStore()).DownloadAll(context.Background(), twoEpisodes(site), folder)
	require.Len(t, report.Results, 2)

	assert.Equal(t, podcast.Failed, report.Results[0].Status)
	var fetchErr *FetchError
	require.True(t, errors.As(report.Results[0].Err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.HTTPStatus())

	assert.Equal(t, podcast.Succeeded, report.Results[1].Status)
	assert.Equal(t, map[string]string{"002 - episode 2.mp3": "audio b"}, folderFiles(t, folder))

	succeeded, skipped, failed := report.Counts()
	assert.Equal(t, []int{1, 0, 1}, []int{succeeded, skipped, failed})
}

func TestDownloader_FromCache(t *testing.T) {
	site := newTestSite(t)
	store := NewMemStore()
	episodes := twoEpisodes(site)
	require.NoError(t, store.Put(KeyFor(episodes[0].AudioURL), []byte("cached a")))
	require.NoError(t, store.Put(KeyFor(episodes[1].AudioURL), []byte("cached b")))
	folder := t.TempDir()

	report := newTestDownloader(site, store).DownloadAll(context.Background(), episodes, folder)
	for _, res := range report.Results {
		assert.Equal(t, podcast.Succeeded, res.Status)
		assert.Equal(t, podcast.FromCache, res.Origin)
	}
	assert.Equal(t, 0, site.total())
	assert.Equal(t, "cached b", folderFiles(t, folder)["002 - episode 2.mp3"])
}

func TestDownloader_ResolveFailure(t *testing.T) {
	site := newTestSite(t)
	site.handle("/meta/1.json", http.StatusOK, `{"audio": {"url": "/audio/1.mp3", "title": "Lettura I"}}`)
	site.handle("/meta/2.json", http.StatusOK, `{"title": "no audio"}`)
	site.handle("/audio/1.mp3", http.StatusOK, "audio 1")
	folder := t.TempDir()

	episodes := []podcast.Episode{
		{Ordinal: 1, Title: "1", AudioURL: site.URL + "/meta/1.json"},
		{Ordinal: 2, Title: "2", AudioURL: site.URL + "/meta/2.json"},
	}
	report := newTestDownloader(site, NewMemStore()).DownloadAll(context.Background(), episodes, folder)
	require.Len(t, report.Results, 2)

	assert.Equal(t, podcast.Succeeded, report.Results[0].Status)
	assert.Equal(t, "Lettura I", report.Results[0].Episode.Title)
	assert.Equal(t, filepath.Join(folder, "001 - lettura i.mp3"), report.Results[0].Path)

	assert.Equal(t, podcast.Failed, report.Results[1].Status)
	assert.Contains(t, report.Results[1].Err.Error(), "resolve")
	assert.Empty(t, report.Results[1].Path)
}

func TestDownloader_DestinationIsDir(t *testing.T) {
	site := newTestSite(t)
	site.handle("/a.mp3", http.StatusOK, "audio a")
	folder := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(folder, "001 - episode 1.mp3"), 0o755))

	report := newTestDownloader(site, NewMemStore()).DownloadAll(context.Background(), twoEpisodes(site)[:1], folder)
	require.Len(t, report.Results, 1)
	assert.Equal(t, podcast.Failed, report.Results[0].Status)
	assert.Equal(t, 0, site.total())
}

func TestDownloader_Canceled(t *testing.T) {
	site := newTestSite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := newTestDownloader(site, NewMemStore()).DownloadAll(ctx, twoEpisodes(site), t.TempDir())
	require.Len(t, report.Results, 2)
	for _, res := range report.Results {
		assert.Equal(t, podcast.Failed, res.Status)
		assert.ErrorIs(t, res.Err, context.Canceled)
	}
	assert.Equal(t, 0, site.total())
}

func TestDownloader_SameTitleUnnumbered(t *testing.T) {
	site := newTestSite(t)
	site.handle("/a.mp3", http.StatusOK, "audio a")
	site.handle("/b.mp3", http.StatusOK, "audio b")
	folder := t.TempDir()

	d := newTestDownloader(site, NewMemStore())
	d.Files.Numbered = false
	episodes := []podcast.Episode{
		{Ordinal: 1, Title: "Puntata", AudioURL: site.URL + "/a.mp3"},
		{Ordinal: 2, Title: "Puntata", AudioURL: site.URL + "/b.mp3"},
	}

	report := d.DownloadAll(context.Background(), episodes, folder)
	require.Len(t, report.Results, 2)
	for _, res := range report.Results {
		assert.Equal(t, podcast.Succeeded, res.Status)
	}
	assert.Equal(t, 1, site.hitsFor("/b.mp3"))
	assert.Equal(t, map[string]string{
		"puntata.mp3":       "audio a",
		"puntata (002).mp3": "audio b",
	}, folderFiles(t, folder))

	// same names on the next run, nothing refetched
	report = d.DownloadAll(context.Background(), episodes, folder)
	for _, res := range report.Results {
		assert.Equal(t, podcast.Skipped, res.Status)
	}
	assert.Equal(t, filepath.Join(folder, "puntata (002).mp3"), report.Results[1].Path)
	assert.Equal(t, 2, site.total())
}

func TestDownloader_Tagged(t *testing.T) {
	audio := bytes.Repeat(mp3.SilentBytes, 3)
	site := newTestSite(t)
	site.handle("/a.mp3", http.StatusOK, "abc")
	site.handle("/b.mp3", http.StatusOK, string(audio))
	folder := t.TempDir()

	d := newTestDownloader(site, NewMemStore())
	d.Tagger = &Tagger{Album: "I tre moschettieri", Artist: "Radio3"}

	report := d.DownloadAll(context.Background(), twoEpisodes(site), folder)
	require.Len(t, report.Results, 2)

	// too short for a tag header, tagging fails but the episode is kept
	short := report.Results[0]
	assert.Equal(t, podcast.Succeeded, short.Status)
	assert.NoError(t, short.Err)
	assert.Zero(t, short.Duration)
	assert.Equal(t, "abc", folderFiles(t, folder)["001 - episode 1.mp3"])

	full := report.Results[1]
	assert.Equal(t, podcast.Succeeded, full.Status)
	assert.Equal(t, int64(len(audio)), full.Size)
	assert.Greater(t, full.Duration, time.Duration(0))

	tag, err := id3v2.Open(full.Path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close() // nolint
	assert.Equal(t, "Episode 2", tag.Title())
	assert.Equal(t, "I tre moschettieri", tag.Album())
	assert.Equal(t, "Radio3", tag.Artist())

	cached, ok, err := d.Fetcher.Store.Get(KeyFor(site.URL + "/b.mp3"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, audio, cached, "cache keeps untagged bytes")
}
