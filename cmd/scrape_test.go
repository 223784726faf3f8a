package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/childcare-cli/internal/config"
	"github.com/sells-group/childcare-cli/internal/fetcher"
	"github.com/sells-group/childcare-cli/internal/pipeline"
)

const providerPage = `<html><body>
<div class="panel-heading"><h1>Little Sprouts</h1></div>
</body></html>`

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestScrapeThenFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") == "p2" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(providerPage))
	}))
	defer srv.Close()

	dir := chdirTemp(t)
	t.Setenv("CHILDCARE_FETCH_RATE_PER_SEC", "100")
	t.Setenv("CHILDCARE_FETCH_BURST", "10")

	links := filepath.Join(dir, "links.txt")
	out := filepath.Join(dir, "stream.jsonl")
	failed := filepath.Join(dir, "failed.txt")
	p1 := srv.URL + "/PSS_Provider?id=p1"
	p2 := srv.URL + "/PSS_Provider?id=p2"
	require.NoError(t, os.WriteFile(links, []byte(p1+"\n\n"+p2+"\n"), 0o644))

	rootCmd.SetArgs([]string{"scrape", "--links", links, "--out", out, "--fetcher", "http", "--concurrency", "1"})
	require.NoError(t, rootCmd.Execute())

	entries, err := pipeline.ReadStream(out)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.False(t, entries[0].IsFailed())
	assert.Equal(t, "Little Sprouts", entries[0].Record.ProviderName)
	assert.True(t, entries[1].IsFailed())
	assert.Equal(t, p2, entries[1].SourceURL)

	// Rerun is a no-op once every link has an entry.
	before, err := os.ReadFile(out)
	require.NoError(t, err)
	rootCmd.SetArgs([]string{"scrape", "--links", links, "--out", out, "--fetcher", "http"})
	require.NoError(t, rootCmd.Execute())
	after, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	rootCmd.SetArgs([]string{"failures", "--stream", out, "--out", failed})
	require.NoError(t, rootCmd.Execute())
	data, err := os.ReadFile(failed)
	require.NoError(t, err)
	assert.Equal(t, p2, strings.TrimSpace(string(data)))
}

func TestScrape_MissingLinksFileLeavesNoOutput(t *testing.T) {
	dir := chdirTemp(t)
	out := filepath.Join(dir, "stream.jsonl")

	rootCmd.SetArgs([]string{"scrape", "--links", filepath.Join(dir, "nope.txt"), "--out", out, "--fetcher", "http"})
	require.Error(t, rootCmd.Execute())

	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestBuildFetcher(t *testing.T) {
	cfg = &config.Config{}
	cfg.Scrape.Fetcher = "http"

	f, closeFn, err := buildFetcher(nil)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &fetcher.HTTPFetcher{}, f)

	cfg.Scrape.Fetcher = "ftp"
	_, _, err = buildFetcher(nil)
	assert.Error(t, err)
}
