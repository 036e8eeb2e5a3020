package updater

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientOptions{BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)
	return c, &calls
}

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{name: "full url", input: "https://github.com/godotengine/godot", wantOwner: "godotengine", wantRepo: "godot"},
		{name: "trailing slashes", input: "https://github.com/godotengine/godot///", wantOwner: "godotengine", wantRepo: "godot"},
		{name: "git suffix", input: "https://github.com/cli/cli.git", wantOwner: "cli", wantRepo: "cli"},
		{name: "short form", input: "owner/repo", wantOwner: "owner", wantRepo: "repo"},
		{name: "extra segments", input: "https://github.com/a/b/c", wantOwner: "b", wantRepo: "c"},
		{name: "host without scheme", input: "github.com/godotengine/godot", wantOwner: "godotengine", wantRepo: "godot"},
		{name: "owner only", input: "https://github.com/godotengine", wantErr: true},
		{name: "owner only without scheme", input: "github.com/godotengine", wantErr: true},
		{name: "www host owner only", input: "www.github.com/owner/", wantErr: true},
		{name: "host only", input: "https://github.com/", wantErr: true},
		{name: "single word", input: "godot", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := ParseRepoURL(tt.input)
			if tt.wantErr {
				require.True(t, errors.Is(err, ErrInvalidRepositoryReference), "got %v", err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantOwner, owner)
			require.Equal(t, tt.wantRepo, repo)
		})
	}
}

func TestInvalidReferenceFailsWithoutNetwork(t *testing.T) {
	c, calls := newTestClient(t, http.NotFoundHandler())
	ctx := context.Background()

	for _, bad := range []string{"https://github.com/only-owner", "repo", "https://github.com", "github.com/godotengine", "www.github.com/owner/"} {
		releases, err := c.ListReleases(ctx, bad)
		require.True(t, errors.Is(err, ErrInvalidRepositoryReference))
		require.Nil(t, releases)

		assets, err := c.ListAssets(ctx, bad, "v1.0")
		require.True(t, errors.Is(err, ErrInvalidRepositoryReference))
		require.Nil(t, assets)
	}
	require.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestListReleasesPrependsLatest(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/releases", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"tag_name":"v0.9.0"}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/owner/repo/releases?page=2&per_page=100>; rel="next"`, srvURL))
		fmt.Fprint(w, `[{"tag_name":"v1.1.0"},{"tag_name":"v1.0.0-rc1"}]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	c, err := NewClient(ClientOptions{BaseURL: srv.URL})
	require.NoError(t, err)

	got, err := c.ListReleases(context.Background(), "https://github.com/owner/repo")
	require.NoError(t, err)

	want := []string{"latest", "v1.1.0", "v1.0.0-rc1", "v0.9.0"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListReleases() mismatch (-want +got):\n%s", diff)
	}
}

func TestListReleasesFallsBackOnFailure(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
	}))

	got, err := c.ListReleases(context.Background(), "https://github.com/owner/repo")
	require.Error(t, err)
	require.True(t, IsQueryFailure(err))
	require.Equal(t, []string{"latest"}, got)
}

func TestListAssetsLatest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tag_name":"v2.0.0","assets":[
			{"name":"app.zip","size":10485760,"browser_download_url":"https://example.com/app.zip"},
			{"name":"app.tar.gz","size":2048,"browser_download_url":"https://example.com/app.tar.gz"}]}`)
	})
	c, _ := newTestClient(t, mux)

	got, err := c.ListAssets(context.Background(), "https://github.com/owner/repo", LatestTag)
	require.NoError(t, err)

	want := []Asset{
		{Name: "app.zip", Size: 10485760, DownloadURL: "https://example.com/app.zip"},
		{Name: "app.tar.gz", Size: 2048, DownloadURL: "https://example.com/app.tar.gz"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListAssets() mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "zip", got[0].FileType())
	require.Equal(t, "tar.gz", got[1].FileType())
}

func TestListAssetsByTagWithNoAssets(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/releases/tags/v1.0", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tag_name":"v1.0","assets":[]}`)
	})
	c, _ := newTestClient(t, mux)

	got, err := c.ListAssets(context.Background(), "https://github.com/owner/repo", "v1.0")
	require.NoError(t, err)
	require.Empty(t, got)

	err = RequireAssets(got)
	require.Equal(t, ErrNoAssetsAvailable, err)
	require.Equal(t, "No assets found for this release.", err.Error())
}

func TestListAssetsFailureReturnsEmpty(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())

	got, err := c.ListAssets(context.Background(), "owner/repo", "v9.9.9")
	require.True(t, IsQueryFailure(err))
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestDescribeTag(t *testing.T) {
	tests := map[string]string{
		"v1.2.3":        "stable",
		"1.2.3":         "stable",
		"v2.0.0-beta.1": "prerelease",
		"nightly":       "",
		"latest":        "",
	}
	for tag, want := range tests {
		require.Equal(t, want, DescribeTag(tag), tag)
	}
}

func TestFindAsset(t *testing.T) {
	assets := []Asset{{Name: "a.zip"}, {Name: "b.exe"}}
	require.Equal(t, "b.exe", FindAsset(assets, "b.exe").Name)
	require.Nil(t, FindAsset(assets, "c.dmg"))
}
