package updater

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInstallDownloadsSelectedAsset(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/repos/owner/repo/releases/tags/v1.2.0", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"tag_name":"v1.2.0","assets":[
			{"name":"tool.exe","size":5,"browser_download_url":"%[1]s/dl/tool.exe"},
			{"name":"tool.txt","size":3,"browser_download_url":"%[1]s/dl/tool.txt"}]}`, srv.URL)
	})
	mux.HandleFunc("/dl/tool.exe", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	})

	client, err := NewClient(ClientOptions{BaseURL: srv.URL})
	require.NoError(t, err)
	worker := NewWorker(WithTempDir(t.TempDir()))

	dest := filepath.Join(t.TempDir(), "bin")
	var out bytes.Buffer
	err = Install(context.Background(), client, worker, InstallOptions{
		RepoURL:     "https://github.com/owner/repo",
		Tag:         "v1.2.0",
		AssetName:   "tool.exe",
		Destination: dest,
		Out:         &out,
	})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dest, "tool.exe"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
	require.Contains(t, out.String(), "Update completed successfully!")
}

func TestInstallWithoutAssets(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tag_name":"v1.0.0","assets":[]}`)
	})
	client, _ := newTestClient(t, mux)

	err := Install(context.Background(), client, NewWorker(), InstallOptions{
		RepoURL:     "owner/repo",
		Destination: t.TempDir(),
		Out:         &bytes.Buffer{},
	})
	require.Equal(t, ErrNoAssetsAvailable, err)
}

func TestSelectAsset(t *testing.T) {
	one := []Asset{{Name: "only.zip"}}
	two := []Asset{{Name: "a.zip"}, {Name: "b.zip"}}

	a, err := selectAsset(one, "")
	require.NoError(t, err)
	require.Equal(t, "only.zip", a.Name)

	a, err = selectAsset(two, "b.zip")
	require.NoError(t, err)
	require.Equal(t, "b.zip", a.Name)

	_, err = selectAsset(two, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "a.zip, b.zip")

	_, err = selectAsset(two, "c.zip")
	require.Error(t, err)
}
