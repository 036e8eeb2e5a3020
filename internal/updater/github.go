package updater

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/pkg/errors"
	"golang.org/x/mod/semver"

	"github.com/Iyanyourbae/Updater-Releases/internal/logger"
	"github.com/Iyanyourbae/Updater-Releases/internal/metrics"
)

const (
	defaultAPIURL   = "https://api.github.com/"
	releasesPerPage = 100
	userAgent       = "ghupdater"
)

var (
	// ErrInvalidRepositoryReference is returned for repository URLs that do not
	// name an owner and a repository
	ErrInvalidRepositoryReference = errors.New("invalid repository reference")

	// ErrNoAssetsAvailable is returned when a release carries nothing to download
	ErrNoAssetsAvailable = errors.New("No assets found for this release.")
)

// QueryError is a recoverable failure while listing releases or assets.
// The accompanying return value is still a safe default.
type QueryError struct {
	Op   string
	Repo string
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("failed to fetch %s for %s: %v", e.Op, e.Repo, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// IsQueryFailure reports whether err is a recoverable query failure
func IsQueryFailure(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}

// Client queries the releases API. No credentials are ever sent.
type Client struct {
	gh *github.Client
}

// ClientOptions configures the releases API client
type ClientOptions struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewClient creates a releases API client
func NewClient(opts ClientOptions) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
		if opts.Timeout > 0 {
			httpClient.Timeout = opts.Timeout
		}
	}

	gh := github.NewClient(httpClient)
	gh.UserAgent = userAgent

	base := opts.BaseURL
	if base == "" {
		base = defaultAPIURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid API URL %q", opts.BaseURL)
	}
	gh.BaseURL = u

	return &Client{gh: gh}, nil
}

// ParseRepoURL extracts owner and repository name from a repository URL.
// The last two path segments are used, so "https://github.com/o/r",
// "github.com/o/r" and "o/r" are accepted. Without a scheme a leading
// segment containing a dot is a host; owner names never contain one.
func ParseRepoURL(repoURL string) (owner, repo string, err error) {
	raw := strings.TrimRight(strings.TrimSpace(repoURL), "/")
	p := raw
	if strings.Contains(raw, "://") {
		u, perr := url.Parse(raw)
		if perr != nil {
			return "", "", errors.Wrapf(ErrInvalidRepositoryReference, "%q", repoURL)
		}
		p = u.Path
	}

	var segments []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if p == raw && len(segments) > 0 && strings.Contains(segments[0], ".") {
		segments = segments[1:]
	}
	if len(segments) < 2 {
		return "", "", errors.Wrapf(ErrInvalidRepositoryReference, "%q", repoURL)
	}

	owner = segments[len(segments)-2]
	repo = strings.TrimSuffix(segments[len(segments)-1], ".git")
	if repo == "" {
		return "", "", errors.Wrapf(ErrInvalidRepositoryReference, "%q", repoURL)
	}
	return owner, repo, nil
}

// ListReleases returns "latest" followed by every release tag in API order.
// On a query failure it returns ["latest"] together with a *QueryError.
func (c *Client) ListReleases(ctx context.Context, repoURL string) ([]string, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	tags := []string{LatestTag}
	opts := &github.ListOptions{PerPage: releasesPerPage}
	for {
		releases, resp, err := c.gh.Repositories.ListReleases(ctx, owner, repo, opts)
		if err != nil {
			metrics.QueriesTotal.WithLabelValues("releases", "failure").Inc()
			qe := &QueryError{Op: "releases", Repo: owner + "/" + repo, Err: err}
			logger.Warn("%v", qe)
			return []string{LatestTag}, qe
		}
		for _, r := range releases {
			if tag := r.GetTagName(); tag != "" {
				tags = append(tags, tag)
			}
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	metrics.QueriesTotal.WithLabelValues("releases", "success").Inc()
	logger.Debug("Fetched %d releases for %s/%s", len(tags)-1, owner, repo)
	return tags, nil
}

// ListAssets returns the assets of a release. Tag "latest" resolves through
// the latest-release endpoint. On a query failure it returns an empty slice
// together with a *QueryError.
func (c *Client) ListAssets(ctx context.Context, repoURL, tag string) ([]Asset, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	var release *github.RepositoryRelease
	if tag == "" || tag == LatestTag {
		release, _, err = c.gh.Repositories.GetLatestRelease(ctx, owner, repo)
	} else {
		release, _, err = c.gh.Repositories.GetReleaseByTag(ctx, owner, repo, tag)
	}
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("assets", "failure").Inc()
		qe := &QueryError{Op: "assets", Repo: owner + "/" + repo, Err: err}
		logger.Warn("%v", qe)
		return []Asset{}, qe
	}

	assets := make([]Asset, 0, len(release.Assets))
	for _, a := range release.Assets {
		size := int64(a.GetSize())
		if size < 0 {
			size = 0
		}
		assets = append(assets, Asset{
			Name:        a.GetName(),
			Size:        size,
			DownloadURL: a.GetBrowserDownloadURL(),
		})
	}

	metrics.QueriesTotal.WithLabelValues("assets", "success").Inc()
	logger.Debug("Fetched %d assets for %s/%s@%s", len(assets), owner, repo, tag)
	return assets, nil
}

// RequireAssets fails with ErrNoAssetsAvailable when there is nothing to select
func RequireAssets(assets []Asset) error {
	if len(assets) == 0 {
		return ErrNoAssetsAvailable
	}
	return nil
}

// FindAsset finds an asset by name
func FindAsset(assets []Asset, name string) *Asset {
	for i := range assets {
		if assets[i].Name == name {
			return &assets[i]
		}
	}
	return nil
}

// DescribeTag classifies a release tag as "stable", "prerelease", or ""
// when it is not a semantic version
func DescribeTag(tag string) string {
	v := tag
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if tag == LatestTag || !semver.IsValid(v) {
		return ""
	}
	if semver.Prerelease(v) != "" {
		return "prerelease"
	}
	return "stable"
}
