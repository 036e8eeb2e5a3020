package updater

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/pkg/errors"
)

// InstallOptions configures a headless install
type InstallOptions struct {
	RepoURL     string
	Tag         string
	AssetName   string
	Destination string
	Out         io.Writer
}

var (
	infoMark    = color.New(color.FgBlue).Sprint("ℹ")
	successMark = color.New(color.FgGreen).Sprint("✓")
	warningMark = color.New(color.FgYellow).Sprint("⚠")
	errorMark   = color.New(color.FgRed).Sprint("✗")
)

// Install resolves an asset of a release and installs it with worker,
// printing progress to opts.Out
func Install(ctx context.Context, client *Client, worker *Worker, opts InstallOptions) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	tag := opts.Tag
	if tag == "" {
		tag = LatestTag
	}

	printInfo(out, fmt.Sprintf("Repository: %s", opts.RepoURL))
	printInfo(out, fmt.Sprintf("Release: %s", tag))

	assets, err := client.ListAssets(ctx, opts.RepoURL, tag)
	if err != nil {
		if !IsQueryFailure(err) {
			return err
		}
		printWarning(out, err.Error())
	}
	if err := RequireAssets(assets); err != nil {
		return err
	}

	asset, err := selectAsset(assets, opts.AssetName)
	if err != nil {
		return err
	}

	printInfo(out, fmt.Sprintf("Downloading %s (%s) into %s",
		asset.Name, humanize.IBytes(uint64(asset.Size)), opts.Destination))

	job, err := worker.Start(ctx, RequestFor(*asset, opts.Destination))
	if err != nil {
		return err
	}

	outcome := Drain(job, &consoleObserver{out: out})
	if !outcome.Success {
		printError(out, outcome.Message)
		return outcome.Err
	}

	printSuccess(out, outcome.Message)
	return nil
}

// selectAsset picks the named asset, or the only asset when no name is given
func selectAsset(assets []Asset, name string) (*Asset, error) {
	if name != "" {
		if a := FindAsset(assets, name); a != nil {
			return a, nil
		}
		return nil, errors.Errorf("asset %q not found; available: %s", name, assetNames(assets))
	}
	if len(assets) == 1 {
		return &assets[0], nil
	}
	return nil, errors.Errorf("release has %d assets, choose one with --asset: %s", len(assets), assetNames(assets))
}

func assetNames(assets []Asset) string {
	names := make([]string, 0, len(assets))
	for _, a := range assets {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// consoleObserver renders progress on a single terminal line
type consoleObserver struct {
	out      io.Writer
	progress bool
}

func (c *consoleObserver) OnProgress(percent int, sizeText, speedText string) {
	c.progress = true
	fmt.Fprintf(c.out, "\r%s Downloading... %3d%% %s | Speed: %s   ", infoMark, percent, sizeText, speedText)
}

func (c *consoleObserver) OnFinished(success bool, message string) {
	if c.progress {
		fmt.Fprintln(c.out)
	}
}

// Helper functions for output

func printInfo(out io.Writer, msg string) {
	fmt.Fprintf(out, "%s %s\n", infoMark, msg)
}

func printSuccess(out io.Writer, msg string) {
	fmt.Fprintf(out, "%s %s\n", successMark, msg)
}

func printWarning(out io.Writer, msg string) {
	fmt.Fprintf(out, "%s %s\n", warningMark, msg)
}

func printError(out io.Writer, msg string) {
	fmt.Fprintf(out, "%s %s\n", errorMark, msg)
}
