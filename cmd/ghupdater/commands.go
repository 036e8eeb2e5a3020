package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/rodaine/table"

	"github.com/Iyanyourbae/Updater-Releases/internal/logger"
	"github.com/Iyanyourbae/Updater-Releases/internal/repolist"
	"github.com/Iyanyourbae/Updater-Releases/internal/uninstaller"
	"github.com/Iyanyourbae/Updater-Releases/internal/updater"
)

var (
	headerFmt = color.New(color.FgGreen, color.Underline).SprintfFunc()
	columnFmt = color.New(color.FgYellow).SprintfFunc()
	warnFmt   = color.New(color.FgYellow).SprintfFunc()
	okFmt     = color.New(color.FgGreen).SprintfFunc()
)

func (e *env) newTable(columns ...interface{}) table.Table {
	tbl := table.New(columns...)
	tbl.WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt).WithWriter(e.out)
	return tbl
}

func (e *env) warn(err error) {
	fmt.Fprintln(e.out, warnFmt("⚠ %s", err))
}

func (e *env) listReleases(repoURL string) error {
	releases, err := e.client.ListReleases(context.Background(), repoURL)
	if err != nil {
		if !updater.IsQueryFailure(err) {
			return err
		}
		e.warn(err)
	}

	tbl := e.newTable("#", "Release", "Kind")
	for i, tag := range releases {
		tbl.AddRow(i, tag, updater.DescribeTag(tag))
	}
	tbl.Print()
	return nil
}

func (e *env) listAssets(repoURL, tag string) error {
	assets, err := e.client.ListAssets(context.Background(), repoURL, tag)
	if err != nil {
		if !updater.IsQueryFailure(err) {
			return err
		}
		e.warn(err)
	}
	if err := updater.RequireAssets(assets); err != nil {
		return err
	}

	tbl := e.newTable("Asset", "Type", "Size", "URL")
	for _, a := range assets {
		tbl.AddRow(a.Name, a.FileType(), humanize.IBytes(uint64(a.Size)), a.DownloadURL)
	}
	tbl.Print()
	return nil
}

func (e *env) install(repoURL, tag, asset, dest string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	return updater.Install(ctx, e.client, e.worker, updater.InstallOptions{
		RepoURL:     repoURL,
		Tag:         tag,
		AssetName:   asset,
		Destination: dest,
		Out:         e.out,
	})
}

func (e *env) listRepos() error {
	if e.repos.Len() == 0 {
		if e.repos.LoadErr() == nil {
			fmt.Fprintf(e.out, "No repositories saved in %s\n", e.repos.Path())
		}
		return nil
	}
	tbl := e.newTable("#", "Repository", "Download folder")
	for i, entry := range e.repos.Entries() {
		tbl.AddRow(i+1, entry.RepoURL, entry.DownloadFolder)
	}
	tbl.Print()
	return nil
}

// saveRepos persists the list; overwrite replaces a file that failed to load
func (e *env) saveRepos(overwrite bool) error {
	if overwrite {
		return e.repos.Overwrite()
	}
	err := e.repos.Save()
	if errors.Is(err, repolist.ErrUnreadableFile) {
		return errors.Wrap(err, "not saved, fix the file or rerun with --overwrite")
	}
	return err
}

func (e *env) addRepo(repoURL, folder string, overwrite bool) error {
	entry, err := e.repos.Add(repoURL, folder)
	if err != nil {
		return err
	}
	if err := e.saveRepos(overwrite); err != nil {
		return err
	}
	fmt.Fprintln(e.out, okFmt("✓ Added %s -> %s", entry.RepoURL, entry.DownloadFolder))
	return nil
}

func (e *env) removeRepo(number string, overwrite bool) error {
	n, err := strconv.Atoi(number)
	if err != nil {
		return errors.Errorf("invalid repository number %q", number)
	}
	entry, err := e.repos.Remove(n - 1)
	if err != nil {
		return err
	}
	if err := e.saveRepos(overwrite); err != nil {
		return err
	}
	fmt.Fprintln(e.out, okFmt("✓ Removed %s", entry.RepoURL))
	return nil
}

func (e *env) uninstall(force bool) error {
	tempDir := e.cfg.Download.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	// the log file lives inside the app dir and is removed with it
	logger.GetLogger().Close()
	return uninstaller.Uninstall(uninstaller.Options{
		AppDir:      filepath.Dir(e.cfg.Path()),
		TempDir:     tempDir,
		TempPattern: updater.TempFilePattern,
		Force:       force,
		In:          os.Stdin,
		Out:         e.out,
	})
}
