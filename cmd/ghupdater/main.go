package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/Iyanyourbae/Updater-Releases/internal/app"
	"github.com/Iyanyourbae/Updater-Releases/internal/config"
	"github.com/Iyanyourbae/Updater-Releases/internal/logger"
	"github.com/Iyanyourbae/Updater-Releases/internal/metrics"
	"github.com/Iyanyourbae/Updater-Releases/internal/repolist"
	"github.com/Iyanyourbae/Updater-Releases/internal/updater"
)

// version is injected at build time via -ldflags
var version = "dev"

// env holds what every command needs, built once before the action runs
type env struct {
	out     io.Writer
	cfg     *config.Config
	client  *updater.Client
	worker  *updater.Worker
	repos   *repolist.List
	metrics *http.Server
}

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var overwriteFlag = cli.BoolFlag{
	Name:  "overwrite",
	Usage: "Replace a repository file that could not be read",
}

func newApp(out io.Writer) *cli.App {
	var debug bool
	var configDir string
	e := &env{out: out}

	a := cli.NewApp()
	a.Name = "ghupdater"
	a.Usage = "Install GitHub release assets into local folders"
	a.Version = version
	a.Writer = out

	a.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:        "debug",
			Usage:       "Debug logging, also streamed to stderr",
			Destination: &debug,
		},
		cli.StringFlag{
			Name:        "config",
			Usage:       "Directory holding config.yaml (default ~/.ghupdater)",
			Destination: &configDir,
		},
	}

	a.Before = func(c *cli.Context) error {
		return e.setup(debug, configDir)
	}
	a.After = func(c *cli.Context) error {
		e.teardown()
		return nil
	}

	a.Action = func(c *cli.Context) error {
		return e.runTUI()
	}

	a.Commands = []cli.Command{
		{
			Name:      "releases",
			Usage:     "List the releases of a repository",
			ArgsUsage: "REPO_URL",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					return errors.New("usage: ghupdater releases REPO_URL")
				}
				return e.listReleases(c.Args().Get(0))
			},
		},
		{
			Name:      "assets",
			Usage:     "List the assets of a release",
			ArgsUsage: "REPO_URL [TAG]",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					return errors.New("usage: ghupdater assets REPO_URL [TAG]")
				}
				tag := c.Args().Get(1)
				if tag == "" {
					tag = updater.LatestTag
				}
				return e.listAssets(c.Args().Get(0), tag)
			},
		},
		{
			Name:      "install",
			Usage:     "Download an asset and install it into a folder",
			ArgsUsage: "REPO_URL",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "tag, t", Value: updater.LatestTag, Usage: "Release tag"},
				cli.StringFlag{Name: "asset, a", Usage: "Asset name (required when the release has several)"},
				cli.StringFlag{Name: "dest, d", Usage: "Destination folder"},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 || c.String("dest") == "" {
					return errors.New("usage: ghupdater install REPO_URL --dest DIR [--tag TAG] [--asset NAME]")
				}
				return e.install(c.Args().Get(0), c.String("tag"), c.String("asset"), c.String("dest"))
			},
		},
		{
			Name:   "repos",
			Usage:  "Manage the saved repository list",
			Action: func(c *cli.Context) error { return e.listRepos() },
			Subcommands: []cli.Command{
				{
					Name:      "add",
					Usage:     "Add a repository and its download folder",
					ArgsUsage: "REPO_URL FOLDER",
					Flags:     []cli.Flag{overwriteFlag},
					Action: func(c *cli.Context) error {
						if c.NArg() < 2 {
							return errors.New("usage: ghupdater repos add [--overwrite] REPO_URL FOLDER")
						}
						return e.addRepo(c.Args().Get(0), c.Args().Get(1), c.Bool("overwrite"))
					},
				},
				{
					Name:      "remove",
					Usage:     "Remove a repository by its number",
					ArgsUsage: "NUMBER",
					Flags:     []cli.Flag{overwriteFlag},
					Action: func(c *cli.Context) error {
						if c.NArg() < 1 {
							return errors.New("usage: ghupdater repos remove [--overwrite] NUMBER")
						}
						return e.removeRepo(c.Args().Get(0), c.Bool("overwrite"))
					},
				},
			},
		},
		{
			Name:  "uninstall",
			Usage: "Remove configuration, repository list and leftover downloads",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "force, f", Usage: "Do not ask for confirmation"},
			},
			Action: func(c *cli.Context) error {
				return e.uninstall(c.Bool("force"))
			},
		},
		{
			Name:  "logs",
			Usage: "Show the log file location",
			Action: func(c *cli.Context) error {
				fmt.Fprintf(out, "Log file location: %s\n", logger.GetLogPath())
				return nil
			},
		},
		{
			Name:  "version",
			Usage: "Show version information",
			Action: func(c *cli.Context) error {
				fmt.Fprintf(out, "ghupdater %s\n", version)
				return nil
			},
		},
	}

	return a
}

func (e *env) setup(debug bool, configDir string) error {
	if err := logger.Initialize(debug); err != nil {
		return err
	}

	var err error
	if configDir != "" {
		e.cfg, err = config.LoadFrom(configDir)
	} else {
		e.cfg, err = config.Load()
	}
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		return err
	}
	logger.GetLogger().SetLevel(e.cfg.LogLevel)
	logger.Debug("Configuration loaded from %s", e.cfg.Path())

	e.client, err = updater.NewClient(updater.ClientOptions{
		BaseURL: e.cfg.GitHub.APIURL,
		Timeout: e.cfg.APITimeout(),
	})
	if err != nil {
		return err
	}

	e.worker = updater.NewWorker(
		updater.WithHTTPTimeout(e.cfg.HTTPTimeout()),
		updater.WithTempDir(e.cfg.Download.TempDir),
		updater.WithChunkSize(e.cfg.Download.ChunkSize),
		updater.WithProgressInterval(e.cfg.ProgressInterval()),
	)

	e.repos, err = repolist.Open(e.cfg.Storage.RepositoriesFile)
	if err != nil {
		// the list stays usable in memory, saving is blocked until resolved
		logger.Warn("Could not load repositories: %v", err)
		e.warn(errors.Errorf("%v (changes are not saved until the file is fixed or --overwrite is given)", err))
	}

	if addr := e.cfg.Metrics.Addr; addr != "" {
		e.metrics = metrics.NewServer(addr)
		go func() {
			if err := e.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server stopped: %v", err)
			}
		}()
		logger.Info("Serving metrics on %s/metrics", addr)
	}
	return nil
}

func (e *env) teardown() {
	if e.metrics != nil {
		e.metrics.Close()
	}
	logger.GetLogger().Close()
}

func (e *env) runTUI() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting ghupdater %s", version)
	model := app.New(app.State{
		Context: ctx,
		Config:  e.cfg,
		Client:  e.client,
		Worker:  e.worker,
		Repos:   e.repos,
		Version: version,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "error running program")
	}
	return nil
}
