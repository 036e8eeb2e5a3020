package uninstaller

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/pkg/errors"
)

// Options selects what is removed and where prompts are read and written
type Options struct {
	AppDir      string // config, debug log and repository list
	TempDir     string // where download jobs stage their files
	TempPattern string // glob of job staging files
	Force       bool   // skip confirmations
	In          io.Reader
	Out         io.Writer
}

var (
	infoMark    = color.New(color.FgBlue).Sprint("ℹ")
	successMark = color.New(color.FgGreen).Sprint("✓")
	warningMark = color.New(color.FgYellow).Sprint("⚠")
)

// Uninstall removes leftover staging files and, after confirmation, the
// application directory
func Uninstall(opts Options) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	u := &uninstaller{opts: opts, reader: bufio.NewReader(opts.In)}

	if !opts.Force && !u.confirm("This will remove ghupdater data from your system. Continue?") {
		u.printInfo("Uninstallation cancelled")
		return nil
	}

	u.removeTempFiles()

	if err := u.removeAppDir(); err != nil {
		return err
	}

	u.printSuccess("ghupdater data removed. Delete the binary itself to finish.")
	return nil
}

type uninstaller struct {
	opts   Options
	reader *bufio.Reader
}

func (u *uninstaller) confirm(question string) bool {
	if u.opts.Force {
		return true
	}
	fmt.Fprintf(u.opts.Out, "%s %s (y/N): ", warningMark, question)
	response, err := u.reader.ReadString('\n')
	if err != nil && response == "" {
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func (u *uninstaller) removeTempFiles() {
	if u.opts.TempDir == "" || u.opts.TempPattern == "" {
		return
	}
	u.printInfo("Checking for leftover download files...")

	files, err := filepath.Glob(filepath.Join(u.opts.TempDir, u.opts.TempPattern))
	if err != nil || len(files) == 0 {
		u.printInfo("No leftover download files found")
		return
	}

	removed := 0
	var freed uint64
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if err := os.Remove(file); err == nil {
			removed++
			freed += uint64(info.Size())
		}
	}
	u.printSuccess(fmt.Sprintf("Removed %d leftover file(s), %s freed", removed, humanize.IBytes(freed)))
}

func (u *uninstaller) removeAppDir() error {
	dir := u.opts.AppDir
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		u.printInfo(fmt.Sprintf("No application directory found at %s", dir))
		return nil
	}

	u.printInfo(fmt.Sprintf("Found application directory: %s", dir))
	for _, name := range []string{"config.yaml", "debug.log", "repositories.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			u.printInfo("  - " + name)
		}
	}
	u.printInfo(fmt.Sprintf("  Total size: %s", humanize.IBytes(dirSize(dir))))

	if !u.confirm("Remove configuration and repository list?") {
		u.printInfo(fmt.Sprintf("Application directory kept at %s", dir))
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrap(err, "failed to remove application directory")
	}
	u.printSuccess("Application directory removed")
	return nil
}

func dirSize(dir string) uint64 {
	var total uint64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}

func (u *uninstaller) printInfo(msg string) {
	fmt.Fprintf(u.opts.Out, "%s %s\n", infoMark, msg)
}

func (u *uninstaller) printSuccess(msg string) {
	fmt.Fprintf(u.opts.Out, "%s %s\n", successMark, msg)
}
