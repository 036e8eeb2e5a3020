package updater

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// install places the downloaded file into the request's destination
// according to its file type. Archives are extracted and the temporary
// file removed; anything else is moved into place unchanged.
func install(req Request, tempPath string) error {
	var err error
	switch req.FileType {
	case FileTypeZip:
		err = extractZip(tempPath, req.Destination)
	case FileTypeTarGz:
		err = extractTarGz(tempPath, req.Destination)
	default:
		return moveIntoPlace(tempPath, req.Destination, req.installName(filepath.Base(tempPath)))
	}
	if err != nil {
		return err
	}

	if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing temporary archive")
	}
	return nil
}

func extractZip(archivePath, dest string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return errors.Wrap(err, "opening zip archive")
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0755); err != nil {
		return errors.Wrap(err, "creating destination folder")
	}

	for _, f := range r.File {
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return errors.Wrapf(err, "creating %s", f.Name)
			}
		case mode&os.ModeSymlink != 0:
			rc, err := f.Open()
			if err != nil {
				return errors.Wrapf(err, "reading %s", f.Name)
			}
			link, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return errors.Wrapf(err, "reading %s", f.Name)
			}
			if err := writeSymlink(dest, target, string(link)); err != nil {
				return err
			}
		default:
			rc, err := f.Open()
			if err != nil {
				return errors.Wrapf(err, "reading %s", f.Name)
			}
			err = writeFile(target, rc, mode.Perm())
			rc.Close()
			if err != nil {
				return errors.Wrapf(err, "extracting %s", f.Name)
			}
		}
	}
	return nil
}

func extractTarGz(archivePath, dest string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return errors.Wrap(err, "opening tar.gz archive")
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "reading gzip stream")
	}
	defer gz.Close()

	if err := os.MkdirAll(dest, 0755); err != nil {
		return errors.Wrap(err, "creating destination folder")
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "reading tar archive")
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return errors.Wrapf(err, "creating %s", hdr.Name)
			}
		case tar.TypeSymlink:
			if err := writeSymlink(dest, target, hdr.Linkname); err != nil {
				return err
			}
		case tar.TypeLink:
			source, err := safeJoin(dest, hdr.Linkname)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return errors.Wrapf(err, "creating %s", hdr.Name)
			}
			_ = os.Remove(target)
			if err := os.Link(source, target); err != nil {
				return errors.Wrapf(err, "linking %s", hdr.Name)
			}
		default:
			if !hdr.FileInfo().Mode().IsRegular() {
				continue
			}
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return errors.Wrapf(err, "extracting %s", hdr.Name)
			}
		}
	}
}

// moveIntoPlace moves src into dest under name, copying when a rename
// is not possible (for example across file systems)
func moveIntoPlace(src, dest, name string) error {
	if err := os.MkdirAll(dest, 0755); err != nil {
		return errors.Wrap(err, "creating destination folder")
	}
	target := filepath.Join(dest, name)

	if err := os.Rename(src, target); err == nil {
		return nil
	}

	if err := copyFile(src, target); err != nil {
		return errors.Wrapf(err, "moving file to %s", target)
	}
	return os.Remove(src)
}

// safeJoin resolves an archive entry name below dest and rejects entries
// that would escape it
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", errors.Errorf("illegal path in archive: %s", name)
	}
	return target, nil
}

func writeSymlink(dest, target, link string) error {
	resolved := link
	if !filepath.IsAbs(link) {
		resolved = filepath.Join(filepath.Dir(target), link)
	}
	rel, err := filepath.Rel(dest, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return errors.Errorf("illegal link target in archive: %s -> %s", target, link)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Wrapf(err, "creating parent of %s", target)
	}
	_ = os.Remove(target)
	return errors.Wrapf(os.Symlink(link, target), "linking %s", target)
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if perm == 0 {
		perm = 0644
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// copyFile copies a file from src to dst
func copyFile(src, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	destination, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(destination, source); err != nil {
		destination.Close()
		return err
	}
	return destination.Close()
}
