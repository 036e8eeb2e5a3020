// Package repolist keeps the user's tracked repositories and persists them
// as a JSON array.
package repolist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// HostMarker must appear in every repository URL added interactively
const HostMarker = "github.com"

// ErrUnreadableFile blocks a save over a file that failed to load
var ErrUnreadableFile = errors.New("the file failed to load; reload it or confirm overwriting")

// Entry is one tracked repository and where its releases are installed
type Entry struct {
	RepoURL        string `json:"repo_url"`
	DownloadFolder string `json:"download_folder"`
}

// PersistenceError reports a failed load or save of the entries file
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return "could not " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Load reads entries from path. A missing file yields an empty list.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load", Path: path, Err: err}
	}

	entries := []Entry{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &PersistenceError{Op: "load", Path: path, Err: errors.Wrap(err, "malformed JSON")}
	}
	return entries, nil
}

// Save writes entries to path as an indented JSON array. The file is
// replaced atomically so a failed save leaves the previous content.
func Save(path string, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return &PersistenceError{Op: "save", Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &PersistenceError{Op: "save", Path: path, Err: err}
	}
	tmp, err := os.CreateTemp(dir, ".repositories-*.json")
	if err != nil {
		return &PersistenceError{Op: "save", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &PersistenceError{Op: "save", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &PersistenceError{Op: "save", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &PersistenceError{Op: "save", Path: path, Err: err}
	}
	return nil
}

// Validate checks an entry before it is added
func Validate(e Entry) error {
	if !strings.Contains(e.RepoURL, HostMarker) {
		return errors.Errorf("repository URL must contain %q", HostMarker)
	}
	if strings.TrimSpace(e.DownloadFolder) == "" {
		return errors.New("download folder is required")
	}
	return nil
}

// List is the ordered, in-memory set of entries bound to a file
type List struct {
	path    string
	entries []Entry
	loadErr error
}

// NewList returns an empty list persisted at path
func NewList(path string) *List {
	return &List{path: path, entries: []Entry{}}
}

// Open loads the list stored at path
func Open(path string) (*List, error) {
	l := NewList(path)
	if err := l.Reload(); err != nil {
		return l, err
	}
	return l, nil
}

// Path returns the backing file
func (l *List) Path() string {
	return l.path
}

// Reload replaces the entries with the file contents. On failure the
// current entries are kept and saving is blocked until a reload succeeds
// or Overwrite is called.
func (l *List) Reload() error {
	entries, err := Load(l.path)
	if err != nil {
		l.loadErr = err
		return err
	}
	l.entries = entries
	l.loadErr = nil
	return nil
}

// LoadErr returns the failure of the last load, if it has not been resolved
func (l *List) LoadErr() error {
	return l.loadErr
}

// Save persists the current entries. It refuses to replace a file that
// failed to load.
func (l *List) Save() error {
	if l.loadErr != nil {
		return &PersistenceError{Op: "save", Path: l.path, Err: ErrUnreadableFile}
	}
	return Save(l.path, l.entries)
}

// Overwrite persists the current entries even over a file that failed to load
func (l *List) Overwrite() error {
	if err := Save(l.path, l.entries); err != nil {
		return err
	}
	l.loadErr = nil
	return nil
}

// Add appends a validated entry. Duplicates are allowed.
func (l *List) Add(repoURL, folder string) (Entry, error) {
	e := Entry{RepoURL: strings.TrimSpace(repoURL), DownloadFolder: strings.TrimSpace(folder)}
	if err := Validate(e); err != nil {
		return Entry{}, err
	}
	l.entries = append(l.entries, e)
	return e, nil
}

// Remove deletes the entry at index i
func (l *List) Remove(i int) (Entry, error) {
	if i < 0 || i >= len(l.entries) {
		return Entry{}, errors.Errorf("no repository at index %d", i)
	}
	e := l.entries[i]
	l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
	return e, nil
}

// At returns the entry at index i
func (l *List) At(i int) (Entry, bool) {
	if i < 0 || i >= len(l.entries) {
		return Entry{}, false
	}
	return l.entries[i], true
}

// Entries returns a copy of the entries in order
func (l *List) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries
func (l *List) Len() int {
	return len(l.entries)
}
