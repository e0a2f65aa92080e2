// Package archive stores downloaded stories on disk, one directory per story
// key.
//
// Layout:
//
//	<root>/<key>/story.json   download metadata
//	<root>/<key>/<key>.html   page body (UTF-8)
//
// The body file is written last and atomically, so its presence is the only
// completion marker. A directory without a body is an incomplete entry.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pevans/newsgrab/story"
)

// metaFile is the name of the metadata file inside each entry directory.
const metaFile = "story.json"

// Archive errors.
var (
	ErrRootMissing = errors.New("archive root does not exist")
	ErrInvalidKey  = errors.New("invalid story key")
	ErrNotFound    = errors.New("entry not found")
)

// Archive is a directory of downloaded stories.
type Archive struct {
	root string
}

// Entry describes one completed download.
type Entry struct {
	Key         story.Key `json:"key"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	StatusCode  int       `json:"status_code"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int       `json:"size"`
	Truncated   bool      `json:"truncated,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// ReadError describes a failure to read a single entry.
type ReadError struct {
	Key story.Key
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Key, e.Err)
}

// ListResult contains the results of listing the archive, including entries
// that were started but never completed and any per-entry read errors.
type ListResult struct {
	Entries    []Entry
	Incomplete []story.Key
	Errors     []ReadError
}

// New creates an archive rooted at root, creating the directory if needed.
func New(root string) (*Archive, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive root: %w", err)
	}

	return &Archive{root: root}, nil
}

// Open opens an existing archive. It does not create anything.
func Open(root string) (*Archive, error) {
	a := &Archive{root: root}
	if err := a.Check(); err != nil {
		return nil, err
	}
	return a, nil
}

// Root returns the archive's root directory.
func (a *Archive) Root() string {
	return a.root
}

// Check verifies that the root directory still exists.
func (a *Archive) Check() error {
	info, err := os.Stat(a.root)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrRootMissing, a.root)
		}
		return fmt.Errorf("failed to stat archive root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrRootMissing, a.root)
	}
	return nil
}

// Dir returns the entry directory for key.
func (a *Archive) Dir(key story.Key) string {
	return filepath.Join(a.root, key.String())
}

// BodyPath returns the body file path for key.
func (a *Archive) BodyPath(key story.Key) string {
	return filepath.Join(a.Dir(key), key.String()+".html")
}

// Complete reports whether the body for key has been fully written.
func (a *Archive) Complete(key story.Key) bool {
	info, err := os.Stat(a.BodyPath(key))
	return err == nil && info.Mode().IsRegular()
}

// Prepare creates the entry directory for key. Only the entry directory
// itself is created; a missing root is an error. An existing directory (left
// by an earlier failed attempt) is reused.
func (a *Archive) Prepare(key story.Key) error {
	if !key.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	err := os.Mkdir(a.Dir(key), 0o755)
	if err == nil {
		return nil
	}

	if errors.Is(err, fs.ErrExist) {
		info, statErr := os.Stat(a.Dir(key))
		if statErr == nil && info.IsDir() {
			return nil
		}
	}

	return fmt.Errorf("failed to create entry directory: %w", err)
}

// Save writes the metadata and body for an entry. The metadata is written
// first so that a completed body always has metadata next to it.
func (a *Archive) Save(entry Entry, body []byte) error {
	if !entry.Key.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKey, entry.Key)
	}

	entry.Size = len(body)

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	dir := a.Dir(entry.Key)
	if err := writeAtomic(dir, metaFile, data); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	if err := writeAtomic(dir, entry.Key.String()+".html", body); err != nil {
		return fmt.Errorf("failed to write body: %w", err)
	}

	return nil
}

// Get returns the entry for key, or nil if the entry is absent or
// incomplete.
func (a *Archive) Get(key story.Key) (*Entry, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	if !a.Complete(key) {
		return nil, nil // Not downloaded (not an error)
	}

	return a.readEntry(key)
}

// Body returns the stored page body for key.
func (a *Archive) Body(key story.Key) ([]byte, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	data, err := os.ReadFile(a.BodyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return data, nil
}

// List returns every entry in the archive. Unreadable entries are collected
// in the result's Errors slice rather than failing the whole listing. A
// non-nil error return means the root itself could not be read.
func (a *Archive) List() (*ListResult, error) {
	dirents, err := os.ReadDir(a.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive root: %w", err)
	}

	result := &ListResult{}
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}

		key := story.Key(d.Name())
		if !key.Valid() {
			continue
		}

		if !a.Complete(key) {
			result.Incomplete = append(result.Incomplete, key)
			continue
		}

		entry, err := a.readEntry(key)
		if err != nil {
			result.Errors = append(result.Errors, ReadError{Key: key, Err: err})
			continue
		}

		result.Entries = append(result.Entries, *entry)
	}

	return result, nil
}

// readEntry loads the metadata file for key.
func (a *Archive) readEntry(key story.Key) (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(a.Dir(key), metaFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &entry, nil
}

// writeAtomic writes data to dir/name through a temporary file in the same
// directory and renames it into place.
func writeAtomic(dir, name string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}
