package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pevans/newsgrab/story"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: create an archive in a temp directory
func setupTestArchive(t *testing.T) *Archive {
	a, err := New(t.TempDir())
	require.NoError(t, err)
	return a
}

// Test helper: store a completed entry for title
func saveEntry(t *testing.T, a *Archive, title, body string, fetchedAt time.Time) Entry {
	key := story.KeyFor(title)
	require.NoError(t, a.Prepare(key))

	entry := Entry{
		Key:        key,
		Title:      title,
		Link:       "http://example.com/" + key.String(),
		StatusCode: 200,
		FetchedAt:  fetchedAt,
	}
	require.NoError(t, a.Save(entry, []byte(body)))
	entry.Size = len(body)
	return entry
}

func TestNew_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "a", "b")

	a, err := New(root)
	require.NoError(t, err)

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, root, a.Root())
}

func TestOpen_MissingRoot(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrRootMissing)
}

func TestOpen_RootIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	_, err := Open(path)
	assert.ErrorIs(t, err, ErrRootMissing)
}

// TestPrepare_MissingRoot verifies only the entry directory is created
func TestPrepare_MissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "news")
	a := &Archive{root: root}

	err := a.Prepare(story.KeyFor("Title"))
	require.Error(t, err)

	_, statErr := os.Stat(root)
	assert.True(t, os.IsNotExist(statErr), "root must not be created")
}

// TestPrepare_ReusesExistingDirectory verifies a leftover directory from a
// failed attempt is not an error
func TestPrepare_ReusesExistingDirectory(t *testing.T) {
	a := setupTestArchive(t)
	key := story.KeyFor("Title")

	require.NoError(t, a.Prepare(key))
	require.NoError(t, a.Prepare(key))
}

func TestPrepare_InvalidKey(t *testing.T) {
	a := setupTestArchive(t)
	assert.ErrorIs(t, a.Prepare("../escape"), ErrInvalidKey)
}

// TestComplete_EmptyDirectoryIsIncomplete verifies a directory alone is not a
// completion marker
func TestComplete_EmptyDirectoryIsIncomplete(t *testing.T) {
	a := setupTestArchive(t)
	key := story.KeyFor("Title")

	assert.False(t, a.Complete(key))
	require.NoError(t, a.Prepare(key))
	assert.False(t, a.Complete(key))
}

// TestSave_RoundTrip verifies the stored body equals what was written
func TestSave_RoundTrip(t *testing.T) {
	a := setupTestArchive(t)
	body := "<html><body>héllo wörld</body></html>"
	entry := saveEntry(t, a, "Title One", body, time.Now().UTC())

	assert.True(t, a.Complete(entry.Key))

	got, err := a.Body(entry.Key)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))

	// Exactly one body file and one metadata file, no temp leftovers
	files, err := os.ReadDir(a.Dir(entry.Key))
	require.NoError(t, err)
	names := []string{}
	for _, f := range files {
		names = append(names, f.Name())
	}
	assert.ElementsMatch(t, []string{metaFile, entry.Key.String() + ".html"}, names)
}

func TestSave_InvalidKey(t *testing.T) {
	a := setupTestArchive(t)
	err := a.Save(Entry{Key: "Not/Valid"}, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

// TestSave_WithoutPrepare verifies Save fails when the entry directory is
// missing
func TestSave_WithoutPrepare(t *testing.T) {
	a := setupTestArchive(t)
	key := story.KeyFor("Title")

	err := a.Save(Entry{Key: key}, []byte("x"))
	require.Error(t, err)
	assert.False(t, a.Complete(key))
}

func TestGet(t *testing.T) {
	a := setupTestArchive(t)
	fetchedAt := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	entry := saveEntry(t, a, "Title One", "body", fetchedAt)

	got, err := a.Get(entry.Key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry, *got)
}

func TestGet_Absent(t *testing.T) {
	a := setupTestArchive(t)

	got, err := a.Get(story.KeyFor("Nope"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBody_Absent(t *testing.T) {
	a := setupTestArchive(t)

	_, err := a.Body(story.KeyFor("Nope"))
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestList verifies complete, incomplete and corrupted entries are reported
// separately
func TestList(t *testing.T) {
	a := setupTestArchive(t)
	done := saveEntry(t, a, "Done", "body", time.Now().UTC())

	pending := story.KeyFor("Pending")
	require.NoError(t, a.Prepare(pending))

	broken := saveEntry(t, a, "Broken", "body", time.Now().UTC())
	require.NoError(t, os.WriteFile(filepath.Join(a.Dir(broken.Key), metaFile), []byte("{not json"), 0o600))

	// Stray files and foreign directories are ignored
	require.NoError(t, os.WriteFile(filepath.Join(a.Root(), "README"), []byte("x"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(a.Root(), "Other Dir"), 0o755))

	result, err := a.List()
	require.NoError(t, err)

	require.Len(t, result.Entries, 1)
	assert.Equal(t, done.Key, result.Entries[0].Key)
	assert.Equal(t, []story.Key{pending}, result.Incomplete)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, broken.Key, result.Errors[0].Key)
}

func TestList_MissingRoot(t *testing.T) {
	a := &Archive{root: filepath.Join(t.TempDir(), "missing")}

	_, err := a.List()
	assert.Error(t, err)
}
