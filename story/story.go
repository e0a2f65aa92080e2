package story

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gosimple/slug"
)

const (
	// maxSlugLen bounds the readable part of a key so that the full key stays
	// well under common file name limits.
	maxSlugLen = 60

	// hashLen is the number of hex digits of the title hash kept in a key.
	hashLen = 12
)

// Story is a single (link, title) pair taken from a front page.
type Story struct {
	Link  string `json:"link"`
	Title string `json:"title"`
}

// Key returns the on-disk identifier for the story.
func (s Story) Key() Key {
	return KeyFor(s.Title)
}

// Key identifies an archived story on disk. It names both the entry
// directory and the body file inside it.
type Key string

// String returns the key as a plain string.
func (k Key) String() string {
	return string(k)
}

// KeyFor derives a filesystem-safe key from a title. The readable slug can
// collide for distinct titles, so a prefix of the title's SHA-256 digest is
// appended.
func KeyFor(title string) Key {
	s := slug.Make(title)
	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "-")
	}
	if s == "" {
		s = "story"
	}

	sum := sha256.Sum256([]byte(title))
	return Key(s + "-" + hex.EncodeToString(sum[:])[:hashLen])
}

// Valid reports whether k looks like a key produced by KeyFor. It is used to
// reject path-hostile input (e.g., from HTTP requests) before touching the
// filesystem.
func (k Key) Valid() bool {
	s := string(k)
	if len(s) < hashLen+2 || len(s) > maxSlugLen+hashLen+1 {
		return false
	}

	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}

	return s[len(s)-hashLen-1] == '-'
}
