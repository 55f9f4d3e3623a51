package hashindex

import (
	"errors"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ErrDuplicateSentinel is returned when InsertSentinel is called more than once,
// or after the sentinel hash was already inserted as an ordinary entry.
var ErrDuplicateSentinel = errors.New("blank-credential sentinel already inserted")

// Index maps normalized credential hashes to their source.
type Index struct {
	entries  map[string]string
	sentinel string
	hasBlank bool
}

// New returns an empty Index.
func New() *Index {
	return &Index{entries: make(map[string]string)}
}

// Normalize returns the canonical form of a hash value.
func Normalize(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}

// InsertSentinel inserts the blank-credential hash with an empty source.
// It must be called once, before any wordlist is loaded.
func (idx *Index) InsertSentinel(blankHash string) error {
	key := Normalize(blankHash)
	if idx.hasBlank {
		return ErrDuplicateSentinel
	}
	if _, ok := idx.entries[key]; ok {
		return ErrDuplicateSentinel
	}
	idx.entries[key] = ""
	idx.sentinel = key
	idx.hasBlank = true
	return nil
}

// TryInsert inserts hash with source when it is not already present.
// It returns false when the hash was already present (a duplicate).
func (idx *Index) TryInsert(hash, source string) bool {
	key := Normalize(hash)
	if _, ok := idx.entries[key]; ok {
		return false
	}
	idx.entries[key] = source
	return true
}

// Lookup returns the source recorded for hash.
func (idx *Index) Lookup(hash string) (string, bool) {
	source, ok := idx.entries[Normalize(hash)]
	return source, ok
}

// IsSentinel reports whether hash is the blank-credential sentinel.
func (idx *Index) IsSentinel(hash string) bool {
	return idx.hasBlank && Normalize(hash) == idx.sentinel
}

// Len returns the number of distinct entries, sentinel included.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// WordlistEntries returns the number of distinct entries loaded from
// wordlists, which excludes the sentinel.
func (idx *Index) WordlistEntries() int {
	if idx.hasBlank {
		return len(idx.entries) - 1
	}
	return len(idx.entries)
}

// Fingerprint returns a digest of the set of hashes in the index.
// Two indexes holding the same hashes have the same fingerprint regardless
// of insertion order or sources.
func (idx *Index) Fingerprint() string {
	keys := make([]string, 0, len(idx.entries))
	for h := range idx.entries {
		keys = append(keys, h)
	}
	slices.Sort(keys)

	d := xxhash.New()
	for _, k := range keys {
		_, _ = d.WriteString(k) //nolint:errcheck // xxhash.Digest never fails
		_, _ = d.WriteString("\n")
	}
	return strconv.FormatUint(d.Sum64(), 16)
}
