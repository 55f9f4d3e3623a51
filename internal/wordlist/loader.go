package wordlist

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/nao1215/credaudit/internal/hashindex"
	"github.com/nao1215/credaudit/internal/model"
)

// maxLineSize bounds a single wordlist line.
const maxLineSize = 1024 * 1024

// HashFunc computes the credential hash of a cleartext.
type HashFunc func(cleartext string) string

// Source names one wordlist.
type Source struct {
	// Path is a file path or doublestar glob.
	Path string

	// HashList marks the source as precomputed hashes rather than cleartexts.
	HashList bool
}

// Totals aggregates the statistics of every loaded source.
type Totals struct {
	Sources []model.SourceStats

	EntriesAdded      int
	DuplicatesSkipped int
	EmptyLinesSkipped int
	Malformed         int
	SourcesFailed     int
}

// Apply copies the wordlist totals into c.
func (t Totals) Apply(c *model.Counters) {
	c.WordlistEntries = t.EntriesAdded
	c.WordlistDuplicates = t.DuplicatesSkipped
	c.EmptyLinesSkipped = t.EmptyLinesSkipped
	c.SourcesFailed = t.SourcesFailed
}

func (t *Totals) add(s model.SourceStats) {
	t.Sources = append(t.Sources, s)
	t.EntriesAdded += s.EntriesAdded
	t.DuplicatesSkipped += s.DuplicatesSkipped
	t.EmptyLinesSkipped += s.EmptyLinesSkipped
	t.Malformed += s.Malformed
	if s.Error != "" {
		t.SourcesFailed++
	}
}

// Loader reads wordlist sources into a hashindex.Index.
type Loader struct {
	hashFn   HashFunc
	validate func(string) bool
	logger   *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets a custom logger for the loader.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithHashValidator sets the check applied to lines of hash lists.
// Lines failing it are counted as malformed and skipped.
func WithHashValidator(validate func(string) bool) Option {
	return func(l *Loader) {
		l.validate = validate
	}
}

// NewLoader creates a Loader hashing cleartexts with hashFn.
func NewLoader(hashFn HashFunc, opts ...Option) *Loader {
	l := &Loader{
		hashFn:   hashFn,
		validate: func(s string) bool { return s != "" },
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.logger == nil {
		l.logger = slog.Default()
	}

	return l
}

// LoadAll loads every source into idx.
//
// Failures of individual sources are logged, recorded in the returned
// Totals and otherwise ignored. LoadAll returns ErrNoWeakEntries when idx
// ends up holding nothing besides the sentinel, and ctx.Err() when
// cancelled between sources.
func (l *Loader) LoadAll(ctx context.Context, sources []Source, idx *hashindex.Index) (Totals, error) {
	var totals Totals

	for _, src := range Expand(sources) {
		select {
		case <-ctx.Done():
			return totals, ctx.Err()
		default:
		}

		stats, err := l.LoadFile(src, idx)
		if err != nil {
			l.logger.Warn("skipping wordlist source",
				"source", src.Path,
				"error", err,
			)
			stats.Error = err.Error()
		} else {
			l.logger.Info("wordlist loaded",
				"source", src.Path,
				"lines", stats.LinesSeen,
				"added", stats.EntriesAdded,
				"duplicates", stats.DuplicatesSkipped,
				"empty", stats.EmptyLinesSkipped,
			)
		}
		totals.add(stats)
	}

	if idx.WordlistEntries() == 0 {
		return totals, ErrNoWeakEntries
	}
	return totals, nil
}

// LoadFile loads a single file source into idx.
// A missing or unreadable file yields an error wrapping ErrSourceUnavailable.
func (l *Loader) LoadFile(src Source, idx *hashindex.Index) (model.SourceStats, error) {
	stats := model.SourceStats{Name: src.Path, HashList: src.HashList}

	f, err := os.Open(src.Path) //nolint:gosec // wordlist paths are supplied by the operator
	if err != nil {
		return stats, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, src.Path, err)
	}
	defer f.Close()

	return l.Load(src.Path, f, src.HashList, idx)
}

// Load reads lines from r into idx. name labels the source in statistics
// and, for hash lists, in the entries' source.
func (l *Loader) Load(name string, r io.Reader, hashList bool, idx *hashindex.Index) (model.SourceStats, error) {
	stats := model.SourceStats{Name: name, HashList: hashList}
	label := model.HashListLabelPrefix + filepath.Base(name)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	first := true
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		stats.LinesSeen++

		if strings.TrimSpace(line) == "" {
			stats.EmptyLinesSkipped++
			continue
		}

		var hash, source string
		if hashList {
			hash = hashindex.Normalize(hashField(line))
			if !l.validate(hash) {
				stats.Malformed++
				continue
			}
			source = label
		} else {
			hash = l.hashFn(line)
			source = line
		}

		if idx.TryInsert(hash, source) {
			stats.EntriesAdded++
		} else {
			stats.DuplicatesSkipped++
		}
	}

	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, name, err)
	}
	return stats, nil
}

// hashField extracts the hash from a hash list line ("HASH" or "HASH:count").
func hashField(line string) string {
	if i := strings.IndexByte(line, ':'); i >= 0 {
		return line[:i]
	}
	return line
}

// Expand resolves glob patterns into one Source per matching file.
// Non-glob paths are returned unchanged. A glob that matches nothing, or is
// invalid, is returned unchanged too, so that loading it reports it as
// unavailable.
func Expand(sources []Source) []Source {
	out := make([]Source, 0, len(sources))
	for _, src := range sources {
		if !isGlob(src.Path) {
			out = append(out, src)
			continue
		}

		matches, err := doublestar.FilepathGlob(src.Path, doublestar.WithFilesOnly())
		if err != nil || len(matches) == 0 {
			out = append(out, src)
			continue
		}
		for _, m := range matches {
			out = append(out, Source{Path: m, HashList: src.HashList})
		}
	}
	return out
}

func isGlob(path string) bool {
	return strings.ContainsAny(path, "*?[{")
}
