package directory

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/nao1215/credaudit/internal/model"
)

// ErrNotFound is returned by Open when the dump file does not exist.
var ErrNotFound = errors.New("account dump not found")

// maxLineSize bounds a single dump line. Longer lines are counted as
// unparseable and skipped.
const maxLineSize = 64 * 1024

var (
	// statusPattern matches the trailing account status annotation.
	statusPattern = regexp.MustCompile(`\s*\(status=(Enabled|Disabled)\)\s*$`)

	// historyPattern matches password history rows.
	historyPattern = regexp.MustCompile(`_history\d+$`)
)

// Stats describes what a parse saw.
type Stats = model.AccountSourceStats

// Directory holds the accounts parsed from one dump.
type Directory struct {
	// stream holds the records that reach the scanner, in file order.
	stream []model.AccountRecord

	// byName indexes every parsed account by lowercase identifier.
	byName map[string]model.AccountRecord

	stats Stats
}

// Option configures parsing.
type Option func(*parser)

type parser struct {
	exclude []string
	logger  *slog.Logger
}

// WithExclude drops identifiers matching any of the glob patterns from the
// scan stream. Matching is case-insensitive.
func WithExclude(patterns ...string) Option {
	return func(p *parser) {
		for _, pat := range patterns {
			p.exclude = append(p.exclude, strings.ToLower(pat))
		}
	}
}

// WithLogger sets a custom logger for parsing.
func WithLogger(logger *slog.Logger) Option {
	return func(p *parser) {
		p.logger = logger
	}
}

// Open parses the dump file at path.
func Open(path string, opts ...Option) (*Directory, error) {
	f, err := os.Open(path) //nolint:gosec // dump path is supplied by the operator
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open account dump: %w", err)
	}
	defer f.Close()

	return Parse(f, opts...)
}

// Parse reads a dump from r.
func Parse(r io.Reader, opts ...Option) (*Directory, error) {
	p := &parser{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}

	d := &Directory{
		stream: make([]model.AccountRecord, 0),
		byName: make(map[string]model.AccountRecord),
	}

	br := bufio.NewReader(r)
	for {
		raw, tooLong, err := readLine(br)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read account dump: %w", err)
		}
		if tooLong {
			d.stats.Lines++
			d.stats.Unparseable++
			p.logger.Debug("skipping overlong dump line", "line", d.stats.Lines)
			continue
		}

		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "[") {
			continue
		}
		d.stats.Lines++

		rec, ok := parseLine(line)
		if !ok {
			d.stats.Unparseable++
			p.logger.Debug("skipping unparseable dump line", "line", d.stats.Lines)
			continue
		}

		key := strings.ToLower(rec.Identifier)

		switch {
		case historyPattern.MatchString(key):
			d.stats.History++
			continue
		case strings.HasSuffix(key, "$"):
			d.stats.Machine++
			continue
		}

		if _, dup := d.byName[key]; dup {
			d.stats.DuplicateRecord++
			continue
		}
		d.byName[key] = rec
		d.stats.Accounts++

		switch {
		case !rec.Enabled:
			d.stats.Disabled++
		case p.excluded(key):
			d.stats.Excluded++
		default:
			d.stream = append(d.stream, rec)
		}
	}

	p.logger.Info("account dump parsed",
		"accounts", d.stats.Accounts,
		"in_scope", len(d.stream),
		"disabled", d.stats.Disabled,
		"machine", d.stats.Machine,
		"excluded", d.stats.Excluded,
		"unparseable", d.stats.Unparseable,
	)

	return d, nil
}

// readLine returns the next line of br without its line ending. A line
// longer than maxLineSize is consumed whole and reported as tooLong.
// It returns io.EOF once no data is left.
func readLine(br *bufio.Reader) (line string, tooLong bool, err error) {
	var sb strings.Builder
	for {
		chunk, isPrefix, readErr := br.ReadLine()
		if readErr != nil {
			if errors.Is(readErr, io.EOF) && (sb.Len() > 0 || tooLong) {
				return sb.String(), tooLong, nil
			}
			return "", false, readErr
		}
		if !tooLong {
			if sb.Len()+len(chunk) > maxLineSize {
				tooLong = true
				sb.Reset()
			} else {
				sb.Write(chunk)
			}
		}
		if !isPrefix {
			return sb.String(), tooLong, nil
		}
	}
}

func (p *parser) excluded(key string) bool {
	for _, pat := range p.exclude {
		if ok, _ := doublestar.Match(pat, key); ok {
			return true
		}
		// Also try the bare name so "svc_*" matches "CORP\svc_backup".
		if i := strings.LastIndexByte(key, '\\'); i >= 0 {
			if ok, _ := doublestar.Match(pat, key[i+1:]); ok {
				return true
			}
		}
	}
	return false
}

// parseLine parses a single dump line.
func parseLine(line string) (model.AccountRecord, bool) {
	enabled := true
	if m := statusPattern.FindStringSubmatch(line); m != nil {
		enabled = m[1] == "Enabled"
		line = line[:len(line)-len(m[0])]
	}

	fields := strings.Split(line, ":")
	var name, nt string

	switch {
	case len(fields) >= 4:
		// name:rid:lm:nt[:::]
		name, nt = fields[0], fields[3]
		if _, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 32); err != nil {
			return model.AccountRecord{}, false
		}
	case len(fields) == 2:
		name, nt = fields[0], fields[1]
	default:
		return model.AccountRecord{}, false
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return model.AccountRecord{}, false
	}

	return model.AccountRecord{
		Identifier: name,
		Hash:       strings.TrimSpace(nt),
		Enabled:    enabled,
	}, true
}

// Accounts returns the enabled, in-scope user accounts in file order.
func (d *Directory) Accounts() []model.AccountRecord {
	return append([]model.AccountRecord(nil), d.stream...)
}

// Stats returns parse statistics.
func (d *Directory) Stats() Stats {
	return d.stats
}

// LookupAccount resolves any parsed account by identifier, case-insensitively.
// Disabled accounts are returned with Enabled set to false.
func (d *Directory) LookupAccount(ctx context.Context, identifier string) (model.AccountRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.AccountRecord{}, false, err
	}
	rec, ok := d.byName[strings.ToLower(identifier)]
	return rec, ok, nil
}
