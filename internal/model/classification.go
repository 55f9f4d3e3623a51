package model

import (
	"errors"
	"fmt"
	"strings"
)

// HashListLabelPrefix prefixes the Source of matches that came from a
// precomputed hash list. Such labels name a file, not a cleartext.
const HashListLabelPrefix = "hashlist:"

// ErrMalformedHash is recorded on a Result whose hash does not parse as the
// expected credential hash format.
var ErrMalformedHash = errors.New("malformed credential hash")

// Classification is the outcome of auditing one account.
type Classification int

const (
	// ClassCompliant means the account hash matched no weak entry.
	ClassCompliant Classification = iota

	// ClassWeak means the account hash matched a weak entry (or the blank sentinel).
	ClassWeak

	// ClassNullCredential means the account has no credential hash attribute.
	ClassNullCredential

	// ClassWeakWithLinkedDuplicate refines ClassWeak: the linked identity
	// shares the same weak credential.
	ClassWeakWithLinkedDuplicate

	// ClassMalformed means the stored hash could not be parsed.
	ClassMalformed
)

// String returns the stable name used in reports and the database.
func (c Classification) String() string {
	switch c {
	case ClassCompliant:
		return "compliant"
	case ClassWeak:
		return "weak"
	case ClassNullCredential:
		return "null_credential"
	case ClassWeakWithLinkedDuplicate:
		return "weak_linked_duplicate"
	case ClassMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// ParseClassification is the inverse of Classification.String.
func ParseClassification(s string) (Classification, error) {
	for c := ClassCompliant; c <= ClassMalformed; c++ {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown classification %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Classification) UnmarshalText(text []byte) error {
	parsed, err := ParseClassification(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// IsWeak reports whether c is ClassWeak or its linked-duplicate refinement.
func (c Classification) IsWeak() bool {
	return c == ClassWeak || c == ClassWeakWithLinkedDuplicate
}

// Result is the classification of a single account.
//
// Source holds the matched cleartext for weak accounts. It is privacy
// sensitive: writers decide whether to render it, and Redact clears it
// before anything is persisted.
type Result struct {
	Identifier     string         `json:"identifier"`
	Classification Classification `json:"classification"`

	// Source is the matched weak cleartext or label. Empty for the blank
	// credential, which is reported through Blank instead.
	Source string `json:"source,omitempty"`

	// Blank is true when the match was the blank-credential sentinel.
	Blank bool `json:"blank,omitempty"`

	// LinkedIdentifier names the linked identity sharing the weak credential.
	LinkedIdentifier string `json:"linked_identifier,omitempty"`

	// Err is set for ClassMalformed results.
	Err error `json:"-"`
}

// Redact returns a copy of r without the matched cleartext.
// Hash list labels are kept.
func (r Result) Redact() Result {
	if !strings.HasPrefix(r.Source, HashListLabelPrefix) {
		r.Source = ""
	}
	return r
}
