package wordlist

import "errors"

var (
	// ErrSourceUnavailable is returned when a wordlist source is missing or unreadable.
	// It is recovered locally by LoadAll, which records it and moves on.
	ErrSourceUnavailable = errors.New("wordlist source unavailable")

	// ErrNoWeakEntries is returned when, after loading every source, the index
	// holds nothing but the blank-credential sentinel. Auditing against such an
	// index would be meaningless, so callers must treat it as fatal.
	ErrNoWeakEntries = errors.New("no weak password entries loaded")
)
