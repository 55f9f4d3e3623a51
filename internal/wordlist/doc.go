// Package wordlist loads lists of known-weak passwords into a hash index.
//
// Two kinds of sources are supported:
//   - Cleartext wordlists: one password per line. Each non-blank line is
//     hashed with the configured hash function and inserted with the line
//     itself as its source.
//   - Hash lists: one precomputed hash per line, optionally followed by
//     ":count" (the layout of breach corpus exports). Lines are inserted as
//     they are, labelled with the list name.
//
// Blank and whitespace-only lines are skipped and counted, never inserted.
// A source that cannot be opened or read is reported and skipped; loading
// continues with the remaining sources. Paths may be doublestar globs, and
// every match is loaded as its own source.
package wordlist
