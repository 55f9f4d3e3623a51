// Package hashindex provides the deduplicated, case-insensitive mapping from
// weak credential hash to the cleartext (or label) that produced it.
//
// Hash values are canonicalized to lowercase on both insert and lookup, so
// hex encodings that differ only in letter case address the same entry.
// The first insertion of a hash wins; later insertions are reported as
// duplicates and leave the stored source untouched.
//
// An Index is built once and then only read. Lookups are safe for concurrent
// use once building has finished; building itself is not synchronized.
package hashindex
