package model

import "context"

// HashEntry is a single weak credential hash together with its origin.
type HashEntry struct {
	// Hash is the normalized (lowercase) hex representation of the credential hash.
	Hash string `json:"hash"`

	// Source is the cleartext or label that produced Hash.
	// The blank-credential sentinel has an empty Source.
	Source string `json:"source"`
}

// AccountRecord is one account as supplied by a directory.
type AccountRecord struct {
	// Identifier is the account name (for example "CORP\alice").
	Identifier string `json:"identifier"`

	// Hash is the stored credential hash in hex form.
	// It is empty when the account carries no credential hash attribute at all.
	// An explicitly blank credential is NOT empty here: it is the well-known
	// hash of the empty string.
	Hash string `json:"-"`

	// Enabled reports whether the account is active.
	Enabled bool `json:"enabled"`
}

// HasHash reports whether the record carries a credential hash attribute.
func (a AccountRecord) HasHash() bool {
	return a.Hash != ""
}

// AccountLookup resolves a single account by identifier.
// It is used for the linked-identity check, so implementations may block
// on an external directory and must honour ctx.
//
// found is false when no account with that identifier exists.
type AccountLookup interface {
	LookupAccount(ctx context.Context, identifier string) (record AccountRecord, found bool, err error)
}

// AccountLookupFunc adapts an ordinary function to AccountLookup.
type AccountLookupFunc func(ctx context.Context, identifier string) (AccountRecord, bool, error)

// LookupAccount calls f(ctx, identifier).
func (f AccountLookupFunc) LookupAccount(ctx context.Context, identifier string) (AccountRecord, bool, error) {
	return f(ctx, identifier)
}
