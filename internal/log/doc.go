// Package log provides secure logging for credaudit, built on top of the
// standard slog package.
//
// The SecureHandler wraps any slog.Handler and masks attribute values that
// could reveal credentials before they reach the output:
//   - Attributes whose key names a credential (password, cleartext, nthash, hash, secret, ...)
//   - Values shaped like credential hashes or tokens (long hex/alphanumeric strings)
//   - Private key material
//
// Matched weak-password cleartexts are logged under the "cleartext" key and
// are therefore always masked. Whether a report shows them is decided by the
// report writers, never by logging.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//	logger.Debug("weak credential", "account", "alice", "cleartext", "abc123")
//	// cleartext=***REDACTED***
package log
