// Package compliance classifies accounts against an index of weak
// credential hashes.
//
// Each account is classified independently as compliant, weak, null
// credential (no hash attribute at all) or malformed. Weak accounts are
// optionally refined to WeakWithLinkedDuplicate when a linked identity,
// found by appending a naming suffix to the identifier, is active and
// stores the same credential hash.
//
// The linked-identity check is strictly secondary: lookup failures,
// timeouts and missing accounts are treated as "no linked duplicate" and
// never fail the scan or the dominant weak classification.
//
// The index is only read, so the scan may run with several workers. Output
// order always matches input order, and counters are derived from the
// ordered results, so repeated scans of the same input are identical.
package compliance
