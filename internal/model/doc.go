// Package model defines the core data structures shared across credaudit.
//
// This package contains the following main types:
//   - HashEntry: A weak credential hash and the cleartext (or label) that produced it
//   - AccountRecord: An account identifier and its stored credential hash, if any
//   - Result: The classification of one account
//   - Counters: Running totals used for reporting
//   - AuditReport: Everything produced by auditing one target
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The compliance, directory, pipeline, report and database
// packages all exchange these types, so centralizing them prevents import cycles.
package model
