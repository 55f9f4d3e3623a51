// Package directory supplies account records from credential dump files.
//
// Accounts are read from the text format produced by common directory
// replication tools:
//
//	[DOMAIN\]name:rid:lmhash:nthash:::[ (status=Enabled|Disabled)]
//
// and from the short form "name:nthash". An empty NT hash field means the
// account has no credential hash attribute.
//
// Only enabled user accounts reach the scan stream: machine accounts (names
// ending in "$"), password history rows ("name_history<N>") and disabled
// accounts are filtered out, as are identifiers matching configured exclude
// patterns. Every parsed account, disabled ones included, stays resolvable
// through LookupAccount so that the linked-identity check can see it.
package directory
