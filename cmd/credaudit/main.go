// Package main provides the entry point for the credaudit CLI.
//
// credaudit audits the credential hashes of a directory service account
// dump against lists of known-weak passwords. It reports accounts whose
// password is weak or blank, accounts with no credential at all, and
// privileged twin accounts that reuse the same weak credential.
//
// Usage:
//
//	credaudit scan -w rockyou.txt corp.ntds
//	credaudit scan --hash-list breach.txt --export weak.csv corp.ntds
//	credaudit history corp.ntds --diff
//
// See --help for all available options.
package main

// main is the entry point for credaudit.
func main() {
	Execute()
}
