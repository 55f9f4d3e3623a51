// Package ntlm computes NT credential hashes, the format Active Directory
// stores for user passwords.
//
// An NT hash is MD4 over the UTF-16LE encoding of the password, rendered
// here as 32 lowercase hex characters.
package ntlm
