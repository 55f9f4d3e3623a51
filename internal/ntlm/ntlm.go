package ntlm

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/md4" //nolint:staticcheck // NT hashes are defined over MD4
	"golang.org/x/text/encoding/unicode"
)

// BlankHash is the NT hash of the empty password.
const BlankHash = "31d6cfe0d16ae931b73c59d7e0c089c0"

// HashLength is the length of a hex-encoded NT hash.
const HashLength = 32

// utf16le encodes cleartexts the way Windows does before hashing.
var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Hash returns the hex NT hash of cleartext.
// Invalid UTF-8 sequences are replaced with U+FFFD before encoding.
func Hash(cleartext string) string {
	sum, err := Sum(cleartext)
	if err != nil {
		// The encoder replaces invalid input instead of failing, so this
		// only happens on an encoder bug.
		panic(err)
	}
	return hex.EncodeToString(sum)
}

// Sum returns the raw 16-byte NT hash of cleartext.
func Sum(cleartext string) ([]byte, error) {
	encoded, err := utf16le.NewEncoder().String(cleartext)
	if err != nil {
		return nil, fmt.Errorf("encode cleartext as UTF-16LE: %w", err)
	}
	h := md4.New()
	_, _ = h.Write([]byte(encoded)) //nolint:errcheck // hash.Hash.Write never fails
	return h.Sum(nil), nil
}

// Valid reports whether s is a well-formed hex NT hash.
// Letter case is not significant.
func Valid(s string) bool {
	if len(s) != HashLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isHexDigit(s[i]) {
			return false
		}
	}
	return true
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
