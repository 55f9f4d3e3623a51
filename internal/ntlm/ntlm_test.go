package ntlm

import (
	"strings"
	"testing"
)

// TestHash verifies known NT hash values.
func TestHash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cleartext string
		want      string
	}{
		{
			name:      "empty password is the blank sentinel",
			cleartext: "",
			want:      BlankHash,
		},
		{
			name:      "password",
			cleartext: "password",
			want:      "8846f7eaee8fb117ad06bdd830b7586c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Hash(tt.cleartext); got != tt.want {
				t.Errorf("Hash(%q) = %s, want %s", tt.cleartext, got, tt.want)
			}
		})
	}
}

// TestHashIsCaseSensitiveOnInput verifies that cleartext case matters.
func TestHashIsCaseSensitiveOnInput(t *testing.T) {
	t.Parallel()

	if Hash("Password") == Hash("password") {
		t.Error("expected different hashes for different cleartext case")
	}
}

// TestHashOutputFormat verifies that Hash always yields valid lowercase hex.
func TestHashOutputFormat(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "abc123", "Pässwört", "日本語", strings.Repeat("x", 300)} {
		h := Hash(s)
		if !Valid(h) {
			t.Errorf("Hash(%q) = %q is not a valid NT hash", s, h)
		}
		if h != strings.ToLower(h) {
			t.Errorf("Hash(%q) = %q is not lowercase", s, h)
		}
	}
}

// TestValid tests hash format validation.
func TestValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"lowercase hash", BlankHash, true},
		{"uppercase hash", strings.ToUpper(BlankHash), true},
		{"empty", "", false},
		{"too short", BlankHash[:31], false},
		{"too long", BlankHash + "0", false},
		{"non hex character", "z" + BlankHash[1:], false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Valid(tt.input); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
