package password_test

import (
	"strings"
	"testing"

	"github.com/verdantis/verdantis/internal/password"
)

func TestHashRoundTrip(t *testing.T) {
	for _, pw := range []string{"hunter22", "correct horse battery staple", "päßwörd", ""} {
		encoded, err := password.Hash(pw)
		if err != nil {
			t.Fatalf("hash %q: %v", pw, err)
		}
		if !password.Verify(pw, encoded) {
			t.Fatalf("verify failed for %q", pw)
		}
	}
}

func TestVerifyWrongPassword(t *testing.T) {
	encoded, err := password.Hash("original")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if password.Verify("different", encoded) {
		t.Fatal("verify accepted wrong password")
	}
}

func TestHashProducesUniqueSalts(t *testing.T) {
	a, err := password.Hash("same input")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := password.Hash("same input")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same password share a salt")
	}
}

func TestVerifyMalformedStoredValue(t *testing.T) {
	encoded, err := password.Hash("whatever")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	keyHex, _, _ := strings.Cut(encoded, ".")

	cases := []string{
		"",
		"nodotseparator",
		keyHex,             // key without salt part
		keyHex + ".",       // empty salt
		"zz." + keyHex,     // non-hex key
		keyHex + ".zz",     // non-hex salt
		"abcd." + "ef0123", // key of wrong length
	}
	for _, stored := range cases {
		if password.Verify("whatever", stored) {
			t.Fatalf("verify accepted malformed stored value %q", stored)
		}
	}
}
