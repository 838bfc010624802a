package authkit

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestEncodeTokenRoundTrip(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"a",
		"ab",
		"abc",
		"abcd",
		"CfDJ8P+base64/chars=needing=transport",
		"плохой токен",
		"日本語のトークン",
		strings.Repeat("x", 512),
	}
	for _, input := range inputs {
		encoded := EncodeToken(input)
		decoded, decodeErr := DecodeToken(encoded)
		if decodeErr != nil {
			t.Fatalf("unexpected decode error for %q: %v", input, decodeErr)
		}
		if decoded != input {
			t.Fatalf("round trip mismatch: got %q, want %q", decoded, input)
		}
	}
}

func TestEncodeTokenIsURLSafe(t *testing.T) {
	t.Parallel()

	encoded := EncodeToken("token+with/unsafe=chars\xc3\xa9")
	for _, unsafe := range []string{"+", "/", "="} {
		if strings.Contains(encoded, unsafe) {
			t.Fatalf("encoded token %q contains unsafe character %q", encoded, unsafe)
		}
	}
}

func TestDecodeTokenRejectsInvalidBase64(t *testing.T) {
	t.Parallel()

	_, decodeErr := DecodeToken("not!valid@base64")
	if decodeErr == nil {
		t.Fatalf("expected error for invalid base64 input")
	}
	if !errors.Is(decodeErr, ErrTokenDecode) {
		t.Fatalf("expected ErrTokenDecode, got %v", decodeErr)
	}
}

func TestDecodeTokenRejectsImpossibleLength(t *testing.T) {
	t.Parallel()

	// A single base64 character can never decode to whole bytes.
	if _, decodeErr := DecodeToken("A"); decodeErr == nil {
		t.Fatalf("expected error for length-1 input")
	}
}

func TestDecodeTokenRejectsInvalidUTF8(t *testing.T) {
	t.Parallel()

	encoded := base64.RawURLEncoding.EncodeToString([]byte{0xff, 0xfe, 0xfd})
	_, decodeErr := DecodeToken(encoded)
	if decodeErr == nil {
		t.Fatalf("expected error for non-UTF-8 payload")
	}
	if !errors.Is(decodeErr, ErrTokenDecode) {
		t.Fatalf("expected ErrTokenDecode, got %v", decodeErr)
	}
}
