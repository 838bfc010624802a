package authkit

import (
	"encoding/base64"
	"fmt"
	"unicode/utf8"
)

// EncodeToken converts an opaque token string into a URL-safe transport form
// so it can be embedded in a confirmation or reset link verbatim.
func EncodeToken(token string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(token))
}

// DecodeToken reverses EncodeToken exactly. It rejects any input that is not
// valid unpadded URL-safe base64 or does not decode to valid UTF-8.
func DecodeToken(encoded string) (string, error) {
	decoded, decodeErr := base64.RawURLEncoding.DecodeString(encoded)
	if decodeErr != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenDecode, decodeErr)
	}
	if !utf8.Valid(decoded) {
		return "", fmt.Errorf("%w: decoded bytes are not valid UTF-8", ErrTokenDecode)
	}
	return string(decoded), nil
}
