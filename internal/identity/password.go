package identity

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argonParams tune the argon2id key derivation.
type argonParams struct {
	memoryKiB   uint32
	iterations  uint32
	parallelism uint8
	keyLength   uint32
}

var defaultArgonParams = argonParams{
	memoryKiB:   64 * 1024,
	iterations:  3,
	parallelism: 1,
	keyLength:   32,
}

// hashPassword derives an argon2id hash and renders it as a PHC string:
// $argon2id$v=19$m=...,t=...,p=...$<saltB64>$<keyB64>
func hashPassword(parameters argonParams, plainPassword string) (string, error) {
	if plainPassword == "" {
		return "", fmt.Errorf("identity.password.hash: empty password")
	}
	salt := make([]byte, 16)
	if _, randomErr := rand.Read(salt); randomErr != nil {
		return "", fmt.Errorf("identity.password.hash: %w", randomErr)
	}
	derivedKey := argon2.IDKey([]byte(plainPassword), salt, parameters.iterations, parameters.memoryKiB, parameters.parallelism, parameters.keyLength)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		parameters.memoryKiB, parameters.iterations, parameters.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(derivedKey),
	), nil
}

// verifyPassword re-derives the key from the PHC string's own parameters and
// compares in constant time.
func verifyPassword(plainPassword string, phcString string) bool {
	segments := strings.Split(phcString, "$")
	// Leading separator yields an empty first segment.
	if len(segments) != 6 || segments[0] != "" || segments[1] != "argon2id" || segments[2] != "v=19" {
		return false
	}
	var memoryKiB, iterations, parallelism uint32
	parsed, parseErr := fmt.Sscanf(segments[3], "m=%d,t=%d,p=%d", &memoryKiB, &iterations, &parallelism)
	if parseErr != nil || parsed != 3 {
		return false
	}
	// argon2 takes parallelism as uint8; a claimed p outside that range
	// would silently truncate and verify against different parameters.
	if parallelism == 0 || parallelism > 255 {
		return false
	}
	salt, saltErr := base64.RawStdEncoding.DecodeString(segments[4])
	if saltErr != nil {
		return false
	}
	storedKey, keyErr := base64.RawStdEncoding.DecodeString(segments[5])
	if keyErr != nil {
		return false
	}
	derivedKey := argon2.IDKey([]byte(plainPassword), salt, iterations, memoryKiB, uint8(parallelism), uint32(len(storedKey)))
	return subtle.ConstantTimeCompare(derivedKey, storedKey) == 1
}
