package usecase

import "crypto/subtle"

// SecretVerifier compares the caller-supplied secret with the configured
// one. An unset reference never matches.
type SecretVerifier struct {
	expected string
}

func NewSecretVerifier(expected string) SecretVerifier {
	return SecretVerifier{expected: expected}
}

func (v SecretVerifier) Verify(provided string) bool {
	if provided == "" || v.expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(v.expected)) == 1
}
