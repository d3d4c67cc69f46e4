package common

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// MakeRandHexString generates a random hexadecimal string of the given size.
// The size parameter specifies the number of random bytes, so the resulting
// string is twice as long.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// MakeActivationCode returns a random upper-case code of 2*size hex
// characters suitable for handing out as a single-use activation key.
func MakeActivationCode(size int) (string, error) {
	s, err := MakeRandHexString(size)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(s), nil
}

// WipeBytes zeroes b in place. Used for secrets read from the terminal.
func WipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
