package random

import (
	"crypto/rand"
	"math/big"
)

// RefAlphabet is the character set used for message references
const RefAlphabet = "abcdefghijkmnopqrstuvwxyz23456789"

// RefLength is the length of the random part of a message reference
const RefLength = 12

// Random provides random number generation that can be mocked for testing
type Random interface {
	// Intn returns a random int in [0, n)
	Intn(n int) int

	// String generates a random string of the given length from the given alphabet
	String(length int, alphabet string) string
}

// Ref builds a prefixed reference such as "msg_k3v9..."
func Ref(r Random, prefix string) string {
	return prefix + "_" + r.String(RefLength, RefAlphabet)
}

// CryptoRandom implements Random using crypto/rand
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// Ensure CryptoRandom implements Random
var _ Random = (*CryptoRandom)(nil)

// Intn returns a cryptographically random int in [0, n)
func (r *CryptoRandom) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	result, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(result.Int64())
}

// String generates a random string of the given length from the given alphabet
func (r *CryptoRandom) String(length int, alphabet string) string {
	if length <= 0 || len(alphabet) == 0 {
		return ""
	}
	result := make([]byte, length)
	for i := range result {
		result[i] = alphabet[r.Intn(len(alphabet))]
	}
	return string(result)
}
