// Package token generates share tokens.
package token

import (
	"crypto/rand"
	"math/big"
)

// Length is the number of characters in a share token.
const Length = 15

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generator produces share tokens from a CSPRNG.
type Generator struct{}

// NewGenerator creates a token generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate returns a fresh alphanumeric token. Entropy failure is not
// recoverable at this layer, so it panics like crypto/rand readers do.
func (g *Generator) Generate() string {
	buf := make([]byte, Length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("token: entropy source failed: " + err.Error())
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf)
}
