package tokens

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	// verificationTokenBytes yields a 64-character hex token (256 bits).
	verificationTokenBytes = 32
	// resetCodeLength is short enough to read out of an email and retype.
	resetCodeLength = 6
)

var resetCodeCharset = []rune("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789")

// Generator mints the two secret formats used in email flows. Both draw from
// crypto/rand; the formats are deliberately distinct and not interchangeable.
type Generator struct{}

// NewGenerator returns the production token source.
func NewGenerator() *Generator {
	return &Generator{}
}

// VerificationToken returns a high-entropy hex token for email-link verification.
func (g *Generator) VerificationToken() (string, error) {
	buf := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating verification token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ResetCode returns a short mixed-alphanumeric code for manually-entered
// password resets.
func (g *Generator) ResetCode() (string, error) {
	result := make([]rune, resetCodeLength)
	max := big.NewInt(int64(len(resetCodeCharset)))
	for i := range result {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating reset code: %w", err)
		}
		result[i] = resetCodeCharset[idx.Int64()]
	}
	return string(result), nil
}
