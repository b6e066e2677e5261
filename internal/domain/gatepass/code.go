package gatepass

import (
	"crypto/rand"
	"io"
	"math/big"
	"strings"
)

const (
	CodeLength   = 6
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// CodeGenerator yields candidate pass ids.
type CodeGenerator func() (string, error)

// RandomCode draws CodeLength symbols uniformly from CodeAlphabet.
// 36^6 (about 2.2e9) values: fine for a short-lived code typed at a gate, not a secret.
func RandomCode() (string, error) {
	return randomCodeFrom(rand.Reader)
}

func randomCodeFrom(r io.Reader) (string, error) {
	max := big.NewInt(int64(len(CodeAlphabet)))

	var b strings.Builder
	b.Grow(CodeLength)

	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(r, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(CodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// IsWellFormedCode checks length and alphabet only.
func IsWellFormedCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(CodeAlphabet, rune(code[i])) {
			return false
		}
	}
	return true
}
