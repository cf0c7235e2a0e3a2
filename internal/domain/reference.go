package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// NewReference generates a customer-facing transaction reference number.
func NewReference() (string, error) {
	digits := make([]byte, 12)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("NewReference: %w", err)
		}
		digits[i] = '0' + byte(n.Int64())
	}
	return "TXN" + string(digits), nil
}
