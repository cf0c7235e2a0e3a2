package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims identifies the authenticated account holder. The session layer
// issues these; the core only reads the account number out of them.
type Claims struct {
	AccountNumber string
	CustomerID    string
}

type tokenClaims struct {
	jwt.RegisteredClaims
	AccountNumber string `json:"account_number"`
	CustomerID    string `json:"customer_id"`
}

func GenerateToken(accountNumber, customerID, secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		AccountNumber: accountNumber,
		CustomerID:    customerID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("GenerateToken: %w", err)
	}
	return signed, nil
}

func ValidateToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("ValidateToken: %w", err)
	}

	tc, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("ValidateToken: invalid token claims")
	}
	if tc.AccountNumber == "" {
		return nil, fmt.Errorf("ValidateToken: missing account_number in token")
	}

	return &Claims{
		AccountNumber: tc.AccountNumber,
		CustomerID:    tc.CustomerID,
	}, nil
}
