package utils

import (
	"crypto/rand"
	"math/big"
)

const (
	orderNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	orderNumberLength   = 10
)

// GenerateOrderNumber returns a random 10-character uppercase-alphanumeric
// order number. The column is unique; callers retry on a collision.
func GenerateOrderNumber() (string, error) {
	buf := make([]byte, orderNumberLength)
	max := big.NewInt(int64(len(orderNumberAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = orderNumberAlphabet[n.Int64()]
	}
	return string(buf), nil
}
