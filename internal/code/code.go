package code

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

const charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Length of generated short codes.
const Length = 6

var (
	maxIdx   = big.NewInt(int64(len(charset)))
	customRe = regexp.MustCompile(`^[0-9A-Za-z_-]{3,64}$`)
)

// Generate returns a random Base62 short code.
func Generate() (string, error) {
	b := make([]byte, Length)
	for i := range b {
		n, err := rand.Int(rand.Reader, maxIdx)
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}
	return string(b), nil
}

// ValidateCustom checks a caller-supplied short code. Custom codes may be
// longer than generated ones but stay URL-path safe.
func ValidateCustom(c string) error {
	if !customRe.MatchString(c) {
		return fmt.Errorf("code must be 3-64 characters of [0-9A-Za-z_-]")
	}
	return nil
}
