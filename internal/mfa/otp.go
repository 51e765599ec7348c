package mfa

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"math/big"
)

const otpDigits = 6

var ten = big.NewInt(10)

// GenerateOTP returns a 6-digit numeric OTP string (e.g. "048213"). Each digit is drawn
// independently and uniformly from crypto/rand; leading zeros are kept.
func GenerateOTP() (string, error) {
	s := make([]byte, otpDigits)
	for i := range s {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		s[i] = '0' + byte(n.Int64())
	}
	return string(s), nil
}

// HashOTP returns a SHA-256 hash of the OTP string, hex-encoded.
func HashOTP(otp string) string {
	h := sha256.Sum256([]byte(otp))
	return hex.EncodeToString(h[:])
}

// OTPEqual performs constant-time comparison of the provided OTP's hash with the stored hash.
func OTPEqual(providedOTP, storedHash string) bool {
	return HashEqual(HashOTP(providedOTP), storedHash)
}

// HashEqual compares two hex digests in constant time.
func HashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
