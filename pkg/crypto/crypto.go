package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// referralAlphabet omits characters that are easy to confuse when a code is read aloud.
const referralAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// HashPassword returns a bcrypt hash of the supplied password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares the hashed password with the plaintext candidate.
func VerifyPassword(hashedPassword, password string) bool {
	if hashedPassword == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// GenerateToken returns a random URL-safe token of the requested byte length.
func GenerateToken(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("crypto: token length must be positive")
	}
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// GenerateReferralCode returns an upper-case code of the requested length.
func GenerateReferralCode(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("crypto: referral code length must be positive")
	}
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(length)
	for _, v := range buffer {
		b.WriteByte(referralAlphabet[int(v)%len(referralAlphabet)])
	}
	return b.String(), nil
}
