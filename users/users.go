package users

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is a registered account. The password is stored as a bcrypt hash;
// the plaintext never touches durable storage and the hash is never
// returned by any endpoint.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // never serialize
	DisplayName  string    `json:"display_name,omitempty"`
	Email        string    `json:"email,omitempty"`
	DateJoined   time.Time `json:"date_joined,omitempty"`
}

// HashPassword hashes a plaintext password with bcrypt. The salt and cost
// factor are embedded in the output, so verification only needs the hash.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash verifies a plaintext password against a stored hash.
// bcrypt is deliberately slow; callers should treat this as a blocking,
// bounded-latency operation.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
