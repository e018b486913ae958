package security

import "golang.org/x/crypto/bcrypt"

// DefaultBcryptCost matches the historical cost used for all stored hashes.
const DefaultBcryptCost = 10

// HashPassword derives a salted one-way hash of the password. Cost outside
// bcrypt's valid range falls back to the default.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword reports whether the password matches the stored hash. A
// malformed or truncated hash is treated as a mismatch, never an error.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
