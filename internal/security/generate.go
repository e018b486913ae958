package security

import (
	"crypto/rand"
	"math/big"
)

const (
	charsLower    = "qwertyuiopasdfghjklzxcvbnm"
	charsUpper    = "QWERTYUIOPASDFGHJKLZXCVBNM"
	charsDigits   = "1234567890"
	charsSpecials = "!@#$%^&*()_+-={}[];<>:"
)

// DefaultPasswordLength is used for synthesized placeholder passwords.
const DefaultPasswordLength = 18

// GeneratePassword draws length characters from the selected dictionaries.
// Returns "" when the dictionary is empty or length is not positive.
func GeneratePassword(length int, lower, upper, digits, specials bool) string {
	var dictionary string
	if lower {
		dictionary += charsLower
	}
	if upper {
		dictionary += charsUpper
	}
	if digits {
		dictionary += charsDigits
	}
	if specials {
		dictionary += charsSpecials
	}
	if length < 1 || dictionary == "" {
		return ""
	}

	max := big.NewInt(int64(len(dictionary)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return ""
		}
		out[i] = dictionary[n.Int64()]
	}
	return string(out)
}

// GenerateDefaultPassword builds a full-dictionary password of the default
// length, used as the never-communicated placeholder for social accounts.
func GenerateDefaultPassword() string {
	return GeneratePassword(DefaultPasswordLength, true, true, true, true)
}
