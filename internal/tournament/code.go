package tournament

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	// CodeLength is the length of generated join codes
	CodeLength = 8
	// CodeChars excludes I, O, 0 and 1 to avoid confusion
	CodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// GenerateCode returns a random join code.
func GenerateCode() (string, error) {
	code := make([]byte, CodeLength)
	charsLen := big.NewInt(int64(len(CodeChars)))

	for i := 0; i < CodeLength; i++ {
		num, err := rand.Int(rand.Reader, charsLen)
		if err != nil {
			return "", err
		}
		code[i] = CodeChars[num.Int64()]
	}

	return string(code), nil
}

// ValidateCode checks the format of a join code, case-insensitively.
func ValidateCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}

	code = strings.ToUpper(code)
	for _, char := range code {
		if !strings.ContainsRune(CodeChars, char) {
			return false
		}
	}

	return true
}

// NormalizeCode trims and upper-cases a user supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
