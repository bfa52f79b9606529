package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/e-kose/FT-PINPON-sub002/internal/apperr"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"Valid username", "user123", false},
		{"Valid with underscore", "user_name", false},
		{"Valid with hyphen", "user-name", false},
		{"Minimum length", "abc", false},
		{"Maximum length", "a12345678901234567890", true}, // 21 chars
		{"Too short", "ab", true},
		{"Empty", "", true},
		{"With spaces", "user name", true},
		{"With special chars", "user@name", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, apperr.Is(err, apperr.InvalidArgument))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUserID(t *testing.T) {
	for _, ok := range []string{"42", "u1", "7b0c5b0e-6f7a-4c1e-9d11-0d6f1f1b2a3c", "first.last"} {
		assert.NoError(t, ValidateUserID(ok), ok)
	}
	for _, bad := range []string{"", "a b", "<x>", strings.Repeat("a", 65)} {
		assert.ErrorIs(t, ValidateUserID(bad), ErrInvalidUserID, bad)
	}
}

func TestValidateUUID(t *testing.T) {
	assert.NoError(t, ValidateUUID("7b0c5b0e-6f7a-4c1e-9d11-0d6f1f1b2a3c"))
	assert.ErrorIs(t, ValidateUUID("not-a-uuid"), ErrInvalidUUID)
	assert.ErrorIs(t, ValidateUUID(""), ErrInvalidUUID)
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail(""))
	assert.NoError(t, ValidateEmail("user+tag@mail.example.com"))
	assert.ErrorIs(t, ValidateEmail("user@example"), ErrInvalidEmail)
	assert.ErrorIs(t, ValidateEmail(strings.Repeat("a", 100)+"@example.com"), ErrStringTooLong)
}

func TestValidateScores(t *testing.T) {
	assert.NoError(t, ValidateScores(0, 0))
	assert.NoError(t, ValidateScores(11, MaxScore))
	assert.ErrorIs(t, ValidateScores(-1, 3), ErrInvalidRange)
	assert.ErrorIs(t, ValidateScores(3, MaxScore+1), ErrInvalidRange)
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "abc", SanitizeString("  a\x00bc \n"))
}
