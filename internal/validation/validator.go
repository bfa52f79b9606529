package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/e-kose/FT-PINPON-sub002/internal/apperr"
)

// Common validation errors
var (
	ErrInvalidUUID     = apperr.New(apperr.InvalidArgument, "invalid UUID format")
	ErrInvalidUserID   = apperr.New(apperr.InvalidArgument, "invalid user id")
	ErrInvalidUsername = apperr.New(apperr.InvalidArgument, "invalid username format")
	ErrInvalidEmail    = apperr.New(apperr.InvalidArgument, "invalid email format")
	ErrInvalidRange    = apperr.New(apperr.InvalidArgument, "value out of valid range")
	ErrStringTooLong   = apperr.New(apperr.InvalidArgument, "string exceeds maximum length")
	ErrStringTooShort  = apperr.New(apperr.InvalidArgument, "string below minimum length")
)

// MaxScore bounds a reported match score.
const MaxScore = 1000

// MaxDisplayNameLength is the widest username the database columns hold.
const MaxDisplayNameLength = 64

// Regex patterns for validation
var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)
	userIDRegex   = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,64}$`)
	uuidRegex     = regexp.MustCompile(`^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}$`)
)

// ValidateUUID validates UUID format
func ValidateUUID(uuid string) error {
	if !uuidRegex.MatchString(uuid) {
		return ErrInvalidUUID
	}
	return nil
}

// ValidateUserID accepts the opaque ids issued by the auth service: numeric
// ids, UUIDs and slugs.
func ValidateUserID(id string) error {
	if !userIDRegex.MatchString(id) {
		return ErrInvalidUserID
	}
	return nil
}

// ValidateUsername validates username format
func ValidateUsername(username string) error {
	if len(username) < 3 {
		return fmt.Errorf("%w: username must be >= 3 characters", ErrStringTooShort)
	}
	if len(username) > 20 {
		return fmt.Errorf("%w: username must be <= 20 characters", ErrStringTooLong)
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("%w: username can only contain letters, numbers, underscore, and hyphen", ErrInvalidUsername)
	}
	return nil
}

// ValidateEmail validates email format. An empty email is allowed; not every
// identity provider shares one.
func ValidateEmail(email string) error {
	if email == "" {
		return nil
	}
	if len(email) > 100 {
		return fmt.Errorf("%w: email must be <= 100 characters", ErrStringTooLong)
	}
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateIntRange validates integer is within range
func ValidateIntRange(value, min, max int, fieldName string) error {
	if value < min || value > max {
		return fmt.Errorf("%w: %s must be between %d and %d", ErrInvalidRange, fieldName, min, max)
	}
	return nil
}

// ValidateScores checks a reported pair of scores.
func ValidateScores(player1Score, player2Score int) error {
	if err := ValidateIntRange(player1Score, 0, MaxScore, "player1_score"); err != nil {
		return err
	}
	return ValidateIntRange(player2Score, 0, MaxScore, "player2_score")
}

// ValidateStringLength validates string length
func ValidateStringLength(value string, minLen, maxLen int, fieldName string) error {
	if len(value) < minLen {
		return fmt.Errorf("%w: %s must be at least %d characters", ErrStringTooShort, fieldName, minLen)
	}
	if len(value) > maxLen {
		return fmt.Errorf("%w: %s must be at most %d characters", ErrStringTooLong, fieldName, maxLen)
	}
	return nil
}

// SanitizeString removes null bytes and surrounding whitespace.
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}
