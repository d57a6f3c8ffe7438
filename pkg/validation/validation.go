package validation

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// EmailRegex validates email format
	EmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// ChannelRegex matches live channel names such as "sarahs-kitchen-live".
	ChannelRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

const (
	MaxDisplayNameLength = 50
	MaxStreamTitleLength = 100
	MaxDescriptionLength = 500
	MaxChannelLength     = 100
)

// ValidateEmail validates email address
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > 254 {
		return fmt.Errorf("email is too long (max 254 characters)")
	}
	if !EmailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidatePassword validates password
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	if len(password) > 72 {
		return fmt.Errorf("password is too long (max 72 characters)")
	}
	return nil
}

// ValidateDisplayName accepts an empty name; the email stands in for it.
func ValidateDisplayName(name string) error {
	return ValidateStringLength(strings.TrimSpace(name), 0, MaxDisplayNameLength, "display name")
}

// ValidateChannel validates a live channel name or participant uid.
func ValidateChannel(channel string) error {
	if channel == "" {
		return fmt.Errorf("channel is required")
	}
	if len(channel) > MaxChannelLength {
		return fmt.Errorf("channel is too long (max %d characters)", MaxChannelLength)
	}
	if !ChannelRegex.MatchString(channel) {
		return fmt.Errorf("invalid channel format")
	}
	return nil
}

// ValidateStreamTitle checks length only; an empty title is reported by the
// stream service with its own error.
func ValidateStreamTitle(title string) error {
	if !utf8.ValidString(title) {
		return fmt.Errorf("stream title contains invalid characters")
	}
	return ValidateStringLength(strings.TrimSpace(title), 0, MaxStreamTitleLength, "stream title")
}

func ValidateDescription(description string) error {
	return ValidateStringLength(description, 0, MaxDescriptionLength, "description")
}

// ValidateURL validates URL format
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid URL scheme (must be http, https, ws, or wss)")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// ValidateCoordinates checks a WGS84 latitude/longitude pair.
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength validates string length
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
