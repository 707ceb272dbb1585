package validator

import (
	"net/mail"
	"regexp"
	"strings"
)

var imageURLRegex = regexp.MustCompile(`^https?://.+$`)

const (
	MinTitleLength   = 3
	MinContentLength = 10
)

// ValidationError represents a single field violation
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var msgs []string
	for _, e := range v {
		msgs = append(msgs, e.Field+": "+e.Message)
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any errors
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// Add adds a validation error
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, ValidationError{Field: field, Message: message})
}

// ValidateImageURL checks that a URL is an http(s) URL
func ValidateImageURL(url string) bool {
	return imageURLRegex.MatchString(url)
}

// ValidateLatitude checks that a latitude is within range
func ValidateLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

// ValidateLongitude checks that a longitude is within range
func ValidateLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}

// ValidateEmail validates an email address
func ValidateEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

// ValidateName validates a user display name
func ValidateName(name string) bool {
	name = strings.TrimSpace(name)
	return len(name) >= 2 && len(name) <= 100
}

// SanitizeString trims whitespace and limits length
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}

// SanitizeEmail normalizes an email address
func SanitizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
