package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateImageURL(t *testing.T) {
	tests := []struct {
		url   string
		valid bool
	}{
		{"https://example.com/a.jpg", true},
		{"http://example.com/a", true},
		{"https://x", true},
		{"ftp://example.com/a.jpg", false},
		{"example.com/a.jpg", false},
		{"https://", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidateImageURL(tt.url))
		})
	}
}

func TestValidateCoordinates(t *testing.T) {
	assert.True(t, ValidateLatitude(40.0))
	assert.True(t, ValidateLatitude(-90))
	assert.True(t, ValidateLatitude(90))
	assert.False(t, ValidateLatitude(90.1))
	assert.False(t, ValidateLatitude(-91))

	assert.True(t, ValidateLongitude(-75.0))
	assert.True(t, ValidateLongitude(180))
	assert.True(t, ValidateLongitude(-180))
	assert.False(t, ValidateLongitude(180.5))
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	assert.False(t, errs.HasErrors())
	assert.Equal(t, "", errs.Error())

	errs.Add("title", "must be at least 3 characters")
	errs.Add("images", "invalid image URL")

	assert.True(t, errs.HasErrors())
	assert.Equal(t, "title: must be at least 3 characters; images: invalid image URL", errs.Error())
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello  ", 100))
	assert.Equal(t, "he", SanitizeString("hello", 2))
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("alice@example.com"))
	assert.False(t, ValidateEmail("not-an-email"))
}
