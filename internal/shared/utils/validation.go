package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

// Size limits (in bytes)
const (
	MaxProjectSize = 1 * 1024 * 1024 // combined markup, style and script
	MaxLibraryURL  = 2048
)

// String length limits
const (
	MaxProjectNameLength = 100
	MaxTagLength         = 32
	MaxTagCount          = 20
	MaxQueryLength       = 200
)

// DefaultProjectName is used for hosted projects created without a name.
const DefaultProjectName = "Untitled Project"

var (
	// HostedIDPattern matches permalink ids.
	HostedIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]{12}$`)
	// TagPattern allows alphanumerics, hyphens, underscores and dots
	TagPattern = regexp.MustCompile(`^[\p{L}\p{N}._-]+$`)
)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && strings.TrimSpace(value) == "" {
		return types.NewValidationError(fieldName, "is required")
	}

	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return types.NewValidationError(fieldName, fmt.Sprintf("must be at least %d characters", minLen))
	}
	if length > maxLen {
		return types.NewValidationError(fieldName, fmt.Sprintf("must not exceed %d characters", maxLen))
	}

	if strings.Contains(value, "\x00") {
		return types.NewValidationError(fieldName, "contains invalid characters")
	}

	return nil
}

// ValidateProjectName validates a local or hosted project name
func ValidateProjectName(name string) error {
	return ValidateString(name, "projectName", 1, MaxProjectNameLength, true)
}

// ValidateBuffers rejects empty projects and projects over MaxProjectSize.
func ValidateBuffers(b types.BufferSet) error {
	if b.IsEmpty() {
		return types.NewValidationError("", "at least one of html, css or js must be provided")
	}
	if b.Size() > MaxProjectSize {
		return types.NewValidationError("", fmt.Sprintf("project exceeds maximum size of %d bytes", MaxProjectSize))
	}
	return ValidateString(b.Library, "library", 0, MaxLibraryURL, false)
}

// ValidateTags validates an array of tags
func ValidateTags(tags []string) error {
	if len(tags) > MaxTagCount {
		return types.NewValidationError("tags", fmt.Sprintf("too many tags (maximum %d)", MaxTagCount))
	}

	for i, tag := range tags {
		field := fmt.Sprintf("tags[%d]", i)
		if err := ValidateString(tag, field, 1, MaxTagLength, true); err != nil {
			return err
		}
		if !TagPattern.MatchString(tag) {
			return types.NewValidationError(field, "contains invalid characters")
		}
	}

	return nil
}

// NormalizeTags trims, lowercases and de-duplicates tags, dropping empty ones.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// IsHostedID reports whether id has the permalink shape.
func IsHostedID(id string) bool {
	return HostedIDPattern.MatchString(id)
}
