package errors

import (
	"math"
	"strings"
	"unicode"
)

// ValidateProbability checks that v lies in [0, 1).
func ValidateProbability(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v >= 1 {
		return New(ErrCodeInvalidInput, "%s must be in [0, 1), got %v", name, v)
	}
	return nil
}

// ValidatePositive checks that v is strictly positive.
func ValidatePositive(name string, v float64) error {
	if math.IsNaN(v) || v <= 0 {
		return New(ErrCodeInvalidInput, "%s must be positive, got %v", name, v)
	}
	return nil
}

// ValidateRange checks that lo <= v <= hi.
func ValidateRange(name string, v, lo, hi int) error {
	if v < lo || v > hi {
		return New(ErrCodeInvalidInput, "%s must be between %d and %d, got %d", name, lo, hi, v)
	}
	return nil
}

// ValidateTaxonName validates a taxon label read from user input. Names end
// up in Newick output and cache keys, so control characters are rejected.
func ValidateTaxonName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidAlignment, "taxon name cannot be empty")
	}
	if len(name) > 256 {
		return New(ErrCodeInvalidAlignment, "taxon name too long (max 256 characters)")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidAlignment, "taxon name %q contains control characters", name)
		}
	}
	return nil
}

// ValidateOutputPrefix validates the path prefix for result files.
//
// Validation rules:
//   - Prefix cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - Must not end in a path separator
func ValidateOutputPrefix(prefix string) error {
	if prefix == "" {
		return New(ErrCodeInvalidPath, "output prefix cannot be empty")
	}

	const maxPathLength = 500
	if len(prefix) > maxPathLength {
		return New(ErrCodeInvalidPath, "output prefix too long (max %d characters)", maxPathLength)
	}

	for _, r := range prefix {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "output prefix contains invalid characters")
		}
	}

	if strings.HasSuffix(prefix, "/") || strings.HasSuffix(prefix, "\\") {
		return New(ErrCodeInvalidPath, "output prefix must name a file, not a directory")
	}

	return nil
}
