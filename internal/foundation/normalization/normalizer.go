// Package normalization maps free-form configuration and CLI strings onto
// typed enum values.
package normalization

import (
	"fmt"
	"sort"
	"strings"
)

// EnumNormalizer converts strings to T after trimming and lower-casing them.
type EnumNormalizer[T comparable] struct {
	enumName     string
	values       map[string]T
	defaultValue T
	validKeys    []string // Cached for error messages
}

// NewEnumNormalizer creates a normalizer for the named enum. Keys of values are
// normalized the same way as the input.
func NewEnumNormalizer[T comparable](enumName string, values map[string]T, defaultValue T) *EnumNormalizer[T] {
	normalized := make(map[string]T, len(values))
	keys := make([]string, 0, len(values))
	for k, v := range values {
		key := normalize(k)
		normalized[key] = v
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return &EnumNormalizer[T]{
		enumName:     enumName,
		values:       normalized,
		defaultValue: defaultValue,
		validKeys:    keys,
	}
}

// Normalize returns the matching value, or the default for unknown input.
func (e *EnumNormalizer[T]) Normalize(raw string) T {
	if v, ok := e.values[normalize(raw)]; ok {
		return v
	}
	return e.defaultValue
}

// NormalizeWithValidation returns the matching value or an error listing the
// accepted spellings.
func (e *EnumNormalizer[T]) NormalizeWithValidation(raw string) (T, error) {
	if v, ok := e.values[normalize(raw)]; ok {
		return v, nil
	}
	return e.defaultValue, fmt.Errorf("invalid %s %q, valid options: %v", e.enumName, raw, e.validKeys)
}

// IsValid reports whether raw names a known value.
func (e *EnumNormalizer[T]) IsValid(raw string) bool {
	_, ok := e.values[normalize(raw)]
	return ok
}

// ValidValues returns the accepted spellings, sorted.
func (e *EnumNormalizer[T]) ValidValues() []string {
	return append([]string(nil), e.validKeys...)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
