// Package normalize holds lexical normalization helpers shared by the
// stores and the user search.
package normalize

import "strings"

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization trims surrounding whitespace
// and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Query normalizes a user-entered search term the same way stored
// emails are normalized, so substring matching stays case-insensitive.
func Query(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}
