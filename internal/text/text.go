// Package text holds small string canonicalization helpers shared by the
// stream and process services.
package text

import "strings"

// Squish trims leading and trailing whitespace and collapses every interior
// run of whitespace to a single space. It is idempotent.
func Squish(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
