package validators

import "strings"

// SanitizeString trims the input, collapses inner whitespace runs and caps the result at maxLen bytes.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Join(strings.Fields(input), " ")
	if maxLen > 0 && len(cleaned) > maxLen {
		cleaned = strings.TrimSpace(cleaned[:maxLen])
	}
	return cleaned
}
