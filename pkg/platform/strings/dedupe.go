// Package strings provides string slice utilities.
package strings

// Dedupe removes repeated values from a slice. Order of first occurrence is
// preserved and values are compared exactly, without trimming or case folding.
//
// Example:
//
//	Dedupe([]string{"b", "a", "b", ""})
//	// Returns: []string{"b", "a", ""}
func Dedupe(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// NonEmpty returns the values that are not the empty string.
func NonEmpty(values []string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			result = append(result, v)
		}
	}
	return result
}
