package common

import "strings"

// HasSuffixAny returns true if s ends with any of the suffixes.
func HasSuffixAny(s string, suffixes ...string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}
