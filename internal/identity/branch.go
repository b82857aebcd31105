package identity

import "strings"

// ValidateBranchName accepts iff name is non-empty, length <= 255,
// contains only [A-Za-z0-9_-/], contains no "..", and does not start
// or end with "/".
func ValidateBranchName(name string) bool {
	if name == "" || len(name) > 255 {
		return false
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '/':
		default:
			return false
		}
	}
	return true
}
