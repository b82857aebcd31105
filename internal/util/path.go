package util

import (
	"os"
	"strings"
	"sync"
)

var (
	homeDir     string
	homeDirOnce sync.Once
)

// cachedHomeDir returns the user's home directory, cached after the first call.
func cachedHomeDir() string {
	homeDirOnce.Do(func() {
		homeDir, _ = os.UserHomeDir()
	})
	return homeDir
}

// ExpandHome expands a leading ~ or ~/ to the user's home directory in
// user-supplied paths (configured agent_commands overrides, --editor).
// ~user/ syntax is not supported. Returns the path unchanged when it has
// no tilde prefix or the home directory cannot be determined.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home := cachedHomeDir()
	if home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	return home + path[1:]
}
