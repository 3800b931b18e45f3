package util

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// SplitList splits a comma-separated setting into trimmed, non-empty
// items. "a, b,,c" returns ["a", "b", "c"].
func SplitList(value string) []string {
	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// FileExists returns true if the file at path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ExpandTilde expands a leading tilde in filePath to the user's
// home directory.
func ExpandTilde(filePath string) (string, error) {
	if !strings.HasPrefix(filePath, "~") {
		return filePath, nil
	}
	usr, err := user.Current()
	if err != nil {
		return "", err
	}
	if usr.HomeDir == "" {
		return "", fmt.Errorf("Cannot expand ~ because user has no home directory")
	}
	return filepath.Join(usr.HomeDir, filePath[1:]), nil
}

// LooksSafeToDelete returns true if filePath is absolute, has at
// least minLength characters and at least minSeparators path
// separators. This keeps us from deleting "/" or a home directory
// because of a bad setting.
func LooksSafeToDelete(filePath string, minLength, minSeparators int) bool {
	if !filepath.IsAbs(filePath) {
		return false
	}
	separators := strings.Count(filepath.Clean(filePath), string(os.PathSeparator))
	return len(filePath) >= minLength && separators >= minSeparators
}
