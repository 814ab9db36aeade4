package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var nonAlphaNumExpr = regexp.MustCompile("[^a-zA-Z0-9_.-]+")

// Safe strips everything from a client provided filename that we don't
// want to see in a storage key or on disk
func Safe(filename string) string {
	filename = filepath.Base(filepath.Clean(filename))
	filename = nonAlphaNumExpr.ReplaceAllString(filename, "")
	// Base can leave a bare dot path behind, which would resolve a key
	// like "<uid>/.." right back out of its directory
	switch filename {
	case "", ".", "..":
		return "unnamed"
	}
	return filename
}

// Unique finds an unused path under base, incrementing like "example (1)"
func Unique(base, filename string) (string, error) {
	return unique(base, filename, 0)
}

func unique(base, filename string, count uint) (string, error) {
	var suffix string
	if count > 0 {
		suffix = fmt.Sprintf(" (%d)", count)
	}
	path := base + suffix
	if filename != "" {
		noExt := strings.TrimSuffix(filename, filepath.Ext(filename))
		path = filepath.Join(base, noExt+suffix+filepath.Ext(filename))
	}
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return path, nil
	}
	if err != nil {
		return "", err
	}
	return unique(base, filename, count+1)
}
