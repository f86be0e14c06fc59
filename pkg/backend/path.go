package backend

import (
	"fmt"
	"strings"
)

// NormalizePath turns a logical path into the canonical form every backend
// receives: forward slashes, no empty or "." segments, ".." resolved, and no
// leading or trailing slash. The root normalizes to "".
//
// A ".." that would climb above the root fails with ErrPathOutsideRoot.
func NormalizePath(path string) (string, error) {
	path = strings.ReplaceAll(path, "\\", "/")

	parts := make([]string, 0, strings.Count(path, "/")+1)
	for _, part := range strings.Split(path, "/") {
		switch part {
		case "", ".":
		case "..":
			if len(parts) == 0 {
				return "", fmt.Errorf("%q: %w", path, ErrPathOutsideRoot)
			}
			parts = parts[:len(parts)-1]
		default:
			parts = append(parts, part)
		}
	}

	return strings.Join(parts, "/"), nil
}

// Dirname returns the parent of a normalized path, "" for top-level entries.
func Dirname(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return ""
}

// Basename returns the last segment of a normalized path.
func Basename(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Join joins a normalized directory and a child name.
func Join(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// IsChildOf reports whether path lies strictly below dir.
func IsChildOf(path, dir string) bool {
	if dir == "" {
		return path != ""
	}
	return strings.HasPrefix(path, dir+"/")
}

// IsDirectChildOf reports whether path is an immediate child of dir.
func IsDirectChildOf(path, dir string) bool {
	return IsChildOf(path, dir) && Dirname(path) == dir
}
