package drive

import (
	"path"
	"strings"
)

// CleanPath normalises p to an absolute slash-separated path. The empty string
// and "." both mean the root.
func CleanPath(p string) string {
	if p == "" || p == "." {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// SplitPath returns the parent directory and final element of p.
// SplitPath("/") returns ("/", "").
func SplitPath(p string) (dir, name string) {
	p = CleanPath(p)
	if p == "/" {
		return "/", ""
	}
	return path.Dir(p), path.Base(p)
}

// Segments returns the elements of p, without the leading root.
func Segments(p string) []string {
	p = CleanPath(p)
	if p == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}
