package drive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanPath(t *testing.T) {
	tests := map[string]string{
		"":                "/",
		".":               "/",
		"/":               "/",
		"docs":            "/docs",
		"/docs/":          "/docs",
		"docs//a.txt":     "/docs/a.txt",
		"/docs/../a.txt":  "/a.txt",
		"Documents/x/y/z": "/Documents/x/y/z",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanPath(in), "CleanPath(%q)", in)
	}
}

func TestSplitPath(t *testing.T) {
	dir, name := SplitPath("/docs/a.txt")
	assert.Equal(t, "/docs", dir)
	assert.Equal(t, "a.txt", name)

	dir, name = SplitPath("a.txt")
	assert.Equal(t, "/", dir)
	assert.Equal(t, "a.txt", name)

	dir, name = SplitPath("/")
	assert.Equal(t, "/", dir)
	assert.Equal(t, "", name)
}

func TestSegments(t *testing.T) {
	assert.Nil(t, Segments("/"))
	assert.Equal(t, []string{"a", "b", "c.txt"}, Segments("/a/b/c.txt"))
}
