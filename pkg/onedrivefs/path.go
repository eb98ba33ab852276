package onedrivefs

import (
	"path"
	"strings"

	"github.com/marmos91/onedrivefs/pkg/drive"
)

// invalidPathChars are rejected anywhere in a path.
const invalidPathChars = ":\x00\\"

// checkPath rejects paths containing characters OneDrive does not accept.
func checkPath(p string) error {
	if strings.ContainsAny(p, invalidPathChars) {
		return newError(ErrInvalidCharsInPath, p)
	}
	return nil
}

// abs validates p and returns it as an absolute drive path below fs.root.
// ".." never climbs above the root of the filesystem.
func (fs *FS) abs(p string) (string, error) {
	if err := checkPath(p); err != nil {
		return "", err
	}
	return drive.CleanPath(path.Join(fs.root, drive.CleanPath(p))), nil
}
