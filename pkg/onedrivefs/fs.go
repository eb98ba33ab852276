// Package onedrivefs exposes a drive through filesystem vocabulary.
//
// File contents are buffered in memory: Open downloads what the mode needs,
// File operations work on the local buffer, and Close uploads the result
// through a Committer. Directory operations map one to one onto drive calls
// and translate drive errors into the ErrorCode taxonomy.
//
// Basic usage:
//
//	fsys, err := onedrivefs.New(d, onedrivefs.CommitterConfig{})
//	f, err := fsys.Open(ctx, "/docs/a.txt", "w")
//	f.Write([]byte("hello"))
//	err = f.Close() // uploads
package onedrivefs

import (
	"context"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/marmos91/onedrivefs/internal/logger"
	"github.com/marmos91/onedrivefs/pkg/drive"
)

// FS is a filesystem view of a drive, rooted at a folder.
//
// Thread Safety:
// Operations on one FS, and on every FS derived from it with OpenDir or
// MakeDir, are serialised by a shared mutex. File handles are not covered:
// each handle belongs to a single caller.
type FS struct {
	drive     drive.Drive
	committer *Committer
	root      string
	mu        *sync.Mutex
}

// Page selects children [Start, End) of a directory listing.
type Page struct {
	Start int
	End   int
}

// New creates a filesystem over d rooted at the drive root.
func New(d drive.Drive, cfg CommitterConfig) (*FS, error) {
	committer, err := NewCommitter(d, cfg)
	if err != nil {
		return nil, err
	}
	return &FS{drive: d, committer: committer, root: "/", mu: &sync.Mutex{}}, nil
}

// Root returns the drive path this filesystem is rooted at.
func (fs *FS) Root() string {
	return fs.root
}

// Committer returns the committer used by handles of this filesystem.
func (fs *FS) Committer() *Committer {
	return fs.committer
}

func (fs *FS) sub(abs string) *FS {
	return &FS{drive: fs.drive, committer: fs.committer, root: abs, mu: fs.mu}
}

// lookup returns the item at abs, or nil if there is none.
func (fs *FS) lookup(ctx context.Context, abs string) (*drive.Item, error) {
	item, err := fs.drive.GetItem(ctx, abs)
	if drive.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(abs, err)
	}
	return item, nil
}

// get returns the item at abs or ErrNotFound.
func (fs *FS) get(ctx context.Context, abs string) (*drive.Item, error) {
	item, err := fs.drive.GetItem(ctx, abs)
	if err != nil {
		return nil, translateError(abs, err)
	}
	return item, nil
}

// getDir returns the folder at abs, ErrNotFound or ErrDirectoryExpected.
func (fs *FS) getDir(ctx context.Context, abs string) (*drive.Item, error) {
	item, err := fs.get(ctx, abs)
	if err != nil {
		return nil, err
	}
	if !item.IsDir() {
		return nil, newError(ErrDirectoryExpected, abs)
	}
	return item, nil
}

// ============================================================================
// Files
// ============================================================================

// Open opens the file at p with an open-mode string (see ParseMode).
//
// Preconditions checked before any content is transferred:
//   - exclusive mode and the file exists: ErrFileExists
//   - reading without create and the file is missing: ErrNotFound
//   - the path is a folder: ErrFileExpected
//   - writing and the parent folder is missing: ErrNotFound
func (fs *FS) Open(ctx context.Context, p string, mode string) (*File, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}
	abs, err := fs.abs(p)
	if err != nil {
		return nil, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	item, err := fs.lookup(ctx, abs)
	if err != nil {
		return nil, err
	}
	exists := item != nil

	if m.Exclusive && exists {
		return nil, newError(ErrFileExists, abs)
	}
	if m.Reading && !m.Creating && !exists {
		return nil, newError(ErrNotFound, abs)
	}
	if exists && item.IsDir() {
		return nil, newError(ErrFileExpected, abs)
	}
	if m.Writing {
		dir, _ := drive.SplitPath(abs)
		if _, err := fs.getDir(ctx, dir); err != nil {
			return nil, err
		}
	}

	itemID := drive.None()
	if exists {
		itemID = drive.Some(item.ID)
	}

	logger.Debug("Open %s mode=%s item=%s", abs, m, itemID)
	return NewFile(ctx, fs.drive, fs.committer, abs, itemID, m)
}

// ReadBytes returns the whole content of the file at p.
func (fs *FS) ReadBytes(ctx context.Context, p string) ([]byte, error) {
	f, err := fs.Open(ctx, p, "rb")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

// WriteBytes replaces the content of the file at p, creating it if needed.
func (fs *FS) WriteBytes(ctx context.Context, p string, data []byte) error {
	return fs.writeWithMode(ctx, p, "wb", data)
}

// AppendBytes appends data to the file at p, creating it if needed.
func (fs *FS) AppendBytes(ctx context.Context, p string, data []byte) error {
	return fs.writeWithMode(ctx, p, "ab", data)
}

func (fs *FS) writeWithMode(ctx context.Context, p, mode string, data []byte) error {
	f, err := fs.Open(ctx, p, mode)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.CloseContext(ctx)
		return err
	}
	return f.CloseContext(ctx)
}

// ============================================================================
// Metadata
// ============================================================================

// GetInfo returns information about the item at p.
func (fs *FS) GetInfo(ctx context.Context, p string) (*Info, error) {
	abs, err := fs.abs(p)
	if err != nil {
		return nil, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	item, err := fs.get(ctx, abs)
	if err != nil {
		return nil, err
	}
	return infoFromItem(item), nil
}

// SetInfo updates the client timestamps of the item at p.
func (fs *FS) SetInfo(ctx context.Context, p string, update InfoUpdate) error {
	abs, err := fs.abs(p)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	item, err := fs.get(ctx, abs)
	if err != nil {
		return err
	}
	if update.empty() {
		return nil
	}

	_, err = fs.drive.UpdateItem(ctx, item.ID, update.toItemUpdate())
	return translateError(abs, err)
}

// Exists reports whether an item exists at p.
func (fs *FS) Exists(ctx context.Context, p string) (bool, error) {
	abs, err := fs.abs(p)
	if err != nil {
		return false, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	item, err := fs.lookup(ctx, abs)
	return item != nil, err
}

// IsDir reports whether p is an existing folder.
func (fs *FS) IsDir(ctx context.Context, p string) (bool, error) {
	abs, err := fs.abs(p)
	if err != nil {
		return false, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	item, err := fs.lookup(ctx, abs)
	return item != nil && item.IsDir(), err
}

// ============================================================================
// Directories
// ============================================================================

// ListDir returns the names of the children of the folder at p.
func (fs *FS) ListDir(ctx context.Context, p string) ([]string, error) {
	infos, err := fs.ScanDir(ctx, p, nil)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names, nil
}

// ScanDir returns information about the children of the folder at p,
// restricted to page when it is not nil.
func (fs *FS) ScanDir(ctx context.Context, p string, page *Page) ([]*Info, error) {
	abs, err := fs.abs(p)
	if err != nil {
		return nil, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, err := fs.getDir(ctx, abs); err != nil {
		return nil, err
	}
	children, err := fs.drive.ListChildren(ctx, abs)
	if err != nil {
		return nil, translateError(abs, err)
	}

	if page != nil {
		start := min(max(page.Start, 0), len(children))
		end := min(max(page.End, start), len(children))
		children = children[start:end]
	}

	infos := make([]*Info, len(children))
	for i, child := range children {
		infos[i] = infoFromItem(child)
	}
	return infos, nil
}

// OpenDir returns a filesystem rooted at the folder p.
func (fs *FS) OpenDir(ctx context.Context, p string) (*FS, error) {
	abs, err := fs.abs(p)
	if err != nil {
		return nil, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, err := fs.getDir(ctx, abs); err != nil {
		return nil, err
	}
	return fs.sub(abs), nil
}

// MakeDir creates the folder p and returns a filesystem rooted at it.
// The parent must exist. An existing folder is an error unless recreate is
// set.
func (fs *FS) MakeDir(ctx context.Context, p string, recreate bool) (*FS, error) {
	abs, err := fs.abs(p)
	if err != nil {
		return nil, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir, name := drive.SplitPath(abs)
	if name == "" {
		if recreate {
			return fs.sub(abs), nil
		}
		return nil, newError(ErrDirectoryExists, abs)
	}

	parent, err := fs.getDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	if err := fs.mkdir(ctx, parent, abs, name, recreate); err != nil {
		return nil, err
	}
	return fs.sub(abs), nil
}

// MakeDirs creates the folder p and any missing parents.
func (fs *FS) MakeDirs(ctx context.Context, p string, recreate bool) (*FS, error) {
	abs, err := fs.abs(p)
	if err != nil {
		return nil, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent, err := fs.get(ctx, "/")
	if err != nil {
		return nil, err
	}

	segments := drive.Segments(abs)
	if len(segments) == 0 {
		if recreate {
			return fs.sub(abs), nil
		}
		return nil, newError(ErrDirectoryExists, abs)
	}

	current := "/"
	for i, seg := range segments {
		current = drive.CleanPath(current + "/" + seg)
		last := i == len(segments)-1

		item, err := fs.lookup(ctx, current)
		if err != nil {
			return nil, err
		}
		switch {
		case item == nil:
			item, err = fs.drive.CreateFolder(ctx, parent.ID, seg)
			if err != nil {
				return nil, fs.mkdirError(current, err)
			}
		case !item.IsDir():
			return nil, newError(ErrDirectoryExpected, current)
		case last && !recreate:
			return nil, newError(ErrDirectoryExists, current)
		}
		parent = item
	}

	return fs.sub(abs), nil
}

func (fs *FS) mkdir(ctx context.Context, parent *drive.Item, abs, name string, recreate bool) error {
	existing, err := fs.lookup(ctx, abs)
	if err != nil {
		return err
	}
	if existing != nil {
		if recreate && existing.IsDir() {
			return nil
		}
		return newError(ErrDirectoryExists, abs)
	}

	_, err = fs.drive.CreateFolder(ctx, parent.ID, name)
	return fs.mkdirError(abs, err)
}

func (fs *FS) mkdirError(abs string, err error) error {
	if drive.IsConflict(err) {
		return wrapError(ErrDirectoryExists, abs, err)
	}
	return translateError(abs, err)
}

// ============================================================================
// Removal
// ============================================================================

// Remove deletes the file at p.
func (fs *FS) Remove(ctx context.Context, p string) error {
	abs, err := fs.abs(p)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	item, err := fs.get(ctx, abs)
	if err != nil {
		return err
	}
	if item.IsDir() {
		return newError(ErrFileExpected, abs)
	}
	return translateError(abs, fs.drive.DeleteItem(ctx, item.ID))
}

// RemoveDir deletes the empty folder at p.
func (fs *FS) RemoveDir(ctx context.Context, p string) error {
	abs, err := fs.abs(p)
	if err != nil {
		return err
	}
	if abs == "/" {
		return newError(ErrRemoveRoot, abs)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	item, err := fs.getDir(ctx, abs)
	if err != nil {
		return err
	}
	children, err := fs.drive.ListChildren(ctx, abs)
	if err != nil {
		return translateError(abs, err)
	}
	if len(children) > 0 {
		return newError(ErrDirectoryNotEmpty, abs)
	}
	return translateError(abs, fs.drive.DeleteItem(ctx, item.ID))
}

// RemoveTree deletes the folder at p and everything below it. Removing the
// root folder of the filesystem empties it instead, so a filesystem returned
// by OpenDir stays usable.
func (fs *FS) RemoveTree(ctx context.Context, p string) error {
	abs, err := fs.abs(p)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	item, err := fs.getDir(ctx, abs)
	if err != nil {
		return err
	}

	if abs != fs.root {
		return translateError(abs, fs.drive.DeleteItem(ctx, item.ID))
	}

	children, err := fs.drive.ListChildren(ctx, abs)
	if err != nil {
		return translateError(abs, err)
	}
	for _, child := range children {
		if err := fs.drive.DeleteItem(ctx, child.ID); err != nil {
			return translateError(path.Join(abs, child.Name), err)
		}
	}
	return nil
}

// ============================================================================
// Copy
// ============================================================================

// Copy copies the file src to dst and waits for the copy to finish.
// An existing dst is replaced only when overwrite is set.
func (fs *FS) Copy(ctx context.Context, src, dst string, overwrite bool) error {
	srcAbs, err := fs.abs(src)
	if err != nil {
		return err
	}
	dstAbs, err := fs.abs(dst)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	srcItem, err := fs.get(ctx, srcAbs)
	if err != nil {
		return err
	}
	if srcItem.IsDir() {
		return newError(ErrFileExpected, srcAbs)
	}

	dstItem, err := fs.lookup(ctx, dstAbs)
	if err != nil {
		return err
	}
	if dstItem != nil {
		if !overwrite {
			return newError(ErrDestinationExists, dstAbs)
		}
		if strings.EqualFold(srcAbs, dstAbs) {
			return nil
		}
		if dstItem.IsDir() {
			return newError(ErrFileExpected, dstAbs)
		}
		if err := fs.drive.DeleteItem(ctx, dstItem.ID); err != nil {
			return translateError(dstAbs, err)
		}
	}

	dir, name := drive.SplitPath(dstAbs)
	parent, err := fs.getDir(ctx, dir)
	if err != nil {
		return err
	}

	ref := drive.ItemReference{ID: parent.ID}
	if parent.ParentReference != nil {
		ref.DriveID = parent.ParentReference.DriveID
	}

	logger.Debug("Copy %s -> %s", srcAbs, dstAbs)
	return translateError(dstAbs, fs.drive.Copy(ctx, srcItem.ID, ref, name))
}
