package memory

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/onedrivefs/pkg/drive"
)

// MemoryDrive implements drive.Drive entirely in memory.
//
// It is designed for:
//   - Unit tests of the filesystem adapter and the commit protocol
//   - Backing the fake Graph server used by the Graph client tests
//   - Local development without an account
//
// Behaviour mirrors the parts of OneDrive the adapter relies on:
//   - Names are compared case-insensitively but stored case-preserved
//   - Single-shot uploads to an existing name replace its content
//   - Resumable uploads enforce in-order ranges and 320 KiB chunk alignment
//   - Deleting a folder deletes its whole subtree
//
// Thread Safety:
// All operations are protected by a sync.RWMutex. Content is copied on the
// way in and out so callers never share buffers with the store.
type MemoryDrive struct {
	mu       sync.RWMutex
	driveID  string
	rootID   drive.ItemID
	nodes    map[drive.ItemID]*node
	sessions map[string]*session

	// now is replaced in tests that need stable timestamps
	now func() time.Time
}

type node struct {
	item     drive.Item
	data     []byte
	children map[string]drive.ItemID // lower-cased name -> id
}

type session struct {
	parentID drive.ItemID
	name     string
	total    int64
	buf      []byte
}

// New creates an empty drive containing only the root folder.
func New() *MemoryDrive {
	d := &MemoryDrive{
		driveID:  uuid.NewString(),
		nodes:    make(map[drive.ItemID]*node),
		sessions: make(map[string]*session),
		now:      func() time.Time { return time.Now().UTC() },
	}

	now := d.now()
	d.rootID = drive.ItemID("root-" + d.driveID)
	d.nodes[d.rootID] = &node{
		item: drive.Item{
			ID:                   d.rootID,
			Name:                 "root",
			CreatedDateTime:      now,
			LastModifiedDateTime: now,
			FileSystemInfo:       &drive.FileSystemInfo{CreatedDateTime: &now, LastModifiedDateTime: &now},
			Folder:               &drive.Folder{},
		},
		children: make(map[string]drive.ItemID),
	}
	return d
}

// DriveID returns the identifier of this drive.
func (d *MemoryDrive) DriveID() string {
	return d.driveID
}

// ============================================================================
// Lookup
// ============================================================================

// GetItem resolves a path to its item.
func (d *MemoryDrive) GetItem(ctx context.Context, path string) (*drive.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	n, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	return d.snapshot(n), nil
}

// GetItemByID returns the item with the given id.
func (d *MemoryDrive) GetItemByID(ctx context.Context, id drive.ItemID) (*drive.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	n, ok := d.nodes[id]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, drive.ErrNotFound)
	}
	return d.snapshot(n), nil
}

// ListChildren returns the children of the folder at path sorted by name.
func (d *MemoryDrive) ListChildren(ctx context.Context, path string) ([]*drive.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	n, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	if n.children == nil {
		return nil, fmt.Errorf("%s is not a folder: %w", path, drive.ErrNotSupported)
	}

	items := make([]*drive.Item, 0, len(n.children))
	for _, id := range n.children {
		items = append(items, d.snapshot(d.nodes[id]))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

// ============================================================================
// Content
// ============================================================================

// Download returns a copy of the content of the file at path.
func (d *MemoryDrive) Download(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	n, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	if n.children != nil {
		return nil, fmt.Errorf("%s is a folder: %w", path, drive.ErrNotFound)
	}

	out := make([]byte, len(n.data))
	copy(out, n.data)
	return out, nil
}

// UploadNew creates or overwrites the file name under parentID.
func (d *MemoryDrive) UploadNew(ctx context.Context, parentID drive.ItemID, name string, data []byte) (*drive.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.putFile(parentID, name, data)
	if err != nil {
		return nil, err
	}
	return d.snapshot(n), nil
}

// UploadReplace replaces the content of an existing file.
func (d *MemoryDrive) UploadReplace(ctx context.Context, id drive.ItemID, data []byte) (*drive.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.nodes[id]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, drive.ErrNotFound)
	}
	if n.children != nil {
		return nil, fmt.Errorf("item %s is a folder: %w", id, drive.ErrNotSupported)
	}
	d.setContent(n, data)
	return d.snapshot(n), nil
}

// CreateUploadSession opens a resumable upload for name under parentID.
func (d *MemoryDrive) CreateUploadSession(ctx context.Context, parentID drive.ItemID, name string) (*drive.UploadSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.folder(parentID); err != nil {
		return nil, err
	}

	url := "memory://upload/" + uuid.NewString()
	d.sessions[url] = &session{parentID: parentID, name: name, total: -1}

	return &drive.UploadSession{
		UploadURL:          url,
		ExpirationDateTime: d.now().Add(24 * time.Hour),
	}, nil
}

// UploadChunk appends one range to a resumable upload. The file is written
// when the final byte arrives.
func (d *MemoryDrive) UploadChunk(ctx context.Context, s *drive.UploadSession, r drive.ByteRange, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	sess, ok := d.sessions[s.UploadURL]
	if !ok {
		return fmt.Errorf("upload session %s: %w", s.UploadURL, drive.ErrNotFound)
	}

	switch {
	case sess.total >= 0 && r.Total != sess.total:
		return fmt.Errorf("total size changed from %d to %d: %w", sess.total, r.Total, drive.ErrInvalidRange)
	case r.Start != int64(len(sess.buf)):
		return fmt.Errorf("expected range starting at %d, got %s: %w", len(sess.buf), r.ContentRange(), drive.ErrInvalidRange)
	case r.Len() != int64(len(data)):
		return fmt.Errorf("range %s does not match %d bytes: %w", r.ContentRange(), len(data), drive.ErrInvalidRange)
	case r.End >= r.Total:
		return fmt.Errorf("range %s ends past total: %w", r.ContentRange(), drive.ErrInvalidRange)
	case !r.Final() && r.Len()%drive.ChunkAlignment != 0:
		return fmt.Errorf("chunk of %d bytes is not a multiple of %d: %w", r.Len(), drive.ChunkAlignment, drive.ErrInvalidRange)
	}

	sess.total = r.Total
	sess.buf = append(sess.buf, data...)

	if !r.Final() {
		return nil
	}

	delete(d.sessions, s.UploadURL)
	_, err := d.putFile(sess.parentID, sess.name, sess.buf)
	return err
}

// OpenSessions returns how many resumable uploads are still in progress.
func (d *MemoryDrive) OpenSessions() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions)
}

// ============================================================================
// Mutations
// ============================================================================

// CreateFolder creates the folder name under parentID.
func (d *MemoryDrive) CreateFolder(ctx context.Context, parentID drive.ItemID, name string) (*drive.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	parent, err := d.folder(parentID)
	if err != nil {
		return nil, err
	}
	if _, exists := parent.children[strings.ToLower(name)]; exists {
		return nil, fmt.Errorf("%s already exists: %w", name, drive.ErrConflict)
	}

	n := d.newNode(parent, name)
	n.item.Folder = &drive.Folder{}
	n.children = make(map[string]drive.ItemID)
	return d.snapshot(n), nil
}

// UpdateItem renames, reparents or re-stamps an item.
func (d *MemoryDrive) UpdateItem(ctx context.Context, id drive.ItemID, update drive.ItemUpdate) (*drive.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.nodes[id]
	if !ok || id == d.rootID {
		return nil, fmt.Errorf("item %s: %w", id, drive.ErrNotFound)
	}

	if update.Name != nil || update.ParentReference != nil {
		oldParent := d.nodes[n.item.ParentReference.ID]
		newParent := oldParent
		if update.ParentReference != nil && update.ParentReference.ID != "" {
			p, err := d.folder(update.ParentReference.ID)
			if err != nil {
				return nil, err
			}
			newParent = p
		}
		newName := n.item.Name
		if update.Name != nil {
			newName = *update.Name
		}

		key := strings.ToLower(newName)
		if existing, taken := newParent.children[key]; taken && existing != id {
			return nil, fmt.Errorf("%s already exists: %w", newName, drive.ErrConflict)
		}

		delete(oldParent.children, strings.ToLower(n.item.Name))
		newParent.children[key] = id
		n.item.Name = newName
		n.item.ParentReference = &drive.ItemReference{DriveID: d.driveID, ID: newParent.item.ID}
	}

	if fsi := update.FileSystemInfo; fsi != nil {
		if n.item.FileSystemInfo == nil {
			n.item.FileSystemInfo = &drive.FileSystemInfo{}
		}
		if fsi.CreatedDateTime != nil {
			t := *fsi.CreatedDateTime
			n.item.FileSystemInfo.CreatedDateTime = &t
		}
		if fsi.LastModifiedDateTime != nil {
			t := *fsi.LastModifiedDateTime
			n.item.FileSystemInfo.LastModifiedDateTime = &t
		}
	}

	n.item.LastModifiedDateTime = d.now()
	return d.snapshot(n), nil
}

// DeleteItem deletes an item and, for folders, everything below it.
func (d *MemoryDrive) DeleteItem(ctx context.Context, id drive.ItemID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.nodes[id]
	if !ok || id == d.rootID {
		return fmt.Errorf("item %s: %w", id, drive.ErrNotFound)
	}

	parent := d.nodes[n.item.ParentReference.ID]
	delete(parent.children, strings.ToLower(n.item.Name))
	d.deleteTree(n)
	return nil
}

// Copy duplicates the item id into parent under name. Completes synchronously.
func (d *MemoryDrive) Copy(ctx context.Context, id drive.ItemID, parent drive.ItemReference, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	src, ok := d.nodes[id]
	if !ok {
		return fmt.Errorf("item %s: %w", id, drive.ErrNotFound)
	}
	dst, err := d.folder(parent.ID)
	if err != nil {
		return err
	}
	if _, exists := dst.children[strings.ToLower(name)]; exists {
		return fmt.Errorf("%s already exists: %w", name, drive.ErrConflict)
	}

	d.copyTree(src, dst, name)
	return nil
}

// ============================================================================
// Internals (callers hold d.mu)
// ============================================================================

func (d *MemoryDrive) resolve(path string) (*node, error) {
	n := d.nodes[d.rootID]
	for _, seg := range drive.Segments(path) {
		if n.children == nil {
			return nil, fmt.Errorf("%s: %w", path, drive.ErrNotFound)
		}
		id, ok := n.children[strings.ToLower(seg)]
		if !ok {
			return nil, fmt.Errorf("%s: %w", path, drive.ErrNotFound)
		}
		n = d.nodes[id]
	}
	return n, nil
}

func (d *MemoryDrive) folder(id drive.ItemID) (*node, error) {
	n, ok := d.nodes[id]
	if !ok {
		return nil, fmt.Errorf("folder %s: %w", id, drive.ErrNotFound)
	}
	if n.children == nil {
		return nil, fmt.Errorf("item %s is not a folder: %w", id, drive.ErrNotSupported)
	}
	return n, nil
}

func (d *MemoryDrive) newNode(parent *node, name string) *node {
	now := d.now()
	n := &node{
		item: drive.Item{
			ID:                   drive.ItemID(uuid.NewString()),
			Name:                 name,
			CreatedDateTime:      now,
			LastModifiedDateTime: now,
			FileSystemInfo:       &drive.FileSystemInfo{CreatedDateTime: &now, LastModifiedDateTime: &now},
			ParentReference:      &drive.ItemReference{DriveID: d.driveID, ID: parent.item.ID},
		},
	}
	d.nodes[n.item.ID] = n
	parent.children[strings.ToLower(name)] = n.item.ID
	return n
}

func (d *MemoryDrive) putFile(parentID drive.ItemID, name string, data []byte) (*node, error) {
	parent, err := d.folder(parentID)
	if err != nil {
		return nil, err
	}

	if id, exists := parent.children[strings.ToLower(name)]; exists {
		n := d.nodes[id]
		if n.children != nil {
			return nil, fmt.Errorf("%s is a folder: %w", name, drive.ErrConflict)
		}
		d.setContent(n, data)
		return n, nil
	}

	n := d.newNode(parent, name)
	d.setContent(n, data)
	return n, nil
}

func (d *MemoryDrive) setContent(n *node, data []byte) {
	n.data = make([]byte, len(data))
	copy(n.data, data)

	sum := sha1.Sum(n.data)
	n.item.Size = int64(len(n.data))
	n.item.File = &drive.File{
		MimeType: "application/octet-stream",
		Hashes:   &drive.Hashes{SHA1Hash: strings.ToUpper(hex.EncodeToString(sum[:]))},
	}

	now := d.now()
	n.item.LastModifiedDateTime = now
	if n.item.FileSystemInfo == nil {
		n.item.FileSystemInfo = &drive.FileSystemInfo{}
	}
	n.item.FileSystemInfo.LastModifiedDateTime = &now
}

func (d *MemoryDrive) deleteTree(n *node) {
	for _, id := range n.children {
		d.deleteTree(d.nodes[id])
	}
	delete(d.nodes, n.item.ID)
}

func (d *MemoryDrive) copyTree(src, parent *node, name string) {
	n := d.newNode(parent, name)
	if src.children == nil {
		d.setContent(n, src.data)
		return
	}

	n.item.Folder = &drive.Folder{}
	n.children = make(map[string]drive.ItemID)
	for _, id := range src.children {
		child := d.nodes[id]
		d.copyTree(child, n, child.item.Name)
	}
}

// snapshot returns a copy of the node's item that callers may keep.
func (d *MemoryDrive) snapshot(n *node) *drive.Item {
	item := n.item
	if n.children != nil {
		item.Folder = &drive.Folder{ChildCount: len(n.children)}
		var size int64
		for _, id := range n.children {
			size += d.nodes[id].item.Size
		}
		item.Size = size
	}
	if item.FileSystemInfo != nil {
		fsi := *item.FileSystemInfo
		item.FileSystemInfo = &fsi
	}
	if item.ParentReference != nil {
		ref := *item.ParentReference
		item.ParentReference = &ref
	}
	return &item
}

var _ drive.Drive = (*MemoryDrive)(nil)
