package memory

import (
	"context"
	"strings"

	"github.com/marmos91/onedrivefs/pkg/drive"
)

// MkdirAll creates the folder at path and any missing parents.
func (d *MemoryDrive) MkdirAll(ctx context.Context, path string) (*drive.Item, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.mkdirAll(path)
	if err != nil {
		return nil, err
	}
	return d.snapshot(n), nil
}

// WriteFile stores data at path, creating missing parent folders.
func (d *MemoryDrive) WriteFile(ctx context.Context, path string, data []byte) (*drive.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, name := drive.SplitPath(path)

	d.mu.Lock()
	defer d.mu.Unlock()

	parent, err := d.mkdirAll(dir)
	if err != nil {
		return nil, err
	}
	n, err := d.putFile(parent.item.ID, name, data)
	if err != nil {
		return nil, err
	}
	return d.snapshot(n), nil
}

func (d *MemoryDrive) mkdirAll(path string) (*node, error) {
	n := d.nodes[d.rootID]
	for _, seg := range drive.Segments(path) {
		id, ok := n.children[strings.ToLower(seg)]
		if !ok {
			child := d.newNode(n, seg)
			child.item.Folder = &drive.Folder{}
			child.children = make(map[string]drive.ItemID)
			n = child
			continue
		}
		n = d.nodes[id]
		if n.children == nil {
			return nil, &drive.StatusError{Method: "MKDIR", URL: path, StatusCode: 409, Body: seg + " is a file"}
		}
	}
	return n, nil
}
