// Package drive defines the contract between the filesystem adapter and a
// remote drive service.
//
// The filesystem adapter (pkg/onedrivefs) never issues HTTP requests itself.
// Everything it needs from the remote side goes through the interfaces in this
// package, which keeps the buffering and commit protocol independent of the
// transport and lets tests substitute an in-memory drive.
//
// Implementations:
//   - pkg/drive/graph: Microsoft Graph (OneDrive personal and business)
//   - pkg/drive/memory: in-memory drive for tests and development
//   - pkg/drive/s3: S3-compatible object storage
//
// Paths:
// All paths are absolute, slash-separated and start with "/". The root
// directory is "/". Implementations are free to compare names
// case-insensitively (OneDrive does).
package drive

import (
	"context"
)

// ChunkAlignment is the granularity of resumable upload chunks. Every chunk
// except the last must be a multiple of it; the service rejects anything else.
const ChunkAlignment = 320 * 1024

// ContentClient is the subset of drive operations the buffering and commit
// protocol depends on.
//
// Every method is a blocking network round-trip. Implementations must not
// retry conflicts themselves: the commit protocol owns that policy.
type ContentClient interface {
	// GetItem resolves a path to its item.
	//
	// Returns an error matching ErrNotFound when nothing exists at path.
	GetItem(ctx context.Context, path string) (*Item, error)

	// Download fetches the complete content of the file at path.
	//
	// Returns an error matching ErrNotFound when the file does not exist and
	// ErrPartialContent when the service answered with a partial body.
	Download(ctx context.Context, path string) ([]byte, error)

	// UploadNew creates (or overwrites) the file name under the folder
	// parentID in a single request.
	UploadNew(ctx context.Context, parentID ItemID, name string, data []byte) (*Item, error)

	// UploadReplace replaces the content of an existing file in a single request.
	UploadReplace(ctx context.Context, id ItemID, data []byte) (*Item, error)

	// CreateUploadSession opens a resumable upload session for the file name
	// under the folder parentID.
	CreateUploadSession(ctx context.Context, parentID ItemID, name string) (*UploadSession, error)

	// UploadChunk sends one byte range of a resumable upload. Chunks must be
	// sent in increasing offset order.
	UploadChunk(ctx context.Context, session *UploadSession, r ByteRange, data []byte) error
}

// Drive is the full set of operations the filesystem adapter uses.
type Drive interface {
	ContentClient

	// ListChildren returns the direct children of the folder at path.
	ListChildren(ctx context.Context, path string) ([]*Item, error)

	// CreateFolder creates the folder name under parentID. Fails with an
	// error matching ErrConflict when an item with that name already exists.
	CreateFolder(ctx context.Context, parentID ItemID, name string) (*Item, error)

	// UpdateItem applies a partial update (rename, reparent, timestamps).
	UpdateItem(ctx context.Context, id ItemID, update ItemUpdate) (*Item, error)

	// DeleteItem deletes an item. Folders are deleted with their content.
	DeleteItem(ctx context.Context, id ItemID) error

	// Copy copies the item id into the folder parent as name and blocks until
	// the copy has completed on the service side.
	Copy(ctx context.Context, id ItemID, parent ItemReference, name string) error
}
