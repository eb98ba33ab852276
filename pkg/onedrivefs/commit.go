package onedrivefs

import (
	"context"
	"fmt"

	"github.com/marmos91/onedrivefs/internal/logger"
	"github.com/marmos91/onedrivefs/pkg/drive"
)

const (
	// DefaultUploadThreshold is the size from which content is sent through a
	// resumable upload session instead of a single request.
	DefaultUploadThreshold = 4_000_000

	// DefaultChunkSize is the size of each resumable upload chunk.
	DefaultChunkSize = drive.ChunkAlignment
)

// CommitterConfig configures a Committer. Zero values select the defaults.
type CommitterConfig struct {
	// Threshold is the smallest content size uploaded in chunks.
	Threshold int

	// ChunkSize is the size of every chunk but the last. It must be a
	// positive multiple of drive.ChunkAlignment.
	ChunkSize int
}

// Committer delivers the final content of a handle to the drive.
//
// Content below the threshold goes out as one request; anything larger goes
// through a resumable upload session, one chunk at a time in byte order.
// Every single request and every chunk is retried exactly once if the service
// answers with a conflict. This works around spurious conflict answers that
// succeed on immediate retry and assumes the repeated request has no extra
// side effect; a second conflict is returned to the caller.
type Committer struct {
	client    drive.ContentClient
	threshold int
	chunkSize int
}

// NewCommitter creates a Committer for client.
func NewCommitter(client drive.ContentClient, cfg CommitterConfig) (*Committer, error) {
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultUploadThreshold
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}

	if cfg.Threshold < 0 {
		return nil, &FSError{Code: ErrInvalidArgument, Message: fmt.Sprintf("upload threshold must be positive, got %d", cfg.Threshold)}
	}
	if cfg.ChunkSize < 0 || cfg.ChunkSize%drive.ChunkAlignment != 0 {
		return nil, &FSError{
			Code:    ErrInvalidArgument,
			Message: fmt.Sprintf("chunk size must be a positive multiple of %d, got %d", drive.ChunkAlignment, cfg.ChunkSize),
		}
	}

	return &Committer{client: client, threshold: cfg.Threshold, chunkSize: cfg.ChunkSize}, nil
}

// Threshold returns the size from which uploads are chunked.
func (c *Committer) Threshold() int {
	return c.threshold
}

// ChunkSize returns the resumable upload chunk size.
func (c *Committer) ChunkSize() int {
	return c.chunkSize
}

// Commit uploads data as the content of path.
//
// When itemID is set the content of that item is replaced, otherwise a file
// is created under the parent of path. The parent must exist: a missing
// parent means it was deleted after the handle was opened and is reported
// as ErrNotFound without any retry.
func (c *Committer) Commit(ctx context.Context, path string, itemID drive.OptionalItemID, data []byte) error {
	dir, name := drive.SplitPath(path)
	if name == "" {
		return &FSError{Code: ErrFileExpected, Path: path}
	}

	// Step 1: resolve the parent folder
	parent, err := c.client.GetItem(ctx, dir)
	if err != nil {
		return translateError(dir, err)
	}
	if !parent.IsDir() {
		return newError(ErrDirectoryExpected, dir)
	}

	// Step 2: pick the strategy
	if len(data) < c.threshold {
		logger.Debug("Commit %s: single upload of %d bytes (item=%s)", path, len(data), itemID)
		return translateError(path, c.uploadSmall(ctx, path, parent.ID, name, itemID, data))
	}

	logger.Debug("Commit %s: resumable upload of %d bytes in %d byte chunks", path, len(data), c.chunkSize)
	return c.uploadLarge(ctx, path, parent.ID, name, data)
}

func (c *Committer) uploadSmall(ctx context.Context, path string, parentID drive.ItemID, name string, itemID drive.OptionalItemID, data []byte) error {
	return retryOnConflict("upload "+path, func() error {
		var err error
		if id, ok := itemID.Get(); ok {
			_, err = c.client.UploadReplace(ctx, id, data)
		} else {
			_, err = c.client.UploadNew(ctx, parentID, name, data)
		}
		return err
	})
}

func (c *Committer) uploadLarge(ctx context.Context, path string, parentID drive.ItemID, name string, data []byte) error {
	session, err := c.client.CreateUploadSession(ctx, parentID, name)
	if err != nil {
		return translateError(path, err)
	}

	total := int64(len(data))
	var sent int64

	for start := int64(0); start < total; start += int64(c.chunkSize) {
		end := min(start+int64(c.chunkSize), total)
		r := drive.ByteRange{Start: start, End: end - 1, Total: total}
		chunk := data[start:end]

		err := retryOnConflict(fmt.Sprintf("chunk %s of %s", r.ContentRange(), path), func() error {
			return c.client.UploadChunk(ctx, session, r, chunk)
		})
		if err != nil {
			// The session is abandoned; the service expires it.
			return translateError(path, err)
		}
		sent += int64(len(chunk))
	}

	if sent != total {
		return &FSError{
			Code:    ErrProtocolViolation,
			Message: fmt.Sprintf("resumable upload sent %d of %d bytes", sent, total),
			Path:    path,
		}
	}
	return nil
}

// retryOnConflict runs op and runs it once more if it failed with a conflict.
func retryOnConflict(what string, op func() error) error {
	err := op()
	if !drive.IsConflict(err) {
		return err
	}

	logger.Warn("Conflict on %s, retrying once", what)
	return op()
}
