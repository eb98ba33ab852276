package onedrivefs

import (
	"context"
	"errors"
	"io"

	"github.com/marmos91/onedrivefs/internal/logger"
	"github.com/marmos91/onedrivefs/pkg/drive"
)

// fileState tracks a handle through its lifecycle:
//
//	Fetching -> Buffered -> Closing -> Committed | Discarded
//
// Committed and Discarded are terminal.
type fileState int

const (
	stateFetching fileState = iota
	stateBuffered
	stateClosing
	stateCommitted
	stateDiscarded
)

func (s fileState) String() string {
	switch s {
	case stateFetching:
		return "fetching"
	case stateBuffered:
		return "buffered"
	case stateClosing:
		return "closing"
	case stateCommitted:
		return "committed"
	case stateDiscarded:
		return "discarded"
	}
	return "unknown"
}

func (s fileState) terminal() bool {
	return s == stateCommitted || s == stateDiscarded
}

// File is an open remote file held entirely in memory.
//
// Opening may download the current content. Reads, writes, seeks and
// truncates work on the local buffer only; Close uploads the buffer once if
// the handle was opened for writing.
//
// A File is owned by a single caller and is not safe for concurrent use.
type File struct {
	path      string
	itemID    drive.OptionalItemID
	mode      Mode
	committer *Committer

	buf   []byte
	pos   int64
	state fileState
}

// NewFile creates a handle for path.
//
// itemID identifies the existing remote file, if any; it selects between
// replacing that item's content and creating a new file on commit.
// When mode reads or appends without truncating, the current content is
// downloaded through client. A missing file is only acceptable when
// appending.
func NewFile(ctx context.Context, client drive.ContentClient, committer *Committer, path string, itemID drive.OptionalItemID, mode Mode) (*File, error) {
	f := &File{
		path:      path,
		itemID:    itemID,
		mode:      mode,
		committer: committer,
		state:     stateFetching,
	}

	if mode.fetches() {
		data, err := client.Download(ctx, path)
		switch {
		case err == nil:
			f.buf = data
		case errors.Is(err, drive.ErrPartialContent):
			return nil, &FSError{Code: ErrProtocolViolation, Message: "partial content for whole-file download", Path: path, Err: err}
		case drive.IsNotFound(err) && mode.Appending:
			logger.Debug("Open %s: nothing to append to, starting empty", path)
		default:
			return nil, translateError(path, err)
		}
	}

	if mode.Appending {
		f.pos = int64(len(f.buf))
	}

	f.state = stateBuffered
	return f, nil
}

// Name returns the path the handle was opened with.
func (f *File) Name() string {
	return f.path
}

// Mode returns the parsed open mode.
func (f *File) Mode() Mode {
	return f.mode
}

// Readable reports whether the handle was opened for reading.
func (f *File) Readable() bool {
	return f.mode.Reading
}

// Writable reports whether the handle was opened for writing.
func (f *File) Writable() bool {
	return f.mode.Writing
}

// Closed reports whether Close has been called.
func (f *File) Closed() bool {
	return f.state.terminal() || f.state == stateClosing
}

// Size returns the current buffer length.
func (f *File) Size() int64 {
	return int64(len(f.buf))
}

// Tell returns the cursor position.
func (f *File) Tell() int64 {
	return f.pos
}

func (f *File) check(allowed bool) error {
	if f.Closed() {
		return newError(ErrClosed, f.path)
	}
	if !allowed {
		return &FSError{Code: ErrPermission, Message: "handle opened with mode " + f.mode.String(), Path: f.path}
	}
	return nil
}

// Read implements io.Reader.
func (f *File) Read(p []byte) (int, error) {
	if err := f.check(f.mode.Reading); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if f.pos >= int64(len(f.buf)) {
		return 0, io.EOF
	}

	n := copy(p, f.buf[f.pos:])
	f.pos += int64(n)
	return n, nil
}

// Write implements io.Writer. Writing past the end zero-fills the gap.
func (f *File) Write(p []byte) (int, error) {
	if err := f.check(f.mode.Writing); err != nil {
		return 0, err
	}

	end := f.pos + int64(len(p))
	if end > int64(len(f.buf)) {
		f.grow(end)
	}
	n := copy(f.buf[f.pos:], p)
	f.pos += int64(n)
	return n, nil
}

// Seek implements io.Seeker.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.Closed() {
		return 0, newError(ErrClosed, f.path)
	}

	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.pos + offset
	case io.SeekEnd:
		abs = int64(len(f.buf)) + offset
	default:
		return 0, &FSError{Code: ErrInvalidArgument, Message: "invalid whence", Path: f.path}
	}
	if abs < 0 {
		return 0, &FSError{Code: ErrInvalidArgument, Message: "negative position", Path: f.path}
	}

	f.pos = abs
	return abs, nil
}

// Truncate changes the buffer length to size.
//
// Shrinking drops trailing bytes. Growing appends zero bytes and moves the
// cursor to the previous end of the buffer, not to the new end.
func (f *File) Truncate(size int64) error {
	if err := f.check(f.mode.Writing); err != nil {
		return err
	}
	if size < 0 {
		return &FSError{Code: ErrInvalidArgument, Message: "negative truncate size", Path: f.path}
	}

	length := int64(len(f.buf))
	if size <= length {
		f.buf = f.buf[:size]
		return nil
	}

	f.grow(size)
	f.pos = length
	return nil
}

// grow extends the buffer with zero bytes to size.
func (f *File) grow(size int64) {
	if size <= int64(cap(f.buf)) {
		old := len(f.buf)
		f.buf = f.buf[:size]
		clear(f.buf[old:])
		return
	}
	buf := make([]byte, size, max(size, 2*int64(cap(f.buf))))
	copy(buf, f.buf)
	f.buf = buf
}

// Close commits the buffer if the handle is writable. See CloseContext.
func (f *File) Close() error {
	return f.CloseContext(context.Background())
}

// CloseContext closes the handle, committing the buffer through ctx when
// the handle was opened for writing.
//
// Only the first call does anything; later calls return nil. The handle is
// closed even when the commit fails, and the commit is never attempted
// again.
func (f *File) CloseContext(ctx context.Context) error {
	if f.Closed() {
		return nil
	}

	if !f.mode.Writing {
		f.state = stateDiscarded
		f.buf = nil
		return nil
	}

	f.state = stateClosing
	err := f.committer.Commit(ctx, f.path, f.itemID, f.buf)
	if err != nil {
		logger.Error("Commit %s failed: %v", f.path, err)
		f.state = stateDiscarded
		return err
	}

	f.state = stateCommitted
	return nil
}

var (
	_ io.ReadWriteSeeker = (*File)(nil)
	_ io.Closer          = (*File)(nil)
)
