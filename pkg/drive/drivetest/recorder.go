// Package drivetest provides a drive.Drive wrapper that records every call
// and can inject scripted failures. Tests use it to observe exactly which
// requests a commit issued and to simulate conflict responses.
package drivetest

import (
	"context"
	"net/http"
	"sync"

	"github.com/marmos91/onedrivefs/pkg/drive"
)

// Op names a drive operation.
type Op string

const (
	OpGetItem             Op = "GetItem"
	OpListChildren        Op = "ListChildren"
	OpDownload            Op = "Download"
	OpUploadNew           Op = "UploadNew"
	OpUploadReplace       Op = "UploadReplace"
	OpCreateUploadSession Op = "CreateUploadSession"
	OpUploadChunk         Op = "UploadChunk"
	OpCreateFolder        Op = "CreateFolder"
	OpUpdateItem          Op = "UpdateItem"
	OpDeleteItem          Op = "DeleteItem"
	OpCopy                Op = "Copy"
)

// Call is one recorded invocation. Only the fields relevant to Op are set.
type Call struct {
	Op       Op
	Path     string
	ID       drive.ItemID
	ParentID drive.ItemID
	Name     string
	Size     int
	Range    drive.ByteRange
	Err      error
}

// Recorder wraps a drive.Drive, recording calls and injecting failures.
type Recorder struct {
	next drive.Drive

	mu     sync.Mutex
	calls  []Call
	faults map[Op][]error
}

// New wraps next.
func New(next drive.Drive) *Recorder {
	return &Recorder{next: next, faults: make(map[Op][]error)}
}

// FailNext makes the next len(errs) calls of op return errs in order without
// reaching the wrapped drive. A nil entry lets that call through.
func (r *Recorder) FailNext(op Op, errs ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults[op] = append(r.faults[op], errs...)
}

// Calls returns the recorded calls, filtered to ops when any are given.
func (r *Recorder) Calls(ops ...Op) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(ops) == 0 {
		out := make([]Call, len(r.calls))
		copy(out, r.calls)
		return out
	}

	want := make(map[Op]bool, len(ops))
	for _, op := range ops {
		want[op] = true
	}
	var out []Call
	for _, c := range r.calls {
		if want[c.Op] {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how many times op was called.
func (r *Recorder) Count(op Op) int {
	return len(r.Calls(op))
}

// Reset forgets all recorded calls and pending faults.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.faults = make(map[Op][]error)
}

// Conflict returns the error a drive produces for an HTTP 409 response.
func Conflict() error {
	return &drive.StatusError{Method: http.MethodPut, URL: "drivetest://conflict", StatusCode: http.StatusConflict}
}

// Status returns a StatusError with the given code.
func Status(code int) error {
	return &drive.StatusError{Method: http.MethodGet, URL: "drivetest://status", StatusCode: code}
}

// begin records c and pops the next scripted fault for its op.
func (r *Recorder) begin(c Call) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if queue := r.faults[c.Op]; len(queue) > 0 {
		err = queue[0]
		r.faults[c.Op] = queue[1:]
	}
	c.Err = err
	r.calls = append(r.calls, c)
	return len(r.calls) - 1, err
}

// finish stores the outcome of a call that reached the wrapped drive.
func (r *Recorder) finish(idx int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[idx].Err = err
}

func (r *Recorder) GetItem(ctx context.Context, path string) (*drive.Item, error) {
	idx, err := r.begin(Call{Op: OpGetItem, Path: path})
	if err != nil {
		return nil, err
	}
	item, err := r.next.GetItem(ctx, path)
	r.finish(idx, err)
	return item, err
}

func (r *Recorder) ListChildren(ctx context.Context, path string) ([]*drive.Item, error) {
	idx, err := r.begin(Call{Op: OpListChildren, Path: path})
	if err != nil {
		return nil, err
	}
	items, err := r.next.ListChildren(ctx, path)
	r.finish(idx, err)
	return items, err
}

func (r *Recorder) Download(ctx context.Context, path string) ([]byte, error) {
	idx, err := r.begin(Call{Op: OpDownload, Path: path})
	if err != nil {
		return nil, err
	}
	data, err := r.next.Download(ctx, path)
	r.finish(idx, err)
	return data, err
}

func (r *Recorder) UploadNew(ctx context.Context, parentID drive.ItemID, name string, data []byte) (*drive.Item, error) {
	idx, err := r.begin(Call{Op: OpUploadNew, ParentID: parentID, Name: name, Size: len(data)})
	if err != nil {
		return nil, err
	}
	item, err := r.next.UploadNew(ctx, parentID, name, data)
	r.finish(idx, err)
	return item, err
}

func (r *Recorder) UploadReplace(ctx context.Context, id drive.ItemID, data []byte) (*drive.Item, error) {
	idx, err := r.begin(Call{Op: OpUploadReplace, ID: id, Size: len(data)})
	if err != nil {
		return nil, err
	}
	item, err := r.next.UploadReplace(ctx, id, data)
	r.finish(idx, err)
	return item, err
}

func (r *Recorder) CreateUploadSession(ctx context.Context, parentID drive.ItemID, name string) (*drive.UploadSession, error) {
	idx, err := r.begin(Call{Op: OpCreateUploadSession, ParentID: parentID, Name: name})
	if err != nil {
		return nil, err
	}
	s, err := r.next.CreateUploadSession(ctx, parentID, name)
	r.finish(idx, err)
	return s, err
}

func (r *Recorder) UploadChunk(ctx context.Context, s *drive.UploadSession, br drive.ByteRange, data []byte) error {
	idx, err := r.begin(Call{Op: OpUploadChunk, Range: br, Size: len(data)})
	if err != nil {
		return err
	}
	err = r.next.UploadChunk(ctx, s, br, data)
	r.finish(idx, err)
	return err
}

func (r *Recorder) CreateFolder(ctx context.Context, parentID drive.ItemID, name string) (*drive.Item, error) {
	idx, err := r.begin(Call{Op: OpCreateFolder, ParentID: parentID, Name: name})
	if err != nil {
		return nil, err
	}
	item, err := r.next.CreateFolder(ctx, parentID, name)
	r.finish(idx, err)
	return item, err
}

func (r *Recorder) UpdateItem(ctx context.Context, id drive.ItemID, update drive.ItemUpdate) (*drive.Item, error) {
	idx, err := r.begin(Call{Op: OpUpdateItem, ID: id})
	if err != nil {
		return nil, err
	}
	item, err := r.next.UpdateItem(ctx, id, update)
	r.finish(idx, err)
	return item, err
}

func (r *Recorder) DeleteItem(ctx context.Context, id drive.ItemID) error {
	idx, err := r.begin(Call{Op: OpDeleteItem, ID: id})
	if err != nil {
		return err
	}
	err = r.next.DeleteItem(ctx, id)
	r.finish(idx, err)
	return err
}

func (r *Recorder) Copy(ctx context.Context, id drive.ItemID, parent drive.ItemReference, name string) error {
	idx, err := r.begin(Call{Op: OpCopy, ID: id, ParentID: parent.ID, Name: name})
	if err != nil {
		return err
	}
	err = r.next.Copy(ctx, id, parent, name)
	r.finish(idx, err)
	return err
}

var _ drive.Drive = (*Recorder)(nil)
