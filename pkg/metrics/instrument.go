package metrics

import (
	"context"
	"time"

	"github.com/marmos91/onedrivefs/pkg/drive"
)

// InstrumentDrive wraps d so every call is reported to m. A nil m returns a
// wrapper with no-op metrics.
func InstrumentDrive(d drive.Drive, m DriveMetrics) drive.Drive {
	if m == nil {
		m = noopDriveMetrics{}
	}
	return &instrumentedDrive{next: d, metrics: m}
}

// instrumentedDrive is a drive.Drive decorator reporting to DriveMetrics.
type instrumentedDrive struct {
	next    drive.Drive
	metrics DriveMetrics
}

// observe starts timing operation; the returned func records its outcome.
func (d *instrumentedDrive) observe(operation string) func(error) {
	start := time.Now()
	d.metrics.RecordOperationStart(operation)
	return func(err error) {
		d.metrics.RecordOperationEnd(operation)
		d.metrics.RecordOperation(operation, time.Since(start), err)
	}
}

func (d *instrumentedDrive) uploaded(n int, err error) {
	if err == nil {
		d.metrics.RecordBytesTransferred("upload", int64(n))
	}
}

func (d *instrumentedDrive) GetItem(ctx context.Context, path string) (*drive.Item, error) {
	done := d.observe("GetItem")
	item, err := d.next.GetItem(ctx, path)
	done(err)
	return item, err
}

func (d *instrumentedDrive) Download(ctx context.Context, path string) ([]byte, error) {
	done := d.observe("Download")
	data, err := d.next.Download(ctx, path)
	done(err)
	if err == nil {
		d.metrics.RecordBytesTransferred("download", int64(len(data)))
	}
	return data, err
}

func (d *instrumentedDrive) UploadNew(ctx context.Context, parentID drive.ItemID, name string, data []byte) (*drive.Item, error) {
	done := d.observe("UploadNew")
	item, err := d.next.UploadNew(ctx, parentID, name, data)
	done(err)
	d.uploaded(len(data), err)
	return item, err
}

func (d *instrumentedDrive) UploadReplace(ctx context.Context, id drive.ItemID, data []byte) (*drive.Item, error) {
	done := d.observe("UploadReplace")
	item, err := d.next.UploadReplace(ctx, id, data)
	done(err)
	d.uploaded(len(data), err)
	return item, err
}

func (d *instrumentedDrive) CreateUploadSession(ctx context.Context, parentID drive.ItemID, name string) (*drive.UploadSession, error) {
	done := d.observe("CreateUploadSession")
	s, err := d.next.CreateUploadSession(ctx, parentID, name)
	done(err)
	return s, err
}

func (d *instrumentedDrive) UploadChunk(ctx context.Context, s *drive.UploadSession, r drive.ByteRange, data []byte) error {
	done := d.observe("UploadChunk")
	err := d.next.UploadChunk(ctx, s, r, data)
	done(err)
	d.uploaded(len(data), err)
	return err
}

func (d *instrumentedDrive) ListChildren(ctx context.Context, path string) ([]*drive.Item, error) {
	done := d.observe("ListChildren")
	items, err := d.next.ListChildren(ctx, path)
	done(err)
	return items, err
}

func (d *instrumentedDrive) CreateFolder(ctx context.Context, parentID drive.ItemID, name string) (*drive.Item, error) {
	done := d.observe("CreateFolder")
	item, err := d.next.CreateFolder(ctx, parentID, name)
	done(err)
	return item, err
}

func (d *instrumentedDrive) UpdateItem(ctx context.Context, id drive.ItemID, update drive.ItemUpdate) (*drive.Item, error) {
	done := d.observe("UpdateItem")
	item, err := d.next.UpdateItem(ctx, id, update)
	done(err)
	return item, err
}

func (d *instrumentedDrive) DeleteItem(ctx context.Context, id drive.ItemID) error {
	done := d.observe("DeleteItem")
	err := d.next.DeleteItem(ctx, id)
	done(err)
	return err
}

func (d *instrumentedDrive) Copy(ctx context.Context, id drive.ItemID, parent drive.ItemReference, name string) error {
	done := d.observe("Copy")
	err := d.next.Copy(ctx, id, parent, name)
	done(err)
	return err
}
