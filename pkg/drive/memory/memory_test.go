package memory

import (
	"context"
	"testing"

	"github.com/marmos91/onedrivefs/pkg/drive"
	drivetesting "github.com/marmos91/onedrivefs/pkg/drive/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryDrive runs the complete drive test suite against MemoryDrive.
func TestMemoryDrive(t *testing.T) {
	suite := &drivetesting.DriveTestSuite{
		NewDrive: func(t *testing.T) drive.Drive {
			return New()
		},
	}

	suite.Run(t)
}

func TestCaseInsensitiveLookup(t *testing.T) {
	ctx := context.Background()
	d := New()

	_, err := d.WriteFile(ctx, "/Docs/Report.TXT", []byte("x"))
	require.NoError(t, err)

	item, err := d.GetItem(ctx, "/docs/report.txt")
	require.NoError(t, err)
	assert.Equal(t, "Report.TXT", item.Name)
}

func TestMisalignedChunkRejected(t *testing.T) {
	ctx := context.Background()
	d := New()
	root, err := d.GetItem(ctx, "/")
	require.NoError(t, err)

	s, err := d.CreateUploadSession(ctx, root.ID, "bad.bin")
	require.NoError(t, err)

	data := make([]byte, 1000)
	err = d.UploadChunk(ctx, s, drive.ByteRange{Start: 0, End: 999, Total: 5000}, data)
	assert.ErrorIs(t, err, drive.ErrInvalidRange)
	assert.Equal(t, 1, d.OpenSessions())
}

func TestSessionClosedAfterFinalChunk(t *testing.T) {
	ctx := context.Background()
	d := New()
	root, err := d.GetItem(ctx, "/")
	require.NoError(t, err)

	s, err := d.CreateUploadSession(ctx, root.ID, "done.bin")
	require.NoError(t, err)
	require.NoError(t, d.UploadChunk(ctx, s, drive.ByteRange{Start: 0, End: 9, Total: 10}, make([]byte, 10)))

	assert.Equal(t, 0, d.OpenSessions())
	err = d.UploadChunk(ctx, s, drive.ByteRange{Start: 0, End: 9, Total: 10}, make([]byte, 10))
	assert.ErrorIs(t, err, drive.ErrNotFound)
}

func TestSHA1Hash(t *testing.T) {
	ctx := context.Background()
	d := New()

	item, err := d.WriteFile(ctx, "/abc.txt", []byte("abc"))
	require.NoError(t, err)
	require.NotNil(t, item.File)
	assert.Equal(t, "A9993E364706816ABA3E25717850C26C9CD0D89D", item.File.Hashes.SHA1Hash)
}

func TestMkdirAllOverFile(t *testing.T) {
	ctx := context.Background()
	d := New()

	_, err := d.WriteFile(ctx, "/a", []byte("file"))
	require.NoError(t, err)

	_, err = d.MkdirAll(ctx, "/a/b")
	assert.ErrorIs(t, err, drive.ErrConflict)
}
