package testing

import (
	"testing"

	"github.com/marmos91/onedrivefs/pkg/drive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunResumableTests executes upload session tests.
func (suite *DriveTestSuite) RunResumableTests(t *testing.T) {
	t.Run("Session_AlignedChunks", suite.testSessionAlignedChunks)
	t.Run("Session_SingleChunk", suite.testSessionSingleChunk)
	t.Run("Session_ReplacesExisting", suite.testSessionReplacesExisting)
	t.Run("Session_OutOfOrder", suite.testSessionOutOfOrder)
}

// uploadInChunks sends data through a session using chunkSize chunks.
func uploadInChunks(t *testing.T, d drive.Drive, s *drive.UploadSession, data []byte, chunkSize int) {
	t.Helper()
	total := int64(len(data))
	for start := 0; start < len(data); start += chunkSize {
		end := start + chunkSize
		if end > len(data) {
			end = len(data)
		}
		r := drive.ByteRange{Start: int64(start), End: int64(end - 1), Total: total}
		require.NoError(t, d.UploadChunk(testContext(), s, r, data[start:end]))
	}
}

func (suite *DriveTestSuite) testSessionAlignedChunks(t *testing.T) {
	d := suite.NewDrive(t)
	docs := mustFolder(t, d, "docs")

	data := pattern(3*drive.ChunkAlignment + 12345)

	s, err := d.CreateUploadSession(testContext(), docs.ID, "big.bin")
	require.NoError(t, err)
	require.NotEmpty(t, s.UploadURL)

	uploadInChunks(t, d, s, data, drive.ChunkAlignment)

	item, err := d.GetItem(testContext(), "/docs/big.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), item.Size)
	assert.Equal(t, data, mustDownload(t, d, "/docs/big.bin"))
}

func (suite *DriveTestSuite) testSessionSingleChunk(t *testing.T) {
	d := suite.NewDrive(t)
	root := mustRoot(t, d)

	data := pattern(1000)

	s, err := d.CreateUploadSession(testContext(), root.ID, "small.bin")
	require.NoError(t, err)
	uploadInChunks(t, d, s, data, drive.ChunkAlignment)

	assert.Equal(t, data, mustDownload(t, d, "/small.bin"))
}

func (suite *DriveTestSuite) testSessionReplacesExisting(t *testing.T) {
	d := suite.NewDrive(t)
	root := mustRoot(t, d)

	original := mustUpload(t, d, root.ID, "file.bin", []byte("short"))

	data := pattern(2*drive.ChunkAlignment + 1)
	s, err := d.CreateUploadSession(testContext(), root.ID, "file.bin")
	require.NoError(t, err)
	uploadInChunks(t, d, s, data, 2*drive.ChunkAlignment)

	item, err := d.GetItem(testContext(), "/file.bin")
	require.NoError(t, err)
	assert.Equal(t, original.ID, item.ID)
	assert.Equal(t, data, mustDownload(t, d, "/file.bin"))
}

func (suite *DriveTestSuite) testSessionOutOfOrder(t *testing.T) {
	d := suite.NewDrive(t)
	root := mustRoot(t, d)

	data := pattern(2 * drive.ChunkAlignment)
	s, err := d.CreateUploadSession(testContext(), root.ID, "ooo.bin")
	require.NoError(t, err)

	second := drive.ByteRange{Start: drive.ChunkAlignment, End: 2*drive.ChunkAlignment - 1, Total: int64(len(data))}
	err = d.UploadChunk(testContext(), s, second, data[drive.ChunkAlignment:])
	require.Error(t, err)

	_, err = d.GetItem(testContext(), "/ooo.bin")
	AssertErrorIs(t, drive.ErrNotFound, err)
}
