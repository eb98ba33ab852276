package testing

import (
	"testing"

	"github.com/marmos91/onedrivefs/pkg/drive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunContentTests executes single-shot upload and download tests.
func (suite *DriveTestSuite) RunContentTests(t *testing.T) {
	t.Run("Download_NotFound", suite.testDownloadNotFound)
	t.Run("UploadNew_RoundTrip", suite.testUploadNewRoundTrip)
	t.Run("UploadNew_Empty", suite.testUploadNewEmpty)
	t.Run("UploadNew_Overwrites", suite.testUploadNewOverwrites)
	t.Run("UploadReplace", suite.testUploadReplace)
	t.Run("UploadReplace_NotFound", suite.testUploadReplaceNotFound)
}

func (suite *DriveTestSuite) testDownloadNotFound(t *testing.T) {
	d := suite.NewDrive(t)

	_, err := d.Download(testContext(), "/nope.bin")
	AssertErrorIs(t, drive.ErrNotFound, err)
}

func (suite *DriveTestSuite) testUploadNewRoundTrip(t *testing.T) {
	d := suite.NewDrive(t)
	root := mustRoot(t, d)

	data := pattern(64 * 1024)
	item := mustUpload(t, d, root.ID, "blob.bin", data)
	assert.Equal(t, "blob.bin", item.Name)
	assert.Equal(t, int64(len(data)), item.Size)

	assert.Equal(t, data, mustDownload(t, d, "/blob.bin"))
}

func (suite *DriveTestSuite) testUploadNewEmpty(t *testing.T) {
	d := suite.NewDrive(t)
	root := mustRoot(t, d)

	mustUpload(t, d, root.ID, "empty.txt", []byte{})

	data := mustDownload(t, d, "/empty.txt")
	assert.Len(t, data, 0)
}

func (suite *DriveTestSuite) testUploadNewOverwrites(t *testing.T) {
	d := suite.NewDrive(t)
	root := mustRoot(t, d)

	first := mustUpload(t, d, root.ID, "a.txt", []byte("first"))
	second := mustUpload(t, d, root.ID, "a.txt", []byte("second"))

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, []byte("second"), mustDownload(t, d, "/a.txt"))
}

func (suite *DriveTestSuite) testUploadReplace(t *testing.T) {
	d := suite.NewDrive(t)
	root := mustRoot(t, d)

	item := mustUpload(t, d, root.ID, "a.txt", []byte("old content"))

	updated, err := d.UploadReplace(testContext(), item.ID, []byte("new"))
	require.NoError(t, err)
	assert.Equal(t, item.ID, updated.ID)
	assert.Equal(t, int64(3), updated.Size)

	assert.Equal(t, []byte("new"), mustDownload(t, d, "/a.txt"))
}

func (suite *DriveTestSuite) testUploadReplaceNotFound(t *testing.T) {
	d := suite.NewDrive(t)

	_, err := d.UploadReplace(testContext(), drive.ItemID("missing-item"), []byte("x"))
	AssertErrorIs(t, drive.ErrNotFound, err)
}
