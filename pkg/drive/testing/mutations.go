package testing

import (
	"testing"
	"time"

	"github.com/marmos91/onedrivefs/pkg/drive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunMutationTests executes folder creation, update, delete and copy tests.
func (suite *DriveTestSuite) RunMutationTests(t *testing.T) {
	t.Run("CreateFolder_Conflict", suite.testCreateFolderConflict)
	t.Run("UpdateItem_Rename", suite.testUpdateItemRename)
	t.Run("UpdateItem_Timestamps", suite.testUpdateItemTimestamps)
	t.Run("DeleteItem_File", suite.testDeleteItemFile)
	t.Run("DeleteItem_FolderRecursive", suite.testDeleteItemFolderRecursive)
	t.Run("Copy_File", suite.testCopyFile)
	t.Run("Copy_Folder", suite.testCopyFolder)
}

func (suite *DriveTestSuite) testCreateFolderConflict(t *testing.T) {
	d := suite.NewDrive(t)
	root := mustRoot(t, d)
	mustFolder(t, d, "dup")

	_, err := d.CreateFolder(testContext(), root.ID, "dup")
	AssertErrorIs(t, drive.ErrConflict, err)
}

func (suite *DriveTestSuite) testUpdateItemRename(t *testing.T) {
	d := suite.NewDrive(t)
	root := mustRoot(t, d)
	item := mustUpload(t, d, root.ID, "before.txt", []byte("x"))

	name := "after.txt"
	_, err := d.UpdateItem(testContext(), item.ID, drive.ItemUpdate{Name: &name})
	require.NoError(t, err)

	_, err = d.GetItem(testContext(), "/before.txt")
	AssertErrorIs(t, drive.ErrNotFound, err)
	assert.Equal(t, []byte("x"), mustDownload(t, d, "/after.txt"))
}

func (suite *DriveTestSuite) testUpdateItemTimestamps(t *testing.T) {
	d := suite.NewDrive(t)
	root := mustRoot(t, d)
	item := mustUpload(t, d, root.ID, "stamp.txt", []byte("x"))

	created := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)
	modified := time.Date(2011, 12, 13, 14, 15, 16, 0, time.UTC)
	_, err := d.UpdateItem(testContext(), item.ID, drive.ItemUpdate{
		FileSystemInfo: &drive.FileSystemInfo{CreatedDateTime: &created, LastModifiedDateTime: &modified},
	})
	require.NoError(t, err)

	got, err := d.GetItem(testContext(), "/stamp.txt")
	require.NoError(t, err)
	require.NotNil(t, got.FileSystemInfo)
	require.NotNil(t, got.FileSystemInfo.CreatedDateTime)
	require.NotNil(t, got.FileSystemInfo.LastModifiedDateTime)
	assert.True(t, created.Equal(*got.FileSystemInfo.CreatedDateTime))
	assert.True(t, modified.Equal(*got.FileSystemInfo.LastModifiedDateTime))
}

func (suite *DriveTestSuite) testDeleteItemFile(t *testing.T) {
	d := suite.NewDrive(t)
	root := mustRoot(t, d)
	item := mustUpload(t, d, root.ID, "gone.txt", []byte("x"))

	require.NoError(t, d.DeleteItem(testContext(), item.ID))

	_, err := d.GetItem(testContext(), "/gone.txt")
	AssertErrorIs(t, drive.ErrNotFound, err)
}

func (suite *DriveTestSuite) testDeleteItemFolderRecursive(t *testing.T) {
	d := suite.NewDrive(t)
	folder := mustFolder(t, d, "tree")
	mustUpload(t, d, folder.ID, "leaf.txt", []byte("x"))

	require.NoError(t, d.DeleteItem(testContext(), folder.ID))

	_, err := d.GetItem(testContext(), "/tree/leaf.txt")
	AssertErrorIs(t, drive.ErrNotFound, err)
	_, err = d.GetItem(testContext(), "/tree")
	AssertErrorIs(t, drive.ErrNotFound, err)
}

func (suite *DriveTestSuite) testCopyFile(t *testing.T) {
	d := suite.NewDrive(t)
	root := mustRoot(t, d)
	dst := mustFolder(t, d, "dst")
	src := mustUpload(t, d, root.ID, "src.txt", []byte("copy me"))

	err := d.Copy(testContext(), src.ID, drive.ItemReference{ID: dst.ID}, "copied.txt")
	require.NoError(t, err)

	assert.Equal(t, []byte("copy me"), mustDownload(t, d, "/dst/copied.txt"))
	assert.Equal(t, []byte("copy me"), mustDownload(t, d, "/src.txt"))
}

func (suite *DriveTestSuite) testCopyFolder(t *testing.T) {
	if suite.SkipFolderCopy {
		t.Skip("Drive does not copy folders")
	}
	d := suite.NewDrive(t)
	root := mustRoot(t, d)
	src := mustFolder(t, d, "srcdir")
	mustUpload(t, d, src.ID, "inner.txt", []byte("inner"))

	err := d.Copy(testContext(), src.ID, drive.ItemReference{ID: root.ID}, "dstdir")
	require.NoError(t, err)

	assert.Equal(t, []byte("inner"), mustDownload(t, d, "/dstdir/inner.txt"))
}
