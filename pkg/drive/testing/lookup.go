package testing

import (
	"testing"

	"github.com/marmos91/onedrivefs/pkg/drive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunLookupTests executes path resolution and listing tests.
func (suite *DriveTestSuite) RunLookupTests(t *testing.T) {
	t.Run("GetItem_Root", suite.testGetItemRoot)
	t.Run("GetItem_NotFound", suite.testGetItemNotFound)
	t.Run("GetItem_Nested", suite.testGetItemNested)
	t.Run("ListChildren_Empty", suite.testListChildrenEmpty)
	t.Run("ListChildren_Mixed", suite.testListChildrenMixed)
}

func (suite *DriveTestSuite) testGetItemRoot(t *testing.T) {
	d := suite.NewDrive(t)

	root := mustRoot(t, d)
	assert.NotEmpty(t, root.ID)
}

func (suite *DriveTestSuite) testGetItemNotFound(t *testing.T) {
	d := suite.NewDrive(t)

	_, err := d.GetItem(testContext(), "/does-not-exist.txt")
	AssertErrorIs(t, drive.ErrNotFound, err)

	_, err = d.GetItem(testContext(), "/missing-dir/child.txt")
	AssertErrorIs(t, drive.ErrNotFound, err)
}

func (suite *DriveTestSuite) testGetItemNested(t *testing.T) {
	d := suite.NewDrive(t)

	docs := mustFolder(t, d, "docs")
	mustUpload(t, d, docs.ID, "a.txt", []byte("hello"))

	item, err := d.GetItem(testContext(), "/docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", item.Name)
	assert.Equal(t, int64(5), item.Size)
	assert.False(t, item.IsDir())

	folder, err := d.GetItem(testContext(), "/docs")
	require.NoError(t, err)
	assert.True(t, folder.IsDir())
	assert.Equal(t, docs.ID, folder.ID)
}

func (suite *DriveTestSuite) testListChildrenEmpty(t *testing.T) {
	d := suite.NewDrive(t)
	mustFolder(t, d, "empty")

	children, err := d.ListChildren(testContext(), "/empty")
	require.NoError(t, err)
	assert.Empty(t, children)
}

func (suite *DriveTestSuite) testListChildrenMixed(t *testing.T) {
	d := suite.NewDrive(t)

	docs := mustFolder(t, d, "docs")
	mustUpload(t, d, docs.ID, "a.txt", []byte("a"))
	mustUpload(t, d, docs.ID, "b.txt", []byte("bb"))
	_, err := d.CreateFolder(testContext(), docs.ID, "sub")
	require.NoError(t, err)

	children, err := d.ListChildren(testContext(), "/docs")
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, c := range children {
		names[c.Name] = c.IsDir()
	}
	assert.Equal(t, map[string]bool{"a.txt": false, "b.txt": false, "sub": true}, names)
}
