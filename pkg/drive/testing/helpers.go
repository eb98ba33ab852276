package testing

import (
	"testing"

	"github.com/marmos91/onedrivefs/pkg/drive"
	"github.com/stretchr/testify/require"
)

// mustRoot returns the root folder item.
func mustRoot(t *testing.T, d drive.Drive) *drive.Item {
	t.Helper()
	root, err := d.GetItem(testContext(), "/")
	require.NoError(t, err)
	require.True(t, root.IsDir(), "root must be a folder")
	return root
}

// mustFolder creates a folder under the root.
func mustFolder(t *testing.T, d drive.Drive, name string) *drive.Item {
	t.Helper()
	item, err := d.CreateFolder(testContext(), mustRoot(t, d).ID, name)
	require.NoError(t, err)
	return item
}

// mustUpload uploads data as name under parent.
func mustUpload(t *testing.T, d drive.Drive, parent drive.ItemID, name string, data []byte) *drive.Item {
	t.Helper()
	item, err := d.UploadNew(testContext(), parent, name, data)
	require.NoError(t, err)
	return item
}

// mustDownload downloads the file at path.
func mustDownload(t *testing.T, d drive.Drive, path string) []byte {
	t.Helper()
	data, err := d.Download(testContext(), path)
	require.NoError(t, err)
	return data
}

// pattern returns n bytes of a repeating, position-dependent pattern so that
// misplaced chunks are detected.
func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// AssertErrorIs fails the test unless errors.Is(err, target).
func AssertErrorIs(t *testing.T, target, err error) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, target)
}
