package onedrivefs

import (
	"context"
	"testing"

	"github.com/marmos91/onedrivefs/pkg/drive/drivetest"
	"github.com/marmos91/onedrivefs/pkg/drive/memory"
	"github.com/stretchr/testify/require"
)

// testEnv is a filesystem over a recorded memory drive.
type testEnv struct {
	ctx context.Context
	mem *memory.MemoryDrive
	rec *drivetest.Recorder
	fs  *FS
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, CommitterConfig{})
}

func newTestEnvWithConfig(t *testing.T, cfg CommitterConfig) *testEnv {
	t.Helper()

	mem := memory.New()
	rec := drivetest.New(mem)
	fsys, err := New(rec, cfg)
	require.NoError(t, err)

	return &testEnv{ctx: context.Background(), mem: mem, rec: rec, fs: fsys}
}

// seed writes a file directly to the memory drive, bypassing the recorder.
func (e *testEnv) seed(t *testing.T, path string, data []byte) {
	t.Helper()
	_, err := e.mem.WriteFile(e.ctx, path, data)
	require.NoError(t, err)
}

// mkdir creates a folder directly on the memory drive.
func (e *testEnv) mkdir(t *testing.T, path string) {
	t.Helper()
	_, err := e.mem.MkdirAll(e.ctx, path)
	require.NoError(t, err)
}

// content downloads a file directly from the memory drive.
func (e *testEnv) content(t *testing.T, path string) []byte {
	t.Helper()
	data, err := e.mem.Download(e.ctx, path)
	require.NoError(t, err)
	return data
}
