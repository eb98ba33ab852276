package onedrivefs

import (
	"bytes"
	"testing"

	"github.com/marmos91/onedrivefs/pkg/drive"
	"github.com/marmos91/onedrivefs/pkg/drive/drivetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAndClose(t *testing.T, env *testEnv, path string, data []byte) error {
	t.Helper()
	f, err := env.fs.Open(env.ctx, path, "w")
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	return f.Close()
}

func TestNewCommitterDefaults(t *testing.T) {
	c, err := NewCommitter(nil, CommitterConfig{})
	require.NoError(t, err)
	assert.Equal(t, DefaultUploadThreshold, c.Threshold())
	assert.Equal(t, 327680, c.ChunkSize())
}

func TestNewCommitterChunkSizeValidation(t *testing.T) {
	_, err := NewCommitter(nil, CommitterConfig{ChunkSize: 1000})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewCommitter(nil, CommitterConfig{ChunkSize: -drive.ChunkAlignment})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewCommitter(nil, CommitterConfig{Threshold: -1})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	c, err := NewCommitter(nil, CommitterConfig{ChunkSize: 4 * drive.ChunkAlignment})
	require.NoError(t, err)
	assert.Equal(t, 4*drive.ChunkAlignment, c.ChunkSize())
}

func TestSmallCreateIssuesOneRequest(t *testing.T) {
	env := newTestEnv(t)
	env.mkdir(t, "/docs")
	data := []byte("0123456789")

	require.NoError(t, writeAndClose(t, env, "/docs/a.txt", data))

	uploads := env.rec.Calls(drivetest.OpUploadNew)
	require.Len(t, uploads, 1)
	assert.Equal(t, "a.txt", uploads[0].Name)
	assert.Equal(t, 10, uploads[0].Size)

	assert.Equal(t, 0, env.rec.Count(drivetest.OpUploadReplace))
	assert.Equal(t, 0, env.rec.Count(drivetest.OpCreateUploadSession))
	assert.Equal(t, 0, env.rec.Count(drivetest.OpUploadChunk))
	assert.Equal(t, data, env.content(t, "/docs/a.txt"))
}

func TestSmallReplaceAddressesItemID(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "/docs/a.txt", []byte("old"))
	existing, err := env.mem.GetItem(env.ctx, "/docs/a.txt")
	require.NoError(t, err)

	require.NoError(t, writeAndClose(t, env, "/docs/a.txt", []byte("replacement")))

	replaces := env.rec.Calls(drivetest.OpUploadReplace)
	require.Len(t, replaces, 1)
	assert.Equal(t, existing.ID, replaces[0].ID)
	assert.Equal(t, 0, env.rec.Count(drivetest.OpUploadNew))
	assert.Equal(t, []byte("replacement"), env.content(t, "/docs/a.txt"))
}

func TestLargeUploadIsChunked(t *testing.T) {
	env := newTestEnv(t)
	env.mkdir(t, "/docs")
	data := make([]byte, 5_000_000)

	require.NoError(t, writeAndClose(t, env, "/docs/big.bin", data))

	assert.Equal(t, 1, env.rec.Count(drivetest.OpCreateUploadSession))
	assert.Equal(t, 0, env.rec.Count(drivetest.OpUploadNew))

	chunks := env.rec.Calls(drivetest.OpUploadChunk)
	require.Len(t, chunks, 16)

	var sum int
	for i, c := range chunks {
		start := int64(i) * 327680
		assert.Equal(t, start, c.Range.Start, "chunk %d", i)
		assert.Equal(t, int64(5_000_000), c.Range.Total)
		if i < len(chunks)-1 {
			assert.Equal(t, start+327679, c.Range.End, "chunk %d", i)
			assert.Equal(t, 327680, c.Size)
		} else {
			assert.Equal(t, int64(4_999_999), c.Range.End)
			assert.Equal(t, 5_000_000-15*327680, c.Size)
		}
		sum += c.Size
	}
	assert.Equal(t, len(data), sum)

	assert.Equal(t, []string{"bytes 0-327679/5000000", "bytes 327680-655359/5000000"},
		[]string{chunks[0].Range.ContentRange(), chunks[1].Range.ContentRange()})
	assert.Equal(t, data, env.content(t, "/docs/big.bin"))
	assert.Equal(t, 0, env.mem.OpenSessions())
}

func TestThresholdBoundary(t *testing.T) {
	env := newTestEnvWithConfig(t, CommitterConfig{Threshold: 100})

	require.NoError(t, writeAndClose(t, env, "/below.bin", make([]byte, 99)))
	assert.Equal(t, 1, env.rec.Count(drivetest.OpUploadNew))
	assert.Equal(t, 0, env.rec.Count(drivetest.OpCreateUploadSession))

	env.rec.Reset()
	require.NoError(t, writeAndClose(t, env, "/at.bin", make([]byte, 100)))
	assert.Equal(t, 0, env.rec.Count(drivetest.OpUploadNew))
	assert.Equal(t, 1, env.rec.Count(drivetest.OpCreateUploadSession))
	assert.Equal(t, 1, env.rec.Count(drivetest.OpUploadChunk))
}

func TestLargeUploadRoundTripsPattern(t *testing.T) {
	env := newTestEnvWithConfig(t, CommitterConfig{Threshold: 1000, ChunkSize: 2 * drive.ChunkAlignment})
	data := bytes.Repeat([]byte("onedrive"), 200_000)

	require.NoError(t, writeAndClose(t, env, "/pattern.bin", data))

	chunks := env.rec.Calls(drivetest.OpUploadChunk)
	require.Len(t, chunks, 3)
	assert.Equal(t, 2*drive.ChunkAlignment, chunks[0].Size)
	assert.Equal(t, data, env.content(t, "/pattern.bin"))
}

func TestConflictRetriedOnce(t *testing.T) {
	env := newTestEnv(t)
	env.rec.FailNext(drivetest.OpUploadNew, drivetest.Conflict())

	require.NoError(t, writeAndClose(t, env, "/retry.txt", []byte("payload")))

	uploads := env.rec.Calls(drivetest.OpUploadNew)
	require.Len(t, uploads, 2)
	assert.Equal(t, uploads[0].Size, uploads[1].Size, "the retry must send the identical body")
	assert.Equal(t, []byte("payload"), env.content(t, "/retry.txt"))
}

func TestReplaceConflictRetriedOnce(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "/retry.txt", []byte("old"))
	env.rec.FailNext(drivetest.OpUploadReplace, drivetest.Conflict())

	require.NoError(t, writeAndClose(t, env, "/retry.txt", []byte("new")))
	assert.Equal(t, 2, env.rec.Count(drivetest.OpUploadReplace))
}

func TestDoubleConflictFails(t *testing.T) {
	env := newTestEnv(t)
	env.rec.FailNext(drivetest.OpUploadNew, drivetest.Conflict(), drivetest.Conflict())

	err := writeAndClose(t, env, "/conflict.txt", []byte("payload"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, drive.ErrConflict)

	assert.Equal(t, 2, env.rec.Count(drivetest.OpUploadNew))
	_, err = env.mem.GetItem(env.ctx, "/conflict.txt")
	assert.ErrorIs(t, err, drive.ErrNotFound)
}

func TestNonConflictFailureNotRetried(t *testing.T) {
	env := newTestEnv(t)
	env.rec.FailNext(drivetest.OpUploadNew, drivetest.Status(503))

	err := writeAndClose(t, env, "/down.txt", []byte("payload"))
	assert.ErrorIs(t, err, ErrRemoteFailure)

	var se *drive.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 503, se.StatusCode)
	assert.Equal(t, 1, env.rec.Count(drivetest.OpUploadNew))
}

func TestChunkConflictRetriedOnce(t *testing.T) {
	env := newTestEnvWithConfig(t, CommitterConfig{Threshold: 1000})
	data := make([]byte, 3*drive.ChunkAlignment)
	env.rec.FailNext(drivetest.OpUploadChunk, nil, drivetest.Conflict())

	require.NoError(t, writeAndClose(t, env, "/chunky.bin", data))

	chunks := env.rec.Calls(drivetest.OpUploadChunk)
	require.Len(t, chunks, 4)
	assert.Equal(t, chunks[1].Range, chunks[2].Range, "the failed chunk is resent with the same range")
	assert.Equal(t, data, env.content(t, "/chunky.bin"))
}

func TestChunkDoubleConflictAbortsUpload(t *testing.T) {
	env := newTestEnvWithConfig(t, CommitterConfig{Threshold: 1000})
	data := make([]byte, 3*drive.ChunkAlignment)
	env.rec.FailNext(drivetest.OpUploadChunk, nil, drivetest.Conflict(), drivetest.Conflict())

	err := writeAndClose(t, env, "/chunky.bin", data)
	assert.ErrorIs(t, err, ErrConflict)

	chunks := env.rec.Calls(drivetest.OpUploadChunk)
	require.Len(t, chunks, 3, "no chunk after the failing one is sent")
	assert.Equal(t, int64(drive.ChunkAlignment), chunks[2].Range.Start)

	// The session is abandoned, not cancelled.
	assert.Equal(t, 1, env.mem.OpenSessions())
	_, err = env.mem.GetItem(env.ctx, "/chunky.bin")
	assert.ErrorIs(t, err, drive.ErrNotFound)
}

func TestCommitParentVanished(t *testing.T) {
	env := newTestEnv(t)
	env.mkdir(t, "/docs")

	f, err := env.fs.Open(env.ctx, "/docs/a.txt", "w")
	require.NoError(t, err)
	_, err = f.Write([]byte("x"))
	require.NoError(t, err)

	docs, err := env.mem.GetItem(env.ctx, "/docs")
	require.NoError(t, err)
	require.NoError(t, env.mem.DeleteItem(env.ctx, docs.ID))

	err = f.Close()
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, env.rec.Count(drivetest.OpUploadNew))
}

func TestCommitDirect(t *testing.T) {
	env := newTestEnv(t)
	c := env.fs.Committer()

	require.NoError(t, c.Commit(env.ctx, "/direct.txt", drive.None(), []byte("direct")))
	assert.Equal(t, []byte("direct"), env.content(t, "/direct.txt"))

	err := c.Commit(env.ctx, "/", drive.None(), []byte("x"))
	assert.ErrorIs(t, err, ErrFileExpected)

	err = c.Commit(env.ctx, "/direct.txt/child", drive.None(), []byte("x"))
	assert.ErrorIs(t, err, ErrDirectoryExpected)
}
