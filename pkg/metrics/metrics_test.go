package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/marmos91/onedrivefs/pkg/drive"
	"github.com/marmos91/onedrivefs/pkg/drive/memory"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentDrive_Noop(t *testing.T) {
	ctx := context.Background()
	d := InstrumentDrive(memory.New(), nil)

	root, err := d.GetItem(ctx, "/")
	require.NoError(t, err)
	_, err = d.UploadNew(ctx, root.ID, "a.txt", []byte("abc"))
	require.NoError(t, err)

	data, err := d.Download(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)
}

func TestInstrumentDrive_Prometheus(t *testing.T) {
	InitRegistry()
	m, ok := NewDriveMetrics().(*driveMetrics)
	require.True(t, ok)
	assert.Same(t, m, NewDriveMetrics(), "collectors are registered once")

	ctx := context.Background()
	d := InstrumentDrive(memory.New(), m)

	okBefore := testutil.ToFloat64(m.operationsTotal.WithLabelValues("UploadNew", "success"))
	errBefore := testutil.ToFloat64(m.operationsTotal.WithLabelValues("GetItem", "error"))
	upBefore := testutil.ToFloat64(m.bytesTransferred.WithLabelValues("upload"))
	downBefore := testutil.ToFloat64(m.bytesTransferred.WithLabelValues("download"))

	root, err := d.GetItem(ctx, "/")
	require.NoError(t, err)
	_, err = d.UploadNew(ctx, root.ID, "a.bin", make([]byte, 10))
	require.NoError(t, err)
	_, err = d.Download(ctx, "/a.bin")
	require.NoError(t, err)
	_, err = d.GetItem(ctx, "/missing")
	require.True(t, errors.Is(err, drive.ErrNotFound))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(m.operationsTotal.WithLabelValues("UploadNew", "success")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(m.operationsTotal.WithLabelValues("GetItem", "error")))
	assert.Equal(t, upBefore+10, testutil.ToFloat64(m.bytesTransferred.WithLabelValues("upload")))
	assert.Equal(t, downBefore+10, testutil.ToFloat64(m.bytesTransferred.WithLabelValues("download")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.operationsInFlight.WithLabelValues("GetItem")))
}

func TestServer(t *testing.T) {
	InitRegistry()
	NewDriveMetrics().RecordOperation("GetItem", time.Millisecond, nil)

	srv, err := NewServer(ServerConfig{Listen: "127.0.0.1:0"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + srv.Addr() + "/metrics")
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		data, _ := io.ReadAll(resp.Body)
		body = string(data)
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	assert.Contains(t, body, "onedrivefs_drive_operations_total")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
