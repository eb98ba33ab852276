package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DriveMetrics provides observability for drive operations.
//
// Implementations collect request counts, latency, transferred bytes and
// in-flight requests for every call the filesystem makes to its drive,
// whichever backend serves it.
//
// Example usage:
//
//	// With metrics enabled
//	d = metrics.InstrumentDrive(d, metrics.NewDriveMetrics())
//
//	// Without metrics (no-op)
//	d = metrics.InstrumentDrive(d, nil)
type DriveMetrics interface {
	// RecordOperation records a completed drive call.
	//
	// Parameters:
	//   - operation: drive method name (e.g., "GetItem", "UploadChunk")
	//   - duration: Time taken by the call
	//   - err: Error if the call failed, nil if successful
	RecordOperation(operation string, duration time.Duration, err error)

	// RecordOperationStart increments the in-flight counter.
	RecordOperationStart(operation string)

	// RecordOperationEnd decrements the in-flight counter.
	RecordOperationEnd(operation string)

	// RecordBytesTransferred records content bytes moved.
	//
	// Parameters:
	//   - direction: "download" or "upload"
	//   - bytes: Number of bytes transferred
	RecordBytesTransferred(direction string, bytes int64)
}

// driveMetrics is the Prometheus implementation of DriveMetrics.
type driveMetrics struct {
	operationsTotal    *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec
	operationsInFlight *prometheus.GaugeVec
	bytesTransferred   *prometheus.CounterVec
}

var (
	sharedDriveMetrics     *driveMetrics
	sharedDriveMetricsOnce sync.Once
)

// NewDriveMetrics returns the Prometheus-backed DriveMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which
// InstrumentDrive treats as no-op. Collectors are registered once; every
// call returns the same instance.
func NewDriveMetrics() DriveMetrics {
	if !IsEnabled() {
		return nil
	}

	sharedDriveMetricsOnce.Do(func() {
		reg := GetRegistry()

		sharedDriveMetrics = &driveMetrics{
			operationsTotal: promauto.With(reg).NewCounterVec(
				prometheus.CounterOpts{
					Name: "onedrivefs_drive_operations_total",
					Help: "Total number of drive operations by operation and status",
				},
				[]string{"operation", "status"},
			),
			operationDuration: promauto.With(reg).NewHistogramVec(
				prometheus.HistogramOpts{
					Name: "onedrivefs_drive_operation_duration_seconds",
					Help: "Duration of drive operations in seconds",
					Buckets: []float64{
						0.01,  // 10ms
						0.05,  // 50ms
						0.1,   // 100ms
						0.25,  // 250ms
						0.5,   // 500ms
						1.0,   // 1s
						2.5,   // 2.5s
						5.0,   // 5s
						10.0,  // 10s
						30.0,  // 30s (copy jobs)
					},
				},
				[]string{"operation"},
			),
			operationsInFlight: promauto.With(reg).NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "onedrivefs_drive_operations_in_flight",
					Help: "Current number of drive operations being processed",
				},
				[]string{"operation"},
			),
			bytesTransferred: promauto.With(reg).NewCounterVec(
				prometheus.CounterOpts{
					Name: "onedrivefs_drive_bytes_transferred_total",
					Help: "Total content bytes transferred by direction",
				},
				[]string{"direction"},
			),
		}
	})

	return sharedDriveMetrics
}

func (m *driveMetrics) RecordOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *driveMetrics) RecordOperationStart(operation string) {
	m.operationsInFlight.WithLabelValues(operation).Inc()
}

func (m *driveMetrics) RecordOperationEnd(operation string) {
	m.operationsInFlight.WithLabelValues(operation).Dec()
}

func (m *driveMetrics) RecordBytesTransferred(direction string, bytes int64) {
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}

// noopDriveMetrics is used when metrics are disabled.
type noopDriveMetrics struct{}

func (noopDriveMetrics) RecordOperation(operation string, duration time.Duration, err error) {}
func (noopDriveMetrics) RecordOperationStart(operation string)                             {}
func (noopDriveMetrics) RecordOperationEnd(operation string)                               {}
func (noopDriveMetrics) RecordBytesTransferred(direction string, bytes int64)              {}
