package s3

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/marmos91/onedrivefs/internal/logger"
	"github.com/marmos91/onedrivefs/pkg/drive"
)

// SessionIdleTimeout is how long a resumable upload may go without a chunk
// before the drive aborts it. Graph expires abandoned sessions the same way.
const SessionIdleTimeout = time.Hour

// multipartUpload tracks one resumable upload session.
type multipartUpload struct {
	mu sync.Mutex

	// lastUsed is guarded by S3Drive.mu, not mu.
	lastUsed time.Time

	path     string
	key      string
	uploadID string

	// received counts the bytes accepted so far, pending the ones not yet
	// sent as a part.
	received int64
	total    int64
	pending  []byte
	parts    []types.CompletedPart

	// partsDone is set once every byte was sent as a part and only the
	// completion call is outstanding.
	partsDone bool
}

// completionRetry reports whether r resends the final chunk of a session
// whose parts are all uploaded but whose completion failed.
func (u *multipartUpload) completionRetry(r drive.ByteRange, n int) bool {
	return u.partsDone &&
		r.Final() &&
		r.Total == u.total &&
		r.End+1 == u.received &&
		r.Len() == int64(n)
}

// accept validates r against the session state and buffers data. It returns
// whether pending bytes should now be flushed as a part.
func (u *multipartUpload) accept(r drive.ByteRange, data []byte, partSize int64) (bool, error) {
	switch {
	case u.total >= 0 && r.Total != u.total:
		return false, fmt.Errorf("total size changed from %d to %d: %w", u.total, r.Total, drive.ErrInvalidRange)
	case r.Start != u.received:
		return false, fmt.Errorf("expected range starting at %d, got %s: %w", u.received, r.ContentRange(), drive.ErrInvalidRange)
	case r.Len() != int64(len(data)):
		return false, fmt.Errorf("range %s does not match %d bytes: %w", r.ContentRange(), len(data), drive.ErrInvalidRange)
	case r.End >= r.Total:
		return false, fmt.Errorf("range %s ends past total: %w", r.ContentRange(), drive.ErrInvalidRange)
	case !r.Final() && r.Len()%drive.ChunkAlignment != 0:
		return false, fmt.Errorf("chunk of %d bytes is not a multiple of %d: %w", r.Len(), drive.ChunkAlignment, drive.ErrInvalidRange)
	}

	u.total = r.Total
	u.received += r.Len()
	u.pending = append(u.pending, data...)
	return r.Final() || int64(len(u.pending)) >= partSize, nil
}

// CreateUploadSession implements drive.Drive by starting a multipart upload.
func (d *S3Drive) CreateUploadSession(ctx context.Context, parentID drive.ItemID, name string) (*drive.UploadSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := d.folder(ctx, string(parentID)); err != nil {
		return nil, err
	}

	d.abortIdle(ctx, time.Now())

	p := childPath(parentID, name)
	key := d.fileKey(p)

	result, err := d.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart upload: %w", err)
	}

	sessionURL := fmt.Sprintf("s3://%s/%s?session=%s", d.bucket, key, uuid.NewString())

	d.mu.Lock()
	d.uploads[sessionURL] = &multipartUpload{
		path:     p,
		key:      key,
		uploadID: aws.ToString(result.UploadId),
		total:    -1,
		lastUsed: time.Now(),
	}
	d.mu.Unlock()

	return &drive.UploadSession{UploadURL: sessionURL}, nil
}

// UploadChunk implements drive.Drive. Chunks are buffered until a part of
// PartSize bytes is ready; the final chunk completes the multipart upload.
func (d *S3Drive) UploadChunk(ctx context.Context, s *drive.UploadSession, r drive.ByteRange, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	u, ok := d.uploads[s.UploadURL]
	if ok {
		u.lastUsed = time.Now()
	}
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("upload session %s: %w", s.UploadURL, drive.ErrNotFound)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.completionRetry(r, len(data)) {
		return d.complete(ctx, s.UploadURL, u)
	}

	flush, err := u.accept(r, data, d.partSize)
	if err != nil || !flush {
		return err
	}

	if err := d.uploadPart(ctx, u); err != nil {
		// Forget the chunk so it can be resent with the same range.
		u.received -= r.Len()
		u.pending = u.pending[:len(u.pending)-len(data)]
		return err
	}
	if !r.Final() {
		return nil
	}

	u.partsDone = true
	return d.complete(ctx, s.UploadURL, u)
}

// complete finishes the multipart upload and forgets the session. On failure
// the session is kept so the final chunk can be resent. Callers hold u.mu.
func (d *S3Drive) complete(ctx context.Context, sessionURL string, u *multipartUpload) error {
	_, err := d.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(d.bucket),
		Key:             aws.String(u.key),
		UploadId:        aws.String(u.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: u.parts},
	})
	if err != nil {
		return fmt.Errorf("failed to complete multipart upload: %w", err)
	}

	d.mu.Lock()
	delete(d.uploads, sessionURL)
	d.mu.Unlock()

	logger.Debug("Completed multipart upload of %s in %d parts", u.path, len(u.parts))
	return nil
}

// takeIdle removes and returns the sessions not used since
// SessionIdleTimeout before now.
func (d *S3Drive) takeIdle(now time.Time) []*multipartUpload {
	d.mu.Lock()
	defer d.mu.Unlock()

	var idle []*multipartUpload
	for sessionURL, u := range d.uploads {
		if now.Sub(u.lastUsed) >= SessionIdleTimeout {
			idle = append(idle, u)
			delete(d.uploads, sessionURL)
		}
	}
	return idle
}

// abortIdle aborts the multipart uploads of abandoned sessions.
func (d *S3Drive) abortIdle(ctx context.Context, now time.Time) {
	for _, u := range d.takeIdle(now) {
		_, err := d.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(d.bucket),
			Key:      aws.String(u.key),
			UploadId: aws.String(u.uploadID),
		})
		if err != nil {
			logger.Warn("Failed to abort idle multipart upload of %s: %v", u.path, err)
			continue
		}
		logger.Debug("Aborted idle multipart upload of %s", u.path)
	}
}

// uploadPart sends the pending bytes as the next part. Callers hold u.mu.
func (d *S3Drive) uploadPart(ctx context.Context, u *multipartUpload) error {
	partNumber := int32(len(u.parts) + 1)

	result, err := d.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(d.bucket),
		Key:        aws.String(u.key),
		UploadId:   aws.String(u.uploadID),
		PartNumber: aws.Int32(partNumber),
		Body:       bytes.NewReader(u.pending),
	})
	if err != nil {
		return fmt.Errorf("failed to upload part %d: %w", partNumber, err)
	}

	u.parts = append(u.parts, types.CompletedPart{
		ETag:       result.ETag,
		PartNumber: aws.Int32(partNumber),
	})
	u.pending = nil
	return nil
}

// OpenSessions returns how many resumable uploads are still in progress.
func (d *S3Drive) OpenSessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.uploads)
}
