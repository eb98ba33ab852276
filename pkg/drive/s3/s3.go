// Package s3 implements drive.Drive on top of S3-compatible object storage.
//
// Key Design:
//   - An item's ID is its clean drive path ("/docs/report.pdf"), so IDs stay
//     stable across content replacement but change on rename
//   - Files are stored under KeyPrefix + path without the leading "/"
//   - Folders are marker objects whose key ends with "/"; a prefix that only
//     exists because objects live below it is treated as a folder too
//   - Client timestamps are kept in the object metadata
//
// Resumable uploads map onto S3 multipart uploads. Chunks arrive in 320 KiB
// multiples, well below the 5 MiB minimum S3 part size, so the drive
// aggregates chunks and flushes a part once PartSize bytes are pending.
//
// Thread Safety:
// Safe for concurrent use. Concurrent writes to the same key are
// last-write-wins.
package s3

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/onedrivefs/pkg/drive"
)

const (
	// MinPartSize is the smallest part S3 accepts for any part but the last.
	MinPartSize = 5 * 1024 * 1024

	// DefaultPartSize is used when Config.PartSize is zero.
	DefaultPartSize = 10 * 1024 * 1024

	// maxDeleteBatch is the DeleteObjects limit.
	maxDeleteBatch = 1000

	metaCreated  = "created"
	metaModified = "modified"
)

// Config contains configuration for the S3 drive.
type Config struct {
	// Client is the configured S3 client
	Client *s3.Client

	// Bucket is the S3 bucket name. It must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys, e.g. "onedrive/"
	KeyPrefix string

	// PartSize is the multipart part size (default: 10MB, minimum 5MB)
	PartSize int64
}

// S3Drive implements drive.Drive using S3.
type S3Drive struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	partSize  int64

	mu      sync.Mutex
	uploads map[string]*multipartUpload
}

// New creates an S3 drive and verifies bucket access.
func New(ctx context.Context, cfg Config) (*S3Drive, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, errors.New("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = DefaultPartSize
	}
	if partSize < MinPartSize {
		return nil, fmt.Errorf("part size must be at least 5MB, got %d bytes", partSize)
	}

	prefix := cfg.KeyPrefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &S3Drive{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: prefix,
		partSize:  partSize,
		uploads:   make(map[string]*multipartUpload),
	}, nil
}

// ============================================================================
// Keys
// ============================================================================

// fileKey returns the object key of the file at p.
func (d *S3Drive) fileKey(p string) string {
	return d.keyPrefix + strings.TrimPrefix(drive.CleanPath(p), "/")
}

// dirPrefix returns the key prefix of the folder at p; for a non-root folder
// it is also the key of its marker object.
func (d *S3Drive) dirPrefix(p string) string {
	p = drive.CleanPath(p)
	if p == "/" {
		return d.keyPrefix
	}
	return d.fileKey(p) + "/"
}

// pathOf is the inverse of fileKey and dirPrefix.
func (d *S3Drive) pathOf(key string) string {
	return drive.CleanPath(strings.TrimSuffix(strings.TrimPrefix(key, d.keyPrefix), "/"))
}

// copySource formats bucket/key for CopyObject.
func (d *S3Drive) copySource(key string) string {
	return d.bucket + "/" + strings.ReplaceAll(url.PathEscape(key), "%2F", "/")
}

func childPath(parentID drive.ItemID, name string) string {
	return path.Join(drive.CleanPath(string(parentID)), name)
}

// ============================================================================
// Items
// ============================================================================

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &notFound)
}

func (d *S3Drive) rootItem() *drive.Item {
	return &drive.Item{ID: "/", Name: "root", Folder: &drive.Folder{}}
}

func (d *S3Drive) newItem(p string, size int64, modified *time.Time, meta map[string]string) *drive.Item {
	dir, name := drive.SplitPath(p)
	item := &drive.Item{
		ID:              drive.ItemID(p),
		Name:            name,
		Size:            size,
		ParentReference: &drive.ItemReference{DriveID: d.bucket, ID: drive.ItemID(dir), Path: dir},
	}
	if modified != nil {
		item.CreatedDateTime = modified.UTC()
		item.LastModifiedDateTime = modified.UTC()
	}

	fsi := &drive.FileSystemInfo{}
	if t, err := time.Parse(time.RFC3339Nano, meta[metaCreated]); err == nil {
		fsi.CreatedDateTime = &t
		item.CreatedDateTime = t
	}
	if t, err := time.Parse(time.RFC3339Nano, meta[metaModified]); err == nil {
		fsi.LastModifiedDateTime = &t
	}
	if fsi.CreatedDateTime != nil || fsi.LastModifiedDateTime != nil {
		item.FileSystemInfo = fsi
	}
	return item
}

// head returns the file at p, or an error matching drive.ErrNotFound.
func (d *S3Drive) head(ctx context.Context, p string) (*drive.Item, error) {
	out, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.fileKey(p)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", p, drive.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to head %s: %w", p, err)
	}

	item := d.newItem(p, aws.ToInt64(out.ContentLength), out.LastModified, out.Metadata)
	item.File = &drive.File{MimeType: aws.ToString(out.ContentType)}
	return item, nil
}

// folder returns the folder at p, or an error matching drive.ErrNotFound.
func (d *S3Drive) folder(ctx context.Context, p string) (*drive.Item, error) {
	p = drive.CleanPath(p)
	if p == "/" {
		return d.rootItem(), nil
	}

	marker := d.dirPrefix(p)
	out, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(marker),
	})
	if err == nil {
		item := d.newItem(p, 0, out.LastModified, out.Metadata)
		item.Folder = &drive.Folder{}
		return item, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("failed to head %s: %w", p, err)
	}

	list, err := d.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(d.bucket),
		Prefix:  aws.String(marker),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", p, err)
	}
	if len(list.Contents) == 0 {
		return nil, fmt.Errorf("%s: %w", p, drive.ErrNotFound)
	}

	item := d.newItem(p, 0, nil, nil)
	item.Folder = &drive.Folder{}
	return item, nil
}

// GetItem implements drive.Drive.
func (d *S3Drive) GetItem(ctx context.Context, p string) (*drive.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if drive.CleanPath(p) == "/" {
		return d.rootItem(), nil
	}

	item, err := d.head(ctx, p)
	if err == nil || !drive.IsNotFound(err) {
		return item, err
	}
	return d.folder(ctx, p)
}

// ListChildren implements drive.Drive.
func (d *S3Drive) ListChildren(ctx context.Context, p string) ([]*drive.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := d.folder(ctx, p); err != nil {
		return nil, err
	}

	prefix := d.dirPrefix(p)
	paginator := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(d.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var items []*drive.Item
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", p, err)
		}

		for _, cp := range page.CommonPrefixes {
			item := d.newItem(d.pathOf(aws.ToString(cp.Prefix)), 0, nil, nil)
			item.Folder = &drive.Folder{}
			items = append(items, item)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			item := d.newItem(d.pathOf(key), aws.ToInt64(obj.Size), obj.LastModified, nil)
			item.File = &drive.File{}
			items = append(items, item)
		}
	}
	return items, nil
}

// keysUnder lists every object key below prefix, the prefix itself included.
func (d *S3Drive) keysUnder(ctx context.Context, prefix string) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucket),
		Prefix: aws.String(prefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

var _ drive.Drive = (*S3Drive)(nil)
