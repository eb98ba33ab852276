package s3

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/onedrivefs/internal/logger"
	"github.com/marmos91/onedrivefs/pkg/drive"
)

// exists reports whether anything lives at p.
func (d *S3Drive) exists(ctx context.Context, p string) (bool, error) {
	_, err := d.GetItem(ctx, p)
	switch {
	case err == nil:
		return true, nil
	case drive.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// CreateFolder implements drive.Drive by writing a folder marker object.
func (d *S3Drive) CreateFolder(ctx context.Context, parentID drive.ItemID, name string) (*drive.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := d.folder(ctx, string(parentID)); err != nil {
		return nil, err
	}

	p := childPath(parentID, name)
	taken, err := d.exists(ctx, p)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%s already exists: %w", name, drive.ErrConflict)
	}

	_, err = d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(d.dirPrefix(p)),
		Body:          strings.NewReader(""),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create folder marker: %w", err)
	}
	return d.folder(ctx, p)
}

// UpdateItem implements drive.Drive. Renames and moves copy every object of
// the item to its new key and delete the old ones; timestamps are rewritten
// into the object metadata.
func (d *S3Drive) UpdateItem(ctx context.Context, id drive.ItemID, update drive.ItemUpdate) (*drive.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := drive.CleanPath(string(id))
	if p == "/" {
		return nil, fmt.Errorf("item %s: %w", id, drive.ErrNotFound)
	}
	item, err := d.GetItem(ctx, p)
	if err != nil {
		return nil, err
	}

	if update.Name != nil || update.ParentReference != nil {
		dir, name := drive.SplitPath(p)
		if update.ParentReference != nil && update.ParentReference.ID != "" {
			dir = drive.CleanPath(string(update.ParentReference.ID))
			if _, err := d.folder(ctx, dir); err != nil {
				return nil, err
			}
		}
		if update.Name != nil {
			name = *update.Name
		}

		target := childPath(drive.ItemID(dir), name)
		if target != p {
			if err := d.copyItem(ctx, item, target); err != nil {
				return nil, err
			}
			if err := d.deleteItem(ctx, item); err != nil {
				return nil, err
			}
			p = target
		}
	}

	if fsi := update.FileSystemInfo; fsi != nil {
		if err := d.stamp(ctx, p, item.IsDir(), fsi); err != nil {
			return nil, err
		}
	}
	return d.GetItem(ctx, p)
}

// stamp rewrites the timestamp metadata of the object behind p, keeping the
// values fsi leaves unset.
func (d *S3Drive) stamp(ctx context.Context, p string, isDir bool, fsi *drive.FileSystemInfo) error {
	key := d.fileKey(p)
	if isDir {
		key = d.dirPrefix(p)
	}

	head, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	meta := map[string]string{}
	switch {
	case err == nil:
		for k, v := range head.Metadata {
			meta[k] = v
		}
	case isDir && isNotFound(err):
		// Implicit folder: materialise its marker to carry the metadata.
		_, err = d.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(d.bucket),
			Key:           aws.String(key),
			Body:          strings.NewReader(""),
			ContentLength: aws.Int64(0),
		})
		if err != nil {
			return fmt.Errorf("failed to create folder marker: %w", err)
		}
	default:
		return fmt.Errorf("failed to head %s: %w", p, err)
	}

	if fsi.CreatedDateTime != nil {
		meta[metaCreated] = fsi.CreatedDateTime.UTC().Format(time.RFC3339Nano)
	}
	if fsi.LastModifiedDateTime != nil {
		meta[metaModified] = fsi.LastModifiedDateTime.UTC().Format(time.RFC3339Nano)
	}

	in := &s3.CopyObjectInput{
		Bucket:            aws.String(d.bucket),
		Key:               aws.String(key),
		CopySource:        aws.String(d.copySource(key)),
		Metadata:          meta,
		MetadataDirective: types.MetadataDirectiveReplace,
	}
	if head != nil {
		in.ContentType = head.ContentType
	}
	if _, err := d.client.CopyObject(ctx, in); err != nil {
		return fmt.Errorf("failed to update metadata of %s: %w", p, err)
	}
	return nil
}

// DeleteItem implements drive.Drive.
func (d *S3Drive) DeleteItem(ctx context.Context, id drive.ItemID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p := drive.CleanPath(string(id))
	if p == "/" {
		return fmt.Errorf("item %s: %w", id, drive.ErrNotFound)
	}
	item, err := d.GetItem(ctx, p)
	if err != nil {
		return err
	}
	return d.deleteItem(ctx, item)
}

func (d *S3Drive) deleteItem(ctx context.Context, item *drive.Item) error {
	p := string(item.ID)
	if !item.IsDir() {
		_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(d.bucket),
			Key:    aws.String(d.fileKey(p)),
		})
		if err != nil {
			return fmt.Errorf("failed to delete %s: %w", p, err)
		}
		return nil
	}

	keys, err := d.keysUnder(ctx, d.dirPrefix(p))
	if err != nil {
		return err
	}
	return d.deleteKeys(ctx, keys)
}

// deleteKeys removes keys in batches of up to 1000.
func (d *S3Drive) deleteKeys(ctx context.Context, keys []string) error {
	for batch := range slices.Chunk(keys, maxDeleteBatch) {
		if err := ctx.Err(); err != nil {
			return err
		}

		objects := make([]types.ObjectIdentifier, len(batch))
		for i, key := range batch {
			objects[i] = types.ObjectIdentifier{Key: aws.String(key)}
		}

		result, err := d.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(d.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects: %w", err)
		}
		if len(result.Errors) > 0 {
			first := result.Errors[0]
			return fmt.Errorf("failed to delete %d objects, first %s: %s",
				len(result.Errors), aws.ToString(first.Key), aws.ToString(first.Message))
		}
	}
	return nil
}

// Copy implements drive.Drive with server-side CopyObject calls. It returns
// once every object has been copied.
func (d *S3Drive) Copy(ctx context.Context, id drive.ItemID, parent drive.ItemReference, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := d.GetItem(ctx, string(id))
	if err != nil {
		return err
	}
	if _, err := d.folder(ctx, string(parent.ID)); err != nil {
		return err
	}

	target := childPath(parent.ID, name)
	taken, err := d.exists(ctx, target)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%s already exists: %w", name, drive.ErrConflict)
	}
	return d.copyItem(ctx, src, target)
}

// copyItem copies the objects behind item so that they live at target.
func (d *S3Drive) copyItem(ctx context.Context, item *drive.Item, target string) error {
	p := string(item.ID)
	if !item.IsDir() {
		return d.copyKey(ctx, d.fileKey(p), d.fileKey(target))
	}

	srcPrefix, dstPrefix := d.dirPrefix(p), d.dirPrefix(target)
	keys, err := d.keysUnder(ctx, srcPrefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		keys = []string{srcPrefix}
	}

	logger.Debug("Copying %d objects from %s to %s", len(keys), p, target)
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if key == srcPrefix {
			_, err = d.client.PutObject(ctx, &s3.PutObjectInput{
				Bucket:        aws.String(d.bucket),
				Key:           aws.String(dstPrefix),
				Body:          strings.NewReader(""),
				ContentLength: aws.Int64(0),
			})
			if err != nil {
				return fmt.Errorf("failed to create folder marker: %w", err)
			}
			continue
		}
		if err := d.copyKey(ctx, key, dstPrefix+strings.TrimPrefix(key, srcPrefix)); err != nil {
			return err
		}
	}
	return nil
}

func (d *S3Drive) copyKey(ctx context.Context, src, dst string) error {
	_, err := d.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(d.bucket),
		Key:        aws.String(dst),
		CopySource: aws.String(d.copySource(src)),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%s: %w", src, drive.ErrNotFound)
		}
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return nil
}
