package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/onedrivefs/pkg/drive"
)

// Download implements drive.Drive.
func (d *S3Drive) Download(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.fileKey(p)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", p, drive.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}

func (d *S3Drive) put(ctx context.Context, p string, data []byte) (*drive.Item, error) {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(d.fileKey(p)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to put object: %w", err)
	}
	return d.head(ctx, p)
}

// UploadNew implements drive.Drive.
func (d *S3Drive) UploadNew(ctx context.Context, parentID drive.ItemID, name string, data []byte) (*drive.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := d.folder(ctx, string(parentID)); err != nil {
		return nil, err
	}
	return d.put(ctx, childPath(parentID, name), data)
}

// UploadReplace implements drive.Drive.
func (d *S3Drive) UploadReplace(ctx context.Context, id drive.ItemID, data []byte) (*drive.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := d.head(ctx, string(id)); err != nil {
		return nil, err
	}
	return d.put(ctx, string(id), data)
}
