package graph

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/marmos91/onedrivefs/pkg/drive"
)

// Download implements drive.Drive.
//
// The service answers with a redirect to a pre-authenticated URL, which the
// HTTP client follows. Only a 200 answer with the whole body is accepted; a
// 206 is reported as a StatusError matching drive.ErrPartialContent.
func (c *Client) Download(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.do(ctx, c.api, request{method: http.MethodGet, url: c.pathURL(path, "/content")})
	if err != nil {
		return nil, err
	}
	if err := expect(resp, http.StatusOK); err != nil {
		return nil, err
	}
	defer drainAndClose(resp)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read content of %s: %w", path, err)
	}
	return data, nil
}

func octetStream(method, url string, data []byte) request {
	return request{
		method:  method,
		url:     url,
		body:    data,
		headers: map[string]string{"Content-Type": "application/octet-stream"},
	}
}

// UploadNew implements drive.Drive with a single PUT addressed by name under
// the parent folder.
func (c *Client) UploadNew(ctx context.Context, parentID drive.ItemID, name string, data []byte) (*drive.Item, error) {
	var item drive.Item
	req := octetStream(http.MethodPut, c.childURL(parentID, name, "/content"), data)
	if err := c.call(ctx, req, &item, http.StatusOK, http.StatusCreated); err != nil {
		return nil, err
	}
	return &item, nil
}

// UploadReplace implements drive.Drive with a single PUT addressed by id.
func (c *Client) UploadReplace(ctx context.Context, id drive.ItemID, data []byte) (*drive.Item, error) {
	var item drive.Item
	req := octetStream(http.MethodPut, c.itemURL(id, "/content"), data)
	if err := c.call(ctx, req, &item, http.StatusOK, http.StatusCreated); err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateUploadSession implements drive.Drive. An existing file with the same
// name is replaced when the upload completes.
func (c *Client) CreateUploadSession(ctx context.Context, parentID drive.ItemID, name string) (*drive.UploadSession, error) {
	req, err := jsonRequest(http.MethodPost, c.childURL(parentID, name, "/createUploadSession"), map[string]any{
		"item": map[string]any{
			"@microsoft.graph.conflictBehavior": "replace",
			"name":                              name,
		},
	})
	if err != nil {
		return nil, err
	}

	var session drive.UploadSession
	if err := c.call(ctx, req, &session, http.StatusOK); err != nil {
		return nil, err
	}
	if session.UploadURL == "" {
		return nil, fmt.Errorf("upload session for %s has no upload url", name)
	}
	return &session, nil
}

// UploadChunk implements drive.Drive. The session URL is pre-authorised, so
// the chunk goes through the upload client without credentials.
func (c *Client) UploadChunk(ctx context.Context, s *drive.UploadSession, r drive.ByteRange, data []byte) error {
	if r.Len() != int64(len(data)) {
		return fmt.Errorf("range %s does not match %d bytes: %w", r.ContentRange(), len(data), drive.ErrInvalidRange)
	}

	req := octetStream(http.MethodPut, s.UploadURL, data)
	req.headers["Content-Range"] = r.ContentRange()

	resp, err := c.do(ctx, c.upload, req)
	if err != nil {
		return err
	}
	if err := expect(resp, http.StatusOK, http.StatusCreated, http.StatusAccepted); err != nil {
		return err
	}
	drainAndClose(resp)
	return nil
}
