package graph

import (
	"context"
	"net/http"

	"github.com/marmos91/onedrivefs/pkg/drive"
)

// GetItem implements drive.Drive.
func (c *Client) GetItem(ctx context.Context, path string) (*drive.Item, error) {
	var item drive.Item
	err := c.call(ctx, request{method: http.MethodGet, url: c.pathURL(path, "")}, &item, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// childrenPage is one page of a children listing.
type childrenPage struct {
	Value    []*drive.Item `json:"value"`
	NextLink string        `json:"@odata.nextLink"`
}

// ListChildren implements drive.Drive. All pages are fetched.
func (c *Client) ListChildren(ctx context.Context, path string) ([]*drive.Item, error) {
	var items []*drive.Item

	next := c.pathURL(path, "/children")
	for next != "" {
		var page childrenPage
		if err := c.call(ctx, request{method: http.MethodGet, url: next}, &page, http.StatusOK); err != nil {
			return nil, err
		}
		items = append(items, page.Value...)
		next = page.NextLink
	}
	return items, nil
}

// CreateFolder implements drive.Drive. An existing name is a conflict.
func (c *Client) CreateFolder(ctx context.Context, parentID drive.ItemID, name string) (*drive.Item, error) {
	req, err := jsonRequest(http.MethodPost, c.itemURL(parentID, "/children"), map[string]any{
		"name":                              name,
		"folder":                            map[string]any{},
		"@microsoft.graph.conflictBehavior": "fail",
	})
	if err != nil {
		return nil, err
	}

	var item drive.Item
	if err := c.call(ctx, req, &item, http.StatusCreated, http.StatusOK); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem implements drive.Drive.
func (c *Client) UpdateItem(ctx context.Context, id drive.ItemID, update drive.ItemUpdate) (*drive.Item, error) {
	req, err := jsonRequest(http.MethodPatch, c.itemURL(id, ""), update)
	if err != nil {
		return nil, err
	}

	var item drive.Item
	if err := c.call(ctx, req, &item, http.StatusOK); err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteItem implements drive.Drive.
func (c *Client) DeleteItem(ctx context.Context, id drive.ItemID) error {
	return c.call(ctx, request{method: http.MethodDelete, url: c.itemURL(id, "")}, nil, http.StatusNoContent)
}
