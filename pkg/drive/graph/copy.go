package graph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/marmos91/onedrivefs/internal/logger"
	"github.com/marmos91/onedrivefs/pkg/drive"
)

// ErrCopyFailed indicates the service reported a failed copy job.
var ErrCopyFailed = errors.New("copy job failed")

// copyStatus is the body of a copy monitor URL.
// https://learn.microsoft.com/en-us/onedrive/developer/rest-api/concepts/long-running-actions
type copyStatus struct {
	Operation          string  `json:"operation"`
	Status             string  `json:"status"`
	PercentageComplete float64 `json:"percentageComplete"`
	ResourceID         string  `json:"resourceId"`
}

// Copy implements drive.Drive. It starts the copy job and polls its monitor
// URL until the job completes or fails.
func (c *Client) Copy(ctx context.Context, id drive.ItemID, parent drive.ItemReference, name string) error {
	req, err := jsonRequest(http.MethodPost, c.itemURL(id, "/copy"), map[string]any{
		"parentReference": parent,
		"name":            name,
	})
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, c.api, req)
	if err != nil {
		return err
	}
	if err := expect(resp, http.StatusAccepted); err != nil {
		return err
	}
	monitor := resp.Header.Get("Location")
	drainAndClose(resp)
	if monitor == "" {
		return fmt.Errorf("copy of %s accepted without a monitor url", id)
	}

	return c.waitForCopy(ctx, monitor)
}

func (c *Client) waitForCopy(ctx context.Context, monitor string) error {
	for {
		resp, err := c.do(ctx, c.upload, request{method: http.MethodGet, url: monitor})
		if err != nil {
			return err
		}
		if err := expect(resp, http.StatusOK, http.StatusAccepted); err != nil {
			return err
		}

		var status copyStatus
		if err := decode(resp, &status); err != nil {
			return err
		}

		switch status.Status {
		case "completed":
			return nil
		case "":
			// A finished job may redirect to the new item, which has no status.
			return nil
		case "failed":
			return fmt.Errorf("%w: %s", ErrCopyFailed, monitor)
		case "notStarted", "inProgress", "waiting":
		default:
			logger.Warn("Unexpected copy status %q from %s", status.Status, monitor)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}
