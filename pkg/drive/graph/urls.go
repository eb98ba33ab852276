package graph

import (
	"errors"
	"net/url"
	"strings"

	"github.com/marmos91/onedrivefs/pkg/drive"
)

// RootSelector picks which drive a Client works on. At most one field may be
// set; with none set the signed-in user's own drive is used.
type RootSelector struct {
	DriveID string
	UserID  string
	GroupID string
	SiteID  string
}

// DriveRoot returns the Graph resource path of the selected drive.
func DriveRoot(sel RootSelector) (string, error) {
	var roots []string
	if sel.DriveID != "" {
		roots = append(roots, "drives/"+url.PathEscape(sel.DriveID))
	}
	if sel.UserID != "" {
		roots = append(roots, "users/"+url.PathEscape(sel.UserID)+"/drive")
	}
	if sel.GroupID != "" {
		roots = append(roots, "groups/"+url.PathEscape(sel.GroupID)+"/drive")
	}
	if sel.SiteID != "" {
		roots = append(roots, "sites/"+url.PathEscape(sel.SiteID)+"/drive")
	}

	switch len(roots) {
	case 0:
		return "me/drive", nil
	case 1:
		return roots[0], nil
	default:
		return "", errors.New("only one of drive id, user id, group id and site id may be set")
	}
}

// escapePath escapes every segment of a clean absolute path.
func escapePath(p string) string {
	segs := drive.Segments(p)
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(segs, "/")
}

// pathURL addresses an item by path.
//
//	/          -> {drive}/root{extra}
//	/docs/a    -> {drive}/root:/docs/a
//	/docs/a +x -> {drive}/root:/docs/a:{extra}
func (c *Client) pathURL(p, extra string) string {
	base := c.baseURL + "/" + c.driveRoot + "/root"
	p = drive.CleanPath(p)
	if p == "/" {
		return base + extra
	}
	u := base + ":" + escapePath(p)
	if extra != "" {
		u += ":" + extra
	}
	return u
}

// itemURL addresses an item by id.
func (c *Client) itemURL(id drive.ItemID, extra string) string {
	return c.baseURL + "/" + c.driveRoot + "/items/" + url.PathEscape(string(id)) + extra
}

// childURL addresses the child name of the folder parentID.
//
//	{drive}/items/{parent}:/{name}:{extra}
func (c *Client) childURL(parentID drive.ItemID, name, extra string) string {
	return c.itemURL(parentID, ":/"+url.PathEscape(name)+":"+extra)
}
