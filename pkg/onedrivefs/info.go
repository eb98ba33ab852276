package onedrivefs

import (
	"time"

	"github.com/marmos91/onedrivefs/pkg/drive"
)

// Namespace selects a group of Info fields.
type Namespace string

const (
	NamespaceBasic          Namespace = "basic"
	NamespaceDetails        Namespace = "details"
	NamespaceFileSystemInfo Namespace = "file_system_info"
	NamespacePhoto          Namespace = "photo"
	NamespaceImage          Namespace = "image"
	NamespaceLocation       Namespace = "location"
	NamespaceHashes         Namespace = "hashes"
)

// Info describes a file or folder.
//
// Basic, details and file_system_info are always filled. The photo, image,
// location and hashes namespaces are only present when the service returned
// that facet for the item; use Has to tell.
type Info struct {
	// basic
	Name  string
	IsDir bool

	// details
	Size     int64
	Created  time.Time
	Modified time.Time

	// file_system_info: timestamps reported by the client that wrote the item
	ClientCreated  *time.Time
	ClientModified *time.Time

	Photo    *drive.Photo
	Image    *drive.Image
	Location *drive.Location

	// Hashes maps "CRC32", "SHA1" and "quickXorHash" to hex digests.
	Hashes map[string]string

	ItemID   drive.ItemID
	MimeType string
}

// Has reports whether the namespace is present.
func (i *Info) Has(ns Namespace) bool {
	switch ns {
	case NamespaceBasic, NamespaceDetails, NamespaceFileSystemInfo:
		return true
	case NamespacePhoto:
		return i.Photo != nil
	case NamespaceImage:
		return i.Image != nil
	case NamespaceLocation:
		return i.Location != nil
	case NamespaceHashes:
		return i.Hashes != nil
	}
	return false
}

// Namespaces lists the namespaces present on the Info.
func (i *Info) Namespaces() []Namespace {
	all := []Namespace{
		NamespaceBasic, NamespaceDetails, NamespaceFileSystemInfo,
		NamespacePhoto, NamespaceImage, NamespaceLocation, NamespaceHashes,
	}
	out := make([]Namespace, 0, len(all))
	for _, ns := range all {
		if i.Has(ns) {
			out = append(out, ns)
		}
	}
	return out
}

// Type returns "directory" or "file".
func (i *Info) Type() string {
	if i.IsDir {
		return "directory"
	}
	return "file"
}

// infoFromItem translates a drive item.
func infoFromItem(item *drive.Item) *Info {
	info := &Info{
		Name:     item.Name,
		IsDir:    item.IsDir(),
		Size:     item.Size,
		Created:  item.CreatedDateTime,
		Modified: item.LastModifiedDateTime,
		Photo:    item.Photo,
		Image:    item.Image,
		Location: item.Location,
		ItemID:   item.ID,
	}

	if fsi := item.FileSystemInfo; fsi != nil {
		info.ClientCreated = fsi.CreatedDateTime
		info.ClientModified = fsi.LastModifiedDateTime
	}

	if item.File != nil {
		info.MimeType = item.File.MimeType
		if h := item.File.Hashes; h != nil {
			info.Hashes = make(map[string]string)
			if h.CRC32Hash != "" {
				info.Hashes["CRC32"] = h.CRC32Hash
			}
			if h.SHA1Hash != "" {
				info.Hashes["SHA1"] = h.SHA1Hash
			}
			if h.QuickXorHash != "" {
				info.Hashes["quickXorHash"] = h.QuickXorHash
			}
		}
	}

	return info
}

// InfoUpdate changes the timestamps of an item. Nil fields are left alone.
// Name, type and size cannot be changed this way.
type InfoUpdate struct {
	Created  *time.Time
	Modified *time.Time
}

func (u InfoUpdate) empty() bool {
	return u.Created == nil && u.Modified == nil
}

func (u InfoUpdate) toItemUpdate() drive.ItemUpdate {
	fsi := &drive.FileSystemInfo{}
	if u.Created != nil {
		t := u.Created.UTC()
		fsi.CreatedDateTime = &t
	}
	if u.Modified != nil {
		t := u.Modified.UTC()
		fsi.LastModifiedDateTime = &t
	}
	return drive.ItemUpdate{FileSystemInfo: fsi}
}
