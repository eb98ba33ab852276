package drive

import (
	"fmt"
	"time"
)

// ItemID is the opaque identifier the service assigns to a file or folder.
type ItemID string

// OptionalItemID is an ItemID that may be absent.
//
// A file handle carries one to decide between "create new content under the
// parent" (absent) and "replace the content of this item" (present).
type OptionalItemID struct {
	id  ItemID
	set bool
}

// Some returns an OptionalItemID holding id.
func Some(id ItemID) OptionalItemID {
	return OptionalItemID{id: id, set: true}
}

// None returns an empty OptionalItemID.
func None() OptionalItemID {
	return OptionalItemID{}
}

// Get returns the id and whether it is present.
func (o OptionalItemID) Get() (ItemID, bool) {
	return o.id, o.set
}

// IsSome reports whether an id is present.
func (o OptionalItemID) IsSome() bool {
	return o.set
}

func (o OptionalItemID) String() string {
	if !o.set {
		return "None"
	}
	return fmt.Sprintf("Some(%s)", o.id)
}

// Item mirrors the fields of a Graph DriveItem that the adapter consumes.
// https://learn.microsoft.com/en-us/onedrive/developer/rest-api/resources/driveitem
type Item struct {
	ID                   ItemID          `json:"id"`
	Name                 string          `json:"name"`
	Size                 int64           `json:"size"`
	CreatedDateTime      time.Time       `json:"createdDateTime"`
	LastModifiedDateTime time.Time       `json:"lastModifiedDateTime"`
	FileSystemInfo       *FileSystemInfo `json:"fileSystemInfo,omitempty"`
	ParentReference      *ItemReference  `json:"parentReference,omitempty"`
	Folder               *Folder         `json:"folder,omitempty"`
	File                 *File           `json:"file,omitempty"`
	Photo                *Photo          `json:"photo,omitempty"`
	Image                *Image          `json:"image,omitempty"`
	Location             *Location       `json:"location,omitempty"`
}

// IsDir reports whether the item is a folder.
func (i *Item) IsDir() bool {
	return i.Folder != nil
}

// FileSystemInfo holds the client-reported timestamps of an item.
type FileSystemInfo struct {
	CreatedDateTime      *time.Time `json:"createdDateTime,omitempty"`
	LastModifiedDateTime *time.Time `json:"lastModifiedDateTime,omitempty"`
}

// ItemReference points at an item, usually a parent folder.
type ItemReference struct {
	DriveID string `json:"driveId,omitempty"`
	ID      ItemID `json:"id,omitempty"`
	Path    string `json:"path,omitempty"`
}

// Folder marks an item as a folder.
type Folder struct {
	ChildCount int `json:"childCount"`
}

// File marks an item as a file.
type File struct {
	MimeType string  `json:"mimeType,omitempty"`
	Hashes   *Hashes `json:"hashes,omitempty"`
}

// Hashes carries the content hashes the service computed. Which ones are
// present depends on the drive type.
type Hashes struct {
	CRC32Hash    string `json:"crc32Hash,omitempty"`
	SHA1Hash     string `json:"sha1Hash,omitempty"`
	SHA256Hash   string `json:"sha256Hash,omitempty"`
	QuickXorHash string `json:"quickXorHash,omitempty"`
}

// Photo is the EXIF metadata the service extracts from images.
type Photo struct {
	CameraMake          *string    `json:"cameraMake,omitempty"`
	CameraModel         *string    `json:"cameraModel,omitempty"`
	ExposureDenominator *float64   `json:"exposureDenominator,omitempty"`
	ExposureNumerator   *float64   `json:"exposureNumerator,omitempty"`
	FocalLength         *float64   `json:"focalLength,omitempty"`
	FNumber             *float64   `json:"fNumber,omitempty"`
	TakenDateTime       *time.Time `json:"takenDateTime,omitempty"`
	ISO                 *int       `json:"iso,omitempty"`
}

// Image holds image dimensions.
type Image struct {
	Width  *int `json:"width,omitempty"`
	Height *int `json:"height,omitempty"`
}

// Location is a geographic position attached to an item.
type Location struct {
	Altitude  *float64 `json:"altitude,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// ItemUpdate is a partial update of an item. Nil fields are left unchanged.
type ItemUpdate struct {
	Name            *string         `json:"name,omitempty"`
	ParentReference *ItemReference  `json:"parentReference,omitempty"`
	FileSystemInfo  *FileSystemInfo `json:"fileSystemInfo,omitempty"`
}

// UploadSession is a server-side resumable upload. It only lives for the
// duration of one commit and is never persisted.
type UploadSession struct {
	UploadURL          string    `json:"uploadUrl"`
	ExpirationDateTime time.Time `json:"expirationDateTime"`
}

// ByteRange is the position of one chunk inside a resumable upload.
// End is inclusive.
type ByteRange struct {
	Start int64
	End   int64
	Total int64
}

// Len returns the number of bytes covered by the range.
func (r ByteRange) Len() int64 {
	return r.End - r.Start + 1
}

// Final reports whether the range carries the last byte of the upload.
func (r ByteRange) Final() bool {
	return r.End+1 == r.Total
}

// ContentRange formats the range as a Content-Range header value.
func (r ByteRange) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, r.Total)
}
