// Package catalog defines the harvested record model and its compact JSON form.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// Sentinels substituted for comment fields the feed leaves out.
const (
	DeletedSentinel = "[deleted]"
	DefaultAvatar   = "/images/profile-load.svg"
)

// ErrIdentityConflict is returned when both external identifiers are set.
var ErrIdentityConflict = errors.New("external movie and series ids are mutually exclusive")

// Timestamp is an absolute instant in Unix seconds. It cannot be negative.
type Timestamp uint64

// TimestampOf converts t to a Timestamp, clamping instants before the epoch to zero.
func TimestampOf(t time.Time) Timestamp {
	if t.Unix() < 0 {
		return 0
	}
	return Timestamp(t.Unix())
}

// Time returns the UTC instant represented by ts.
func (ts Timestamp) Time() time.Time {
	return time.Unix(int64(ts), 0).UTC()
}

// File is one entry of an item's file listing.
type File struct {
	Name string `json:"name"`
	Size uint64 `json:"size_bytes"`
}

// MarshalJSON omits defaulted fields.
func (f File) MarshalJSON() ([]byte, error) {
	type plain File
	return fileOmit.encode(plain(f))
}

// UnmarshalJSON restores defaulted fields.
func (f *File) UnmarshalJSON(data []byte) error {
	type plain File
	var p plain
	if err := fileOmit.decode(data, &p); err != nil {
		return err
	}
	*f = File(p)
	return nil
}

// Comment is a user comment attached to an item.
type Comment struct {
	Avatar    string    `json:"avatar"`
	Class     string    `json:"class"`
	Body      string    `json:"body"`
	CommentID uint64    `json:"comment_id"`
	PostedAt  Timestamp `json:"posted_at"`
	Username  string    `json:"username"`
}

// MarshalJSON omits defaulted fields, including the avatar and deleted-user sentinels.
func (c Comment) MarshalJSON() ([]byte, error) {
	type plain Comment
	return commentOmit.encode(plain(c))
}

// UnmarshalJSON restores defaulted fields.
func (c *Comment) UnmarshalJSON(data []byte) error {
	type plain Comment
	var p plain
	if err := commentOmit.decode(data, &p); err != nil {
		return err
	}
	*c = Comment(p)
	return nil
}

// Item is the full structured payload harvested for one catalog ID. An empty
// list is always nil: empty lists are omitted when encoded and decode as nil.
type Item struct {
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	InfoHash         string    `json:"infohash"`
	Category         string    `json:"category"`
	Type             string    `json:"type"`
	Language         string    `json:"language"`
	TotalSize        uint64    `json:"total_size"`
	Uploader         string    `json:"uploader"`
	Downloads        uint64    `json:"download_count"`
	LastCheckedAt    Timestamp `json:"last_checked_at"`
	UploadedAt       Timestamp `json:"uploaded_at"`
	Seeders          uint64    `json:"seeder_count"`
	Leechers         uint64    `json:"leecher_count"`
	ScrapedAt        Timestamp `json:"scraped_at"`
	ExternalMovieID  *uint64   `json:"external_movie_id"`
	ExternalSeriesID *string   `json:"external_series_id"`
	Images           []string  `json:"images"`
	Trackers         []string  `json:"trackers"`
	Files            []File    `json:"files"`
	Comments         []Comment `json:"comments"`
}

// Validate enforces the invariants of a harvested item.
func (i Item) Validate() error {
	if i.ExternalMovieID != nil && i.ExternalSeriesID != nil {
		return ErrIdentityConflict
	}
	return nil
}

// MarshalJSON omits defaulted fields.
func (i Item) MarshalJSON() ([]byte, error) {
	type plain Item
	return itemOmit.encode(plain(i))
}

// UnmarshalJSON restores defaulted fields.
func (i *Item) UnmarshalJSON(data []byte) error {
	type plain Item
	var p plain
	if err := itemOmit.decode(data, &p); err != nil {
		return err
	}
	*i = Item(p)
	i.normalize()
	return nil
}

// normalize replaces empty lists with nil.
func (i *Item) normalize() {
	if len(i.Images) == 0 {
		i.Images = nil
	}
	if len(i.Trackers) == 0 {
		i.Trackers = nil
	}
	if len(i.Files) == 0 {
		i.Files = nil
	}
	if len(i.Comments) == 0 {
		i.Comments = nil
	}
}

// Record is either a Tombstone or a harvested Item. The zero value is a Tombstone.
type Record struct {
	item *Item
}

// Tombstone returns a record marking an ID that denotes no content.
func Tombstone() Record {
	return Record{}
}

// Found wraps item in a Record. Empty lists are stored as nil.
func Found(item Item) Record {
	item.normalize()
	return Record{item: &item}
}

// IsTombstone reports whether r marks a missing item.
func (r Record) IsTombstone() bool {
	return r.item == nil
}

// Item returns the wrapped item and true, or false for a Tombstone.
func (r Record) Item() (Item, bool) {
	if r.item == nil {
		return Item{}, false
	}
	return *r.item, true
}

var jsonNull = []byte("null")

// MarshalJSON encodes a Tombstone as null and an Item as an object.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.item == nil {
		return jsonNull, nil
	}
	return json.Marshal(*r.item)
}

// UnmarshalJSON decodes null as a Tombstone.
func (r *Record) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		r.item = nil
		return nil
	}
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return err
	}
	r.item = &item
	return nil
}

// Chunk maps catalog IDs to records. It encodes as a JSON object keyed by the
// decimal ID.
type Chunk map[uint64]Record
