// Package library describes the media server's item graph as seen by this service.
// Items are owned by the media server; this package only defines the shapes and the
// capabilities used to read and mutate them.
package library

import (
	"errors"
	"strconv"
	"strings"
)

// ErrItemNotFound is returned when an item id does not resolve on the media server
var ErrItemNotFound = errors.New("item not found")

// Kind is the media server's item type name
type Kind string

const (
	KindSeries           Kind = "Series"
	KindSeason           Kind = "Season"
	KindEpisode          Kind = "Episode"
	KindMovie            Kind = "Movie"
	KindFolder           Kind = "Folder"
	KindCollectionFolder Kind = "CollectionFolder"
	KindAudio            Kind = "Audio"
	KindMusicAlbum       Kind = "MusicAlbum"
	KindMusicArtist      Kind = "MusicArtist"
)

// Item is a node in the media server catalog
type Item struct {
	ID          string
	Name        string
	Kind        Kind
	IndexNumber *int // season number for seasons, episode number for episodes
	ParentID    string
	SeasonID    string
	SeriesID    string
}

// Index returns the index number, or 0 when it is absent
func (i *Item) Index() int {
	if i == nil || i.IndexNumber == nil {
		return 0
	}
	return *i.IndexNumber
}

// IndexString formats the index number for log output
func (i *Item) IndexString() string {
	if i == nil || i.IndexNumber == nil {
		return "none"
	}
	return strconv.Itoa(*i.IndexNumber)
}

// Clone returns a copy that can be mutated without touching the original
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	c := *i
	if i.IndexNumber != nil {
		n := *i.IndexNumber
		c.IndexNumber = &n
	}
	return &c
}

// IntPtr is a small helper for building items with index numbers
func IntPtr(n int) *int {
	return &n
}

// NormalizeID returns the media server's compact id form: lower case hex without dashes
func NormalizeID(id string) string {
	return strings.ToLower(strings.ReplaceAll(id, "-", ""))
}
