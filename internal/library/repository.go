package library

//go:generate mockgen -source=repository.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"
)

// UpdateReason tags why an item changed on the media server
type UpdateReason string

const (
	ReasonNone                    UpdateReason = "None"
	ReasonFileMetadataImport      UpdateReason = "FileMetadataImport"
	ReasonMetadataImport          UpdateReason = "MetadataImport"
	ReasonMetadataDownload        UpdateReason = "MetadataDownload"
	ReasonImageUpdate             UpdateReason = "ImageUpdate"
	ReasonMetadataEdit            UpdateReason = "MetadataEdit"
	ReasonUserDataSaved           UpdateReason = "UserDataSaved"
	ReasonChapterMetadataDownload UpdateReason = "ChapterMetadataDownload"
)

// ParseUpdateReason maps a wire value to an UpdateReason. Empty values map to ReasonNone.
func ParseUpdateReason(s string) UpdateReason {
	if s == "" {
		return ReasonNone
	}
	return UpdateReason(s)
}

// RefreshMode mirrors the media server's metadata refresh modes
type RefreshMode string

const (
	RefreshModeNone           RefreshMode = "None"
	RefreshModeValidationOnly RefreshMode = "ValidationOnly"
	RefreshModeDefault        RefreshMode = "Default"
	RefreshModeFullRefresh    RefreshMode = "FullRefresh"
)

// RefreshOptions describes a metadata refresh request
type RefreshOptions struct {
	ReplaceAllMetadata bool
	ReplaceImages      bool
	MetadataMode       RefreshMode
	ImageMode          RefreshMode
}

// Repository is the media server's item store
type Repository interface {
	// GetItem returns the item with the given id, or ErrItemNotFound
	GetItem(ctx context.Context, id string) (*Item, error)

	// RecursiveChildren returns every descendant of a container item in the server's order
	RecursiveChildren(ctx context.Context, parentID string) ([]*Item, error)

	// Seasons returns the seasons of a series
	Seasons(ctx context.Context, series *Item) ([]*Item, error)

	// Episodes returns the episodes of a season
	Episodes(ctx context.Context, season *Item) ([]*Item, error)

	// UpdateItem persists the item's mutable fields
	UpdateItem(ctx context.Context, item *Item, reason UpdateReason) error
}

// Refresher runs metadata refreshes on the media server
type Refresher interface {
	RefreshMetadata(ctx context.Context, item *Item, opts RefreshOptions) error
}

// Library is a top-level media server library
type Library struct {
	ID    string   `json:"Id"`
	Name  string   `json:"Name"`
	Type  string   `json:"CollectionType"`
	Paths []string `json:"Locations,omitempty"`
}

// LibraryLister lists the media server's libraries
type LibraryLister interface {
	Libraries(ctx context.Context) ([]Library, error)
}

// BatchResult summarizes a library-wide batch operation
type BatchResult struct {
	LibraryID string        `json:"LibraryId"`
	Found     bool          `json:"Found"`
	Total     int           `json:"Total"`
	Processed int           `json:"Processed"`
	Failed    int           `json:"Failed"`
	Cancelled bool          `json:"Cancelled"`
	Duration  time.Duration `json:"Duration"`
}
