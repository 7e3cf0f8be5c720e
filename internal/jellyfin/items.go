package jellyfin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/saltyorg/easierlife/internal/library"
)

const pageSize = 500

// itemFields are requested so that a fetched item can be posted back without losing data
const itemFields = "ParentId,Path,Overview,Genres,Tags,Studios,People,ProviderIds,ExternalUrls,Taglines,ProductionLocations,RemoteTrailers,LockedFields"

// itemDTO is the subset of BaseItemDto mapped onto library.Item
type itemDTO struct {
	ID                string `json:"Id"`
	Name              string `json:"Name"`
	Type              string `json:"Type"`
	IndexNumber       *int   `json:"IndexNumber"`
	ParentIndexNumber *int   `json:"ParentIndexNumber"`
	ParentID          string `json:"ParentId"`
	SeasonID          string `json:"SeasonId"`
	SeriesID          string `json:"SeriesId"`
}

func (d itemDTO) toItem() *library.Item {
	return &library.Item{
		ID:          d.ID,
		Name:        d.Name,
		Kind:        library.Kind(d.Type),
		IndexNumber: d.IndexNumber,
		ParentID:    d.ParentID,
		SeasonID:    d.SeasonID,
		SeriesID:    d.SeriesID,
	}
}

type itemsResponse struct {
	Items            []itemDTO `json:"Items"`
	TotalRecordCount int       `json:"TotalRecordCount"`
}

type rawItemsResponse struct {
	Items []map[string]json.RawMessage `json:"Items"`
}

func toItems(dtos []itemDTO) []*library.Item {
	items := make([]*library.Item, 0, len(dtos))
	for _, d := range dtos {
		items = append(items, d.toItem())
	}
	return items
}

// GetItem implements library.Repository. Library roots are resolved through the virtual folder list.
func (c *Client) GetItem(ctx context.Context, id string) (*library.Item, error) {
	q := url.Values{}
	q.Set("Ids", id)
	q.Set("Fields", "ParentId")
	q.Set("EnableImages", "false")

	var resp itemsResponse
	if err := c.do(ctx, http.MethodGet, "/Items", q, nil, &resp); err != nil && !errors.Is(err, library.ErrItemNotFound) {
		return nil, fmt.Errorf("failed to get item %s: %w", id, err)
	}
	if len(resp.Items) > 0 {
		return resp.Items[0].toItem(), nil
	}

	libraries, err := c.Libraries(ctx)
	if err != nil {
		return nil, err
	}
	for _, lib := range libraries {
		if sameID(lib.ID, id) {
			return &library.Item{ID: lib.ID, Name: lib.Name, Kind: library.KindCollectionFolder}, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", id, library.ErrItemNotFound)
}

// RecursiveChildren implements library.Repository, paging through /Items
func (c *Client) RecursiveChildren(ctx context.Context, parentID string) ([]*library.Item, error) {
	var items []*library.Item
	for start := 0; ; start += pageSize {
		q := url.Values{}
		q.Set("ParentId", parentID)
		q.Set("Recursive", "true")
		q.Set("Fields", "ParentId")
		q.Set("EnableImages", "false")
		q.Set("EnableTotalRecordCount", "false")
		q.Set("StartIndex", strconv.Itoa(start))
		q.Set("Limit", strconv.Itoa(pageSize))

		var resp itemsResponse
		if err := c.do(ctx, http.MethodGet, "/Items", q, nil, &resp); err != nil {
			return nil, fmt.Errorf("failed to list children of %s: %w", parentID, err)
		}
		items = append(items, toItems(resp.Items)...)

		if len(resp.Items) < pageSize {
			return items, nil
		}
	}
}

// Seasons implements library.Repository
func (c *Client) Seasons(ctx context.Context, series *library.Item) ([]*library.Item, error) {
	q := url.Values{}
	q.Set("Fields", "ParentId")
	q.Set("EnableImages", "false")

	var resp itemsResponse
	if err := c.do(ctx, http.MethodGet, "/Shows/"+url.PathEscape(series.ID)+"/Seasons", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list seasons of %s: %w", series.Name, err)
	}
	return toItems(resp.Items), nil
}

// Episodes implements library.Repository
func (c *Client) Episodes(ctx context.Context, season *library.Item) ([]*library.Item, error) {
	seriesID := season.SeriesID
	if seriesID == "" {
		seriesID = season.ParentID
	}

	q := url.Values{}
	q.Set("seasonId", season.ID)
	q.Set("Fields", "ParentId")
	q.Set("EnableImages", "false")

	var resp itemsResponse
	if err := c.do(ctx, http.MethodGet, "/Shows/"+url.PathEscape(seriesID)+"/Episodes", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list episodes of season %s: %w", season.ID, err)
	}
	return toItems(resp.Items), nil
}

// UpdateItem implements library.Repository. The full item is fetched and posted back with the
// linkage and index fields replaced, since Jellyfin resets fields missing from the body.
func (c *Client) UpdateItem(ctx context.Context, item *library.Item, reason library.UpdateReason) error {
	q := url.Values{}
	q.Set("Ids", item.ID)
	q.Set("Fields", itemFields)

	var resp rawItemsResponse
	if err := c.do(ctx, http.MethodGet, "/Items", q, nil, &resp); err != nil {
		return fmt.Errorf("failed to load item %s: %w", item.ID, err)
	}
	if len(resp.Items) == 0 {
		return fmt.Errorf("%s: %w", item.ID, library.ErrItemNotFound)
	}

	dto := resp.Items[0]
	set := func(key string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		dto[key] = data
		return nil
	}
	if err := set("Name", item.Name); err != nil {
		return fmt.Errorf("failed to encode item %s: %w", item.ID, err)
	}
	if err := set("IndexNumber", item.IndexNumber); err != nil {
		return fmt.Errorf("failed to encode item %s: %w", item.ID, err)
	}
	if item.Kind == library.KindEpisode {
		if item.SeasonID != "" {
			if err := set("SeasonId", item.SeasonID); err != nil {
				return fmt.Errorf("failed to encode item %s: %w", item.ID, err)
			}
		}
		if item.ParentID != "" {
			if err := set("ParentId", item.ParentID); err != nil {
				return fmt.Errorf("failed to encode item %s: %w", item.ID, err)
			}
		}
	}

	if err := c.do(ctx, http.MethodPost, "/Items/"+url.PathEscape(item.ID), nil, dto, nil); err != nil {
		return fmt.Errorf("failed to update item %s: %w", item.ID, err)
	}

	log.Debug().
		Str("item", item.Name).
		Str("id", item.ID).
		Str("reason", string(reason)).
		Msg("Updated Jellyfin item")
	return nil
}

// RefreshMetadata implements library.Refresher
func (c *Client) RefreshMetadata(ctx context.Context, item *library.Item, opts library.RefreshOptions) error {
	q := url.Values{}
	q.Set("MetadataRefreshMode", string(opts.MetadataMode))
	q.Set("ImageRefreshMode", string(opts.ImageMode))
	q.Set("ReplaceAllMetadata", strconv.FormatBool(opts.ReplaceAllMetadata))
	q.Set("ReplaceAllImages", strconv.FormatBool(opts.ReplaceImages))
	q.Set("Recursive", "false")
	q.Set("RegenerateTrickplay", "false")

	if err := c.do(ctx, http.MethodPost, "/Items/"+url.PathEscape(item.ID)+"/Refresh", q, nil, nil); err != nil {
		return fmt.Errorf("failed to refresh %s: %w", item.Name, err)
	}
	return nil
}

func sameID(a, b string) bool {
	return library.NormalizeID(a) == library.NormalizeID(b)
}
