package gallery

import (
	"context"
	"fmt"

	"github.com/handiism/artwork-downloader/internal/gallery/dto"
	"github.com/handiism/artwork-downloader/internal/model"
)

// Parser fetches full work metadata from the gallery API.
//
// Listings only carry abbreviated records; the work endpoint has the
// complete picture, including the image URLs needed for downloading.
//
// Example usage:
//
//	parser := NewParser(client, pathConfig)
//
//	art, err := parser.Work(ctx, 104850)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("%s by %s, %d pages\n", art.Title, art.User, art.PageCount())
type Parser struct {
	client     *Client
	pathConfig *model.PathConfig
}

// NewParser creates a new Parser with the given configuration.
//
// The pathConfig is used to compute download paths for the parsed works
// and their pages.
func NewParser(client *Client, pathCfg *model.PathConfig) *Parser {
	return &Parser{
		client:     client,
		pathConfig: pathCfg,
	}
}

// Work fetches the full metadata of one work by id.
//
// The returned Artwork carries resolved tags, the work kind, and one
// page per image with its URL and target path computed.
func (p *Parser) Work(ctx context.Context, id int64) (*model.Artwork, error) {
	var jw dto.JSONWork
	url := p.client.endpoint(fmt.Sprintf("/api/work/%d", id))
	if err := p.client.GetJSON(ctx, url, &jw); err != nil {
		return nil, fmt.Errorf("fetch work %d: %w", id, err)
	}

	return jw.ToArtwork(p.pathConfig), nil
}
