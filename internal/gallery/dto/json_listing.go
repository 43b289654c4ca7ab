package dto

import (
	"strconv"

	"github.com/handiism/artwork-downloader/internal/model"
)

// JSONListing represents one page of a works listing.
type JSONListing struct {
	Total int           `json:"total"`
	Works []JSONSummary `json:"works"`
}

// JSONSummary is the abbreviated work record listings carry. Unlike the
// work endpoint, tags arrive as a flat list here, and the field is
// absent entirely for sources that do not include them.
type JSONSummary struct {
	ID         WorkID   `json:"id"`
	Title      string   `json:"title"`
	UserID     WorkID   `json:"userId"`
	UserName   string   `json:"userName"`
	IllustType int      `json:"illustType"`
	PageCount  int      `json:"pageCount"`
	Tags       []string `json:"tags"`
	Masked     bool     `json:"isMasked"`
}

// ToArtwork converts the summary to a lightweight model.Artwork for
// filtering during discovery. Pages hold no URLs, only the count; nil
// Tags means the listing did not include them.
func (js *JSONSummary) ToArtwork(cfg *model.PathConfig) *model.Artwork {
	art := model.NewArtwork(int64(js.ID), strconv.FormatInt(int64(js.UserID), 10), js.UserName, js.Title, cfg)
	art.Tags = js.Tags
	art.Kind = kindOf(js.IllustType)
	art.Pages = make([]*model.Page, js.PageCount)
	return art
}
