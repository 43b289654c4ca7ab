package model

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Page represents a single downloadable image within an artwork.
//
// Page contains everything needed to fetch and store one image:
//   - Page number (zero-indexed, matching the source's file naming)
//   - Image URL
//   - Computed local file path
//
// The file path is automatically computed when creating a page via NewPage,
// using the artwork's path and the PathConfig page file name format.
//
// Example:
//
//	cfg := &PathConfig{DownloadsPath: "/art/{user}", PageFileNameFormat: "{id}_p{page}"}
//	page := NewPage(art, 0, "https://img.example.net/104850_p0.png", cfg)
//	// page.Path = "/art/erina/104850_p0.png"
type Page struct {
	// Artwork is a reference to the parent work.
	Artwork *Artwork

	// Number is the page number (zero-indexed).
	Number int

	// URL is the URL to download the image from.
	URL string

	// Path is the computed local file path where the image will be saved.
	// Includes the full path and filename with extension.
	Path string
}

// NewPage creates a new Page with a computed path.
//
// Parameters:
//   - art: The parent artwork (required for path computation and metadata)
//   - number: Page number (zero-indexed, used for the {page} placeholder)
//   - url: URL to download the image from (its extension is reused locally)
//   - cfg: Configuration for file naming
//
// The file path is computed using the artwork's path and the configured
// filename format. Invalid filename characters are automatically replaced
// with underscores.
func NewPage(art *Artwork, number int, url string, cfg *PathConfig) *Page {
	page := &Page{
		Artwork: art,
		Number:  number,
		URL:     url,
	}

	page.Path = page.parseFilePath(cfg)

	return page
}

// parseFilePath computes the full file path for this page.
func (p *Page) parseFilePath(cfg *PathConfig) string {
	ext := filepath.Ext(p.URL)
	fileName := p.parseFileName(cfg) + ext
	filePath := filepath.Join(p.Artwork.Path, fileName)

	// Limit total path length for Windows compatibility (MAX_PATH = 260)
	if len(filePath) >= 260 {
		maxLen := 11 - len(ext)
		if maxLen > 0 && maxLen < len(fileName) {
			filePath = filepath.Join(p.Artwork.Path, fileName[:maxLen]+ext)
		}
	}

	return filePath
}

// parseFileName computes the filename from the config template, without extension.
func (p *Page) parseFileName(cfg *PathConfig) string {
	fileName := cfg.PageFileNameFormat
	fileName = strings.ReplaceAll(fileName, "{id}", formatID(p.Artwork.ID))
	fileName = strings.ReplaceAll(fileName, "{userId}", p.Artwork.UserID)
	fileName = strings.ReplaceAll(fileName, "{user}", p.Artwork.User)
	fileName = strings.ReplaceAll(fileName, "{title}", p.Artwork.Title)
	fileName = strings.ReplaceAll(fileName, "{page}", strconv.Itoa(p.Number))
	return sanitizeFileName(fileName)
}

// formatID renders a work identifier for use in paths and templates.
func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
