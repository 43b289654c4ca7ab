package model

import (
	"fmt"
	"regexp"
	"strings"
)

// Artwork represents a single remote work with its metadata and pages.
//
// Artwork contains all the information needed to download and organize image files:
//   - ID is the source's numeric work identifier
//   - User and UserID identify the author for file naming and history records
//   - Tags drive tag-based filtering; a nil slice means the tags are not known
//     yet (partial metadata from discovery), which is different from an empty
//     slice meaning "no tags"
//   - Pages holds one entry per downloadable image
//
// Paths are automatically computed when creating an artwork via NewArtwork,
// using placeholders like {user}, {userId}, {id} and {title}.
//
// Example:
//
//	cfg := &PathConfig{
//	    DownloadsPath:      "/art/{user}",
//	    PageFileNameFormat: "{id}_p{page}",
//	}
//	art := NewArtwork(104850, "827", "erina", "spring sketches", cfg)
//	// art.Path = "/art/erina"
type Artwork struct {
	// ID is the numeric work identifier assigned by the source.
	ID int64

	// UserID is the source's identifier for the author.
	UserID string

	// User is the author's display name.
	User string

	// Title is the work title.
	Title string

	// Comment is the author's description of the work.
	// Empty string means no description is available.
	Comment string

	// Tags contains the work's tag list. A nil slice means the tags are
	// unknown (not yet fetched); an empty non-nil slice means the work has
	// no tags.
	Tags []string

	// Kind classifies the work (illustration, manga, animation).
	Kind Kind

	// Pages contains all downloadable pages of this work, in page order.
	Pages []*Page

	// Path is the computed local directory path where page files will be
	// saved. This is automatically set by NewArtwork based on
	// PathConfig.DownloadsPath.
	Path string
}

// NewArtwork creates a new Artwork with a computed directory path.
//
// The cfg determines how the directory path is constructed using placeholders:
//   - {user} - Author display name
//   - {userId} - Author identifier
//   - {id} - Work identifier
//   - {title} - Work title
//
// Invalid filename characters are automatically replaced with underscores.
// Paths are truncated if they exceed Windows path length limits (248 for
// folders, 260 for files).
//
// Kind, Tags, Comment and Pages are assigned by the caller after
// construction; only the fields that influence the directory path are
// constructor parameters.
func NewArtwork(id int64, userID, user, title string, cfg *PathConfig) *Artwork {
	art := &Artwork{
		ID:     id,
		UserID: userID,
		User:   user,
		Title:  title,
	}

	art.Path = art.parseFolderPath(cfg)

	return art
}

// PageCount returns the number of downloadable pages of this work.
func (a *Artwork) PageCount() int {
	return len(a.Pages)
}

// HasTags returns true once the tag list has been fetched, even if it is empty.
func (a *Artwork) HasTags() bool {
	return a.Tags != nil
}

// PathConfig holds path formatting settings for artworks and pages.
//
// All path fields support placeholders that are replaced with actual values:
//   - {user}, {userId} - Author display name and identifier
//   - {id} - Work identifier
//   - {title} - Work title
//   - {page} - Page number (pages are numbered from zero)
//
// Example configuration:
//
//	cfg := &model.PathConfig{
//	    DownloadsPath:      "/home/user/Pictures/{user}",
//	    PageFileNameFormat: "{id}_p{page}",
//	}
type PathConfig struct {
	// DownloadsPath is the base path template for saving artworks.
	// Example: "/art/{user}" or "/art/{userId}/{id}"
	DownloadsPath string

	// PageFileNameFormat is the filename template for page images
	// (without extension, which is taken from the page URL).
	// Example: "{id}_p{page}" or "{title} {page}"
	PageFileNameFormat string
}

// Kind classifies the media type of a work.
type Kind int

const (
	// KindIllustration is a plain single- or multi-page illustration.
	KindIllustration Kind = iota

	// KindManga is a multi-page comic.
	KindManga

	// KindAnimation is an animated work whose frames ship as a single file.
	KindAnimation
)

// String returns the lower-case name of the kind.
//
// Returns:
//   - "illustration" for KindIllustration
//   - "manga" for KindManga
//   - "animation" for KindAnimation
func (k Kind) String() string {
	switch k {
	case KindIllustration:
		return "illustration"
	case KindManga:
		return "manga"
	case KindAnimation:
		return "animation"
	default:
		return "illustration"
	}
}

// ParseKind converts a kind name back to its Kind value. It is the
// inverse of String.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "illustration":
		return KindIllustration, nil
	case "manga":
		return KindManga, nil
	case "animation":
		return KindAnimation, nil
	default:
		return KindIllustration, fmt.Errorf("unknown work kind %q", name)
	}
}

// parseFolderPath computes the artwork folder path from the config template.
func (a *Artwork) parseFolderPath(cfg *PathConfig) string {
	path := cfg.DownloadsPath
	path = strings.ReplaceAll(path, "{id}", formatID(a.ID))
	path = strings.ReplaceAll(path, "{userId}", sanitizeFileName(a.UserID))
	path = strings.ReplaceAll(path, "{user}", sanitizeFileName(a.User))
	path = strings.ReplaceAll(path, "{title}", sanitizeFileName(a.Title))

	// Limit path length for cross-platform compatibility (Windows MAX_PATH)
	if len(path) >= 248 {
		path = path[:247]
	}

	return path
}

// sanitizeFileName removes or replaces characters that are invalid in file/folder names.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars) are replaced with underscore
//   - Trailing dots are removed (Windows limitation)
//   - Multiple whitespace is collapsed to single space
//   - Trailing whitespace is removed
//
// Example:
//
//	sanitizeFileName("work: part 1/2") // Returns "work_ part 1_2"
func sanitizeFileName(name string) string {
	// Replace invalid path/file characters
	invalidChars := regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	name = invalidChars.ReplaceAllString(name, "_")

	// Remove trailing dots
	name = regexp.MustCompile(`\.+$`).ReplaceAllString(name, "")

	// Replace multiple whitespace with single space
	name = regexp.MustCompile(`\s+`).ReplaceAllString(name, " ")

	// Remove trailing whitespace
	name = strings.TrimRight(name, " ")

	return name
}
