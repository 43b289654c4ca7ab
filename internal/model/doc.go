// Package model defines the core data structures used throughout
// the artwork-downloader application.
//
// # Artwork
//
// Artwork represents a remote work with metadata and a computed folder path:
//
//	art := model.NewArtwork(104850, "827", "erina", "spring sketches", pathConfig)
//	fmt.Println(art.Path) // Where the work's images are saved
//
// # Page
//
// Page represents a single downloadable image within an artwork:
//
//	page := model.NewPage(art, 0, imageURL, pathConfig)
//	fmt.Println(page.Path) // Full path where the image will be saved
//
// Pages are numbered from zero to match the source's file naming, so the
// page numbers line up with the page bits kept by the history store.
//
// # Path Configuration
//
// PathConfig controls how artwork/page paths are computed using placeholders:
//
//	cfg := &model.PathConfig{
//	    DownloadsPath:      "/art/{user}",
//	    PageFileNameFormat: "{id}_p{page}",
//	}
//
// Available placeholders: {user}, {userId}, {id}, {title}, {page}
package model
