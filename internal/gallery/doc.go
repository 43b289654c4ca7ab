// Package gallery talks to the gallery site's JSON API: discovering
// works, fetching their metadata and downloading their images.
//
// The package handles three main use cases:
//
//  1. Discovering candidate works page by page (a user's works, or the
//     site-wide feed of newest works)
//  2. Fetching full work metadata by id
//  3. Downloading a work's images, including assembling animated works
//     into GIF files
//
// # Discovery
//
// Sources builds a discovery registry with the site's listing endpoints:
//
//	registry := gallery.Sources(client, pathConfig, logger)
//	fn, _ := registry.Lookup("works")
//	seq, err := fn(ctx, nil, nil, "1113943")
//
// # Metadata
//
// Use the Parser to fetch the full record of a single work:
//
//	parser := gallery.NewParser(client, pathConfig)
//	art, err := parser.Work(ctx, 104850)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%s by %s\n", art.Title, art.User)
//
// # Downloading
//
// The Downloader fetches every page of a work to the paths computed on
// the model:
//
//	dl := gallery.NewDownloader(client, logger)
//	dl.HasPage = store.HasPage
//	id, err := dl.Work(ctx, art, taskID)
//
// # Wire Format
//
// Every API response arrives in a common envelope with an error flag and
// a body. The dto subpackage mirrors the wire records, including their
// quirks: ids served as both numbers and strings, nested tag objects on
// the work endpoint but flat tag lists on listings.
package gallery
