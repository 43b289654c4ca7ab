package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/handiism/artwork-downloader/internal/config"
	"github.com/handiism/artwork-downloader/internal/discovery"
	"github.com/handiism/artwork-downloader/internal/download"
	"github.com/handiism/artwork-downloader/internal/gallery"
	"github.com/handiism/artwork-downloader/internal/history"
	"github.com/handiism/artwork-downloader/internal/model"
)

func main() {
	// Command line flags
	var (
		sourceFlag  = flag.String("source", "works", "Discovery source: works or latest")
		userFlag    = flag.String("user", "", "User id for the works source")
		pagesFlag   = flag.String("pages", "", "Discovery page range, START or START-END")
		dirFlag     = flag.String("dir", "", "Output directory (overrides config)")
		configFlag  = flag.String("config", "", "Path to config file")
		exportFlag  = flag.String("export", "", "Export download history as CSV to a file and exit")
		clearFlag   = flag.Bool("clear-history", false, "Clear the download history and exit")
		dryRunFlag  = flag.Bool("dry-run", false, "Discover and filter without downloading")
		verboseFlag = flag.Bool("verbose", false, "Show verbose output")
	)

	flag.Parse()

	// CLI mode - the works source needs a user id
	user := *userFlag
	if user == "" && flag.NArg() > 0 {
		user = flag.Arg(0)
	}

	maintenance := *exportFlag != "" || *clearFlag
	if !maintenance && *sourceFlag == "works" && user == "" {
		fmt.Println("Artwork Downloader - Batch downloads from gallery feeds")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  artwork-dl -user <ID> [options]")
		fmt.Println("  artwork-dl -source latest [options]")
		fmt.Println("  artwork-dl <ID> [options]")
		fmt.Println()
		fmt.Println("For interactive mode, use: artwork-tui")
		fmt.Println()
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Load config
	settings, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Apply flags
	if *dirFlag != "" {
		settings.DownloadsPath = *dirFlag + "/{user}"
	}
	if *verboseFlag {
		settings.Logging.Level = "DEBUG"
	}

	logger, err := config.SetupLogger(&settings.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up logging: %v\n", err)
		os.Exit(1)
	}

	store, err := history.Open(settings.HistoryPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening history: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	// History maintenance modes
	if *exportFlag != "" {
		if err := exportHistory(store, *exportFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error exporting history: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("History exported to %s\n", *exportFlag)
		return
	}
	if *clearFlag {
		if err := store.Clear(); err != nil {
			fmt.Fprintf(os.Stderr, "Error clearing history: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("History cleared.")
		return
	}

	if !settings.IsConfigured() {
		fmt.Fprintln(os.Stderr, "Error: no gallery base URL configured (set base_url in the config file or ARTWORKDL_BASE_URL)")
		os.Exit(1)
	}

	rng, err := discovery.ParsePageRange(*pagesFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Wire the gallery collaborators
	pathCfg := settings.ToPathConfig()
	client := gallery.NewClient(settings.BaseURL)
	registry := gallery.Sources(client, pathCfg, logger)
	parser := gallery.NewParser(client, pathCfg)

	downloader := gallery.NewDownloader(client, logger)
	downloader.Concurrency = settings.MaxConcurrentPageDownloads
	downloader.MaxGIFWidth = settings.MaxGIFWidth
	downloader.HasPage = store.HasPage
	downloader.MarkPage = store.AddPage

	pipe, err := settings.Filter(store.Has, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	collab := download.Collaborators{
		Parse:    parser.Work,
		Download: downloader.Work,
		OnSuccess: func(art *model.Artwork, taskID string) {
			if err := store.Add(recordFor(art)); err != nil {
				logger.Error("history write failed", "work", art.ID, "error", err)
			}
		},
		OnEvent: func(event download.Event) {
			if event.Kind == download.EventAdd && !*verboseFlag {
				return
			}

			prefix := "   "
			switch event.Kind {
			case download.EventError:
				prefix = "❌ "
			case download.EventFail:
				prefix = "⚠️  "
			case download.EventComplete:
				prefix = "✅ "
			case download.EventInfo:
				prefix = "ℹ️  "
			}

			fmt.Println(prefix + event.Message)
		},
	}

	if *dryRunFlag {
		// Dry runs replace the downloader and leave history untouched.
		collab.Download = func(ctx context.Context, art *model.Artwork, taskID string) (int64, error) {
			fmt.Printf("   would download %d: %s (%d pages)\n", art.ID, art.Title, art.PageCount())
			return art.ID, nil
		}
		collab.OnSuccess = nil
	}

	manager := download.NewManager(settings.ToDownloadConfig(), registry, collab, logger)

	// Handle interrupts
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("🎨 Artwork Downloader")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	req := download.Request{
		Source:       *sourceFlag,
		Pages:        rng,
		Filter:       pipe,
		InlineFilter: settings.InlineFilter,
	}
	if user != "" {
		req.Args = []string{user}
	}

	err = manager.Run(ctx, req)
	snap := manager.Snapshot()

	if err != nil {
		if errors.Is(err, download.ErrCanceled) {
			fmt.Println("\nRun cancelled.")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error during run: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("✨ Complete! Downloaded %d of %d works (%d failed, %d skipped)\n",
		len(snap.Succeeded), snap.Total, len(snap.Failed), len(snap.Excluded))
}

// recordFor builds the history entry for a fully downloaded work.
func recordFor(art *model.Artwork) history.Record {
	return history.Record{
		ID:      art.ID,
		UserID:  art.UserID,
		User:    art.User,
		Title:   art.Title,
		Comment: art.Comment,
		Tags:    art.Tags,
	}
}

// exportHistory writes the history store as CSV to path.
func exportHistory(store *history.Store, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := store.ExportCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

