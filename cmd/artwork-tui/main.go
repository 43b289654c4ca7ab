package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/handiism/artwork-downloader/internal/config"
	"github.com/handiism/artwork-downloader/internal/discovery"
	"github.com/handiism/artwork-downloader/internal/download"
	"github.com/handiism/artwork-downloader/internal/gallery"
	"github.com/handiism/artwork-downloader/internal/history"
	"github.com/handiism/artwork-downloader/internal/model"
	"github.com/handiism/artwork-downloader/internal/tui"
)

func main() {
	var (
		configFlag = flag.String("config", "", "Path to config file")
		pagesFlag  = flag.String("pages", "", "Discovery page range, START or START-END")
		dirFlag    = flag.String("dir", "", "Output directory (overrides config)")
	)

	flag.Parse()

	if err := run(*configFlag, *pagesFlag, *dirFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, pages, dir string) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dir != "" {
		settings.DownloadsPath = dir + "/{user}"
	}
	if !settings.IsConfigured() {
		return errors.New("no gallery base URL configured (set base_url in the config file or ARTWORKDL_BASE_URL)")
	}

	rng, err := discovery.ParsePageRange(pages)
	if err != nil {
		return err
	}

	logger, err := config.SetupLogger(&settings.Logging)
	if err != nil {
		return err
	}

	store, err := history.Open(settings.HistoryPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

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
		return err
	}

	events := tui.NewEventLog()
	collab := download.Collaborators{
		Parse:    parser.Work,
		Download: downloader.Work,
		OnSuccess: func(art *model.Artwork, taskID string) {
			rec := history.Record{
				ID:      art.ID,
				UserID:  art.UserID,
				User:    art.User,
				Title:   art.Title,
				Comment: art.Comment,
				Tags:    art.Tags,
			}
			if err := store.Add(rec); err != nil {
				logger.Error("history write failed", "work", art.ID, "error", err)
			}
		},
		OnEvent: events.Add,
	}
	manager := download.NewManager(settings.ToDownloadConfig(), registry, collab, logger)

	return tui.Run(tui.Deps{
		Manager:  manager,
		Settings: settings,
		Events:   events,
		Filter:   pipe,
		Pages:    rng,
	})
}
