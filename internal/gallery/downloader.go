package gallery

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/handiism/artwork-downloader/internal/gallery/dto"
	ioutils "github.com/handiism/artwork-downloader/internal/io"
	"github.com/handiism/artwork-downloader/internal/model"
)

// Downloader fetches a work's images to disk.
//
// Still works (illustrations and manga) download one file per page, in
// parallel up to Concurrency. Animated works download the frame archive
// and assemble it into an animated GIF.
type Downloader struct {
	client *Client
	images *ioutils.ImageService
	logger *slog.Logger

	// Concurrency bounds parallel page fetches within one work.
	Concurrency int

	// HasPage, when set, skips pages already recorded as downloaded.
	HasPage func(workID int64, page int) (bool, error)

	// MarkPage, when set, records each page right after it lands on
	// disk, so interrupted works resume where they stopped.
	MarkPage func(workID int64, page int) error

	// MaxGIFWidth caps the width of assembled animations. 0 keeps the
	// original frame size.
	MaxGIFWidth int
}

// NewDownloader creates a Downloader using the given API client.
func NewDownloader(client *Client, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Downloader{
		client:      client,
		images:      ioutils.NewImageService(),
		logger:      logger,
		Concurrency: 3,
	}
}

// Work downloads every page of art. The returned id echoes art.ID so
// the orchestrator can correlate the outcome with the work.
func (d *Downloader) Work(ctx context.Context, art *model.Artwork, taskID string) (int64, error) {
	d.logger.Debug("downloading work", "work", art.ID, "pages", art.PageCount(), "kind", art.Kind, "task", taskID)

	if art.Kind == model.KindAnimation {
		return art.ID, d.animation(ctx, art)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.Concurrency)
	for _, page := range art.Pages {
		g.Go(func() error {
			return d.page(ctx, art, page)
		})
	}

	return art.ID, g.Wait()
}

func (d *Downloader) page(ctx context.Context, art *model.Artwork, page *model.Page) error {
	if d.skip(art.ID, page.Number) {
		return nil
	}

	if err := ioutils.EnsureDir(filepath.Dir(page.Path)); err != nil {
		return err
	}
	if err := d.client.DownloadFile(ctx, page.URL, page.Path); err != nil {
		return fmt.Errorf("page %d: %w", page.Number, err)
	}

	d.mark(art.ID, page.Number)
	return nil
}

// animation fetches the frame archive of an animated work and writes it
// as an animated GIF next to where a still image would go.
func (d *Downloader) animation(ctx context.Context, art *model.Artwork) error {
	if d.skip(art.ID, 0) {
		return nil
	}

	var meta dto.JSONAnimation
	url := d.client.endpoint(fmt.Sprintf("/api/work/%d/animation", art.ID))
	if err := d.client.GetJSON(ctx, url, &meta); err != nil {
		return fmt.Errorf("animation meta: %w", err)
	}

	archive, err := d.client.Get(ctx, meta.OriginalSrc)
	if err != nil {
		return fmt.Errorf("animation archive: %w", err)
	}
	members, err := readArchive(archive)
	if err != nil {
		return fmt.Errorf("animation archive: %w", err)
	}

	frames := make([][]byte, 0, len(meta.Frames))
	delays := make([]time.Duration, 0, len(meta.Frames))
	for _, fr := range meta.Frames {
		data, ok := members[fr.File]
		if !ok {
			return fmt.Errorf("animation frame %s missing from archive", fr.File)
		}
		frames = append(frames, data)
		delays = append(delays, time.Duration(fr.Delay)*time.Millisecond)
	}

	data, err := d.images.AssembleGIF(ctx, frames, delays, d.MaxGIFWidth)
	if err != nil {
		return fmt.Errorf("assemble animation: %w", err)
	}

	dest := gifPath(art)
	if err := ioutils.EnsureDir(filepath.Dir(dest)); err != nil {
		return err
	}
	if err := ioutils.WriteFile(ctx, dest, data); err != nil {
		return err
	}

	d.mark(art.ID, 0)
	return nil
}

func (d *Downloader) skip(workID int64, page int) bool {
	if d.HasPage == nil {
		return false
	}
	has, err := d.HasPage(workID, page)
	if err != nil {
		// Lookup failures fall back to downloading.
		d.logger.Warn("history lookup failed", "work", workID, "page", page, "error", err)
		return false
	}
	if has {
		d.logger.Debug("page already downloaded", "work", workID, "page", page)
	}
	return has
}

func (d *Downloader) mark(workID int64, page int) {
	if d.MarkPage == nil {
		return
	}
	if err := d.MarkPage(workID, page); err != nil {
		d.logger.Warn("failed to record page", "work", workID, "page", page, "error", err)
	}
}

func readArchive(data []byte) (map[string][]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	members := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		members[f.Name] = content
	}
	return members, nil
}

// gifPath is the animation's target path: the first page's path with the
// extension swapped for .gif.
func gifPath(art *model.Artwork) string {
	if len(art.Pages) > 0 && art.Pages[0] != nil {
		p := art.Pages[0].Path
		return strings.TrimSuffix(p, filepath.Ext(p)) + ".gif"
	}
	return filepath.Join(art.Path, strconv.FormatInt(art.ID, 10)+".gif")
}
