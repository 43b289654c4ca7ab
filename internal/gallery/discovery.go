package gallery

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/handiism/artwork-downloader/internal/discovery"
	"github.com/handiism/artwork-downloader/internal/gallery/dto"
	"github.com/handiism/artwork-downloader/internal/model"
)

// Sources returns a registry holding this site's discovery functions:
//
//   - "works": a user's works, newest first; takes the user id argument
//   - "latest": the site-wide feed of newest works
func Sources(client *Client, cfg *model.PathConfig, logger *slog.Logger) *discovery.Registry {
	reg := discovery.NewRegistry()
	reg.Register("works", Works(client, cfg, logger))
	reg.Register("latest", Latest(client, cfg, logger))
	return reg
}

// Works discovers a user's works page by page. The single argument is
// the user id whose works to list.
func Works(client *Client, cfg *model.PathConfig, logger *slog.Logger) discovery.Func {
	return func(ctx context.Context, pages *discovery.PageRange, validity discovery.ValidityFunc, args ...string) (discovery.Sequence, error) {
		if len(args) != 1 || args[0] == "" {
			return nil, fmt.Errorf("works: user id argument required")
		}
		user := url.PathEscape(args[0])

		return discovery.NewPaged(ctx, discovery.PagedConfig{
			Fetch: func(ctx context.Context, page int) (*discovery.PageResult, error) {
				var listing dto.JSONListing
				u := client.endpoint(fmt.Sprintf("/api/user/%s/works?page=%d", user, page))
				if err := client.GetJSON(ctx, u, &listing); err != nil {
					return nil, err
				}
				return toPageResult(&listing, cfg), nil
			},
			Pages:    pages,
			Validity: validity,
			Logger:   logger,
		})
	}
}

// Latest discovers the site-wide feed of newest works. The feed reports
// no meaningful total and new works land at the front while crawling, so
// the sequence tracks ids to detect where the previous page ended.
func Latest(client *Client, cfg *model.PathConfig, logger *slog.Logger) discovery.Func {
	return func(ctx context.Context, pages *discovery.PageRange, validity discovery.ValidityFunc, args ...string) (discovery.Sequence, error) {
		return discovery.NewPaged(ctx, discovery.PagedConfig{
			Fetch: func(ctx context.Context, page int) (*discovery.PageResult, error) {
				var listing dto.JSONListing
				u := client.endpoint(fmt.Sprintf("/api/works/latest?page=%d", page))
				if err := client.GetJSON(ctx, u, &listing); err != nil {
					return nil, err
				}
				return toPageResult(&listing, cfg), nil
			},
			Pages:    pages,
			Validity: validity,
			Growing:  true,
			Logger:   logger,
		})
	}
}

func toPageResult(listing *dto.JSONListing, cfg *model.PathConfig) *discovery.PageResult {
	res := &discovery.PageResult{Total: listing.Total}
	for i := range listing.Works {
		w := &listing.Works[i]
		res.Items = append(res.Items, discovery.Item{
			Work:   w.ToArtwork(cfg),
			Masked: w.Masked,
		})
	}
	return res
}
