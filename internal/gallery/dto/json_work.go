package dto

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/handiism/artwork-downloader/internal/model"
)

// WorkID is a custom id type that handles the site's habit of serving
// ids as JSON numbers on some endpoints and as strings on others.
type WorkID int64

// UnmarshalJSON parses an id from either "104850" or 104850.
func (w *WorkID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("unable to parse work id: %s", data)
	}
	*w = WorkID(n)
	return nil
}

// JSONEnvelope is the wrapper every API response arrives in.
type JSONEnvelope struct {
	Error   bool            `json:"error"`
	Message string          `json:"message"`
	Body    json.RawMessage `json:"body"`
}

// JSONTags mirrors the nested tag structure of the work endpoint:
//
//	"tags": {"tags": [{"tag": "landscape"}, {"tag": "oc"}]}
type JSONTags struct {
	Tags []struct {
		Tag string `json:"tag"`
	} `json:"tags"`
}

// Flatten returns the tag names as a flat list. The result is non-nil
// even for works without tags, since the metadata is known.
func (jt *JSONTags) Flatten() []string {
	tags := make([]string, 0, len(jt.Tags))
	for _, t := range jt.Tags {
		tags = append(tags, t.Tag)
	}
	return tags
}

// JSONURLs holds the image addresses of a work's first page.
type JSONURLs struct {
	Original string `json:"original"`
}

// JSONWork represents the full work metadata from the work endpoint.
type JSONWork struct {
	ID         WorkID   `json:"id"`
	Title      string   `json:"title"`
	Comment    string   `json:"description"`
	UserID     WorkID   `json:"userId"`
	UserName   string   `json:"userName"`
	IllustType int      `json:"illustType"`
	PageCount  int      `json:"pageCount"`
	Tags       JSONTags `json:"tags"`
	URLs       JSONURLs `json:"urls"`
}

// ToArtwork converts JSONWork to a model.Artwork with one page per
// image.
func (jw *JSONWork) ToArtwork(cfg *model.PathConfig) *model.Artwork {
	art := model.NewArtwork(int64(jw.ID), strconv.FormatInt(int64(jw.UserID), 10), jw.UserName, jw.Title, cfg)
	art.Comment = jw.Comment
	art.Tags = jw.Tags.Flatten()
	art.Kind = kindOf(jw.IllustType)

	for i := 0; i < jw.PageCount; i++ {
		art.Pages = append(art.Pages, model.NewPage(art, i, pageURL(jw.URLs.Original, i), cfg))
	}

	return art
}

// kindOf maps the wire's illustType discriminator to a model.Kind.
func kindOf(illustType int) model.Kind {
	switch illustType {
	case 1:
		return model.KindManga
	case 2:
		return model.KindAnimation
	default:
		return model.KindIllustration
	}
}

// pageURL derives the address of page i from the first page's URL.
// Originals follow the "<name>_p0.<ext>" convention.
func pageURL(original string, page int) string {
	if page == 0 {
		return original
	}
	return strings.Replace(original, "_p0.", fmt.Sprintf("_p%d.", page), 1)
}
