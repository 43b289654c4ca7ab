package ioutils

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	_ "image/jpeg" // JPEG decoder registration
	_ "image/png"  // PNG decoder registration
	"time"

	xdraw "golang.org/x/image/draw"
)

// ImageService assembles animation frames into playable files.
//
// Animated works are served as an archive of individually encoded frames
// plus a per-frame delay table. ImageService turns that into a single
// animated GIF.
//
// Example usage:
//
//	svc := NewImageService()
//
//	// frames and delays come from the animation metadata
//	data, err := svc.AssembleGIF(ctx, frames, delays, 1280)
//	if err != nil {
//	    return err
//	}
//	err = WriteFile(ctx, "/art/kei/104850.gif", data)
type ImageService struct{}

// NewImageService creates a new ImageService.
func NewImageService() *ImageService {
	return &ImageService{}
}

// AssembleGIF encodes frames into an animated GIF.
//
// Each element of frames is one encoded image (JPEG or PNG), in playback
// order. delays holds the display time of each frame and must be the same
// length as frames. Frames wider than maxWidth are scaled down
// proportionally; pass 0 to keep the original size.
//
// The GIF loops forever. Frame delays are rounded to the format's 10ms
// resolution.
func (s *ImageService) AssembleGIF(ctx context.Context, frames [][]byte, delays []time.Duration, maxWidth int) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames to assemble")
	}
	if len(frames) != len(delays) {
		return nil, fmt.Errorf("got %d delays for %d frames", len(delays), len(frames))
	}

	anim := &gif.GIF{LoopCount: 0}
	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, _, err := image.Decode(bytes.NewReader(frame))
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}

		if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
			img = scaleToWidth(img, maxWidth)
		}

		// GIF needs paletted frames. Floyd-Steinberg dithering keeps
		// gradients from banding too hard.
		bounds := img.Bounds()
		paletted := image.NewPaletted(bounds, palette.Plan9)
		draw.FloydSteinberg.Draw(paletted, bounds, img, bounds.Min)

		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, int(delays[i]/(10*time.Millisecond)))
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// scaleToWidth scales an image down to the given width, preserving the
// aspect ratio. Catmull-Rom is used for high-quality scaling.
func scaleToWidth(img image.Image, width int) image.Image {
	bounds := img.Bounds()
	height := bounds.Dy() * width / bounds.Dx()
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}
