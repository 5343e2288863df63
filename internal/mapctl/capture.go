package mapctl

import (
	"fmt"
	"image"
	"io"

	"github.com/chai2010/webp"
)

// DefaultCaptureQuality is the WebP quality of snapshots.
const DefaultCaptureQuality = 80

// Capture grabs the current frame on the render looper.
func (c *Controller) Capture() (*image.RGBA, error) {
	return await(c, func() (*image.RGBA, error) {
		img, err := c.eng.Capture()
		return img, c.native("capture", err)
	})
}

// CaptureWebP writes the current frame to w as lossy WebP.
func (c *Controller) CaptureWebP(w io.Writer, quality float32) error {
	img, err := c.Capture()
	if err != nil {
		return err
	}
	if quality <= 0 {
		quality = DefaultCaptureQuality
	}
	if err := webp.Encode(w, img, &webp.Options{Lossless: false, Quality: quality}); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}
