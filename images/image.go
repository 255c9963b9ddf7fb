// Package images - Raster definition and conversion utilities.
package images

import (
	"image"
	"image/draw"

	"github.com/nutritrack/foodvision/common"
	"github.com/pkg/errors"
)

// Channels is the number of interleaved samples per pixel (R, G, B, A).
const Channels = 4

// RasterImage is a decoded image stored as interleaved RGBA bytes, row-major,
// top-to-bottom, left-to-right.
//
// The invariant len(Pixels) == Width*Height*4 holds for every RasterImage
// returned by this package.
type RasterImage struct {
	// The width of the image in pixels.
	Width int `json:"width" yaml:"width"`
	// The height of the image in pixels.
	Height int `json:"height" yaml:"height"`
	// The RGBA samples of the image.
	Pixels []byte `json:"-" yaml:"-"`
}

// NewRasterImage creates a RasterImage over the given pixel buffer.
//
// Arguments:
//   - width: The width of the image in pixels.
//   - height: The height of the image in pixels.
//   - pixels: The interleaved RGBA samples. The slice is not copied.
//
// Returns:
//   - *RasterImage: The raster.
//   - error: An error wrapping common.ErrInvalidDimensions if the buffer does not match.
func NewRasterImage(width, height int, pixels []byte) (*RasterImage, error) {
	r := &RasterImage{Width: width, Height: height, Pixels: pixels}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the size invariant of the raster.
//
// Returns:
//   - error: An error wrapping common.ErrInvalidDimensions if the invariant is broken.
func (r *RasterImage) Validate() error {
	if r == nil {
		return errors.Wrap(common.ErrInvalidDimensions, "raster is nil")
	}
	if r.Width <= 0 || r.Height <= 0 {
		return errors.Wrapf(common.ErrInvalidDimensions, "raster is %dx%d", r.Width, r.Height)
	}
	if want := r.Width * r.Height * Channels; len(r.Pixels) != want {
		return errors.Wrapf(common.ErrInvalidDimensions,
			"raster %dx%d holds %d bytes, needs %d", r.Width, r.Height, len(r.Pixels), want)
	}
	return nil
}

// Offset returns the index of the first sample of pixel (x, y).
func (r *RasterImage) Offset(x, y int) int {
	return (y*r.Width + x) * Channels
}

// FromImage converts any image.Image into a RasterImage anchored at (0, 0).
//
// Arguments:
//   - img: The source image.
//
// Returns:
//   - *RasterImage: A new raster holding a copy of the image samples.
//   - error: An error wrapping common.ErrInvalidDimensions for empty images.
func FromImage(img image.Image) (*RasterImage, error) {
	if img == nil {
		return nil, errors.Wrap(common.ErrInvalidDimensions, "image is nil")
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, errors.Wrapf(common.ErrInvalidDimensions, "image bounds %v are empty", bounds)
	}

	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)

	return NewRasterImage(bounds.Dx(), bounds.Dy(), dst.Pix)
}

// RGBA returns a copy of the raster as an *image.RGBA.
func (r *RasterImage) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	copy(img.Pix, r.Pixels)
	return img
}
