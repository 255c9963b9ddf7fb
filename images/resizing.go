package images

import (
	"math"

	"github.com/nutritrack/foodvision/common"
	"github.com/pkg/errors"
)

// axisSample holds the two neighbouring source indices and the blend weight
// for one destination coordinate along a single axis.
type axisSample struct {
	lo, hi int
	frac   float64
}

// sampleAxis maps destination index d onto the source axis using the
// pixel-center convention: src = (d+0.5)*(srcSize/dstSize) - 0.5.
func sampleAxis(d int, scale float64, srcSize int) axisSample {
	pos := (float64(d)+0.5)*scale - 0.5
	base := math.Floor(pos)
	i := int(base)
	return axisSample{
		lo:   MapCoord(i, srcSize),
		hi:   MapCoord(i+1, srcSize),
		frac: pos - base,
	}
}

func sampleAxes(dstSize, srcSize int) []axisSample {
	scale := float64(srcSize) / float64(dstSize)
	samples := make([]axisSample, dstSize)
	for d := range samples {
		samples[d] = sampleAxis(d, scale, srcSize)
	}
	return samples
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// ResizeBilinear resizes a raster to exactly width x height using bilinear
// interpolation. The aspect ratio is not preserved; the image is stretched
// to fill the target.
//
// Each destination pixel is mapped to the source with the pixel-center
// convention, its four neighbours are clamped to the source edges, and the
// samples are blended horizontally then vertically. All four channels are
// treated identically. The output never aliases the input and is identical
// for identical inputs.
//
// Arguments:
//   - src: The source raster.
//   - width: Target width, > 0.
//   - height: Target height, > 0.
//
// Returns:
//   - *RasterImage: The resized raster.
//   - error: common.ErrInvalidArgument for a bad target, common.ErrInvalidDimensions for a bad source.
//
// @example
// resized, err := ResizeBilinear(raster, 224, 224)
func ResizeBilinear(src *RasterImage, width, height int) (*RasterImage, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(common.ErrInvalidArgument, "invalid target dimensions: width=%d, height=%d", width, height)
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}

	xs := sampleAxes(width, src.Width)
	ys := sampleAxes(height, src.Height)

	stride := src.Width * Channels
	pix := src.Pixels
	dst := make([]byte, width*height*Channels)

	i := 0
	for _, sy := range ys {
		top := pix[sy.lo*stride : (sy.lo+1)*stride]
		bottom := pix[sy.hi*stride : (sy.hi+1)*stride]

		for _, sx := range xs {
			left := sx.lo * Channels
			right := sx.hi * Channels

			for c := 0; c < Channels; c++ {
				upper := lerp(float64(top[left+c]), float64(top[right+c]), sx.frac)
				lower := lerp(float64(bottom[left+c]), float64(bottom[right+c]), sx.frac)
				dst[i] = ToByte(lerp(upper, lower, sy.frac))
				i++
			}
		}
	}

	return &RasterImage{Width: width, Height: height, Pixels: dst}, nil
}
