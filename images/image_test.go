package images

import (
	"image"
	"image/color"
	"testing"

	"github.com/nutritrack/foodvision/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRasterImage(t *testing.T) {
	raster, err := NewRasterImage(2, 3, make([]byte, 24))
	require.NoError(t, err)
	assert.Equal(t, 2, raster.Width)
	assert.Equal(t, 3, raster.Height)

	_, err = NewRasterImage(2, 3, make([]byte, 23))
	assert.ErrorIs(t, err, common.ErrInvalidDimensions)

	_, err = NewRasterImage(0, 3, nil)
	assert.ErrorIs(t, err, common.ErrInvalidDimensions)
}

// TestFromImageSubImage validates that sub-images are re-anchored at the origin.
func TestFromImageSubImage(t *testing.T) {
	src := getTestImage(10, 10, red)
	blue := color.RGBA{B: 255, A: 255}
	src.SetRGBA(5, 5, blue)

	sub := src.SubImage(image.Rect(5, 5, 8, 7))
	raster, err := FromImage(sub)
	require.NoError(t, err)

	assert.Equal(t, 3, raster.Width)
	assert.Equal(t, 2, raster.Height)
	assert.Equal(t, []byte{0, 0, 255, 255}, raster.Pixels[raster.Offset(0, 0):raster.Offset(0, 0)+4])
	assert.Equal(t, []byte{255, 0, 0, 255}, raster.Pixels[raster.Offset(2, 1):raster.Offset(2, 1)+4])
}

func TestFromImageErrors(t *testing.T) {
	_, err := FromImage(nil)
	assert.ErrorIs(t, err, common.ErrInvalidDimensions)

	_, err = FromImage(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.ErrorIs(t, err, common.ErrInvalidDimensions)
}

func TestRGBACopies(t *testing.T) {
	raster := patternRaster(t, 6, 4)

	img := raster.RGBA()
	require.Equal(t, raster.Pixels, img.Pix)

	img.Pix[0] = ^img.Pix[0]
	assert.NotEqual(t, raster.Pixels[0], img.Pix[0], "RGBA should return a copy")
}

func TestComputeChecksum(t *testing.T) {
	a := solidRaster(t, 2, 2, 1, 2, 3, 4)
	b := solidRaster(t, 2, 2, 1, 2, 3, 4)
	c := solidRaster(t, 2, 2, 1, 2, 3, 5)
	d, err := NewRasterImage(4, 1, a.Pixels)
	require.NoError(t, err)

	assert.Equal(t, ComputeChecksum(a), ComputeChecksum(b))
	assert.NotEqual(t, ComputeChecksum(a), ComputeChecksum(c))
	assert.NotEqual(t, ComputeChecksum(a), ComputeChecksum(d), "Dimensions should be part of the checksum")
	assert.Equal(t, "empty", ComputeChecksum(nil))
}
