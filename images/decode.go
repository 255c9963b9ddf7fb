package images

import (
	"bytes"
	"image/jpeg"

	"github.com/nutritrack/foodvision/common"
	"github.com/pkg/errors"
)

// DecodeJPEG decodes JPEG bytes into an RGBA raster at the image's native resolution.
//
// Only JPEG is accepted. Other formats must be transcoded first (see ToJPEG).
// The alpha channel is always fully opaque.
//
// Arguments:
//   - data: The JPEG-encoded bytes.
//
// Returns:
//   - *RasterImage: The decoded raster.
//   - error: An error wrapping common.ErrDecode if the bytes are empty, truncated or not a JPEG.
//
// @example
//
//	raster, err := DecodeJPEG(photo)
//	if errors.Is(err, common.ErrDecode) {
//	    // ask the user for another photo
//	}
func DecodeJPEG(data []byte) (*RasterImage, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(common.ErrDecode, "image data is empty")
	}
	if format := DetectFormat(data); format != FormatJPEG {
		return nil, errors.Wrapf(common.ErrDecode, "unsupported image format %q", format)
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(common.ErrDecode, "jpeg: %v", err)
	}

	raster, err := FromImage(img)
	if err != nil {
		return nil, errors.Wrapf(common.ErrDecode, "jpeg: %v", err)
	}

	// JPEG carries no alpha.
	for i := Channels - 1; i < len(raster.Pixels); i += Channels {
		raster.Pixels[i] = 0xff
	}

	return raster, nil
}
