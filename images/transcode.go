package images

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/nfnt/resize"
	"github.com/nutritrack/foodvision/common"
	"github.com/pkg/errors"
)

// TranscodeQuality is the JPEG quality used when re-encoding photos.
const TranscodeQuality = 100

// decodeAny decodes any of the supported container formats.
func decodeAny(data []byte) (image.Image, error) {
	reader := bytes.NewReader(data)

	switch format := DetectFormat(data); format {
	case FormatJPEG:
		return jpeg.Decode(reader)
	case FormatPNG:
		return png.Decode(reader)
	case FormatGIF:
		return gif.Decode(reader)
	case FormatWebP:
		return webp.Decode(reader)
	default:
		return nil, errors.Errorf("unsupported image format %q", format)
	}
}

// ToJPEG transcodes a photo of any supported format (JPEG, PNG, GIF, WebP) into
// JPEG bytes, stretching it to width x height on the way. This is the
// resize-on-decode step that runs before the classification pipeline so the
// decoder usually yields the model's input size directly.
//
// Arguments:
//   - data: The encoded photo.
//   - width: Target width. Zero keeps the native size.
//   - height: Target height. Zero keeps the native size.
//
// Returns:
//   - []byte: JPEG bytes.
//   - error: common.ErrDecode when the photo cannot be decoded, common.ErrInvalidArgument for negative sizes.
//
// @example
// jpegBytes, err := ToJPEG(pngBytes, 224, 224)
func ToJPEG(data []byte, width, height int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(common.ErrDecode, "empty image data")
	}
	if width < 0 || height < 0 {
		return nil, errors.Wrapf(common.ErrInvalidArgument, "invalid dimensions: width=%d, height=%d", width, height)
	}

	img, err := decodeAny(data)
	if err != nil {
		return nil, errors.Wrapf(common.ErrDecode, "transcode: %v", err)
	}

	if width > 0 && height > 0 {
		img = resize.Resize(uint(width), uint(height), img, resize.Bilinear)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: TranscodeQuality}); err != nil {
		return nil, errors.Wrap(err, "failed to encode JPEG")
	}

	return buf.Bytes(), nil
}
