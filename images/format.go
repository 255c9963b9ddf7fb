package images

import "github.com/gabriel-vasile/mimetype"

// ImageFormat represents supported image formats
type ImageFormat string

const (
	FormatJPEG    ImageFormat = "jpeg"
	FormatWebP    ImageFormat = "webp"
	FormatPNG     ImageFormat = "png"
	FormatGIF     ImageFormat = "gif"
	FormatUnknown ImageFormat = "unknown"
)

// DetectFormat sniffs the container format from the leading bytes of the data.
//
// Arguments:
//   - data: The encoded image bytes.
//
// Returns:
//   - ImageFormat: The detected format, FormatUnknown when it is not an image we handle.
func DetectFormat(data []byte) ImageFormat {
	if len(data) == 0 {
		return FormatUnknown
	}
	mtype := mimetype.Detect(data)
	switch {
	case mtype.Is("image/jpeg"):
		return FormatJPEG
	case mtype.Is("image/png"):
		return FormatPNG
	case mtype.Is("image/webp"):
		return FormatWebP
	case mtype.Is("image/gif"):
		return FormatGIF
	default:
		return FormatUnknown
	}
}
