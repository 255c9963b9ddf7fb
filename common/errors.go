// Package common - Error taxonomy shared by every stage of the classification pipeline.
package common

import (
	"github.com/pkg/errors"
)

// Sentinel errors. Stages wrap one of these with errors.Wrap so callers can
// match the failure class with errors.Is regardless of the added context.
var (
	// ErrDecode is returned when image bytes are empty, truncated or not a supported format.
	ErrDecode = errors.New("decode error")
	// ErrInvalidDimensions is returned when a raster or tensor does not have the
	// dimensions the next stage requires. It indicates a bug between stages.
	ErrInvalidDimensions = errors.New("invalid dimensions")
	// ErrModelUnavailable is returned when the model asset is missing, corrupt or
	// does not expose the expected inputs and outputs.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrInference is returned when the runtime produced no output or an output of the wrong shape.
	ErrInference = errors.New("inference error")
	// ErrTimeout is returned when model loading or inference exceeded the caller's deadline.
	ErrTimeout = errors.New("timeout")
	// ErrInvalidArgument is returned for programming errors such as an out of range K.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ErrorKind is the taxonomy name of a pipeline error.
type ErrorKind string

// ErrorKind constants.
const (
	KindDecode            ErrorKind = "decode"
	KindInvalidDimensions ErrorKind = "invalid_dimensions"
	KindModelUnavailable  ErrorKind = "model_unavailable"
	KindInference         ErrorKind = "inference"
	KindTimeout           ErrorKind = "timeout"
	KindInvalidArgument   ErrorKind = "invalid_argument"
	KindUnknown           ErrorKind = "unknown"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrDecode, KindDecode},
	{ErrInvalidDimensions, KindInvalidDimensions},
	{ErrModelUnavailable, KindModelUnavailable},
	{ErrInference, KindInference},
	{ErrTimeout, KindTimeout},
	{ErrInvalidArgument, KindInvalidArgument},
}

// Kind maps an error to its taxonomy name.
//
// Arguments:
//   - err: The error to classify.
//
// Returns:
//   - ErrorKind: The kind of the first sentinel found in the chain, or KindUnknown.
func Kind(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// IsUserFacing reports whether the error should be surfaced to the end user
// (pick another photo, try again) rather than treated as a programming error.
func IsUserFacing(err error) bool {
	switch Kind(err) {
	case KindDecode, KindModelUnavailable, KindInference, KindTimeout:
		return true
	default:
		return false
	}
}
