package images

import "math"

// Clamp restricts a value to the specified range [min, max].
// This is used to prevent overflow in color calculations.
//
// Arguments:
// - value: The value to Clamp.
// - min: Minimum allowed value.
// - max: Maximum allowed value.
//
// Returns:
// - The clamped value within [min, max].
//
// @example
// clamped := Clamp(300.5, 0, 255) // Returns 255
// clamped := Clamp(-10.0, 0, 255) // Returns 0
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ToByte rounds half up and clamps to the [0, 255] sample range.
func ToByte(value float64) uint8 {
	return uint8(Clamp(math.Floor(value+0.5), 0, 255))
}

// MapCoord clamps a coordinate to a valid index in [0, max).
//
// Arguments:
// - coord: The coordinate to map.
// - max: The size of the axis.
func MapCoord(coord, max int) int {
	if coord < 0 {
		return 0
	}
	if coord >= max {
		return max - 1
	}
	return coord
}
