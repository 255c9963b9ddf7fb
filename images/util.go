package images

import (
	"crypto/md5"
	"fmt"
)

// ComputeChecksum generates a deterministic checksum for a raster to verify idempotency.
//
// Arguments:
// - r: The raster to compute the checksum for.
//
// Returns:
// - A hex-encoded MD5 checksum string covering dimensions and samples.
//
// Example:
//
// ```go
//
//	checksum := ComputeChecksum(raster)
//	fmt.Printf("Raster checksum: %s\n", checksum)
//
// ```
func ComputeChecksum(r *RasterImage) string {
	if r == nil || len(r.Pixels) == 0 {
		return "empty"
	}

	hash := md5.New()
	fmt.Fprintf(hash, "%dx%d:", r.Width, r.Height)
	hash.Write(r.Pixels)
	return fmt.Sprintf("%x", hash.Sum(nil))
}
