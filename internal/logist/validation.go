package logist

import (
	"fmt"
	"math"
)

const (
	maxOrderPhotos    = 5
	maxPhotoSizeBytes = 10 << 20
)

// NormalizeDuration coerces a duration input to whole hours: fractional
// values round half-up, anything below one hour becomes one.
func NormalizeDuration(hours float64) int {
	normalized := int(math.Round(hours))
	if normalized < 1 {
		normalized = 1
	}
	return normalized
}

// ValidateWageEdit enforces the floor on wage edits for an existing order:
// the wage can only go up. The input field may momentarily echo an invalid
// value, but it must never reach the backend.
func ValidateWageEdit(original, proposed float64) error {
	if proposed < original {
		return fmt.Errorf("wage cannot be lowered below %.2f", original)
	}
	return nil
}

// ValidatePhotos enforces the createOrder attachment limits before any bytes
// leave the client.
func ValidatePhotos(sizes []int) error {
	if len(sizes) > maxOrderPhotos {
		return fmt.Errorf("at most %d photos allowed", maxOrderPhotos)
	}
	for i, size := range sizes {
		if size > maxPhotoSizeBytes {
			return fmt.Errorf("photo %d exceeds the 10MB limit", i+1)
		}
	}
	return nil
}
