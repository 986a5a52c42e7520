package vsphere

import (
	"fmt"
	"math"
	"strings"
)

const (
	kibPerGiB   = 1024 * 1024
	bytesPerTiB = 1024 * 1024 * 1024 * 1024
)

// DiskSizeGiB converts a disk capacity reported in KiB to whole GiB. String
// capacities may carry a trailing "L" long-integer marker.
func DiskSizeGiB(capacityKB any) (int64, error) {
	if s, ok := capacityKB.(string); ok {
		capacityKB = strings.TrimSuffix(strings.TrimSpace(s), "L")
	}
	kb, ok := intOf(capacityKB)
	if !ok {
		return 0, fmt.Errorf("invalid disk capacity %v", capacityKB)
	}
	return kb / kibPerGiB, nil
}

// BytesToTiB converts bytes to TiB rounded to two decimals, halves away from
// zero.
func BytesToTiB(b int64) float64 {
	return math.Round(float64(b)/bytesPerTiB*100) / 100
}
