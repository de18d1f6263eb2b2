package lifecycle

import (
	"fmt"
	"strconv"
)

// NextTag returns the version tag following highest: the tag interpreted as
// a 4-hex-digit integer, incremented and wrapped modulo 0x10000. An empty or
// unparseable highest counts as 0000, so the first minted tag is 0001.
func NextTag(highest string) string {
	var n uint64
	if highest != "" {
		if v, err := strconv.ParseUint(highest, 16, 32); err == nil {
			n = v
		}
	}
	return fmt.Sprintf("%04X", (n+1)%0x10000)
}

// tagValue parses a 4-hex-digit tag for ordering. Unparseable tags sort
// lowest.
func tagValue(tag string) uint64 {
	v, err := strconv.ParseUint(tag, 16, 32)
	if err != nil {
		return 0
	}
	return v
}
