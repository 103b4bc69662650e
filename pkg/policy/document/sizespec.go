package document

import (
	"regexp"
	"strconv"
)

// MaxFileSizeBytes is the upper bound for a size specification: 10 GiB.
const MaxFileSizeBytes = int64(10) * 1024 * 1024 * 1024

// sizeSpecPattern matches "{digits}{unit?}B" with unit K, M, G, or T.
// Signs, decimals, whitespace, and lowercase units are all rejected.
var sizeSpecPattern = regexp.MustCompile(`^([0-9]+)(K|M|G|T)?B$`)

var unitMultipliers = map[string]int64{
	"":  1,
	"K": 1024,
	"M": 1024 * 1024,
	"G": 1024 * 1024 * 1024,
	"T": 1024 * 1024 * 1024 * 1024,
}

// ParseSizeSpec parses a size specification such as "100MB" or "512KB"
// into bytes using binary multiples. It reports false when the pattern
// does not match, the result is zero, or the result exceeds 10 GiB.
func ParseSizeSpec(spec string) (int64, bool) {
	m := sizeSpecPattern.FindStringSubmatch(spec)
	if m == nil {
		return 0, false
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		// Digit runs too long for int64 are out of range by definition.
		return 0, false
	}

	mult := unitMultipliers[m[2]]
	if n != 0 && n > MaxFileSizeBytes/mult {
		return 0, false
	}

	bytes := n * mult
	if bytes <= 0 || bytes > MaxFileSizeBytes {
		return 0, false
	}
	return bytes, true
}
