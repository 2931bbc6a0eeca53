package universe

import (
	"regexp"
	"strconv"
)

var (
	imageCountPattern = regexp.MustCompile(`(\d+)\s+images?`)
	modelCountPattern = regexp.MustCompile(`(\d+)\s+models?`)
)

// parseCount runs a best-effort numeric match over a details text blob.
// Returns (0, false) when the pattern does not match; never an error.
func parseCount(pattern *regexp.Regexp, text string) (int, bool) {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
