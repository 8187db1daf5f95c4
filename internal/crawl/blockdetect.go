package crawl

import (
	"strings"
)

// DefaultBlockMarkers are notices the listing site renders in place of the
// review list when it refuses automated access.
var DefaultBlockMarkers = []string{"이용이 제한되었습니다"}

// DetectBlock checks rendered page HTML for an access-restriction notice and
// returns the first marker found.
func DetectBlock(html string, markers []string) (string, bool) {
	for _, m := range markers {
		if m == "" {
			continue
		}
		if strings.Contains(html, m) {
			return m, true
		}
	}
	return "", false
}
