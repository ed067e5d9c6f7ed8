// Package platform derives source-specific stable identifiers from
// platform URLs. The extracted ID becomes the external_id half of the
// (source, external_id) deduplication key.
package platform

import (
	"regexp"

	"github.com/tmnance/insightarium/internal/models"
)

var (
	xStatusRe  = regexp.MustCompile(`(?:twitter\.com|x\.com)/[^/]+/status(?:es)?/(\d+)`)
	redditRe   = regexp.MustCompile(`reddit\.com/r/[^/]+/comments/([a-z0-9]+)`)
	linkedinRe = regexp.MustCompile(`linkedin\.com/(?:feed/update/urn:li:activity:|posts/[^/?#]*-activity-)(\d+)`)
)

// ExternalID extracts the stable platform identifier embedded in rawURL for
// the given source. It returns "" when the source has no ID scheme ("url",
// "raw") or the URL does not match the source's pattern.
func ExternalID(source, rawURL string) string {
	if rawURL == "" {
		return ""
	}
	var re *regexp.Regexp
	switch source {
	case models.SourceX:
		re = xStatusRe
	case models.SourceReddit:
		re = redditRe
	case models.SourceLinkedIn:
		re = linkedinRe
	default:
		return ""
	}
	m := re.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	return m[1]
}
