package platform

import (
	"testing"

	"github.com/tmnance/insightarium/internal/models"
)

func TestExternalID(t *testing.T) {
	tests := []struct {
		name   string
		source string
		url    string
		want   string
	}{
		{"x status", models.SourceX, "https://x.com/someone/status/1874512340987654321", "1874512340987654321"},
		{"twitter legacy", models.SourceX, "https://twitter.com/someone/statuses/12345", "12345"},
		{"x with query", models.SourceX, "https://x.com/a/status/987?s=20", "987"},
		{"reddit post", models.SourceReddit, "https://www.reddit.com/r/golang/comments/1abc2de/some_title/", "1abc2de"},
		{"linkedin urn", models.SourceLinkedIn, "https://www.linkedin.com/feed/update/urn:li:activity:7210001112223334445/", "7210001112223334445"},
		{"linkedin post slug", models.SourceLinkedIn, "https://www.linkedin.com/posts/jane-doe_go-activity-7210001112223334445-AbCd", "7210001112223334445"},
		{"url source has no scheme", models.SourceURL, "https://example.com/article", ""},
		{"raw source", models.SourceRaw, "", ""},
		{"x non-status url", models.SourceX, "https://x.com/someone", ""},
		{"reddit wrong shape", models.SourceReddit, "https://reddit.com/r/golang/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExternalID(tt.source, tt.url); got != tt.want {
				t.Errorf("ExternalID(%q, %q) = %q, want %q", tt.source, tt.url, got, tt.want)
			}
		})
	}
}
