// Package fetch retrieves URL content and extracts readable text for
// candidates submitted without a body. Fetch failures are surfaced to the
// caller and never retried here.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/tmnance/insightarium/internal/apperr"
)

const (
	maxBodyBytes = 5 << 20
	maxTextBytes = 10 << 10
	timeout      = 15 * time.Second
	userAgent    = "insightarium/1.0 (bookmark-collector)"
)

// Text fetches rawURL and returns the readable text of the page.
// All failures wrap apperr.ErrUpstreamFetch.
func Text(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: invalid url: %v", apperr.ErrUpstreamFetch, err)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", apperr.ErrUpstreamFetch, u.Scheme)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", apperr.ErrUpstreamFetch, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrUpstreamFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d from %s", apperr.ErrUpstreamFetch, resp.StatusCode, u.Host)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", apperr.ErrUpstreamFetch, err)
	}

	text := extractText(string(body))
	if text == "" {
		return "", fmt.Errorf("%w: no readable text at %s", apperr.ErrUpstreamFetch, u.Host)
	}
	return text, nil
}

// skipTags are non-content elements excluded from text extraction.
var skipTags = map[string]bool{
	"script": true, "style": true, "nav": true,
	"header": true, "footer": true, "aside": true,
	"noscript": true, "iframe": true,
}

// extractText parses HTML and returns collapsed readable text, truncated
// to maxTextBytes.
func extractText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	result := strings.Join(strings.Fields(sb.String()), " ")
	if len(result) > maxTextBytes {
		// Back up to a rune boundary so the cut never leaves invalid UTF-8.
		cut := maxTextBytes
		for cut > 0 && !utf8.RuneStart(result[cut]) {
			cut--
		}
		result = result[:cut] + "..."
	}
	return result
}
