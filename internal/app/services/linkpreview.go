package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// LinkPreview holds the metadata scraped from a shared link.
type LinkPreview struct {
	URL         string
	Title       string
	Description string
}

var linkPreviewClient = &http.Client{Timeout: 5 * time.Second}

// fetchLinkPreview pulls Open Graph and Twitter Card meta tags from the
// target page. Best effort: link messages render fine without a title.
func fetchLinkPreview(ctx context.Context, targetURL string) (*LinkPreview, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "evently-api/1.0")

	resp, err := linkPreviewClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}

	// Read up to 512KB of HTML
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, err
	}

	body := string(bodyBytes)
	preview := &LinkPreview{URL: targetURL}
	preview.Title = extractMetaTag(body, "og:title", "twitter:title")
	preview.Description = extractMetaTag(body, "og:description", "twitter:description", "description")

	// Fallback to title tag
	if preview.Title == "" {
		if start := strings.Index(body, "<title>"); start != -1 {
			if end := strings.Index(body[start:], "</title>"); end != -1 {
				preview.Title = strings.TrimSpace(body[start+7 : start+end])
			}
		}
	}

	return preview, nil
}

func extractMetaTag(html string, names ...string) string {
	for _, name := range names {
		if val := findMetaContent(html, `property="`+name+`"`); val != "" {
			return val
		}
		if val := findMetaContent(html, `name="`+name+`"`); val != "" {
			return val
		}
	}
	return ""
}

func findMetaContent(html, pattern string) string {
	idx := strings.Index(html, pattern)
	if idx == -1 {
		return ""
	}

	contentIdx := strings.Index(html[idx:], `content="`)
	if contentIdx == -1 {
		return ""
	}

	start := idx + contentIdx + 9
	if start >= len(html) {
		return ""
	}

	end := strings.Index(html[start:], `"`)
	if end == -1 {
		return ""
	}

	return strings.TrimSpace(html[start : start+end])
}
