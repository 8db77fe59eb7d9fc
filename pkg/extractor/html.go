package extractor

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func readHTML(r io.Reader) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	title := strings.TrimSpace(doc.Find("title").Text())
	return extractMainContent(doc), title, nil
}

func extractMainContent(doc *goquery.Document) string {
	// Try to find main content area
	selectors := []string{
		"main",
		"article",
		".resume",
		"#resume",
		".content",
		"#content",
	}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = blockText(selected)
			break
		}
	}

	// Fallback to body if no main content found
	if strings.TrimSpace(content) == "" {
		content = blockText(doc.Find("body"))
	}

	return content
}

// blockText keeps one line per block element so section headings survive.
func blockText(sel *goquery.Selection) string {
	var lines []string
	blocks := sel.Find("h1, h2, h3, h4, h5, h6, p, li, td, th, dt, dd")
	if blocks.Length() == 0 {
		return cleanLine(sel.Text())
	}
	blocks.Each(func(_ int, s *goquery.Selection) {
		if line := cleanLine(s.Text()); line != "" {
			lines = append(lines, line)
		}
	})
	return strings.Join(lines, "\n")
}

func cleanLine(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}
