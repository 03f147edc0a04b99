package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/hybridrag/internal/models"
)

// Nominal point sizes given to HTML elements so heading detection treats
// h1-h5 like large PDF fonts and body text like regular PDF text.
var htmlFontSizes = map[string]float64{
	"h1": 24,
	"h2": 20,
	"h3": 16,
	"h4": 14,
	"h5": 13,
	"h6": 12,
}

const (
	htmlBodySize      = 11
	htmlBlockSelector = "h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, td"
)

var contentSelectors = []string{
	"main",
	"article",
	".content",
	"#content",
	".documentation",
	"#documentation",
}

var noisePatterns = []string{
	"Cookie Policy",
	"Accept Cookies",
	"Privacy Policy",
	"Terms of Service",
}

// HTMLPage parses an HTML document into one page of blocks.
func HTMLPage(r io.Reader, number int, url string) (models.Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return models.Page{}, fmt.Errorf("parse html: %w", err)
	}
	return PageFromDocument(doc, number, url), nil
}

// PageFromDocument converts the main content area of doc into blocks, in
// document order. Elements wrapping other block elements are skipped so
// text is not emitted twice.
func PageFromDocument(doc *goquery.Document, number int, url string) models.Page {
	page := models.Page{Number: number, URL: url}

	doc.Find("script, style, nav, footer").Remove()

	mainContent(doc).Find(htmlBlockSelector).Each(func(_ int, sel *goquery.Selection) {
		if sel.Find(htmlBlockSelector).Length() > 0 {
			return
		}
		text := cleanText(sel.Text())
		if text == "" {
			return
		}
		tag := goquery.NodeName(sel)
		size, ok := htmlFontSizes[tag]
		if !ok {
			size = htmlBodySize
		}
		page.Blocks = append(page.Blocks, models.NewBlock(text, tag, size))
	})

	return page
}

func mainContent(doc *goquery.Document) *goquery.Selection {
	for _, selector := range contentSelectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			return selected.First()
		}
	}
	return doc.Find("body")
}

func cleanText(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}
	return strings.TrimSpace(content)
}
