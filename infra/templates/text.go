package templates

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var blankLines = regexp.MustCompile(`\n{3,}`)

// Text converts rendered HTML into its plain-text alternative.
type Text struct{}

// PlainText drops styles and scripts, breaks lines at block elements and
// table cells, and collapses runs of whitespace.
func (Text) PlainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("style, script, head").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("td, th").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" | ")
	})
	doc.Find("p, div, tr, h1, h2, h3, li, table").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		line = strings.TrimSuffix(line, " |")
		lines = append(lines, line)
	}
	out := strings.TrimSpace(strings.Join(lines, "\n"))
	return blankLines.ReplaceAllString(out, "\n\n"), nil
}
