package genius

import (
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var sectionHeader = regexp.MustCompile(`^\[[^\]]*\]$`)

// extractLyrics collects the text of every lyrics container on a Genius song
// page. <br> becomes a newline and nodes flagged data-exclude-from-selection
// (annotations, headers injected by the site) are skipped.
func extractLyrics(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(n *html.Node, inside bool)
	walk = func(n *html.Node, inside bool) {
		if n.Type == html.ElementNode {
			if attr(n, "data-exclude-from-selection") == "true" {
				return
			}
			if n.Data == "div" && attr(n, "data-lyrics-container") == "true" {
				if b.Len() > 0 {
					b.WriteString("\n")
				}
				inside = true
			}
			if inside && n.Data == "br" {
				b.WriteString("\n")
			}
		}
		if inside && n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inside)
		}
	}
	walk(doc, false)

	return cleanLyrics(b.String()), nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// cleanLyrics drops section headers and collapses runs of blank lines.
func cleanLyrics(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if sectionHeader.MatchString(line) {
			continue
		}
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
