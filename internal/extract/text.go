package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// textNodes returns the raw text nodes below sel in document order.
func textNodes(sel *goquery.Selection) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			out = append(out, n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return out
}

func firstText(sel *goquery.Selection) string {
	nodes := textNodes(sel)
	if len(nodes) == 0 {
		return ""
	}
	return strings.TrimSpace(nodes[0])
}

func firstNonBlankText(sel *goquery.Selection) string {
	for _, text := range textNodes(sel) {
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}
	return ""
}

// lines trims every text node below sel and drops the blank ones.
func lines(sel *goquery.Selection) []string {
	var out []string
	for _, text := range textNodes(sel) {
		if text = strings.TrimSpace(text); text != "" {
			out = append(out, text)
		}
	}
	return out
}
