package rawstore

import (
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"

	"github.com/openplates/audit-cli/internal/model"
	"github.com/openplates/audit-cli/internal/normalizer"
)

// ParsePageStats extracts portal usage metrics from a saved
// page_content.html capture. Portals render an overview box and a usage
// section with label/value pairs; anything missing is simply left zero.
func ParsePageStats(r io.Reader, fc normalizer.FileContext) (model.ScrapeStats, error) {
	stats := model.ScrapeStats{
		AgencyID:   fc.AgencyID,
		ScrapeDate: fc.ScrapeDate,
	}

	doc, err := html.Parse(r)
	if err != nil {
		return stats, eris.Wrap(err, "rawstore: parse page capture")
	}

	if overview := findByID(doc, "overview"); overview != nil {
		if box := findByClass(overview, "box"); box != nil {
			stats.Overview = collapseText(box)
		}
	}

	if usage := findByID(doc, "usage"); usage != nil {
		walkLabeledValues(usage, func(label, value string) {
			n, err := strconv.Atoi(strings.ReplaceAll(value, ",", ""))
			if err != nil {
				return
			}
			switch {
			case strings.Contains(label, "unique vehicles"):
				stats.VehiclesDetected = n
			case strings.Contains(label, "hotlist hits"):
				stats.HotlistHits = n
			case strings.Contains(label, "searches"):
				stats.SearchesLast30d = n
			}
		})
	}

	return stats, nil
}

// walkLabeledValues visits every element with class "value" under n and
// pairs it with the sibling element of class "label".
func walkLabeledValues(n *html.Node, visit func(label, value string)) {
	if n.Type == html.ElementNode && hasClass(n, "value") {
		if label := siblingByClass(n, "label"); label != nil {
			visit(strings.ToLower(collapseText(label)), collapseText(n))
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkLabeledValues(c, visit)
	}
}

func siblingByClass(n *html.Node, class string) *html.Node {
	for s := n.Parent.FirstChild; s != nil; s = s.NextSibling {
		if s != n && s.Type == html.ElementNode && hasClass(s, class) {
			return s
		}
	}
	return nil
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && attr(n, "id") == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func findByClass(n *html.Node, class string) *html.Node {
	if n.Type == html.ElementNode && hasClass(n, class) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByClass(c, class); found != nil {
			return found
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(attr(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func collapseText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
