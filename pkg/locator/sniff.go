package locator

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// DefaultLoginMarkers identify the SSO login shell the API serves instead of
// JSON when it decides a session is required. The shell is an HTML document
// that bootstraps the id.churchofjesuschrist.org flow from a script tag.
var DefaultLoginMarkers = []string{
	"id.churchofjesuschrist.org",
	"runLoginPage",
}

// looksLikeLoginPage reports whether a non-JSON 200 body is the login shell.
// The body must look like an HTML document and carry one of the markers in
// a script, link or form, not merely anywhere in the bytes.
func looksLikeLoginPage(body string, markers []string) bool {
	if len(markers) == 0 {
		markers = DefaultLoginMarkers
	}
	lowered := strings.ToLower(body)
	if !strings.Contains(lowered, "<!doctype html") && !strings.Contains(lowered, "<html") {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return false
	}
	hit := false
	doc.Find("script,link,a,form,meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		blob := s.Text()
		for _, attr := range []string{"src", "href", "action", "content"} {
			if v, ok := s.Attr(attr); ok {
				blob += " " + v
			}
		}
		for _, m := range markers {
			if strings.Contains(blob, m) {
				hit = true
				return false
			}
		}
		return true
	})
	return hit
}

// htmlTitle extracts the <title> of a malformed body so failed cells log
// something more useful than raw HTML.
func htmlTitle(body string) string {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return ""
	}
	title, ok := findTitle(doc)
	if !ok {
		return ""
	}
	title = strings.ReplaceAll(title, "\n", "")
	title = strings.ReplaceAll(title, "\r", "")
	return strings.ToValidUTF8(strings.TrimSpace(title), "")
}

func findTitle(n *html.Node) (string, bool) {
	if n.Type == html.ElementNode && n.Data == "title" {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title, ok := findTitle(c); ok {
			return title, true
		}
	}
	return "", false
}
