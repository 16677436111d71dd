package htmldoc

import (
	"regexp"

	"golang.org/x/net/html"
)

// boilerplatePattern matches class and id values of navigation-like markup.
var boilerplatePattern = regexp.MustCompile(
	`(?i)(^|[^a-z])(nav|navbar|navigation|menu|breadcrumbs?|` +
		`site-header|page-header|masthead|banner|` +
		`footer|site-footer|page-footer|colophon|` +
		`sidebar|widget-area|widget|aside)([^a-z]|$)`)

// exclusionChecker decides which elements are dropped for a mode.
type exclusionChecker struct {
	mode    NavigationExclusionMode
	body    *html.Node
	wrapper *html.Node // single <div>/<main> directly under body, if any
}

func newExclusionChecker(mode NavigationExclusionMode, body *html.Node) *exclusionChecker {
	return &exclusionChecker{mode: mode, body: body, wrapper: topLevelWrapper(body)}
}

// topLevelWrapper returns the only structural child of body, handling the
// common <body><div id="main">...</div></body> shape.
func topLevelWrapper(body *html.Node) *html.Node {
	var found *html.Node
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || shouldSkipElement(c.Data) {
			continue
		}
		if (c.Data != "div" && c.Data != "main") || found != nil {
			return nil
		}
		found = c
	}
	return found
}

func (ec *exclusionChecker) shouldExclude(n *html.Node) bool {
	if ec == nil || ec.mode == NavigationExclusionNone || n.Type != html.ElementNode {
		return false
	}
	if ec.explicit(n) {
		return true
	}
	if ec.mode >= NavigationExclusionStandard {
		if v := getAttr(n, "class"); v != "" && boilerplatePattern.MatchString(v) {
			return true
		}
		if v := getAttr(n, "id"); v != "" && boilerplatePattern.MatchString(v) {
			return true
		}
	}
	return false
}

func (ec *exclusionChecker) explicit(n *html.Node) bool {
	switch n.Data {
	case "nav", "aside":
		return true
	case "header", "footer":
		return ec.topLevel(n)
	}
	switch getAttr(n, "role") {
	case "navigation", "complementary", "doc-pagelist":
		return true
	case "banner", "contentinfo":
		return ec.topLevel(n)
	}
	return false
}

func (ec *exclusionChecker) topLevel(n *html.Node) bool {
	p := n.Parent
	return p != nil && (p == ec.body || (ec.wrapper != nil && p == ec.wrapper))
}

// getAttr returns the value of an attribute, or "" when it is absent.
// Namespaced XHTML attributes keep their prefix, e.g. "epub:type".
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
