package decoder

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var numeralClass = regexp.MustCompile(`^\d+$`)

// deobfuscateIP reconstructs the dotted-quad from the IP cell. The page
// scatters the real digits across child nodes and mixes in decoys that
// are hidden from a browser but visible to a naive scraper. A node is
// genuine when, in priority order:
//
//  1. it carries an inline style attribute and the style value contains
//     "in" (the page writes "display:inline" on real fragments and
//     "display:none" on decoys; the substring test is deliberate, the
//     marker moves around inside the style string between redesigns),
//  2. its class is listed in the row's decoder table (see genuineClasses),
//  3. its class is a plain numeral (the digit-bearing sibling scheme),
//  4. it is a plain text node.
//
// Text of genuine nodes is concatenated in document order with no
// separator. This function never fails; a garbage result is caught by
// ProxyRecord.Valid, not here.
func deobfuscateIP(cell *html.Node) string {
	if cell == nil {
		return ""
	}
	var (
		classes map[string]struct{}
		parsed  bool
		b       strings.Builder
	)
	// The decoder table is only needed for class-tagged nodes, so it is
	// parsed at most once per row and only when such a node shows up.
	lookupClass := func(name string) bool {
		if !parsed {
			classes = genuineClasses(cell)
			parsed = true
		}
		_, ok := classes[name]
		return ok
	}

	for c := cell.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			b.WriteString(c.Data)
		case html.ElementNode:
			if c.Data == "style" {
				// the decoder table itself, carries no digits
				continue
			}
			if style, ok := attrValue(c, "style"); ok {
				if strings.Contains(style, "in") {
					b.WriteString(nodeText(c))
				}
				continue
			}
			if class, ok := attrValue(c, "class"); ok {
				if lookupClass(class) || numeralClass.MatchString(class) {
					b.WriteString(nodeText(c))
				}
				continue
			}
			// element with neither style nor class: decoy
		}
	}
	return b.String()
}

// genuineClasses parses the in-cell <style> element into the set of
// class names whose nodes carry real IP fragments. Each whitespace
// separated token of the style text is a selector; tokens mentioning
// "none" are decoy rules, the rest name genuine classes. The class name
// sits at a fixed window inside the token (a leading '.' and a trailing
// combinator or brace around a 4-character name).
func genuineClasses(cell *html.Node) map[string]struct{} {
	classes := make(map[string]struct{})
	styleNode := findElement(cell, "style")
	if styleNode == nil {
		return classes
	}
	for _, token := range strings.Fields(nodeText(styleNode)) {
		if strings.Contains(token, "none") {
			continue
		}
		if len(token) >= 5 {
			classes[token[1:5]] = struct{}{}
		}
	}
	return classes
}

// findElement returns the first descendant element with the given tag.
func findElement(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// attrValue looks up an attribute on an element node.
func attrValue(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// nodeText concatenates all descendant text of a node, in document order.
func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}
