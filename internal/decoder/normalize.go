package decoder

import (
	"strings"

	"golang.org/x/net/html"
)

// speedAttr is the attribute the listing sites put the millisecond
// measurement on. The visible cell content is a progress bar; the
// number only exists as markup metadata.
const speedAttr = "rel"

// durationUnits maps a unit substring to its factor in seconds. Order
// matters: "sec" must win before the bare "d" of "seconds" is tried.
var durationUnits = []struct {
	substr string
	factor int
}{
	{"sec", 1},
	{"min", 60},
	{"h", 3600},
	{"d", 86400},
}

// durationSeconds converts mixed-unit freshness text ("1 min 30 sec",
// "2 h", "14 seconds ago") to a total in seconds. Units are detected by
// substring, not exact suffix, because the sites abbreviate
// inconsistently. A unit token takes its magnitude from its own leading
// digits ("30sec") or, failing that, from the preceding token
// ("30 sec"). Text with no recognizable unit totals zero.
func durationSeconds(text string) int {
	total := 0
	prev := 0
	for _, token := range strings.Fields(strings.ToLower(text)) {
		n, hasDigits := leadingInt(token)
		if hasDigits {
			prev = n
		}
		for _, unit := range durationUnits {
			if !strings.Contains(token, unit.substr) {
				continue
			}
			magnitude := prev
			if hasDigits {
				magnitude = n
			}
			total += magnitude * unit.factor
			prev = 0
			break
		}
	}
	return total
}

// leadingInt parses the leading digit run of a token. The second return
// is false when the token does not start with a digit.
func leadingInt(s string) (int, bool) {
	i := 0
	n := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		n = n*10 + int(s[i]-'0')
		i++
	}
	return n, i > 0
}

// toInt is the lenient text-to-integer conversion used for port and
// similar numeric cells: the leading digit run, or 0 when there is
// none. Bad content degrades to zero instead of failing the row.
func toInt(s string) int {
	n, _ := leadingInt(strings.TrimSpace(s))
	return n
}

// intAttr reads a numeric attribute off the first nested element that
// carries it, with the same leniency as toInt. Used for the speed and
// connection-time columns where the value lives on a bar element, not
// in text content.
func intAttr(cell *html.Node, name string) int {
	if cell == nil {
		return 0
	}
	if n := findAttrElement(cell, name); n != nil {
		v, _ := attrValue(n, name)
		return toInt(v)
	}
	return 0
}

func findAttrElement(n *html.Node, attr string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			if _, ok := attrValue(c, attr); ok {
				return c
			}
		}
		if found := findAttrElement(c, attr); found != nil {
			return found
		}
	}
	return nil
}
