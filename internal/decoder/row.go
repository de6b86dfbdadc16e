package decoder

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Column positions inside a listing row. The sites keep the same
// 8-column layout across redesigns even when the obfuscation changes.
const (
	colLastSeen       = 1
	colIP             = 2
	colPort           = 3
	colCountry        = 4
	colSpeed          = 5
	colConnectionTime = 6
	colProtocol       = 7
	colAnonymity      = 8
)

// MissingCellError is returned when a row does not have a cell at a
// required column position. It aborts decoding of that row only; the
// caller is expected to skip the row and keep going with the batch.
type MissingCellError struct {
	Position int
}

func (e *MissingCellError) Error() string {
	return fmt.Sprintf("row has no cell at position %d", e.Position)
}

// Row is one proxy-listing table row: an ordered list of cell subtrees.
// The Row does not own any network or document state; callers build it
// from an already-parsed <tr> node and may decode it from any goroutine.
type Row struct {
	cells []*html.Node
}

// NewRow collects the <td> children of a <tr> node, in document order.
func NewRow(tr *html.Node) *Row {
	r := &Row{}
	if tr == nil {
		return r
	}
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
			r.cells = append(r.cells, c)
		}
	}
	return r
}

// RowFromSelection builds a Row from a goquery selection of a <tr>.
// Only the first matched node is used.
func RowFromSelection(sel *goquery.Selection) *Row {
	if sel == nil || len(sel.Nodes) == 0 {
		return &Row{}
	}
	return NewRow(sel.Nodes[0])
}

// Cell returns the cell subtree at the given 1-indexed column position.
func (r *Row) Cell(pos int) (*html.Node, error) {
	if pos < 1 || pos > len(r.cells) {
		return nil, &MissingCellError{Position: pos}
	}
	return r.cells[pos-1], nil
}

// Len reports how many cells the row carries.
func (r *Row) Len() int {
	return len(r.cells)
}
