package decoder

import (
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func parseRow(t *testing.T, rowHTML string) *Row {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<table><tbody>" + rowHTML + "</tbody></table>"))
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}
	sel := doc.Find("tr")
	if sel.Length() == 0 {
		t.Fatal("fixture produced no row")
	}
	return RowFromSelection(sel)
}

func TestRowCellPositions(t *testing.T) {
	row := parseRow(t, "<tr><td>a</td><td>b</td><td>c</td></tr>")

	if row.Len() != 3 {
		t.Fatalf("expected 3 cells, got %d", row.Len())
	}
	for pos, want := range map[int]string{1: "a", 2: "b", 3: "c"} {
		cell, err := row.Cell(pos)
		if err != nil {
			t.Fatalf("Cell(%d) returned error: %v", pos, err)
		}
		if got := cellText(cell); got != want {
			t.Errorf("Cell(%d) text = %q, want %q", pos, got, want)
		}
	}
}

func TestRowMissingCell(t *testing.T) {
	row := parseRow(t, "<tr><td>a</td><td>b</td></tr>")

	for _, pos := range []int{0, 3, 9, -1} {
		_, err := row.Cell(pos)
		if err == nil {
			t.Errorf("Cell(%d) expected error, got nil", pos)
			continue
		}
		var missing *MissingCellError
		if !errors.As(err, &missing) {
			t.Errorf("Cell(%d) error is %T, want *MissingCellError", pos, err)
			continue
		}
		if missing.Position != pos {
			t.Errorf("Cell(%d) error position = %d", pos, missing.Position)
		}
	}
}

func TestRowFromEmptySelection(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<p>no table here</p>"))
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}
	row := RowFromSelection(doc.Find("tr"))
	if row.Len() != 0 {
		t.Errorf("expected empty row, got %d cells", row.Len())
	}
}
