package decoder

import "testing"

func TestDurationSeconds(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"1 min 30 sec", 90},
		{"2 h", 7200},
		{"1 d", 86400},
		{"45 sec", 45},
		{"10 seconds ago", 10},
		{"1 hour 5 min", 3900},
		{"2d 3h", 183600},
		{"30sec", 30},
		{"", 0},
		// no magnitude anywhere: the unit contributes 0
		{"fresh", 0},
		// no unit token at all
		{"just now", 0},
		// magnitude without a unit contributes 0
		{"5 bananas", 0},
	}
	for _, tt := range tests {
		if got := durationSeconds(tt.text); got != tt.want {
			t.Errorf("durationSeconds(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestToInt(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"3128", 3128},
		{" 8080 ", 8080},
		{"80b", 80},
		{"abc", 0},
		{"", 0},
		{"-1", 0}, // leading digit run only, sign is not a digit
	}
	for _, tt := range tests {
		if got := toInt(tt.in); got != tt.want {
			t.Errorf("toInt(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestIntAttr(t *testing.T) {
	tests := []struct {
		name string
		cell string
		want int
	}{
		{"simple bar", `<div class="bar" rel="1234"></div>`, 1234},
		{"nested element", `<p><span rel="56"></span></p>`, 56},
		{"missing attribute", `<div class="bar">1500</div>`, 0},
		{"non-numeric value", `<div rel="fast"></div>`, 0},
		{"no element at all", `1500`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := parseRow(t, "<tr><td>"+tt.cell+"</td></tr>")
			cell, err := row.Cell(1)
			if err != nil {
				t.Fatalf("fixture row has no cell: %v", err)
			}
			if got := intAttr(cell, speedAttr); got != tt.want {
				t.Errorf("intAttr = %d, want %d", got, tt.want)
			}
		})
	}
}
