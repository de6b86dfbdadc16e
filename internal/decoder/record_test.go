package decoder

import (
	"errors"
	"reflect"
	"testing"
)

const fullRow = `<tr>
<td>1 min 30 sec</td>
<td><style>.ab12{display:inline} .cd34{display:none}</style><span class="ab12">94</span><span class="cd34">250</span>.130.2.1</td>
<td>3128</td>
<td>United States</td>
<td><div class="bar" rel="1200"></div></td>
<td><div class="bar" rel="800"></div></td>
<td>HTTPS</td>
<td>High +KA</td>
</tr>`

func TestDecodeFullRow(t *testing.T) {
	rec, err := Decode(parseRow(t, fullRow))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}

	if rec.LastSeenSeconds != 90 {
		t.Errorf("LastSeenSeconds = %d, want 90", rec.LastSeenSeconds)
	}
	if rec.IP != "94.130.2.1" {
		t.Errorf("IP = %q, want 94.130.2.1", rec.IP)
	}
	if rec.Port != 3128 {
		t.Errorf("Port = %d, want 3128", rec.Port)
	}
	if rec.Country != "united states" {
		t.Errorf("Country = %q, want united states", rec.Country)
	}
	if rec.SpeedMs != 1200 {
		t.Errorf("SpeedMs = %d, want 1200", rec.SpeedMs)
	}
	if rec.ConnectionTimeMs != 800 {
		t.Errorf("ConnectionTimeMs = %d, want 800", rec.ConnectionTimeMs)
	}
	if rec.Protocol != "https" {
		t.Errorf("Protocol = %q, want https", rec.Protocol)
	}
	if rec.Anonymity != "high +ka" {
		t.Errorf("Anonymity = %q, want high +ka", rec.Anonymity)
	}

	if !rec.Valid() {
		t.Error("record should be valid")
	}
	if got, want := rec.URL(), "https://94.130.2.1:3128"; got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
	if !rec.IsHTTPS() || rec.IsHTTP() || rec.IsSocks() {
		t.Error("protocol classification wrong for https")
	}
	if !rec.SupportsSSL() || !rec.IsAnonymous() || !rec.IsSecure() {
		t.Error("derived security flags wrong for high-anonymity https")
	}
}

func TestDecodeIdempotent(t *testing.T) {
	row := parseRow(t, fullRow)
	first, err := Decode(row)
	if err != nil {
		t.Fatalf("first decode failed: %v", err)
	}
	second, err := Decode(row)
	if err != nil {
		t.Fatalf("second decode failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("decoding twice differs: %+v vs %+v", first, second)
	}
}

func TestDecodeMissingCell(t *testing.T) {
	row := parseRow(t, "<tr><td>1 min</td><td>1.2.3.4</td><td>80</td></tr>")
	rec, err := Decode(row)
	if rec != nil {
		t.Errorf("expected no partial record, got %+v", rec)
	}
	var missing *MissingCellError
	if !errors.As(err, &missing) {
		t.Fatalf("error is %T, want *MissingCellError", err)
	}
	if missing.Position != 4 {
		t.Errorf("missing position = %d, want 4", missing.Position)
	}
}

func TestProtocolClassification(t *testing.T) {
	tests := []struct {
		protocol  string
		anonymity string
		want      string
		isHTTP    bool
		isHTTPS   bool
		isSocks   bool
		isSecure  bool
	}{
		{"HTTP", "High", "http", true, false, false, false},
		{"HTTPS", "High +KA", "https", false, true, false, true},
		{"HTTPS", "Low", "https", false, true, false, false},
		{"SOCKS4", "High", "socks", false, false, true, true},
		{"socks5 proxy", "elite", "socks", false, false, true, false},
	}
	for _, tt := range tests {
		row := parseRow(t, "<tr><td>1 sec</td><td>1.2.3.4</td><td>80</td><td>de</td>"+
			"<td><div rel='1'></div></td><td><div rel='2'></div></td>"+
			"<td>"+tt.protocol+"</td><td>"+tt.anonymity+"</td></tr>")
		rec, err := Decode(row)
		if err != nil {
			t.Fatalf("Decode(%q) failed: %v", tt.protocol, err)
		}
		if rec.Protocol != tt.want {
			t.Errorf("Protocol(%q) = %q, want %q", tt.protocol, rec.Protocol, tt.want)
		}
		if rec.IsHTTP() != tt.isHTTP || rec.IsHTTPS() != tt.isHTTPS || rec.IsSocks() != tt.isSocks {
			t.Errorf("classification of %q: http=%v https=%v socks=%v", tt.protocol,
				rec.IsHTTP(), rec.IsHTTPS(), rec.IsSocks())
		}
		if rec.IsSecure() != tt.isSecure {
			t.Errorf("IsSecure(%q, %q) = %v, want %v", tt.protocol, tt.anonymity,
				rec.IsSecure(), tt.isSecure)
		}
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"1.2.3.4", true},
		{"1..3.4", false},
		{"1.2.3", false},
		{"1.2.3.4.5", false},
		{"", false},
		// octet ranges are accepted on purpose, the check is shape only
		{"999.999.999.999", true},
		{"01.02.3.4", true},
	}
	for _, tt := range tests {
		rec := &ProxyRecord{IP: tt.ip}
		if got := rec.Valid(); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}

func TestRecordID(t *testing.T) {
	rec := &ProxyRecord{IP: "1.2.3.4", Port: 8080}
	if got := rec.ID(); got != "1.2.3.4:8080" {
		t.Errorf("ID = %q, want 1.2.3.4:8080", got)
	}
}
