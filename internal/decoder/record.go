package decoder

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// protocolWidth is the fixed token width protocols are normalized to,
// so "socks4" and "socks5" collapse to the shared "socks" prefix.
const protocolWidth = 5

// ProxyRecord is one decoded proxy listing. All fields are computed in
// a single pass by Decode and never mutated afterwards, so a record can
// be shared freely between goroutines.
type ProxyRecord struct {
	LastSeenSeconds  int    `json:"last_seen_seconds"`
	IP               string `json:"ip"`
	Port             int    `json:"port"`
	Country          string `json:"country"`
	SpeedMs          int    `json:"speed_ms"`
	ConnectionTimeMs int    `json:"connection_time_ms"`
	Protocol         string `json:"protocol"`
	Anonymity        string `json:"anonymity"`
}

// Decode derives a ProxyRecord from a Row. The source pattern is lazy
// per-field memoization; since decoding a cell is cheap and a Row is
// immutable, everything is computed eagerly here instead and the record
// itself is the cache. Returns a MissingCellError when the row does not
// have all eight columns; no partial record is produced in that case.
func Decode(row *Row) (*ProxyRecord, error) {
	cells := make([]*html.Node, colAnonymity+1)
	for pos := colLastSeen; pos <= colAnonymity; pos++ {
		n, err := row.Cell(pos)
		if err != nil {
			return nil, err
		}
		cells[pos] = n
	}

	return &ProxyRecord{
		LastSeenSeconds:  durationSeconds(cellText(cells[colLastSeen])),
		IP:               deobfuscateIP(cells[colIP]),
		Port:             toInt(cellText(cells[colPort])),
		Country:          strings.ToLower(cellText(cells[colCountry])),
		SpeedMs:          intAttr(cells[colSpeed], speedAttr),
		ConnectionTimeMs: intAttr(cells[colConnectionTime], speedAttr),
		Protocol:         truncate(strings.ToLower(cellText(cells[colProtocol])), protocolWidth),
		Anonymity:        strings.ToLower(cellText(cells[colAnonymity])),
	}, nil
}

// cellText is the trimmed text content of a cell.
func cellText(n *html.Node) string {
	return strings.TrimSpace(nodeText(n))
}

// Valid reports whether the reconstructed IP splits into exactly four
// non-empty dot segments. Octet ranges are deliberately not checked:
// the upstream contract only cares about shape, and strengthening the
// check here would reject rows the source system accepts.
func (r *ProxyRecord) Valid() bool {
	segments := strings.Split(r.IP, ".")
	if len(segments) != 4 {
		return false
	}
	for _, s := range segments {
		if s == "" {
			return false
		}
	}
	return true
}

func (r *ProxyRecord) IsHTTP() bool  { return r.Protocol == "http" }
func (r *ProxyRecord) IsHTTPS() bool { return r.Protocol == "https" }

// IsSocks matches by prefix so both socks4 and socks5 qualify.
func (r *ProxyRecord) IsSocks() bool { return strings.HasPrefix(r.Protocol, "socks") }

func (r *ProxyRecord) SupportsSSL() bool { return r.IsHTTPS() || r.IsSocks() }

// IsAnonymous compares the anonymity tier by prefix; the listings only
// distinguish "high" from everything else.
func (r *ProxyRecord) IsAnonymous() bool { return strings.HasPrefix(r.Anonymity, "high") }

func (r *ProxyRecord) IsSecure() bool { return r.IsAnonymous() && r.SupportsSSL() }

// URL is the canonical protocol://ip:port form of the record.
func (r *ProxyRecord) URL() string {
	return fmt.Sprintf("%s://%s:%d", r.Protocol, r.IP, r.Port)
}

// ID is the ip:port key the pipeline deduplicates and persists on.
func (r *ProxyRecord) ID() string {
	return fmt.Sprintf("%s:%d", r.IP, r.Port)
}

func truncate(s string, width int) string {
	if len(s) > width {
		return s[:width]
	}
	return s
}
