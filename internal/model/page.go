package model

import "github.com/proxydec/proxy-list-worker/internal/decoder"

type FetchMechanism int

const (
	Curl FetchMechanism = iota
	HeadlessBrowser
)

func (fm FetchMechanism) String() string {
	return [...]string{"curl", "headless browser"}[fm]
}

// PageTask is one listing page to decode, as read from kafka.
type PageTask struct {
	Source      string `json:"source"`
	URL         string `json:"url"`
	RowSelector string `json:"row_selector,omitempty"` // overrides the configured default
	UseBrowser  bool   `json:"use_browser,omitempty"`  // script-heavy sources need the headless mechanism
}

// Page is a fetched listing page plus fetch metadata.
type Page struct {
	Source         string `json:"source"`
	FullURL        string `json:"full_url"`
	FullHTML       string `json:"full_html,omitempty"`
	TimeToFetch    int64  `json:"time_to_fetch"` // in milliseconds
	StatusCode     int    `json:"status_code"`
	Status         string `json:"status"`
	FetchMechanism string `json:"fetch_mechanism"`
	ETag           string `json:"etag,omitempty"`
}

// RecordMessage is a decoded proxy record enriched with pipeline
// metadata, as produced to kafka and persisted to the database.
type RecordMessage struct {
	decoder.ProxyRecord
	Source        string `json:"source"`
	PageURL       string `json:"page_url"`
	ProxyURL      string `json:"proxy_url"`
	WorkerVersion string `json:"worker_version"`
}
