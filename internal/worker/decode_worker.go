package worker

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/proxydec/proxy-list-worker/config"
	"github.com/proxydec/proxy-list-worker/internal/aws_s3"
	"github.com/proxydec/proxy-list-worker/internal/cache"
	"github.com/proxydec/proxy-list-worker/internal/decoder"
	"github.com/proxydec/proxy-list-worker/internal/fetcher"
	"github.com/proxydec/proxy-list-worker/internal/model"
	"github.com/proxydec/proxy-list-worker/internal/persistence"
)

type DecodeWorker struct {
	InputChan  <-chan *model.PageTask
	OutputChan chan<- *model.RecordMessage
	PanicChan  chan struct{}
	Fetch      *fetcher.Fetcher
	Cfg        *config.Config
	Log        *slog.Logger
	Db         persistence.RecordStorage
	S3         aws_s3.BucketClient
	Cache      cache.DedupeClient
	Wg         *sync.WaitGroup
}

// Run starts the decode worker. It fetches each listing page, decodes its rows into
// proxy records and sends the records that survive validation and dedupe to the
// output channel.
func (w *DecodeWorker) Run() {
	defer func() {
		if r := recover(); r != nil {
			w.Log.Error("PANIC!", slog.Any("err", r))
			w.PanicChan <- struct{}{}
		}
	}()
	defer w.Wg.Done()
	w.Log.Debug("starting decode worker.")

	for task := range w.InputChan {
		page, err := w.Fetch.Fetch(task)
		if err != nil {
			w.Log.Error("fetching failed.", slog.String("err", err.Error()))
			continue
		}
		// Retries with exponential backoff for 429 status code
		for retry, delay := w.Cfg.WorkerSettings.RetryAttempts, w.Cfg.WorkerSettings.RetryDelay; page.StatusCode ==
			http.StatusTooManyRequests && retry > 0; retry, delay = retry-1, delay*2 {
			w.Log.Warn("too many requests status code. retrying...", slog.Int("attempts left", retry))
			time.Sleep(delay)
			page, err = w.Fetch.Fetch(task)
			if err != nil {
				w.Log.Error("fetching failed.", slog.String("err", err.Error()))
				break
			}
		}
		if page == nil || page.FullHTML == "" {
			w.Log.Error("empty page. Skip decoding.", slog.String("url", task.URL))
			continue
		}
		if page.StatusCode == http.StatusTooManyRequests {
			w.Log.Error("too many requests error. Fetching failed.", slog.String("task", task.URL))
			continue
		}
		w.S3.WritePage(page)

		records := w.DecodePage(page, task.RowSelector)
		sent := 0
		for _, rec := range records {
			if !w.Cache.MarkSeen(rec.ID()) {
				continue
			}
			w.Db.Save(rec)
			w.OutputChan <- rec
			sent++
		}
		w.Log.Info("page decoded.", slog.String("source", task.Source),
			slog.Int("records", len(records)), slog.Int("sent", sent))
	}
}

// DecodePage locates the table rows of a fetched page and decodes each one.
// Rows missing a required cell are skipped with a log line, never failing the
// whole page; rows whose reconstructed IP does not pass the shape check are
// dropped the same way.
func (w *DecodeWorker) DecodePage(page *model.Page, selector string) []*model.RecordMessage {
	if selector == "" {
		selector = w.Cfg.WorkerSettings.RowSelector
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.FullHTML))
	if err != nil {
		w.Log.Error("failed to parse page html.", slog.String("err", err.Error()))
		return nil
	}

	var records []*model.RecordMessage
	doc.Find(selector).Each(func(i int, sel *goquery.Selection) {
		row := decoder.RowFromSelection(sel)
		rec, err := decoder.Decode(row)
		if err != nil {
			var missing *decoder.MissingCellError
			if errors.As(err, &missing) {
				w.Log.Debug("skipping incomplete row.", slog.Int("row", i),
					slog.Int("position", missing.Position))
			} else {
				w.Log.Error("failed to decode row.", slog.Int("row", i),
					slog.String("err", err.Error()))
			}
			return
		}
		if !rec.Valid() {
			w.Log.Debug("skipping row with malformed ip.", slog.Int("row", i),
				slog.String("ip", rec.IP))
			return
		}
		records = append(records, &model.RecordMessage{
			ProxyRecord:   *rec,
			Source:        page.Source,
			PageURL:       page.FullURL,
			ProxyURL:      rec.URL(),
			WorkerVersion: w.Cfg.Version,
		})
	})

	return records
}
