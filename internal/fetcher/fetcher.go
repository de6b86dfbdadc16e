package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/gocolly/colly"
	"github.com/proxydec/proxy-list-worker/config"
	"github.com/proxydec/proxy-list-worker/internal/model"
)

// Fetcher retrieves a listing page. Plain sources go through colly;
// sources that only render their table (and its obfuscation markup)
// under a script engine need the headless browser mechanism.
type Fetcher struct {
	cfg *config.WorkerConfig
	log *slog.Logger
}

func New(cfg *config.WorkerConfig, log *slog.Logger) *Fetcher {
	return &Fetcher{cfg: cfg, log: log}
}

func (f *Fetcher) Fetch(task *model.PageTask) (*model.Page, error) {
	p := &model.Page{
		Source:  task.Source,
		FullURL: task.URL,
	}
	mechanism := model.FetchMechanism(f.cfg.FetchMechanism)
	if task.UseBrowser {
		mechanism = model.HeadlessBrowser
	}
	switch mechanism {
	case model.Curl:
		return f.fetchWithCurl(p)
	case model.HeadlessBrowser:
		return f.fetchWithBrowser(p)
	default:
		return nil, errors.New("unsupported fetch mechanism")
	}
}

func (f *Fetcher) fetchWithCurl(p *model.Page) (*model.Page, error) {
	p.FetchMechanism = model.Curl.String()

	c := colly.NewCollector()
	c.SetRequestTimeout(f.cfg.FetchTimeout)
	c.UserAgent = f.cfg.UserAgent

	c.OnResponse(func(resp *colly.Response) {
		p.FullHTML = string(resp.Body)
		p.ETag = resp.Headers.Get("ETag")
	})

	c.OnError(func(r *colly.Response, err error) {
		p.StatusCode = -1
		if len(err.Error()) > 1000 {
			p.Status = err.Error()[:1000]
		} else {
			p.Status = err.Error()
		}
	})

	if !strings.HasPrefix(p.FullURL, "http://") && !strings.HasPrefix(p.FullURL, "https://") {
		p.FullURL = "https://" + p.FullURL
	}

	t := time.Now()
	err := c.Visit(p.FullURL)
	p.TimeToFetch = time.Since(t).Milliseconds()
	if err != nil {
		// error / status are captured by the callback above
		return p, nil
	}
	p.StatusCode = 200
	p.Status = http.StatusText(200)

	return p, nil
}

func (f *Fetcher) fetchWithBrowser(p *model.Page) (*model.Page, error) {
	startTime := time.Now()
	responseHeaders := make(map[string]interface{}, 20)
	p.FetchMechanism = model.HeadlessBrowser.String()

	tCtx, cancelTCtx := context.WithTimeout(context.Background(), f.cfg.FetchTimeout)
	defer cancelTCtx()
	ctx, cancel := chromedp.NewContext(tCtx)
	defer cancel()

	chromedp.ListenTarget(ctx, func(event interface{}) {
		switch responseReceivedEvent := event.(type) {
		case *network.EventResponseReceived:
			response := responseReceivedEvent.Response
			if response.URL == p.FullURL {
				p.StatusCode = int(response.Status)
				if len(response.StatusText) > 1000 {
					p.Status = response.StatusText[:1000]
				} else {
					p.Status = response.StatusText
				}
				responseHeaders = response.Headers
			}
		case *network.EventRequestWillBeSent:
			request := responseReceivedEvent.Request
			if responseReceivedEvent.RedirectResponse != nil {
				p.FullURL = request.URL
				f.log.Info("redirected.", slog.String("url",
					responseReceivedEvent.RedirectResponse.URL))
			}
		}
	})
	err := chromedp.Run(ctx,
		chromedp.Tasks{
			network.Enable(),
			network.SetExtraHTTPHeaders(map[string]interface{}{
				"User-Agent": f.cfg.UserAgent,
			}),
			enableLifeCycleEvents(),
			navigateAndWaitFor(p.FullURL, "networkIdle"),
		},
		chromedp.ActionFunc(func(ctx context.Context) error {
			rootNode, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			p.FullHTML, err = dom.GetOuterHTML().WithNodeID(rootNode.NodeID).Do(ctx)
			return err
		}),
	)
	if responseHeaders["ETag"] != nil {
		p.ETag = responseHeaders["ETag"].(string)
	}
	p.TimeToFetch = time.Since(startTime).Milliseconds()

	return p, err
}

func enableLifeCycleEvents() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		err := page.Enable().Do(ctx)
		if err != nil {
			return err
		}
		err = page.SetLifecycleEventsEnabled(true).Do(ctx)
		if err != nil {
			return err
		}
		return nil
	}
}

func navigateAndWaitFor(url string, eventName string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		_, _, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		return waitFor(ctx, eventName)
	}
}

func waitFor(ctx context.Context, eventName string) error {
	ch := make(chan struct{})
	cctx, cancel := context.WithCancel(ctx)
	chromedp.ListenTarget(cctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventLifecycleEvent:
			if e.Name == eventName {
				cancel()
				close(ch)
			}
		}
	})
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
