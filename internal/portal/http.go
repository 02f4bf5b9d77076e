package portal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"timetable/internal/config"
	appLog "timetable/internal/log"
)

// maxCalendarBytes bounds the downloaded calendar export.
const maxCalendarBytes = 16 << 20

// HTTPFetcher walks the portal with plain HTTP requests, a cookie jar and
// goquery for the HTML pages. It does not run JavaScript.
type HTTPFetcher struct {
	cfg config.PortalConfig
}

func NewHTTPFetcher(cfg config.PortalConfig) *HTTPFetcher {
	return &HTTPFetcher{cfg: cfg}
}

// FetchCalendar implements Fetcher. Each call starts with an empty cookie jar.
func (f *HTTPFetcher) FetchCalendar(ctx context.Context, username, password string) ([]byte, error) {
	if timeout := f.cfg.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("portal: cookie jar: %w", err)
	}
	client := &http.Client{Jar: jar}
	started := time.Now()

	appLog.Info("portal login start", "backend", "http", "url", redactURL(f.cfg.LoginURL))

	loginDoc, loginURL, err := f.getDocument(ctx, client, f.cfg.LoginURL)
	if err != nil {
		return nil, err
	}

	form := loginDoc.Find("form").First()
	if form.Length() == 0 {
		return nil, fmt.Errorf("portal: login page %s has no form", redactURL(f.cfg.LoginURL))
	}
	if err := f.submitLogin(ctx, client, loginURL, form, username, password); err != nil {
		return nil, err
	}

	toolsDoc, toolsURL, err := f.getDocument(ctx, client, f.cfg.ToolsURL)
	if err != nil {
		return nil, err
	}

	href, ok := anchorByText(toolsDoc, f.cfg.AnchorText)
	if !ok {
		appLog.Warn("portal timetable link missing after login", "anchor", f.cfg.AnchorText)
		return nil, ErrAuthentication
	}
	target, err := toolsURL.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("portal: timetable link %q: %w", href, err)
	}
	// Following the link opens the calendar session on the export host.
	if _, _, err := f.getDocument(ctx, client, target.String()); err != nil {
		return nil, err
	}

	body, err := f.download(ctx, client, f.cfg.CalendarURL)
	if err != nil {
		return nil, err
	}

	appLog.Info("portal fetch success", "backend", "http", "url", redactURL(f.cfg.CalendarURL),
		"bytes", len(body), "elapsed", time.Since(started).Round(time.Millisecond))
	return body, nil
}

func (f *HTTPFetcher) submitLogin(ctx context.Context, client *http.Client, base *url.URL, form *goquery.Selection, username, password string) error {
	values := url.Values{}
	form.Find("input").Each(func(_ int, in *goquery.Selection) {
		name, ok := in.Attr("name")
		if !ok || name == "" {
			return
		}
		typ := strings.ToLower(in.AttrOr("type", "text"))
		if typ == "checkbox" || typ == "radio" {
			if _, checked := in.Attr("checked"); !checked {
				return
			}
		}
		values.Set(name, in.AttrOr("value", ""))
	})
	values.Set(f.cfg.UserField, username)
	values.Set(f.cfg.PassField, password)

	action, err := base.Parse(form.AttrOr("action", ""))
	if err != nil {
		return fmt.Errorf("portal: login form action: %w", err)
	}

	var req *http.Request
	if strings.EqualFold(form.AttrOr("method", "post"), "get") {
		action.RawQuery = values.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, action.String(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, action.String(), strings.NewReader(values.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return fmt.Errorf("portal: build login request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("portal: submit login: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	// The portal answers a rejected login with its normal page, so the
	// status alone says nothing about the credentials.
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("portal: submit login: unexpected status %s", resp.Status)
	}
	return nil
}

// getDocument GETs rawURL and parses it as HTML. It returns the final URL
// after redirects for resolving relative links.
func (f *HTTPFetcher) getDocument(ctx context.Context, client *http.Client, rawURL string) (*goquery.Document, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("portal: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("portal: get %s: %w", redactURL(rawURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("portal: get %s: unexpected status %s", redactURL(rawURL), resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("portal: parse %s: %w", redactURL(rawURL), err)
	}
	return doc, resp.Request.URL, nil
}

func (f *HTTPFetcher) download(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("portal: build request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("portal: download calendar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("portal: download calendar: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCalendarBytes))
	if err != nil {
		return nil, fmt.Errorf("portal: read calendar: %w", err)
	}
	return body, nil
}

// anchorByText returns the href of the first link whose text equals text.
func anchorByText(doc *goquery.Document, text string) (string, bool) {
	var href string
	var found bool
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.Join(strings.Fields(a.Text()), " ") != text {
			return true
		}
		href, found = a.Attr("href")
		return false
	})
	return href, found
}
