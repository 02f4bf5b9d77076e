package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"timetable/internal/config"
	appLog "timetable/internal/log"
)

// DefaultTimeoutSec bounds a browser session when the config leaves it unset.
const DefaultTimeoutSec = 30

// BrowserFetcher drives a headless Chromium through the portal. Use it when
// the login page needs JavaScript.
type BrowserFetcher struct {
	cfg config.PortalConfig
}

func NewBrowserFetcher(cfg config.PortalConfig) *BrowserFetcher {
	return &BrowserFetcher{cfg: cfg}
}

// calendarResponse is the value produced by the in-page fetch.
type calendarResponse struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// FetchCalendar implements Fetcher.
func (f *BrowserFetcher) FetchCalendar(parentCtx context.Context, username, password string) ([]byte, error) {
	timeout := f.cfg.Timeout()
	if timeout <= 0 {
		timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, timeout)
	defer timeoutCancel()

	appLog.Info("portal login start", "backend", "browser", "url", redactURL(f.cfg.LoginURL))

	userSel := fmt.Sprintf(`form input[name=%q]`, f.cfg.UserField)
	passSel := fmt.Sprintf(`form input[name=%q]`, f.cfg.PassField)

	login := chromedp.Tasks{
		chromedp.Navigate(f.cfg.LoginURL),
		chromedp.WaitVisible(userSel, chromedp.ByQuery),
		chromedp.SendKeys(userSel, username, chromedp.ByQuery),
		chromedp.SendKeys(passSel, password, chromedp.ByQuery),
		chromedp.Submit(passSel, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, login); err != nil {
		return nil, fmt.Errorf("portal: browser login: %w", err)
	}

	var href string
	tools := chromedp.Tasks{
		chromedp.Navigate(f.cfg.ToolsURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(anchorScript(f.cfg.AnchorText), &href),
	}
	if err := chromedp.Run(ctx, tools); err != nil {
		return nil, fmt.Errorf("portal: browser tools page: %w", err)
	}
	if href == "" {
		appLog.Warn("portal timetable link missing after login", "anchor", f.cfg.AnchorText)
		return nil, ErrAuthentication
	}

	// The export is fetched from inside the page reached through the link
	// so the request carries that origin's session cookies.
	var res calendarResponse
	download := chromedp.Tasks{
		chromedp.Navigate(href),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(fetchScript(f.cfg.CalendarURL), &res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	}
	if err := chromedp.Run(ctx, download); err != nil {
		return nil, fmt.Errorf("portal: browser download: %w", err)
	}
	if res.Status < 200 || res.Status > 299 {
		return nil, fmt.Errorf("portal: download calendar: unexpected status %d", res.Status)
	}

	appLog.Info("portal fetch success", "backend", "browser", "url", redactURL(f.cfg.CalendarURL), "bytes", len(res.Body))
	return []byte(res.Body), nil
}

// anchorScript evaluates to the absolute href of the first link whose
// whitespace-normalised text equals text, or "".
func anchorScript(text string) string {
	return fmt.Sprintf(`(() => {
	const want = %s;
	const a = Array.from(document.querySelectorAll("a[href]"))
		.find(a => a.textContent.trim().split(/\s+/).join(" ") === want);
	return a ? a.href : "";
})()`, jsString(text))
}

func fetchScript(rawURL string) string {
	return fmt.Sprintf(`fetch(%s, {credentials: "include"})
	.then(r => r.text().then(body => ({status: r.status, body: body})))`, jsString(rawURL))
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
