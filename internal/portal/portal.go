// Package portal downloads a user's calendar from the campus portal.
//
// The portal has no API: a fetcher logs in through the HTML login form,
// opens the tools page and follows the timetable link, which only exists
// for an authenticated session. The calendar export is then downloaded
// with the same session.
package portal

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"timetable/internal/config"
)

// ErrAuthentication means the portal rejected the credentials. A missing
// timetable link after login is reported the same way.
var ErrAuthentication = errors.New("portal: authentication failed")

// Fetcher retrieves the raw calendar text for a user. Any error other than
// ErrAuthentication is a transport failure.
type Fetcher interface {
	FetchCalendar(ctx context.Context, username, password string) ([]byte, error)
}

// New returns the fetcher selected by cfg.Backend.
func New(cfg config.PortalConfig) (Fetcher, error) {
	switch cfg.Backend {
	case "", "http":
		return NewHTTPFetcher(cfg), nil
	case "browser":
		return NewBrowserFetcher(cfg), nil
	default:
		return nil, fmt.Errorf("portal: unknown backend %q", cfg.Backend)
	}
}

// redactURL keeps scheme and host only, so tokens in paths or queries do
// not end up in logs.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "portal://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
