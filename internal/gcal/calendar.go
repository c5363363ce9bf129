// Package gcal fetches one day of Google Calendar events for the signed-in
// identity. Credentials and the per-identity OAuth token live under the
// data root.
package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"daydash/internal/domain"
	"daydash/internal/identity"
)

const (
	credentialsFileName = "credentials.json"
	tokenFileName       = "token.json"

	allDayMarker    = "1day"
	untitledSubject = "(no title)"
)

// Client resolves the identity's stored token and talks to the Calendar
// API. Zero API calls happen until FetchDay.
type Client struct {
	Resolve  identity.Resolver
	DataRoot string
}

// NewClient builds a Client rooted at dataRoot.
func NewClient(resolve identity.Resolver, dataRoot string) *Client {
	return &Client{Resolve: resolve, DataRoot: dataRoot}
}

func (c *Client) oauthConfig() (*oauth2.Config, error) {
	raw, err := os.ReadFile(filepath.Join(c.DataRoot, credentialsFileName))
	if err != nil {
		return nil, fmt.Errorf("read client credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(raw, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse client credentials: %w", err)
	}
	return cfg, nil
}

func (c *Client) tokenPath() (string, error) {
	key := identity.Key(c.Resolve())
	if key == domain.GuestUserID {
		return "", fmt.Errorf("calendar access requires a signed-in identity")
	}
	return filepath.Join(identity.UserDataDir(c.DataRoot, key), tokenFileName), nil
}

func (c *Client) loadToken() (*oauth2.Token, error) {
	path, err := c.tokenPath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calendar token: %w", err)
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(raw, tok); err != nil {
		return nil, fmt.Errorf("decode calendar token: %w", err)
	}
	return tok, nil
}

// SaveToken persists tok for the current identity, replacing any previous
// one.
func (c *Client) SaveToken(tok *oauth2.Token) error {
	path, err := c.tokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// AuthURL returns the consent URL for the authorization-code flow.
// AccessTypeOffline is required so a refresh token comes back.
func (c *Client) AuthURL(state string) (string, error) {
	cfg, err := c.oauthConfig()
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")), nil
}

// Exchange trades an authorization code for a token and stores it.
func (c *Client) Exchange(ctx context.Context, code string) error {
	cfg, err := c.oauthConfig()
	if err != nil {
		return err
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	return c.SaveToken(tok)
}

// FetchDay returns the identity's events for one yyyy-mm-dd date key,
// gathered across every calendar on the account and sorted by start time.
func (c *Client) FetchDay(ctx context.Context, dateKey string) ([]domain.CalendarRow, error) {
	cfg, err := c.oauthConfig()
	if err != nil {
		return nil, err
	}
	tok, err := c.loadToken()
	if err != nil {
		return nil, err
	}

	dayStart, err := time.ParseInLocation("2006-01-02", dateKey, time.Local)
	if err != nil {
		return nil, fmt.Errorf("bad date key %q: %w", dateKey, err)
	}
	dayEnd := dayStart.AddDate(0, 0, 1)

	source := cfg.TokenSource(ctx, tok)
	srv, err := calendar.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("build calendar service: %w", err)
	}

	list, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}

	type timedRow struct {
		at  string
		row domain.CalendarRow
	}
	var rows []timedRow
	for _, cal := range list.Items {
		events, err := srv.Events.List(cal.Id).
			TimeMin(dayStart.Format(time.RFC3339)).
			TimeMax(dayEnd.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("list events for %s: %w", calendarLabel(cal), err)
		}
		for _, evt := range events.Items {
			rows = append(rows, timedRow{
				at:  eventSortKey(evt),
				row: toRow(cal, evt),
			})
		}
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].at < rows[j].at })
	out := make([]domain.CalendarRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.row)
	}

	// Re-save in case the source refreshed the access token.
	if refreshed, err := source.Token(); err == nil && refreshed.AccessToken != tok.AccessToken {
		_ = c.SaveToken(refreshed)
	}
	return out, nil
}

// calendarLabel is the display name, with the domain suffix stripped when
// the calendar is only identified by an address.
func calendarLabel(cal *calendar.CalendarListEntry) string {
	name := cal.Summary
	if name == "" {
		name = cal.Id
	}
	if at := strings.IndexByte(name, '@'); at > 0 {
		name = name[:at]
	}
	return name
}

func toRow(cal *calendar.CalendarListEntry, evt *calendar.Event) domain.CalendarRow {
	subject := strings.TrimSpace(evt.Summary)
	if subject == "" {
		subject = untitledSubject
	}
	return domain.CalendarRow{
		CalendarName: calendarLabel(cal),
		Subject:      subject,
		DateTime:     eventTimeLabel(evt),
	}
}

// eventTimeLabel renders an all-day event as a fixed marker and a timed
// one as a local start-end range.
func eventTimeLabel(evt *calendar.Event) string {
	if evt.Start == nil || evt.Start.DateTime == "" {
		return allDayMarker
	}
	start, err := time.Parse(time.RFC3339, evt.Start.DateTime)
	if err != nil {
		return allDayMarker
	}
	label := start.Local().Format("15:04")
	if evt.End != nil && evt.End.DateTime != "" {
		if end, err := time.Parse(time.RFC3339, evt.End.DateTime); err == nil {
			label += "-" + end.Local().Format("15:04")
		}
	}
	return label
}

func eventSortKey(evt *calendar.Event) string {
	if evt.Start == nil {
		return ""
	}
	if evt.Start.DateTime != "" {
		return evt.Start.DateTime
	}
	// All-day events sort ahead of timed ones.
	return evt.Start.Date
}
