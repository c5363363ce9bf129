// Package publisher fetches calendar rows for a date and hands the result
// to the UI notifier. Provider failures stop at this boundary: they are
// logged and published as "no events", never returned to the caller.
package publisher

import (
	"context"
	"log"
	"time"

	"daydash/internal/domain"
	"daydash/internal/identity"
)

// Fetch sources.
const (
	SourceManual = "manual"
	SourceAuto   = "auto"
)

// Fetcher returns provider events for one yyyy-mm-dd date key.
type Fetcher func(ctx context.Context, dateKey string) ([]domain.CalendarRow, error)

// Notifier delivers an update to the UI layer. It must not block for long
// and has no way to report failure.
type Notifier func(update domain.CalendarUpdate)

// Publisher wires a Fetcher to a Notifier for the resolved identity.
type Publisher struct {
	Resolve identity.Resolver
	Fetch   Fetcher
	Notify  Notifier
	Now     func() time.Time
	Logger  *log.Logger
}

func (p *Publisher) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Publisher) logger() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.Default()
}

// FetchAndPublish fetches one date's rows and notifies subscribers. Without
// a signed-in identity it returns nothing and stays silent. A fetch error
// is logged and reported as an empty result.
func (p *Publisher) FetchAndPublish(ctx context.Context, dateKey, source string) []domain.CalendarRow {
	if p.Resolve == nil || p.Resolve() == nil {
		return []domain.CalendarRow{}
	}

	rows, err := p.Fetch(ctx, dateKey)
	if err != nil {
		p.logger().Printf("calendar fetch failed for %s: %v", dateKey, err)
		return []domain.CalendarRow{}
	}
	if rows == nil {
		rows = []domain.CalendarRow{}
	}

	if p.Notify != nil {
		p.Notify(domain.CalendarUpdate{
			Events:    rows,
			UpdatedAt: p.now().UTC().Format(time.RFC3339),
			Source:    source,
		})
	}
	return rows
}

// PublishEmptyManualUpdate clears the UI table, used after sign-out.
func (p *Publisher) PublishEmptyManualUpdate() {
	if p.Notify == nil {
		return
	}
	p.Notify(domain.CalendarUpdate{
		Events:    []domain.CalendarRow{},
		UpdatedAt: p.now().UTC().Format(time.RFC3339),
		Source:    SourceManual,
	})
}
