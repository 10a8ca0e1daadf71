package engine

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-ical"
	"github.com/tartampluch/life-progress/internal/config"
)

// Boundary is the start instant of the next calendar period of a given kind.
type Boundary struct {
	Kind  string // config.BoundaryDay, config.BoundaryMonth or config.BoundaryYear
	Start time.Time
}

// NextBoundaries returns the next day, month and year boundaries after now,
// each being the first instant of its date in now's location.
func NextBoundaries(now time.Time) []Boundary {
	loc := now.Location()
	y, m, d := now.Date()
	return []Boundary{
		{Kind: config.BoundaryDay, Start: startOfDay(y, m, d+1, loc)},
		{Kind: config.BoundaryMonth, Start: startOfDay(y, m+1, 1, loc)},
		{Kind: config.BoundaryYear, Start: startOfDay(y+1, time.January, 1, loc)},
	}
}

// BoundaryCalendar renders the upcoming period boundaries as an iCalendar feed.
type BoundaryCalendar struct {
	// FormatSummary allows the UI to inject localized event titles.
	FormatSummary func(kind string) string
}

// Build encodes the boundaries following now as a VCALENDAR with one
// all-day VEVENT per boundary.
func (b *BoundaryCalendar) Build(now time.Time) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(config.PropVersion, config.ICalVersion)
	cal.Props.SetText(config.PropProdid, config.ICalProdid)
	cal.Props.SetText(config.PropXWRCalName, config.ICalCalName)
	cal.Props.SetText(config.PropCalScale, config.ICalScale)
	cal.Props.SetText(config.PropMethod, config.ICalMethod)

	refreshProp := ical.NewProp(config.PropRefresh)
	refreshProp.SetDuration(config.DefaultICalRefresh)
	cal.Props.Set(refreshProp)

	dtStampProp := ical.NewProp(config.PropDTStamp)
	dtStampProp.SetDateTime(now.UTC())

	for _, bd := range NextBoundaries(now) {
		event := ical.NewEvent()
		event.Props.SetText(config.PropUID,
			fmt.Sprintf(config.FormatUID, bd.Kind, bd.Start.Format(config.DateFormatUID), config.ICalDomain))
		event.Props.SetText(config.PropSummary, b.summary(bd.Kind))
		event.Props.Set(dtStampProp)

		dtStartProp := ical.NewProp(config.PropDTStart)
		dtStartProp.SetDate(bd.Start)
		event.Props.Set(dtStartProp)

		cal.Children = append(cal.Children, event.Component)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		slog.Error(config.ErrICalEncode,
			config.LogKeyComponent, config.CompEngine,
			config.LogKeyAt, now.Format(time.RFC3339),
			config.LogKeyError, err,
		)
		return nil, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}

	slog.Debug(config.MsgCalendarBuilt,
		config.LogKeyComponent, config.CompEngine,
		config.LogKeyLocation, now.Location().String(),
		config.LogKeySizeBytes, buf.Len(),
	)
	return buf.Bytes(), nil
}

func (b *BoundaryCalendar) summary(kind string) string {
	if b.FormatSummary != nil {
		if s := b.FormatSummary(kind); s != "" {
			return s
		}
	}
	switch kind {
	case config.BoundaryYear:
		return config.FallbackEvtYear
	case config.BoundaryMonth:
		return config.FallbackEvtMonth
	default:
		return config.FallbackEvtDay
	}
}
