// Package clock projects a reference instant onto the wall clock of a
// timezone: the facts one clock face needs to be painted.
package clock

import (
	"fmt"
	"strings"
	"time"

	"github.com/philtim/multiclock/catalog"
	"github.com/philtim/multiclock/tzresolve"
)

// Season is the DST label shown next to a clock's offset
type Season string

const (
	Summer Season = "SUMMER"
	Winter Season = "WINTER"
	NoDST  Season = "NO DST"
)

// Daytime spans [DayStartHour, DayEndHour) local time
const (
	DayStartHour = 6
	DayEndHour   = 18
)

// Projection is a clock face for one timezone at one instant
type Projection struct {
	Timezone      string
	Hour          int
	Minute        int
	Second        int
	Millisecond   int
	Year          int
	Month         time.Month
	Day           int
	Weekday       time.Weekday
	OffsetMinutes int
	OffsetLabel   string
	Season        Season
	IsDaytime     bool
	// Resolved is false when the zone could not be loaded and the
	// projection fell back to UTC.
	Resolved bool
}

// Projector builds projections
type Projector struct {
	resolver *tzresolve.Resolver
	catalog  *catalog.Catalog
}

// NewProjector creates a Projector. A nil catalog means catalog.Default().
func NewProjector(resolver *tzresolve.Resolver, cat *catalog.Catalog) *Projector {
	if cat == nil {
		cat = catalog.Default()
	}
	return &Projector{resolver: resolver, catalog: cat}
}

// Project computes the clock face of tz at instant. It never fails: an
// unresolvable zone yields a UTC face with the fallback offset and NoDST.
func (p *Projector) Project(tz string, instant time.Time) Projection {
	loc, err := p.resolver.Location(tz)
	if err != nil {
		proj := civil(tz, instant.UTC())
		proj.OffsetMinutes = p.resolver.OffsetMinutes(tz, instant)
		proj.OffsetLabel = tzresolve.FallbackLabel
		proj.Season = NoDST
		return proj
	}

	proj := civil(tz, instant.In(loc))
	proj.Resolved = true
	proj.OffsetMinutes = p.resolver.OffsetMinutes(tz, instant)
	proj.OffsetLabel = tzresolve.FormatOffset(proj.OffsetMinutes)
	proj.Season = p.season(tz, proj.Year, proj.OffsetMinutes)
	return proj
}

func civil(tz string, t time.Time) Projection {
	return Projection{
		Timezone:    tz,
		Hour:        t.Hour(),
		Minute:      t.Minute(),
		Second:      t.Second(),
		Millisecond: t.Nanosecond() / int(time.Millisecond),
		Year:        t.Year(),
		Month:       t.Month(),
		Day:         t.Day(),
		Weekday:     t.Weekday(),
		IsDaytime:   IsDaytime(t.Hour()),
	}
}

// season compares the current offset with the January and July samples.
// The larger sample is daylight time in both hemispheres.
func (p *Projector) season(tz string, year, current int) Season {
	if d, ok := p.catalog.Lookup(tz); ok && d.NoDST {
		return NoDST
	}
	winter, summer := p.resolver.Samples(tz, year)
	if winter == summer {
		return NoDST
	}
	if current == max(winter, summer) {
		return Summer
	}
	return Winter
}

// IsDaytime reports whether hour falls in [DayStartHour, DayEndHour)
func IsDaytime(hour int) bool {
	return hour >= DayStartHour && hour < DayEndHour
}

// Angles are analog hand positions in degrees clockwise from 12
type Angles struct {
	Hour   float64
	Minute float64
	Second float64
}

// HandAngles returns the analog hand positions for the projection
func (p Projection) HandAngles() Angles {
	sec := float64(p.Second)
	ms := float64(p.Millisecond)
	minute := float64(p.Minute)
	hour := float64(p.Hour % 12)
	return Angles{
		Second: (sec + ms/1000) / 60 * 360,
		Minute: minute/60*360 + sec/60*6,
		Hour:   hour/12*360 + minute/60*30,
	}
}

// FormatTime returns the time in 24-hour format (HH:MM:SS)
func (p Projection) FormatTime() string {
	return fmt.Sprintf("%02d:%02d:%02d", p.Hour, p.Minute, p.Second)
}

// FormatDate returns the date in YYYY-MM-DD format
func (p Projection) FormatDate() string {
	return fmt.Sprintf("%04d-%02d-%02d", p.Year, int(p.Month), p.Day)
}

// FormatShortDate returns the date as "MAR 15"
func (p Projection) FormatShortDate() string {
	return fmt.Sprintf("%s %d", strings.ToUpper(p.Month.String()[:3]), p.Day)
}

// FormatDateWithOffset returns "YYYY-MM-DD - GMT±HH:MM"
func (p Projection) FormatDateWithOffset() string {
	return fmt.Sprintf("%s - %s", p.FormatDate(), p.OffsetLabel)
}

// FormatDetails returns "GMT±HH:MM • SEASON"
func (p Projection) FormatDetails() string {
	return fmt.Sprintf("%s • %s", p.OffsetLabel, p.Season)
}
