// Package refclock supplies the reference instant every clock face is
// projected from: either the live wall clock or a pinned override.
package refclock

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/philtim/multiclock/apperror"
	"github.com/philtim/multiclock/catalog"
)

// Mode is the active reference source
type Mode int

const (
	Live Mode = iota
	Pinned
)

func (m Mode) String() string {
	if m == Pinned {
		return "pinned"
	}
	return "live"
}

// OverrideZone is the civil-time zone override input is read in: the SFMC
// system clock, UTC-6 all year.
var OverrideZone = time.FixedZone("SFMC", catalog.SystemOffsetMinutes*60)

var (
	meridiemRe     = regexp.MustCompile(`(\d)\s*([AaPp])\.?\s*([Mm])\.?(\s|$)`)
	monthDayYearRe = regexp.MustCompile(`^([A-Za-z]{3,9}\.?\s+\d{1,2})\s+(\d{4})\b`)
	spaceRe        = regexp.MustCompile(`\s+`)
)

// Clock is the reference clock. It is not safe for concurrent use; the
// widget touches it from a single event loop.
type Clock struct {
	now    func() time.Time
	mode   Mode
	pinned time.Time
}

// New creates a live Clock. A nil now uses time.Now.
func New(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Now returns the pinned instant, or the current instant when live
func (c *Clock) Now() time.Time {
	if c.mode == Pinned {
		return c.pinned
	}
	return c.now()
}

// Mode returns the active mode
func (c *Clock) Mode() Mode {
	return c.mode
}

// Pinned returns the override instant and whether one is active
func (c *Clock) Pinned() (time.Time, bool) {
	return c.pinned, c.mode == Pinned
}

// SetOverride parses input as SFMC civil time and pins the result. On
// failure the clock keeps its current mode and instant.
func (c *Clock) SetOverride(input string) error {
	t, err := ParseOverride(input)
	if err != nil {
		return err
	}
	c.Pin(t)
	return nil
}

// Pin fixes the reference instant at t
func (c *Clock) Pin(t time.Time) {
	c.mode = Pinned
	c.pinned = t.UTC()
}

// Clear returns to live time
func (c *Clock) Clear() {
	c.mode = Live
	c.pinned = time.Time{}
}

// ParseOverride reads a loosely formatted date/time as civil time in
// OverrideZone and returns the absolute instant.
func ParseOverride(input string) (time.Time, error) {
	normalized := Normalize(input)
	if normalized == "" {
		return time.Time{}, apperror.New(apperror.KindUnparseableInput, "enter a date and time")
	}

	t, err := dateparse.ParseIn(normalized, OverrideZone)
	if err != nil {
		return time.Time{}, apperror.Wrap(apperror.KindUnparseableInput, fmt.Sprintf("could not read '%s' as a date/time", strings.TrimSpace(input)), err)
	}
	return t.UTC(), nil
}

// Normalize rewrites common ambiguous forms before parsing:
// "2:00PM" → "2:00 PM", "Mar 15 2024" → "Mar 15, 2024".
func Normalize(input string) string {
	s := strings.TrimSpace(spaceRe.ReplaceAllString(input, " "))
	s = meridiemRe.ReplaceAllStringFunc(s, func(m string) string {
		parts := meridiemRe.FindStringSubmatch(m)
		return parts[1] + " " + strings.ToUpper(parts[2]+parts[3]) + parts[4]
	})
	s = monthDayYearRe.ReplaceAllString(s, "$1, $2")
	return s
}
