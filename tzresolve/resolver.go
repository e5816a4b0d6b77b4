// Package tzresolve turns a timezone identifier and an instant into a UTC
// offset. Zone rules come from the IANA database embedded via time/tzdata.
package tzresolve

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/maypok86/otter/v2"

	"github.com/philtim/multiclock/apperror"
)

const (
	// MinOffsetMinutes is the most westerly offset in use (UTC-12:00)
	MinOffsetMinutes = -720
	// MaxOffsetMinutes is the most easterly offset in use (UTC+14:00)
	MaxOffsetMinutes = 840

	// FallbackLabel is returned when a zone cannot be resolved
	FallbackLabel = "GMT+00:00"

	offsetLayout = "-07:00"
)

// Resolver resolves offsets for timezone identifiers. Loaded locations are
// cached; offsets are computed fresh on every call.
type Resolver struct {
	locations *otter.Cache[string, *time.Location]
	logger    *slog.Logger
	warned    sync.Map
}

// New creates a Resolver. A nil logger discards log output.
func New(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		locations: otter.Must(&otter.Options[string, *time.Location]{
			MaximumSize:     512,
			InitialCapacity: 32,
		}),
		logger: logger,
	}
}

// Location loads the zone for tz
func (r *Resolver) Location(tz string) (*time.Location, error) {
	if loc, ok := r.locations.GetIfPresent(tz); ok {
		return loc, nil
	}

	// LoadLocation maps "" to UTC and "Local" to the host zone; neither is a
	// stable identifier.
	if tz == "" || tz == "Local" {
		return nil, apperror.New(apperror.KindResolutionFailure, fmt.Sprintf("invalid timezone '%s'", tz))
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindResolutionFailure, fmt.Sprintf("failed to load timezone '%s'", tz), err)
	}
	r.locations.Set(tz, loc)
	return loc, nil
}

// Resolve returns the offset of tz at t in minutes east of UTC.
// The instant is formatted in the zone with a numeric offset and the
// sign, hour and minute fields are read back from that text.
func (r *Resolver) Resolve(tz string, t time.Time) (int, error) {
	loc, err := r.Location(tz)
	if err != nil {
		return 0, err
	}

	label := "GMT" + t.In(loc).Format(offsetLayout)
	minutes, err := ParseOffsetLabel(label)
	if err != nil {
		return 0, apperror.Wrap(apperror.KindResolutionFailure, fmt.Sprintf("unexpected offset for '%s'", tz), err)
	}
	if minutes < MinOffsetMinutes || minutes > MaxOffsetMinutes {
		return 0, apperror.New(apperror.KindResolutionFailure, fmt.Sprintf("offset %s out of range for '%s'", label, tz))
	}
	return minutes, nil
}

// OffsetMinutes is Resolve with failures mapped to 0
func (r *Resolver) OffsetMinutes(tz string, t time.Time) int {
	minutes, err := r.Resolve(tz, t)
	if err != nil {
		r.warnOnce(tz, err)
		return 0
	}
	return minutes
}

// OffsetLabel returns the offset of tz at t as "GMT±HH:MM", or
// FallbackLabel when the zone cannot be resolved.
func (r *Resolver) OffsetLabel(tz string, t time.Time) string {
	minutes, err := r.Resolve(tz, t)
	if err != nil {
		r.warnOnce(tz, err)
		return FallbackLabel
	}
	return FormatOffset(minutes)
}

// Samples returns the offsets of tz in mid-January and mid-July of year.
// Unresolvable zones report 0 for both.
func (r *Resolver) Samples(tz string, year int) (winter, summer int) {
	winter = r.OffsetMinutes(tz, time.Date(year, time.January, 15, 12, 0, 0, 0, time.UTC))
	summer = r.OffsetMinutes(tz, time.Date(year, time.July, 15, 12, 0, 0, 0, time.UTC))
	return winter, summer
}

// ObservesDST reports whether tz has different offsets in January and July
func (r *Resolver) ObservesDST(tz string, year int) bool {
	winter, summer := r.Samples(tz, year)
	return winter != summer
}

func (r *Resolver) warnOnce(tz string, err error) {
	if _, seen := r.warned.LoadOrStore(tz, struct{}{}); seen {
		return
	}
	r.logger.Warn("timezone resolution failed, using fallback offset", "timezone", tz, "error", err)
}

// FormatOffset renders minutes east of UTC as "GMT±HH:MM"
func FormatOffset(minutes int) string {
	sign := "+"
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	return fmt.Sprintf("GMT%s%02d:%02d", sign, minutes/60, minutes%60)
}

// ParseOffsetLabel parses "GMT±HH:MM" (or "UTC±HH:MM") into minutes.
// A bare "GMT" is zero.
func ParseOffsetLabel(label string) (int, error) {
	s := strings.TrimSpace(label)
	switch {
	case strings.HasPrefix(s, "GMT"), strings.HasPrefix(s, "UTC"):
		s = s[3:]
	default:
		return 0, fmt.Errorf("offset label %q has no GMT prefix", label)
	}
	if s == "" {
		return 0, nil
	}

	if len(s) != 6 || s[3] != ':' {
		return 0, fmt.Errorf("offset label %q is not ±HH:MM", label)
	}

	sign := 1
	switch s[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return 0, fmt.Errorf("offset label %q has no sign", label)
	}

	hours, err := strconv.Atoi(s[1:3])
	if err != nil {
		return 0, fmt.Errorf("offset label %q: bad hours: %w", label, err)
	}
	mins, err := strconv.Atoi(s[4:6])
	if err != nil {
		return 0, fmt.Errorf("offset label %q: bad minutes: %w", label, err)
	}
	if mins >= 60 {
		return 0, fmt.Errorf("offset label %q: minutes out of range", label)
	}
	return sign * (hours*60 + mins), nil
}
