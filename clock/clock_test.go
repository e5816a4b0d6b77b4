package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philtim/multiclock/catalog"
	"github.com/philtim/multiclock/tzresolve"
)

func newTestProjector() *Projector {
	return NewProjector(tzresolve.New(nil), nil)
}

func TestProjectUTC(t *testing.T) {
	p := newTestProjector().Project(catalog.UTCZone, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.True(t, p.Resolved)
	assert.Equal(t, 0, p.Hour)
	assert.Equal(t, 0, p.Minute)
	assert.Equal(t, 0, p.Second)
	assert.Equal(t, 0, p.OffsetMinutes)
	assert.Equal(t, "GMT+00:00", p.OffsetLabel)
	assert.Equal(t, NoDST, p.Season)
	assert.False(t, p.IsDaytime)
	assert.Equal(t, "2024-01-01", p.FormatDate())
}

func TestProjectKolkata(t *testing.T) {
	p := newTestProjector().Project("Asia/Kolkata", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, 330, p.OffsetMinutes)
	assert.Equal(t, 5, p.Hour)
	assert.Equal(t, 30, p.Minute)
	assert.Equal(t, "GMT+05:30", p.OffsetLabel)
	assert.Equal(t, NoDST, p.Season)
	assert.Equal(t, "05:30:00", p.FormatTime())
}

func TestProjectCrossesDateLine(t *testing.T) {
	at := time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC)
	p := newTestProjector().Project("Pacific/Auckland", at)

	assert.Equal(t, 16, p.Day)
	assert.Equal(t, 9, p.Hour)
	assert.Equal(t, 780, p.OffsetMinutes)
	assert.Equal(t, "MAR 16", p.FormatShortDate())
	assert.Equal(t, "2024-03-16 - GMT+13:00", p.FormatDateWithOffset())
}

func TestSeason(t *testing.T) {
	jan := time.Date(2024, time.January, 20, 12, 0, 0, 0, time.UTC)
	jul := time.Date(2024, time.July, 20, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		tz   string
		at   time.Time
		want Season
	}{
		{"new york winter", "America/New_York", jan, Winter},
		{"new york summer", "America/New_York", jul, Summer},
		{"sydney january is summer", "Australia/Sydney", jan, Summer},
		{"sydney july is winter", "Australia/Sydney", jul, Winter},
		{"tokyo has no dst", "Asia/Tokyo", jul, NoDST},
		{"sfmc system zone", catalog.SystemZone, jul, NoDST},
		{"utc", catalog.UTCZone, jan, NoDST},
		{"off-catalog zone", "Europe/Amsterdam", jul, Summer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newTestProjector().Project(tt.tz, tt.at).Season)
		})
	}
}

func TestProjectUnknownZoneDegrades(t *testing.T) {
	at := time.Date(2024, 5, 5, 13, 14, 15, 0, time.UTC)
	p := newTestProjector().Project("Nowhere/Invalid", at)

	assert.False(t, p.Resolved)
	assert.Equal(t, 13, p.Hour)
	assert.Equal(t, 0, p.OffsetMinutes)
	assert.Equal(t, tzresolve.FallbackLabel, p.OffsetLabel)
	assert.Equal(t, NoDST, p.Season)
}

func TestIsDaytime(t *testing.T) {
	for hour := 0; hour < 24; hour++ {
		want := hour >= 6 && hour <= 17
		assert.Equal(t, want, IsDaytime(hour), "hour %d", hour)
	}
}

func TestProjectDaytimeFollowsZone(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	pr := newTestProjector()

	assert.True(t, pr.Project("Europe/London", at).IsDaytime)
	assert.False(t, pr.Project("Asia/Tokyo", at).IsDaytime)
}

func TestHandAngles(t *testing.T) {
	tests := []struct {
		name string
		p    Projection
		want Angles
	}{
		{"midnight", Projection{}, Angles{}},
		{"three o'clock", Projection{Hour: 3}, Angles{Hour: 90}},
		{"fifteen hundred", Projection{Hour: 15}, Angles{Hour: 90}},
		{"half past", Projection{Hour: 6, Minute: 30}, Angles{Hour: 195, Minute: 180}},
		{"seconds with millis", Projection{Second: 15, Millisecond: 500}, Angles{Minute: 1.5, Second: 93}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.p.HandAngles()
			assert.InDelta(t, tt.want.Hour, got.Hour, 1e-9)
			assert.InDelta(t, tt.want.Minute, got.Minute, 1e-9)
			assert.InDelta(t, tt.want.Second, got.Second, 1e-9)
		})
	}
}

func TestProjectMilliseconds(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 7, 250*int(time.Millisecond), time.UTC)
	p := newTestProjector().Project(catalog.UTCZone, at)
	require.Equal(t, 7, p.Second)
	assert.Equal(t, 250, p.Millisecond)
}
