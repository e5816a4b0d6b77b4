package tzresolve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philtim/multiclock/apperror"
	"github.com/philtim/multiclock/catalog"
)

func TestResolve(t *testing.T) {
	r := New(nil)
	jan := time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC)
	jul := time.Date(2024, time.July, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		tz   string
		at   time.Time
		want int
	}{
		{"UTC", jan, 0},
		{"Etc/GMT+6", jan, -360},
		{"Etc/GMT+6", jul, -360},
		{"America/New_York", jan, -300},
		{"America/New_York", jul, -240},
		{"Asia/Kolkata", jul, 330},
		{"Australia/Sydney", jan, 660},
		{"Australia/Sydney", jul, 600},
		{"Pacific/Midway", jan, -660},
		{"Asia/Kathmandu", jan, 345},
	}
	for _, tt := range tests {
		t.Run(tt.tz+"@"+tt.at.Format("Jan"), func(t *testing.T) {
			got, err := r.Resolve(tt.tz, tt.at)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, r.OffsetMinutes(tt.tz, tt.at))
		})
	}
}

func TestResolveFailureFallsBack(t *testing.T) {
	r := New(nil)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, tz := range []string{"Mars/Olympus_Mons", "", "Local"} {
		_, err := r.Resolve(tz, now)
		assert.ErrorIs(t, err, apperror.ErrResolutionFailure, "tz %q", tz)
		assert.Equal(t, 0, r.OffsetMinutes(tz, now))
		assert.Equal(t, FallbackLabel, r.OffsetLabel(tz, now))
	}
}

func TestCatalogOffsetsAreQuarterHours(t *testing.T) {
	r := New(nil)
	instants := []time.Time{
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.March, 31, 1, 30, 0, 0, time.UTC),
		time.Date(2024, time.July, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2025, time.November, 2, 6, 0, 0, 0, time.UTC),
	}

	for _, z := range catalog.Default().All() {
		for _, at := range instants {
			minutes, err := r.Resolve(z.ID, at)
			require.NoError(t, err, z.ID)
			assert.Zero(t, minutes%15, "%s at %s", z.ID, at)
			assert.GreaterOrEqual(t, minutes, MinOffsetMinutes)
			assert.LessOrEqual(t, minutes, MaxOffsetMinutes)

			label := r.OffsetLabel(z.ID, at)
			parsed, err := ParseOffsetLabel(label)
			require.NoError(t, err, label)
			assert.Equal(t, minutes, parsed, label)
		}
	}
}

func TestFormatOffset(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{0, "GMT+00:00"},
		{330, "GMT+05:30"},
		{-360, "GMT-06:00"},
		{-570, "GMT-09:30"},
		{840, "GMT+14:00"},
		{-720, "GMT-12:00"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatOffset(tt.minutes))
		})
	}
}

func TestParseOffsetLabel(t *testing.T) {
	tests := []struct {
		label   string
		want    int
		wantErr bool
	}{
		{"GMT+05:45", 345, false},
		{"UTC-03:30", -210, false},
		{"GMT", 0, false},
		{"GMT+5:30", 0, true},
		{"GMT*05:30", 0, true},
		{"GMT+05:75", 0, true},
		{"CET+01:00", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := ParseOffsetLabel(tt.label)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSamples(t *testing.T) {
	r := New(nil)

	winter, summer := r.Samples("Europe/Berlin", 2024)
	assert.Equal(t, 60, winter)
	assert.Equal(t, 120, summer)
	assert.True(t, r.ObservesDST("Europe/Berlin", 2024))

	winter, summer = r.Samples("Pacific/Auckland", 2024)
	assert.Equal(t, 780, winter)
	assert.Equal(t, 720, summer)

	assert.False(t, r.ObservesDST("Asia/Tokyo", 2024))
	assert.False(t, r.ObservesDST(catalog.SystemZone, 2024))
}
