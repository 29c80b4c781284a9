package schedule

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/beekhof/exchange-sync/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLocal(t *testing.T) {
	tests := []struct {
		name     string
		dateTime string
		zone     string
		want     time.Time
	}{
		{
			name:     "summer time in Berlin",
			dateTime: "2024-06-15T10:00:00",
			zone:     "Europe/Berlin",
			want:     time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC),
		},
		{
			name:     "seven digit fraction",
			dateTime: "2024-06-15T10:00:00.0000000",
			zone:     "Europe/Moscow",
			want:     time.Date(2024, 6, 15, 7, 0, 0, 0, time.UTC),
		},
		{
			name:     "fraction is kept",
			dateTime: "2024-01-10T09:30:15.5",
			zone:     "UTC",
			want:     time.Date(2024, 1, 10, 9, 30, 15, 500_000_000, time.UTC),
		},
		{
			name:     "just before spring gap",
			dateTime: "2024-03-10T01:59:59",
			zone:     "America/New_York",
			want:     time.Date(2024, 3, 10, 6, 59, 59, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveLocal(tt.dateTime, tt.zone)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
		})
	}
}

func TestResolveLocal_Errors(t *testing.T) {
	tests := []struct {
		name     string
		dateTime string
		zone     string
		sentinel error
	}{
		{name: "unknown zone", dateTime: "2024-06-15T10:00:00", zone: "Mars/Olympus_Mons"},
		{name: "empty zone", dateTime: "2024-06-15T10:00:00", zone: ""},
		{name: "bad date", dateTime: "15/06/2024 10:00", zone: "UTC"},
		{name: "missing seconds", dateTime: "2024-06-15T10:00", zone: "UTC"},
		{name: "spring gap", dateTime: "2024-03-10T02:30:00", zone: "America/New_York", sentinel: domain.ErrNonexistentLocalTime},
		{name: "autumn fold", dateTime: "2024-11-03T01:30:00", zone: "America/New_York", sentinel: domain.ErrAmbiguousLocalTime},
		{name: "berlin fold", dateTime: "2024-10-27T02:15:00", zone: "Europe/Berlin", sentinel: domain.ErrAmbiguousLocalTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveLocal(tt.dateTime, tt.zone)
			var timeErr *domain.TimeError
			require.ErrorAs(t, err, &timeErr)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
		})
	}
}

func TestParseModified(t *testing.T) {
	got, err := ParseModified("2024-03-01T08:15:30.1234567+03:00")
	require.NoError(t, err)
	assert.Equal(t, int64(1709270130), got.Unix())

	got, err = ParseModified("2024-03-01T05:15:30Z")
	require.NoError(t, err)
	assert.Equal(t, int64(1709270130), got.Unix())

	for _, bad := range []string{"", "2024-03-01T05:15:30", "yesterday"} {
		_, err := ParseModified(bad)
		var timeErr *domain.TimeError
		assert.ErrorAs(t, err, &timeErr, bad)
	}
}

func TestDayWindow(t *testing.T) {
	moscow, err := LoadZone("Europe/Moscow")
	require.NoError(t, err)

	// 22:30 UTC is already the next day in Moscow.
	now := time.Date(2024, 5, 31, 22, 30, 0, 0, time.UTC)
	w := DayWindow(now, moscow)
	assert.Equal(t, "2024-06-01T00:00:00", w.Start)
	assert.Equal(t, "2024-06-01T23:59:59", w.End)

	w = DayWindow(now, time.UTC)
	assert.Equal(t, "2024-05-31T00:00:00", w.Start)
	assert.Equal(t, "2024-05-31T23:59:59", w.End)
}

func TestDayWindow_MidnightGap(t *testing.T) {
	// Santiago skips from 23:59:59 to 01:00 on its spring transition.
	santiago, err := LoadZone("America/Santiago")
	require.NoError(t, err)

	now := time.Date(2024, 9, 8, 15, 0, 0, 0, time.UTC)
	w := DayWindow(now, santiago)
	assert.Equal(t, "2024-09-08T00:00:00", w.Start)
	assert.Equal(t, "2024-09-08T23:59:59", w.End)
}

func TestResolver_TodayRecomputed(t *testing.T) {
	r, err := NewResolver("UTC")
	require.NoError(t, err)

	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r.Now = func() time.Time { return current }
	assert.Equal(t, "2024-01-01T00:00:00", r.Today().Start)

	current = current.Add(24 * time.Hour)
	assert.Equal(t, "2024-01-02T00:00:00", r.Today().Start)
}

func TestNewResolver_InvalidZone(t *testing.T) {
	_, err := NewResolver("Not/AZone")
	var timeErr *domain.TimeError
	assert.ErrorAs(t, err, &timeErr)
}
