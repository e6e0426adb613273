package places

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeeklySchedule(t *testing.T) {
	t.Run("no hours means seven closed days", func(t *testing.T) {
		week := WeeklySchedule(nil)
		require.Len(t, week, 7)
		for i, d := range week {
			assert.Equal(t, i, d.Day)
			assert.True(t, d.IsClosed)
			assert.Nil(t, d.Open)
		}
	})

	t.Run("single open-ended period is always open", func(t *testing.T) {
		week := WeeklySchedule(&OpeningHours{Periods: []OpeningPeriod{{Open: TimePoint{Day: 0}}}})
		require.Len(t, week, 7)
		for _, d := range week {
			assert.False(t, d.IsClosed)
			assert.Equal(t, "00:00", *d.Open)
			assert.Equal(t, "23:59", *d.Close)
		}
	})

	t.Run("periods fill their days", func(t *testing.T) {
		week := WeeklySchedule(&OpeningHours{Periods: []OpeningPeriod{
			{Open: TimePoint{Day: 1, Hour: 9}, Close: &TimePoint{Day: 1, Hour: 17, Minute: 30}},
			{Open: TimePoint{Day: 2, Hour: 8, Minute: 5}},
			{Open: TimePoint{Day: 9, Hour: 8}},
		}})
		require.Len(t, week, 7)
		assert.True(t, week[0].IsClosed)
		assert.Equal(t, "09:00", *week[1].Open)
		assert.Equal(t, "17:30", *week[1].Close)
		assert.Equal(t, "08:05", *week[2].Open)
		assert.Equal(t, "23:59", *week[2].Close)
		assert.True(t, week[6].IsClosed)
	})
}

func TestDescription(t *testing.T) {
	long := strings.Repeat("a", 400)

	tests := []struct {
		name  string
		place Place
		want  string
	}{
		{name: "editorial summary wins", place: Place{EditorialSummary: "Family clinic", Reviews: []Review{{Rating: 5, Text: "x"}}}, want: "Family clinic"},
		{name: "first good review", place: Place{Reviews: []Review{{Rating: 2, Text: "bad"}, {Rating: 4, Text: "good"}, {Rating: 5, Text: "great"}}}, want: `"good"...`},
		{name: "truncated", place: Place{Reviews: []Review{{Rating: 5, Text: long}}}, want: `"` + long[:300] + `"...`},
		{name: "none", place: Place{Reviews: []Review{{Rating: 3, Text: "meh"}}}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Description(&tt.place))
		})
	}
}
