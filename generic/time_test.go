package generic_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/kimmokhwa/meals-management-app/generic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := generic.ParseDate(" 2024-02-29 ")
	require.NoError(t, err)
	assert.Equal(t, 2024, d.Year())
	assert.Equal(t, time.February, d.Month())
	assert.Equal(t, 29, d.Day())
	assert.Equal(t, "2024-02-29", d.String())

	// Stores that return timestamps keep their calendar day.
	d, err = generic.ParseDate("2024-01-15T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", d.String())

	for _, bad := range []string{"", "2023-02-29", "2024/01/15", "15-01-2024"} {
		_, err := generic.ParseDate(bad)
		assert.ErrorIs(t, err, generic.ErrInvalidDate, bad)
	}
}

func TestDate_ZeroValue(t *testing.T) {
	var d generic.Date
	assert.True(t, d.IsZero())
	assert.Equal(t, "", d.String())

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))

	var back generic.Date
	require.NoError(t, json.Unmarshal([]byte(`""`), &back))
	assert.True(t, back.IsZero())
	require.NoError(t, json.Unmarshal([]byte(`"2024-01-15"`), &back))
	assert.Equal(t, generic.NewDate(2024, time.January, 15), back)
}

func TestDate_Weekdays(t *testing.T) {
	assert.True(t, generic.MustParseDate("2024-01-07").IsSunday())
	assert.True(t, generic.MustParseDate("2024-01-06").IsSaturday())
	assert.Equal(t, time.Monday, generic.MustParseDate("2024-01-01").Weekday())
}

func TestMonth_Days(t *testing.T) {
	cases := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2024, time.January, 31},
		{2024, time.February, 29},
		{2023, time.February, 28},
		{1900, time.February, 28},
		{2000, time.February, 29},
		{2024, time.April, 30},
		{2024, time.December, 31},
	}
	for _, tc := range cases {
		m, err := generic.NewMonth(tc.year, tc.month)
		require.NoError(t, err)
		assert.Equal(t, tc.want, m.Days(), m.String())
		assert.Equal(t, tc.want, m.Period().Len(), m.String())
		assert.Equal(t, tc.want, generic.DaysInMonth(tc.year, tc.month))
	}
}

func TestMonth_Validate(t *testing.T) {
	_, err := generic.NewMonth(2024, 13)
	assert.ErrorIs(t, err, generic.ErrInvalidMonth)
	_, err = generic.NewMonth(2024, 0)
	assert.ErrorIs(t, err, generic.ErrInvalidMonth)
	_, err = generic.NewMonth(0, time.January)
	assert.ErrorIs(t, err, generic.ErrInvalidMonth)
}

func TestParseMonth(t *testing.T) {
	m, err := generic.ParseMonth("2024-01")
	require.NoError(t, err)
	assert.Equal(t, generic.Month{Year: 2024, Month: time.January}, m)
	assert.Equal(t, "2024-01", m.String())

	_, err = generic.ParseMonth("2024-13")
	assert.ErrorIs(t, err, generic.ErrInvalidMonth)
	_, err = generic.ParseMonth("January")
	assert.ErrorIs(t, err, generic.ErrInvalidMonth)
}

func TestMonth_NavigationAndBounds(t *testing.T) {
	dec := generic.Month{Year: 2023, Month: time.December}
	assert.Equal(t, generic.Month{Year: 2024, Month: time.January}, dec.Next())
	assert.Equal(t, dec, dec.Next().Prev())

	feb := generic.Month{Year: 2024, Month: time.February}
	assert.Equal(t, "2024-02-01", feb.FirstDay().String())
	assert.Equal(t, "2024-02-29", feb.LastDay().String())
	assert.True(t, feb.Contains(generic.MustParseDate("2024-02-29")))
	assert.False(t, feb.Contains(generic.MustParseDate("2024-03-01")))
	assert.Equal(t, feb, generic.MustParseDate("2024-02-10").MonthOf())
}

func TestMonth_JSON(t *testing.T) {
	b, err := json.Marshal(generic.Month{Year: 2024, Month: time.March})
	require.NoError(t, err)
	assert.Equal(t, `"2024-03"`, string(b))

	var m generic.Month
	assert.Error(t, json.Unmarshal([]byte(`"2024-3-1"`), &m))
}

func TestCountWeekday(t *testing.T) {
	jan := generic.Month{Year: 2024, Month: time.January}.Period()
	assert.Equal(t, 4, generic.CountWeekday(jan.Start, jan.End, time.Sunday))
	assert.Equal(t, 5, generic.CountWeekday(jan.Start, jan.End, time.Monday))
}

func TestPeriod(t *testing.T) {
	start := generic.MustParseDate("2024-01-15")
	end := generic.MustParseDate("2024-01-31")

	p, err := generic.NewPeriod(start, end)
	require.NoError(t, err)
	assert.Equal(t, 17, p.Len())
	assert.Len(t, p.Days(), 17)
	assert.True(t, p.Contains(start))
	assert.True(t, p.Contains(end))
	assert.False(t, p.Contains(end.AddDays(1)))

	_, err = generic.NewPeriod(end, start)
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)

	other := generic.Period{Start: end, End: end.AddDays(10)}
	assert.True(t, p.Overlaps(other), "sharing the last day is an overlap")
	assert.False(t, p.Overlaps(generic.Period{Start: end.AddDays(1), End: end.AddDays(2)}))
}
