package generic_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/generic"
)

func TestParseYearMonth(t *testing.T) {
	ym, err := generic.ParseYearMonth("2024-02")
	require.NoError(t, err)
	assert.Equal(t, 2024, ym.Year)
	assert.Equal(t, time.February, ym.Month)
	assert.Equal(t, 29, ym.Days())
	assert.Equal(t, "2024-02-29", ym.LastDay().String())
	assert.Equal(t, "2024-02", ym.String())
	assert.Equal(t, "2024-01", ym.Previous().String())
	assert.Equal(t, "2023-12", generic.YearMonth{Year: 2024, Month: time.January}.Previous().String())
}

func TestParseYearMonth_Malformed(t *testing.T) {
	for _, in := range []string{"", "2024", "2024-13", "24-02", "2024/02", "March"} {
		_, err := generic.ParseYearMonth(in)
		assert.ErrorIs(t, err, generic.ErrInvalidMonth, in)
		assert.ErrorIs(t, err, generic.ErrInvalidInput, in)
	}
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 31, generic.DaysInMonth(2024, time.January))
	assert.Equal(t, 28, generic.DaysInMonth(2023, time.February))
	assert.Equal(t, 29, generic.DaysInMonth(2024, time.February))
	assert.Equal(t, 28, generic.DaysInMonth(1900, time.February))
	assert.Equal(t, 29, generic.DaysInMonth(2000, time.February))
	assert.Equal(t, 30, generic.DaysInMonth(2024, time.April))
}

func TestParseDate(t *testing.T) {
	tp, err := generic.ParseDate("2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, generic.NewTimePoint(2024, time.March, 15), tp)

	legacy, err := generic.ParseDate("2024-03-15T00:00:00Z")
	require.NoError(t, err)
	assert.True(t, legacy.Equal(tp))

	_, err = generic.ParseDate("15/03/2024")
	var inputErr *generic.InputError
	assert.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "date", inputErr.Field)
}

func TestTimePoint_JSON(t *testing.T) {
	type wrapper struct {
		Date generic.TimePoint `json:"date"`
	}
	out, err := json.Marshal(wrapper{Date: generic.NewTimePoint(2024, time.May, 2)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-05-02"}`, string(out))

	var back wrapper
	require.NoError(t, json.Unmarshal(out, &back))
	assert.True(t, back.Date.Equal(generic.NewTimePoint(2024, time.May, 2)))
}

func TestTimePoint_ComparesByDay(t *testing.T) {
	morning := generic.TimePoint{Time: time.Date(2024, time.May, 2, 8, 0, 0, 0, time.UTC)}
	evening := generic.TimePoint{Time: time.Date(2024, time.May, 2, 20, 0, 0, 0, time.UTC)}

	assert.True(t, morning.Equal(evening))
	assert.True(t, morning.BeforeOrEqual(evening))
	assert.False(t, morning.Before(evening))
}
