package compensation_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/compensation"
	"github.com/warp/payroll-engine/generic"
)

func base(amount int64) compensation.Components {
	return compensation.Components{Base: decimal.NewFromInt(amount)}
}

func datePtr(y int, m time.Month, d int) *generic.TimePoint {
	tp := generic.NewTimePoint(y, m, d)
	return &tp
}

func ym(t *testing.T, s string) generic.YearMonth {
	month, err := generic.ParseYearMonth(s)
	require.NoError(t, err)
	return month
}

// =============================================================================
// RESOLUTION TESTS
// =============================================================================

func TestResolve_NoRecordsIsUnconfigured(t *testing.T) {
	res := compensation.BuildTimeline(nil, nil).Resolve(ym(t, "2024-03"))

	assert.Equal(t, compensation.StatusUnconfigured, res.Status)
	assert.False(t, res.Configured())
	assert.True(t, res.TotalSalary().IsZero())
	assert.True(t, res.BaseSalary().IsZero())
	assert.True(t, res.IncrementAmount.IsZero())
	assert.Nil(t, res.EffectiveFrom)
}

func TestResolve_UndatedRecordAppliesToEveryMonth(t *testing.T) {
	current := &compensation.Record{EmployeeID: "emp-1", Components: base(30000)}
	timeline := compensation.BuildTimeline(current, nil)

	for _, month := range []string{"1999-01", "2024-03", "2099-12"} {
		res := timeline.Resolve(ym(t, month))
		assert.Equal(t, compensation.StatusConfigured, res.Status, month)
		assert.True(t, res.TotalSalary().Equal(decimal.NewFromInt(30000)), month)
	}
}

func TestResolve_MonthBeforeFirstStructureIsNotYetEffective(t *testing.T) {
	current := &compensation.Record{
		EmployeeID:    "emp-1",
		Components:    base(30000),
		EffectiveFrom: datePtr(2024, time.June, 1),
	}
	res := compensation.BuildTimeline(current, nil).Resolve(ym(t, "2024-05"))

	assert.Equal(t, compensation.StatusNotYetEffective, res.Status)
	assert.True(t, res.TotalSalary().IsZero())
}

func TestResolve_UsesStructureInForceOnFirstOfMonth(t *testing.T) {
	// GIVEN: 30000 until an increment to 35000 effective 2024-04-10
	// WHEN: Resolving March, April and May
	// THEN: The increment first applies in May (mid-month changes wait a month)

	history := []compensation.HistoryEntry{{
		ID:              "h-1",
		EmployeeID:      "emp-1",
		Components:      base(30000),
		IncrementAmount: decimal.NewFromInt(5000),
		SupersededOn:    generic.NewTimePoint(2024, time.April, 10),
	}}
	current := &compensation.Record{
		EmployeeID:      "emp-1",
		Components:      base(35000),
		IncrementAmount: decimal.NewFromInt(5000),
		EffectiveFrom:   datePtr(2024, time.April, 10),
	}
	timeline := compensation.BuildTimeline(current, history)

	assert.True(t, timeline.Resolve(ym(t, "2024-03")).TotalSalary().Equal(decimal.NewFromInt(30000)))
	assert.True(t, timeline.Resolve(ym(t, "2024-04")).TotalSalary().Equal(decimal.NewFromInt(30000)))

	may := timeline.Resolve(ym(t, "2024-05"))
	assert.True(t, may.TotalSalary().Equal(decimal.NewFromInt(35000)))
	assert.True(t, may.IncrementAmount.Equal(decimal.NewFromInt(5000)))
	require.NotNil(t, may.EffectiveFrom)
	assert.Equal(t, "2024-04-10", may.EffectiveFrom.String())
}

func TestResolve_IncrementOnFirstOfMonthAppliesThatMonth(t *testing.T) {
	history := []compensation.HistoryEntry{{ID: "h-1", Components: base(30000)}}
	current := &compensation.Record{Components: base(40000), EffectiveFrom: datePtr(2024, time.July, 1)}

	res := compensation.BuildTimeline(current, history).Resolve(ym(t, "2024-07"))
	assert.True(t, res.TotalSalary().Equal(decimal.NewFromInt(40000)))
}

func TestBuildTimeline_OrdersByEffectiveDateWithUndatedFirst(t *testing.T) {
	history := []compensation.HistoryEntry{
		{ID: "h-2", Components: base(32000), EffectiveFrom: datePtr(2023, time.January, 1), AppliedIncrement: decimal.NewFromInt(2000)},
		{ID: "h-1", Components: base(30000), IncrementAmount: decimal.NewFromInt(2000)},
	}
	current := &compensation.Record{Components: base(36000), EffectiveFrom: datePtr(2024, time.January, 1)}

	timeline := compensation.BuildTimeline(current, history)
	require.Len(t, timeline.Entries, 3)

	assert.Equal(t, "h-1", timeline.Entries[0].HistoryID)
	assert.Equal(t, "h-2", timeline.Entries[1].HistoryID)
	assert.True(t, timeline.Entries[2].Current)

	assert.Equal(t, "2023-01-01", timeline.Entries[0].EffectiveTo.String())
	assert.Equal(t, "2024-01-01", timeline.Entries[1].EffectiveTo.String())
	assert.Nil(t, timeline.Entries[2].EffectiveTo)

	assert.True(t, timeline.Entries[1].IncrementAmount.Equal(decimal.NewFromInt(2000)))
	assert.True(t, timeline.Entries[0].SupersededBy.Equal(decimal.NewFromInt(2000)))

	res := timeline.Resolve(ym(t, "2023-06"))
	assert.True(t, res.TotalSalary().Equal(decimal.NewFromInt(32000)))
	require.NotNil(t, res.Entry)
	assert.Equal(t, "h-2", res.Entry.HistoryID)
}

func TestResolve_IsIdempotent(t *testing.T) {
	current := &compensation.Record{Components: base(50000), EffectiveFrom: datePtr(2024, time.February, 1)}
	timeline := compensation.BuildTimeline(current, []compensation.HistoryEntry{{ID: "h-1", Components: base(45000)}})

	first := timeline.Resolve(ym(t, "2024-02"))
	second := timeline.Resolve(ym(t, "2024-02"))
	assert.Equal(t, first, second)
}

// =============================================================================
// COMPONENT TESTS
// =============================================================================

func TestComponents_Total(t *testing.T) {
	c := compensation.Components{
		Base: decimal.NewFromInt(20000),
		DA:   decimal.NewFromInt(2000),
		HRA:  decimal.NewFromInt(5000),
		TA:   decimal.NewFromInt(1000),
		MA:   decimal.NewFromInt(500),
		PA:   decimal.NewFromInt(1500),
		OtherAllowances: []compensation.NamedAmount{
			{Name: "Shift", Amount: decimal.NewFromInt(1000)},
		},
		PF: decimal.NewFromInt(1800),
		PT: decimal.NewFromInt(200),
		OtherDeductions: []compensation.NamedAmount{
			{Name: "Loan", Amount: decimal.NewFromInt(1000)},
		},
	}

	assert.True(t, c.Allowances().Equal(decimal.NewFromInt(31000)))
	assert.True(t, c.Deductions().Equal(decimal.NewFromInt(3000)))
	assert.True(t, c.Total().Equal(decimal.NewFromInt(28000)))
	assert.NoError(t, c.Validate())
}

func TestComponents_Validate(t *testing.T) {
	negative := base(1000)
	negative.HRA = decimal.NewFromInt(-1)
	assert.ErrorIs(t, negative.Validate(), generic.ErrInvalidInput)

	unnamed := base(1000)
	unnamed.OtherAllowances = []compensation.NamedAmount{{Amount: decimal.NewFromInt(10)}}
	assert.ErrorIs(t, unnamed.Validate(), generic.ErrInvalidInput)

	overdrawn := base(1000)
	overdrawn.PF = decimal.NewFromInt(1500)
	err := overdrawn.Validate()
	var inputErr *generic.InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "components", inputErr.Field)

	assert.NoError(t, compensation.Components{}.Validate())
	assert.True(t, compensation.Components{}.IsZero())
}
