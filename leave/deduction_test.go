package leave_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-ledger/leave"
)

func TestComputeDeductions(t *testing.T) {
	// GIVEN one LOP day in January and one in February of a leap year
	summary := classify(leave.DefaultPolicy(), 2024, leavesOf("x",
		"2024-01-02", "2024-01-03",
		"2024-02-05", "2024-02-06",
	))
	require.Equal(t, 2, summary.Summary.LOPDays)

	// WHEN pricing against 29000 a month
	d := leave.ComputeDeductions(summary.Summary, decimal.NewFromInt(29000))

	// THEN January is 29000/31 = 935.48 and February 29000/29 = 1000.00 a day
	require.Len(t, d.Months, 12)
	jan := d.Months[0]
	assert.Equal(t, time.January, jan.Month)
	assert.Equal(t, "935.48", jan.DailyRate.StringFixed(2))
	assert.Equal(t, "935.48", jan.Amount.StringFixed(2))

	feb := d.Months[1]
	assert.Equal(t, 1, feb.LOPDays)
	assert.Equal(t, "1000.00", feb.Amount.StringFixed(2))

	assert.Equal(t, 2, d.LOPDays)
	assert.Equal(t, "1935.48", d.Total.StringFixed(2))
}

func TestComputeDeductions_NoLOP(t *testing.T) {
	summary := classify(leave.DefaultPolicy(), 2024, leavesOf("x", "2024-03-01"))

	d := leave.ComputeDeductions(summary.Summary, decimal.NewFromInt(50000))

	assert.True(t, d.Total.IsZero())
	assert.Equal(t, 0, d.LOPDays)
	for _, m := range d.Months {
		assert.True(t, m.Amount.IsZero(), m.Month.String())
	}
}
