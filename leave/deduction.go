package leave

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// LOSS-OF-PAY DEDUCTIONS
// =============================================================================

// MonthDeduction is the salary withheld for one month's LOP days.
type MonthDeduction struct {
	Month     time.Month
	LOPDays   int
	DailyRate decimal.Decimal
	Amount    decimal.Decimal
}

// Deductions is the LOP payroll view of a YearlySummary.
type Deductions struct {
	MemberID      generic.MemberID
	Year          int
	MonthlySalary decimal.Decimal
	LOPDays       int
	Total         decimal.Decimal
	Months        []MonthDeduction
}

// ComputeDeductions prices every LOP day at monthlySalary / calendar days of
// its month. Rates and amounts are rounded to 2 places. Only LOP days are
// deducted; valid days never are.
func ComputeDeductions(summary YearlySummary, monthlySalary decimal.Decimal) Deductions {
	d := Deductions{
		MemberID:      summary.MemberID,
		Year:          summary.Year,
		MonthlySalary: monthlySalary,
		Total:         decimal.Zero,
		Months:        make([]MonthDeduction, 0, len(summary.Months)),
	}

	for _, ms := range summary.Months {
		days := decimal.NewFromInt(int64(generic.DaysInMonth(summary.Year, ms.Month)))
		rate := monthlySalary.Div(days).Round(2)
		amount := rate.Mul(decimal.NewFromInt(int64(ms.LOP))).Round(2)

		d.Months = append(d.Months, MonthDeduction{
			Month:     ms.Month,
			LOPDays:   ms.LOP,
			DailyRate: rate,
			Amount:    amount,
		})
		d.LOPDays += ms.LOP
		d.Total = d.Total.Add(amount)
	}
	return d
}
