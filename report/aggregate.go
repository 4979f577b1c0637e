/*
Package report folds day reconciliations into period KPIs.

PURPOSE:
  Payroll and compliance consume one PeriodAggregate per employee and
  period. Everything here is a pure fold over DayReconciliation values;
  loading the days is the attendance service's job.

KPIs:
  scheduledDays     days with a shift
  presentDays       days with worked minutes > 0 (planned or not)
  presenceRate      min(100, round(present / scheduled * 100)), 0 if nothing scheduled
  lateDays          distinct present days with LateArrival or EarlyDeparture
  punctualityRate   max(0, round((present - late) / present * 100)), 0 if nobody present
  hours             minutes / 60, rounded to 2 decimals
  missingHours      max(0, planned - worked)
  avgHoursPerDay    worked / presentDays, 0 if nobody present

ROUNDING:
  Rates round half away from zero (decimal.Round), so 2/3 -> 67 and
  1/8 -> 13.
*/
package report

import (
	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/reconcile"
	"github.com/warp/attendance-engine/timekeeping"
)

var (
	sixty   = decimal.NewFromInt(60)
	hundred = decimal.NewFromInt(100)
)

// PeriodAggregate is the KPI summary of one employee over one period.
type PeriodAggregate struct {
	EmployeeID timekeeping.EmployeeID `json:"employee_id"`
	Range      timekeeping.Period     `json:"range"`

	PlannedHours   decimal.Decimal `json:"planned_hours"`
	WorkedHours    decimal.Decimal `json:"worked_hours"`
	OvertimeHours  decimal.Decimal `json:"overtime_hours"`
	MissingHours   decimal.Decimal `json:"missing_hours"`
	AvgHoursPerDay decimal.Decimal `json:"avg_hours_per_day"`

	ScheduledDays          int `json:"scheduled_days"`
	PresentDays            int `json:"present_days"`
	LateDays               int `json:"late_days"`
	JustifiedAbsenceDays   int `json:"justified_absence_days"`
	UnjustifiedAbsenceDays int `json:"unjustified_absence_days"`

	PresenceRate    int `json:"presence_rate"`
	PunctualityRate int `json:"punctuality_rate"`

	// SkippedDays could not be reconciled (clock skew) and are excluded.
	SkippedDays []timekeeping.Day `json:"skipped_days,omitempty"`
}

// Aggregate folds the reconciliations of one employee over a period. Days
// outside the period are ignored.
func Aggregate(employeeID timekeeping.EmployeeID, period timekeeping.Period, days []reconcile.DayReconciliation, skipped []timekeeping.Day) PeriodAggregate {
	agg := PeriodAggregate{
		EmployeeID:  employeeID,
		Range:       period,
		SkippedDays: skipped,
	}

	var planned, worked, overtime int
	for _, d := range days {
		if !period.Contains(d.Date) {
			continue
		}
		planned += d.PlannedMinutes
		worked += d.WorkedMinutes
		overtime += d.OvertimeMinutes

		if d.Scheduled {
			agg.ScheduledDays++
		}
		if d.WorkedMinutes > 0 {
			agg.PresentDays++
			if isLate(d) {
				agg.LateDays++
			}
		}
		if d.Has(timekeeping.AbsenceJustified) {
			agg.JustifiedAbsenceDays++
		}
		if d.Has(timekeeping.AbsenceUnjustified) {
			agg.UnjustifiedAbsenceDays++
		}
	}

	agg.PlannedHours = Hours(planned)
	agg.WorkedHours = Hours(worked)
	agg.OvertimeHours = Hours(overtime)
	agg.MissingHours = Hours(max(0, planned-worked))
	agg.AvgHoursPerDay = decimal.Zero
	if agg.PresentDays > 0 {
		agg.AvgHoursPerDay = decimal.NewFromInt(int64(worked)).
			Div(sixty).
			Div(decimal.NewFromInt(int64(agg.PresentDays))).
			Round(2)
	}

	agg.PresenceRate = min(100, percent(agg.PresentDays, agg.ScheduledDays))
	agg.PunctualityRate = max(0, percent(agg.PresentDays-agg.LateDays, agg.PresentDays))
	return agg
}

func isLate(d reconcile.DayReconciliation) bool {
	for _, dev := range d.Deviations {
		if dev.Kind.IsPunctuality() {
			return true
		}
	}
	return false
}

// Hours converts minutes to hours, rounded to 2 decimals.
func Hours(minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(minutes)).Div(sixty).Round(2)
}

// percent is round(num/den*100), or 0 when den is 0.
func percent(num, den int) int {
	if den == 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(num)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(den))).
		Round(0).
		IntPart())
}
