package report

import (
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/warp/attendance-engine/reconcile"
	"github.com/warp/attendance-engine/timekeeping"
)

var (
	critiqueColor  = color.New(color.FgRed, color.Bold)
	horsPlageColor = color.New(color.FgMagenta, color.Bold)
	aValiderColor  = color.New(color.FgYellow, color.Bold)
	attentionColor = color.New(color.FgYellow)
	infoColor      = color.New(color.FgCyan)
)

// SeverityLabel renders a severity with its terminal color. Colors are
// dropped automatically when the output is not a TTY.
func SeverityLabel(s timekeeping.Severity) string {
	switch s {
	case timekeeping.SeverityCritique:
		return critiqueColor.Sprint(s)
	case timekeeping.SeverityHorsPlage:
		return horsPlageColor.Sprint(s)
	case timekeeping.SeverityAValider:
		return aValiderColor.Sprint(s)
	case timekeeping.SeverityAttention:
		return attentionColor.Sprint(s)
	case timekeeping.SeverityInfo:
		return infoColor.Sprint(s)
	}
	return string(s)
}

// RenderAggregates prints one row per employee.
func RenderAggregates(w io.Writer, aggs []PeriodAggregate) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{
		"Employee", "Scheduled", "Present", "Late", "Presence %", "Punctuality %",
		"Planned h", "Worked h", "Overtime h", "Missing h", "Avg h/day", "Skipped",
	})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, a := range aggs {
		data = append(data, []string{
			string(a.EmployeeID),
			strconv.Itoa(a.ScheduledDays),
			strconv.Itoa(a.PresentDays),
			strconv.Itoa(a.LateDays),
			strconv.Itoa(a.PresenceRate),
			strconv.Itoa(a.PunctualityRate),
			a.PlannedHours.StringFixed(2),
			a.WorkedHours.StringFixed(2),
			a.OvertimeHours.StringFixed(2),
			a.MissingHours.StringFixed(2),
			a.AvgHoursPerDay.StringFixed(2),
			strconv.Itoa(len(a.SkippedDays)),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// RenderDay prints the deviations of one reconciled day.
func RenderDay(w io.Writer, rec reconcile.DayReconciliation) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Deviation", "Minutes", "Segment", "Severity"})

	var data [][]string
	for _, d := range rec.Deviations {
		segment := "-"
		if d.SegmentRef != nil {
			segment = strconv.Itoa(*d.SegmentRef)
		}
		data = append(data, []string{
			d.Kind.String(),
			strconv.Itoa(d.MagnitudeMinutes),
			segment,
			SeverityLabel(d.Severity),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
