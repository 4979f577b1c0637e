package reconcile

import (
	"fmt"

	"github.com/warp/attendance-engine/timekeeping"
)

// SeverityFor is the one place a severity is derived. Payroll and compliance
// read severities straight off the records, so no other package may compute
// one.
//
//	Deviation                    Threshold                  Severity
//	LateArrival                  grace..critical            attention
//	LateArrival                  > critical                 critique
//	EarlyDeparture               grace..critical            attention
//	EarlyDeparture               > critical                 critique
//	OutOfWindowArrival/Departure beyond hard ceiling        hors_plage
//	Overtime                     <= approval ceiling        info
//	Overtime                     > approval ceiling         a_valider
//	AbsenceUnjustified           any                        critique
//	AmplitudeViolation           any                        critique
//	MissingPunch                 any                        critique
//	UnplannedPresence            any                        attention
//	BreakSkipped                 any                        attention
//	ExcessiveBreak               <= critical overrun        attention
//	ExcessiveBreak               > critical overrun         critique
//	AbsenceJustified             any                        info
//
// There is no default branch: a kind without a rule is an error.
func SeverityFor(kind timekeeping.DeviationKind, magnitude int, tol Tolerances) (timekeeping.Severity, error) {
	switch kind {
	case timekeeping.LateArrival:
		if magnitude > tol.LateArrivalCritical {
			return timekeeping.SeverityCritique, nil
		}
		return timekeeping.SeverityAttention, nil

	case timekeeping.EarlyDeparture:
		if magnitude > tol.EarlyDepartureCritical {
			return timekeeping.SeverityCritique, nil
		}
		return timekeeping.SeverityAttention, nil

	case timekeeping.OutOfWindowArrival, timekeeping.OutOfWindowDeparture:
		return timekeeping.SeverityHorsPlage, nil

	case timekeeping.Overtime:
		if magnitude > tol.OvertimeApprovalCeiling {
			return timekeeping.SeverityAValider, nil
		}
		return timekeeping.SeverityInfo, nil

	case timekeeping.AbsenceUnjustified, timekeeping.AmplitudeViolation, timekeeping.MissingPunch:
		return timekeeping.SeverityCritique, nil

	case timekeeping.UnplannedPresence, timekeeping.BreakSkipped:
		return timekeeping.SeverityAttention, nil

	case timekeeping.ExcessiveBreak:
		if magnitude > tol.ExcessiveBreakCritical {
			return timekeeping.SeverityCritique, nil
		}
		return timekeeping.SeverityAttention, nil

	case timekeeping.AbsenceJustified:
		return timekeeping.SeverityInfo, nil
	}
	return "", fmt.Errorf("no severity rule for deviation kind %s", kind)
}
