package reconcile

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// MaxContinuousWorkMinutes is the statutory ceiling on uninterrupted work.
// It is legally fixed and deliberately not part of Tolerances.
const MaxContinuousWorkMinutes = 360

// Tolerances centralises every business threshold of the engine, in minutes.
// Field order follows the order in which the engine applies them.
type Tolerances struct {
	// Arrival
	LateArrivalGrace    int `mapstructure:"late_arrival_grace" json:"late_arrival_grace" validate:"gte=0"`
	LateArrivalCritical int `mapstructure:"late_arrival_critical" json:"late_arrival_critical" validate:"gtfield=LateArrivalGrace"`
	ArrivalLateCeiling  int `mapstructure:"arrival_late_ceiling" json:"arrival_late_ceiling" validate:"gtfield=LateArrivalCritical"`
	ArrivalEarlyCeiling int `mapstructure:"arrival_early_ceiling" json:"arrival_early_ceiling" validate:"gt=0"`

	// Departure
	EarlyDepartureGrace     int `mapstructure:"early_departure_grace" json:"early_departure_grace" validate:"gtfield=LateArrivalGrace"`
	EarlyDepartureCritical  int `mapstructure:"early_departure_critical" json:"early_departure_critical" validate:"gtfield=EarlyDepartureGrace"`
	DepartureEarlyCeiling   int `mapstructure:"departure_early_ceiling" json:"departure_early_ceiling" validate:"gtfield=EarlyDepartureCritical"`
	OvertimeGrace           int `mapstructure:"overtime_grace" json:"overtime_grace" validate:"gte=0"`
	OvertimeApprovalCeiling int `mapstructure:"overtime_approval_ceiling" json:"overtime_approval_ceiling" validate:"gtfield=OvertimeGrace"`
	DepartureLateCeiling    int `mapstructure:"departure_late_ceiling" json:"departure_late_ceiling" validate:"gtfield=OvertimeApprovalCeiling"`

	// Day level
	DailyOvertimeThreshold int `mapstructure:"daily_overtime_threshold" json:"daily_overtime_threshold" validate:"gt=0"`

	// Breaks
	BreakGrace             int `mapstructure:"break_grace" json:"break_grace" validate:"gte=0"`
	ExcessiveBreakCritical int `mapstructure:"excessive_break_critical" json:"excessive_break_critical" validate:"gtfield=BreakGrace"`
	// BreakShiftCeiling is how far a punch gap may start from the planned
	// break and still count as that break.
	BreakShiftCeiling int `mapstructure:"break_shift_ceiling" json:"break_shift_ceiling" validate:"gte=0"`
}

// DefaultTolerances are the values in force until the legal/business owners
// confirm otherwise.
func DefaultTolerances() Tolerances {
	return Tolerances{
		LateArrivalGrace:    5,
		LateArrivalCritical: 20,
		ArrivalLateCeiling:  90,
		ArrivalEarlyCeiling: 30,

		EarlyDepartureGrace:     15,
		EarlyDepartureCritical:  30,
		DepartureEarlyCeiling:   90,
		OvertimeGrace:           15,
		OvertimeApprovalCeiling: 60,
		DepartureLateCeiling:    240,

		DailyOvertimeThreshold: 30,

		BreakGrace:             5,
		ExcessiveBreakCritical: 30,
		BreakShiftCeiling:      60,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the ordering constraints between thresholds.
func (t Tolerances) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid tolerances: %w", err)
	}
	return nil
}
