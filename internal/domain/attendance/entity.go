package attendance

// Summary is the aggregated attendance picture for one employee over one
// payroll period. Minutes are totals across all shifts in the period.
type Summary struct {
	EmployeeID           string
	ActualWorkMinutes    int
	ScheduledWorkMinutes int
	OvertimeMinutes      int
	LatenessMinutes      int
	MissingWorkMinutes   int
	WorkingDays          int
}

// HasRecords reports whether scheduled attendance was captured for the
// period. Without scheduled minutes there is no work ratio to prorate by.
func (s Summary) HasRecords() bool {
	return s.ScheduledWorkMinutes > 0
}
