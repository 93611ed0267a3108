package domain

// WorkloadSnapshot is derived from complaint records, never stored as a
// source of truth. ActiveCount counts assignments in ASSIGNED, IN_PROGRESS
// or ON_HOLD; TodayCount counts complaints created today regardless of
// status; CompletedCount counts closed complaints.
type WorkloadSnapshot struct {
	StaffRef       string
	ActiveCount    int
	TodayCount     int
	CompletedCount int
}

// StaffWithWorkload pairs a staff member with their current snapshot for
// available-staff listings.
type StaffWithWorkload struct {
	Staff    StaffMember
	Workload WorkloadSnapshot
}

// LoadRatio is the fraction of capacity in use. Staff with zero capacity do
// not exist by invariant, but the guard keeps the ratio total anyway.
func (w WorkloadSnapshot) LoadRatio(capacity int) float64 {
	if capacity <= 0 {
		return float64(w.ActiveCount)
	}
	return float64(w.ActiveCount) / float64(capacity)
}
