package dto

import "github.com/spec-kit/complaint-engine/internal/domain"

// WorkloadResponse is a staff workload snapshot.
type WorkloadResponse struct {
	StaffID        string `json:"staff_id"`
	ActiveCount    int    `json:"active_count"`
	TodayCount     int    `json:"today_count"`
	CompletedCount int    `json:"completed_count"`
}

// StaffWithWorkloadResponse pairs staff details with their workload.
type StaffWithWorkloadResponse struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Role     domain.StaffRole `json:"role"`
	OfficeID *string          `json:"office_id"`
	Capacity int              `json:"capacity"`
	Workload WorkloadResponse `json:"workload"`
}
