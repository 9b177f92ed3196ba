package models

// Staff is read-only here; the backend owns it.
type Staff struct {
	ID    string `json:"id"`
	Name  string `json:"fullName"`
	Email string `json:"email"`
}

// StaffWorkloadInfo is one row of the workload endpoint response.
type StaffWorkloadInfo struct {
	StaffID               string `json:"staffId"`
	StaffName             string `json:"staffName"`
	Email                 string `json:"email"`
	AssignedBookings      int    `json:"assignedBookings"`
	AssignedVerifications int    `json:"assignedVerifications"`
	PickupsToday          int    `json:"pickupsToday"`
	ReturnsToday          int    `json:"returnsToday"`
}

// Total sums the four counters. Negative counters from the backend count as zero.
func (w StaffWorkloadInfo) Total() int {
	total := 0
	for _, n := range []int{w.AssignedBookings, w.AssignedVerifications, w.PickupsToday, w.ReturnsToday} {
		if n > 0 {
			total += n
		}
	}
	return total
}

type TaskType string

const (
	TaskDelivery     TaskType = "delivery"
	TaskVerification TaskType = "verification"
)

type Assignment struct {
	ID        string   `json:"id"`
	BookingID string   `json:"bookingId"`
	StaffID   string   `json:"staffId"`
	TaskType  TaskType `json:"taskType"`
}
