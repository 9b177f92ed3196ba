package models

import "strings"

// Status is the internal booking lifecycle state.
type Status int

const (
	StatusUnknown    Status = -1
	StatusPending    Status = 1
	StatusConfirmed  Status = 2
	StatusInProgress Status = 3
	StatusCompleted  Status = 4
	StatusCancelled  Status = 5
	StatusRejected   Status = 6
)

// Display labels. These strings are the source of truth for the status.
const (
	LabelPending    = "Chờ xác nhận"
	LabelConfirmed  = "Đã xác nhận"
	LabelInProgress = "Đang thuê"
	LabelCompleted  = "Hoàn thành"
	LabelCancelled  = "Đã hủy"
)

// CartLabel marks bookings that are still a renter's basket, never shown in the console.
const CartLabel = "Giỏ hàng"

var labelToStatus = map[string]Status{
	LabelPending:    StatusPending,
	LabelConfirmed:  StatusConfirmed,
	LabelInProgress: StatusInProgress,
	LabelCompleted:  StatusCompleted,
	LabelCancelled:  StatusCancelled,
}

var statusToLabel = map[Status]string{
	StatusPending:    LabelPending,
	StatusConfirmed:  LabelConfirmed,
	StatusInProgress: LabelInProgress,
	StatusCompleted:  LabelCompleted,
	StatusCancelled:  LabelCancelled,
}

// Wire names accepted by the update-status endpoint. InProgress has none:
// the backend moves a booking there on handover.
var statusToWire = map[Status]string{
	StatusPending:   "Pending",
	StatusConfirmed: "Confirmed",
	StatusCompleted: "Completed",
	StatusCancelled: "Cancelled",
	StatusRejected:  "Rejected",
}

// StatusNumber maps a display label to its tab number (1..5), or -1.
func StatusNumber(label string) int {
	if s, ok := labelToStatus[label]; ok {
		return int(s)
	}
	return int(StatusUnknown)
}

// StatusFromLabel maps a display label to a Status; unknown labels give StatusUnknown.
func StatusFromLabel(label string) Status {
	if s, ok := labelToStatus[label]; ok {
		return s
	}
	return StatusUnknown
}

// StatusFromWire parses a backend enum name (case-insensitive). "InProgress" is
// recognised for reading even though it cannot be sent.
func StatusFromWire(name string) Status {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, "InProgress") {
		return StatusInProgress
	}
	for s, w := range statusToWire {
		if strings.EqualFold(w, name) {
			return s
		}
	}
	return StatusUnknown
}

// Label returns the display label, or "" when the status has none.
func (s Status) Label() string {
	return statusToLabel[s]
}

// Wire returns the update-status query value and whether one exists.
func (s Status) Wire() (string, bool) {
	w, ok := statusToWire[s]
	return w, ok
}

// Tab is the status tab a booking in this state belongs to, or -1.
func (s Status) Tab() int {
	if _, ok := statusToLabel[s]; ok {
		return int(s)
	}
	return int(StatusUnknown)
}

// Terminal reports whether no further transition may leave this state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRejected
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PendingApproval"
	case StatusConfirmed:
		return "Confirmed"
	case StatusInProgress:
		return "InProgress"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	case StatusRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}
