package models

import "time"

type RentedItem struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Booking struct {
	ID          string       `json:"id"`
	RenterID    string       `json:"renterId"`
	RenterName  string       `json:"renterName"`
	Items       []RentedItem `json:"items"`
	StatusLabel string       `json:"statusText"`
	StatusCode  string       `json:"status,omitempty"` // backend enum name, optional
	TotalPrice  float64      `json:"totalPrice"`
	CreatedAt   *time.Time   `json:"createdAt,omitempty"`
	PickupAt    *time.Time   `json:"pickupAt,omitempty"`
	Province    string       `json:"province"`
	District    string       `json:"district"`
}

// Status derives the lifecycle state from the display label. Rejected has no
// label and is only recognised through the backend enum.
func (b *Booking) Status() Status {
	if s := StatusFromLabel(b.StatusLabel); s != StatusUnknown {
		return s
	}
	if StatusFromWire(b.StatusCode) == StatusRejected {
		return StatusRejected
	}
	return StatusUnknown
}

// LabelMismatch reports whether the backend enum and the label disagree.
func (b *Booking) LabelMismatch() bool {
	if b.StatusCode == "" {
		return false
	}
	code := StatusFromWire(b.StatusCode)
	label := StatusFromLabel(b.StatusLabel)
	if code == StatusUnknown || label == StatusUnknown {
		return false
	}
	return code != label
}

// ScheduledDate is the day a pickup/verification task for the booking happens.
// Pickup time is used both to query workload and to render the dialog.
func (b *Booking) ScheduledDate() time.Time {
	if b.PickupAt != nil {
		return *b.PickupAt
	}
	if b.CreatedAt != nil {
		return *b.CreatedAt
	}
	return time.Time{}
}

// CreatedUnix returns the creation time in milliseconds, 0 when missing.
func (b *Booking) CreatedUnix() int64 {
	if b.CreatedAt == nil {
		return 0
	}
	return b.CreatedAt.UnixMilli()
}

// Clone returns a deep copy safe to hand outside the store.
func (b Booking) Clone() Booking {
	out := b
	if b.Items != nil {
		out.Items = append([]RentedItem(nil), b.Items...)
	}
	if b.CreatedAt != nil {
		t := *b.CreatedAt
		out.CreatedAt = &t
	}
	if b.PickupAt != nil {
		t := *b.PickupAt
		out.PickupAt = &t
	}
	return out
}
