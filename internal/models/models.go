package models

import "time"

type DialogKind string

const (
	DialogStatus   DialogKind = "status"
	DialogAssign   DialogKind = "assign"
	DialogContract DialogKind = "contract"
)

// DialogState is the persisted part of an open dialog. Binary previews are
// never stored here, only the handle pointing at them.
type DialogState struct {
	ID         string        `json:"id"`
	Kind       DialogKind    `json:"kind"`
	BookingID  string        `json:"booking_id"`
	ContractID string        `json:"contract_id,omitempty"`
	Stage      ContractStage `json:"stage,omitempty"`
	PreviewURL string        `json:"preview_url,omitempty"`
	OpenedAt   time.Time     `json:"opened_at"`
}
