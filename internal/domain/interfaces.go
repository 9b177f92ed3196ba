package domain

import (
	"context"
	"net/url"
	"time"

	"camrent/internal/models"
)

// Credential is the manager's bearer credential, passed explicitly into every
// workflow call instead of being read from ambient storage.
type Credential struct {
	Token string
}

// BinaryResponse is a non-JSON payload plus the headers the pipeline needs.
type BinaryResponse struct {
	Data               []byte
	ContentType        string
	ContentDisposition string
}

type Gateway interface {
	DoJSON(ctx context.Context, cred Credential, method, path string, query url.Values, body, out any) error
	GetBinary(ctx context.Context, cred Credential, path string) (*BinaryResponse, error)
}

type BookingSource interface {
	Refresh(ctx context.Context, cred Credential) error
	Bookings() []models.Booking
	Booking(id string) (models.Booking, bool)
	Staff() []models.Staff
	RefreshedAt() time.Time
}

type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a non-blocking user notification produced at the workflow boundary.
type Notice struct {
	Level       NoticeLevel `json:"level"`
	DialogID    string      `json:"dialog_id,omitempty"`
	Op          string      `json:"op"`
	Kind        Kind        `json:"kind,omitempty"`
	Message     string      `json:"message"`
	Dismissable bool        `json:"dismissable"`
	At          time.Time   `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

type DialogStateRepository interface {
	GetDialog(ctx context.Context, id string) (*models.DialogState, error)
	SetDialog(ctx context.Context, state *models.DialogState) error
	ClearDialog(ctx context.Context, id string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// OperationJournal records the outcome of every issued remote request.
type OperationJournal interface {
	Record(ctx context.Context, op, bookingID string, err error) error
}
