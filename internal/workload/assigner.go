package workload

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"camrent/internal/config"
	"camrent/internal/domain"
	"camrent/internal/models"

	"github.com/rs/zerolog"
)

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// DayWindow is an inclusive [Start, End] local-day range.
type DayWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DayBounds returns 00:00:00.000 to 23:59:59.999 of t's calendar day in loc.
func DayBounds(t time.Time, loc *time.Location) DayWindow {
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1).Add(-time.Millisecond)
	return DayWindow{Start: start, End: end}
}

// Classify maps a total workload to its display band.
func Classify(total int) string {
	switch {
	case total <= 0:
		return models.BandFree
	case total <= 3:
		return models.BandNormal
	case total <= 6:
		return models.BandBusy
	default:
		return models.BandVeryBusy
	}
}

// StaffLoad is one row of the assignment picker.
type StaffLoad struct {
	Staff       models.Staff             `json:"staff"`
	Counts      models.StaffWorkloadInfo `json:"counts"`
	Total       int                      `json:"total_workload"`
	Band        string                   `json:"band,omitempty"`
	HasWorkload bool                     `json:"has_workload"`
}

// View is what the assign dialog renders. When Degraded is set the staff list
// is plain (no counts) and Warning explains why.
type View struct {
	BookingID string      `json:"booking_id"`
	Date      time.Time   `json:"date"`
	Window    DayWindow   `json:"window"`
	Staff     []StaffLoad `json:"staff"`
	Degraded  bool        `json:"degraded"`
	Warning   string      `json:"warning,omitempty"`
	Err       error       `json:"-"`
}

// Assigner recommends staff by current load; it never picks on its own.
type Assigner struct {
	gw        domain.Gateway
	endpoints config.EndpointsConfig
	loc       *time.Location
	logger    *zerolog.Logger
}

func NewAssigner(gw domain.Gateway, endpoints config.EndpointsConfig, loc *time.Location, logger *zerolog.Logger) *Assigner {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if loc == nil {
		loc = time.Local
	}
	return &Assigner{gw: gw, endpoints: endpoints, loc: loc, logger: logger}
}

// ComputeWorkload fetches per-staff counts for date's day and returns them
// sorted least-loaded first. Equal totals keep backend order.
func (a *Assigner) ComputeWorkload(ctx context.Context, cred domain.Credential, date time.Time) ([]StaffLoad, DayWindow, error) {
	window := DayBounds(date, a.loc)
	query := url.Values{
		"startDate": {window.Start.Format(isoMillis)},
		"endDate":   {window.End.Format(isoMillis)},
	}

	var resp struct {
		Staffs []models.StaffWorkloadInfo `json:"staffs"`
	}
	if err := a.gw.DoJSON(domain.WithOp(ctx, "workload.query"), cred, http.MethodGet, a.endpoints.Workload, query, nil, &resp); err != nil {
		return nil, window, err
	}

	loads := make([]StaffLoad, 0, len(resp.Staffs))
	for _, w := range resp.Staffs {
		total := w.Total()
		loads = append(loads, StaffLoad{
			Staff:       models.Staff{ID: w.StaffID, Name: w.StaffName, Email: w.Email},
			Counts:      w,
			Total:       total,
			Band:        Classify(total),
			HasWorkload: true,
		})
	}
	sort.SliceStable(loads, func(i, j int) bool { return loads[i].Total < loads[j].Total })
	return loads, window, nil
}

// View builds the assign dialog for booking. Workload failures never fail the
// view: it falls back to the plain staff list with a dismissable warning.
func (a *Assigner) View(ctx context.Context, cred domain.Credential, booking models.Booking, staff []models.Staff) View {
	date := booking.ScheduledDate()
	if date.IsZero() {
		date = time.Now()
	}

	loads, window, err := a.ComputeWorkload(ctx, cred, date)
	view := View{BookingID: booking.ID, Date: date, Window: window}
	if err == nil {
		view.Staff = loads
		return view
	}

	a.logger.Warn().Err(err).Str("booking_id", booking.ID).Msg("workload unavailable, showing plain staff list")
	view.Degraded = true
	view.Err = err
	view.Warning = "Không tải được khối lượng công việc của nhân viên: " + domain.MessageOf(err)
	view.Staff = make([]StaffLoad, 0, len(staff))
	for _, s := range staff {
		view.Staff = append(view.Staff, StaffLoad{Staff: s})
	}
	return view
}

// AssignStaff issues exactly one create-assignment request.
func (a *Assigner) AssignStaff(ctx context.Context, cred domain.Credential, bookingID, staffID string, task models.TaskType) (*models.Assignment, error) {
	if strings.TrimSpace(staffID) == "" {
		return nil, domain.E(domain.KindMissingSelection, "workload.assign", "no staff member selected")
	}
	if strings.TrimSpace(bookingID) == "" {
		return nil, domain.E(domain.KindMissingSelection, "workload.assign", "no booking selected")
	}
	if task == "" {
		task = models.TaskDelivery
	}

	body := map[string]string{
		"bookingId": bookingID,
		"staffId":   staffID,
		"taskType":  string(task),
	}
	var out models.Assignment
	if err := a.gw.DoJSON(domain.WithOp(ctx, "workload.assign"), cred, http.MethodPost, a.endpoints.Assignments, nil, body, &out); err != nil {
		return nil, err
	}
	if out.BookingID == "" {
		out.BookingID = bookingID
	}
	if out.StaffID == "" {
		out.StaffID = staffID
	}
	if out.TaskType == "" {
		out.TaskType = task
	}

	a.logger.Info().Str("booking_id", bookingID).Str("staff_id", staffID).Str("task", string(task)).Msg("staff assigned")
	return &out, nil
}
