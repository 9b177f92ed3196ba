package dialog

import (
	"context"
	"time"

	"camrent/internal/domain"
	"camrent/internal/events"
	"camrent/internal/metrics"
	"camrent/internal/models"
	"camrent/internal/status"
	"camrent/internal/workload"
)

// ContractStep names one stage of the contract pipeline.
type ContractStep string

const (
	StepCreate  ContractStep = "create"
	StepPreview ContractStep = "preview"
	StepSign    ContractStep = "sign"
)

// StepInput carries the per-step arguments of RunContractStep.
type StepInput struct {
	Scope     models.ContractScope // create
	OwnerID   string               // create; defaults to the dialog's booking
	Signature string               // sign; data URI from the signature pad
}

// StepResult is the dialog's contract state after a step.
type StepResult struct {
	DialogID   string               `json:"dialog_id"`
	ContractID string               `json:"contract_id,omitempty"`
	Stage      models.ContractStage `json:"stage,omitempty"`
	PreviewURL string               `json:"preview_url,omitempty"`
	Filename   string               `json:"filename,omitempty"`
}

// RequestTransition runs a status change for the dialog's booking. On success
// the store is refreshed and the post-condition checked.
func (c *Controller) RequestTransition(ctx context.Context, cred domain.Credential, dialogID string, t status.Transition) (*status.Result, error) {
	op := "status." + string(t.Action)
	d, release, err := c.begin(dialogID, models.DialogStatus, op)
	if err != nil {
		return nil, err
	}
	defer release()

	st := d.snapshot()
	b, err := c.booking(st.BookingID, op)
	if err != nil {
		return nil, err
	}

	res, err := c.d.Machine.RequestTransition(ctx, cred, b, t)
	payload := events.WorkflowEventPayload{BookingID: b.ID, FromStatus: b.Status().String(), ToStatus: t.To().String()}
	if err := c.finish(ctx, d, op, err, events.EventBookingStatusChanged, payload, "Cập nhật trạng thái đơn thành công"); err != nil {
		return nil, err
	}

	c.refresh(ctx, cred)
	if after, ok := c.d.Store.Booking(b.ID); !ok || !res.Holds(after) {
		c.logger.Warn().
			Str("booking_id", b.ID).
			Str("expected", res.To.String()).
			Str("label", after.StatusLabel).
			Msg("booking status does not match the requested transition after refresh")
	}
	return res, nil
}

// ComputeWorkload builds the assign dialog's staff picker. Backend failures
// degrade the view instead of failing it.
func (c *Controller) ComputeWorkload(ctx context.Context, cred domain.Credential, dialogID string) (*workload.View, error) {
	const op = "workload.compute"
	d, release, err := c.begin(dialogID, models.DialogAssign, op)
	if err != nil {
		return nil, err
	}
	defer release()

	st := d.snapshot()
	b, err := c.booking(st.BookingID, op)
	if err != nil {
		return nil, err
	}

	view := c.d.Assigner.View(ctx, cred, b, c.d.Store.Staff())
	if view.Degraded {
		metrics.IncWorkflow(op, "degraded")
		c.record(ctx, op, b.ID, view.Err)
		if !d.closed.Load() {
			c.d.Notifier.Notify(ctx, domain.Notice{
				Level:       domain.NoticeWarning,
				DialogID:    dialogID,
				Op:          op,
				Message:     view.Warning,
				Dismissable: true,
				At:          c.now(),
			})
		}
	} else {
		metrics.IncWorkflow(op, "ok")
		c.record(ctx, op, b.ID, nil)
	}
	if d.closed.Load() {
		return nil, domain.E(domain.KindDialogClosed, op, "dialog closed before workload arrived")
	}
	return &view, nil
}

// AssignStaff issues one assignment for the dialog's booking.
func (c *Controller) AssignStaff(ctx context.Context, cred domain.Credential, dialogID, staffID string, task models.TaskType) (*models.Assignment, error) {
	const op = "workload.assign"
	d, release, err := c.begin(dialogID, models.DialogAssign, op)
	if err != nil {
		return nil, err
	}
	defer release()

	st := d.snapshot()
	a, err := c.d.Assigner.AssignStaff(ctx, cred, st.BookingID, staffID, task)
	payload := events.WorkflowEventPayload{BookingID: st.BookingID, StaffID: staffID, TaskType: string(task)}
	if err := c.finish(ctx, d, op, err, events.EventStaffAssigned, payload, "Phân công nhân viên thành công"); err != nil {
		return nil, err
	}
	c.refresh(ctx, cred)
	return a, nil
}

// RunContractStep runs one pipeline step in the dialog's contract session.
func (c *Controller) RunContractStep(ctx context.Context, cred domain.Credential, dialogID string, step ContractStep, in StepInput) (*StepResult, error) {
	op := "contract." + string(step)
	d, release, err := c.begin(dialogID, models.DialogContract, op)
	if err != nil {
		return nil, err
	}
	defer release()

	st := d.snapshot()
	payload := events.WorkflowEventPayload{BookingID: st.BookingID, ContractID: st.ContractID}

	switch step {
	case StepCreate:
		owner := in.OwnerID
		if owner == "" {
			owner = st.BookingID
		}
		k, err := d.session.Create(ctx, cred, in.Scope, owner)
		if k != nil {
			payload.ContractID = k.ID
		}
		if err := c.finish(ctx, d, op, err, events.EventContractCreated, payload, "Tạo hợp đồng thành công"); err != nil {
			c.syncContract(ctx, d)
			return nil, err
		}
	case StepPreview:
		_, err := d.session.Preview(ctx, cred)
		if err := c.finish(ctx, d, op, err, "", payload, ""); err != nil {
			return nil, err
		}
	case StepSign:
		err := d.session.Sign(ctx, cred, in.Signature)
		if err := c.finish(ctx, d, op, err, events.EventContractSigned, payload, "Ký hợp đồng thành công"); err != nil {
			return nil, err
		}
	default:
		return nil, domain.E(domain.KindNotFound, op, "unknown contract step")
	}

	c.syncContract(ctx, d)
	return c.stepResult(d), nil
}

// syncContract copies the session state into the persisted dialog state.
func (c *Controller) syncContract(ctx context.Context, d *dialog) {
	if d.closed.Load() {
		return
	}
	s := d.session.State()
	d.mu.Lock()
	d.state.ContractID, d.state.Stage, d.state.PreviewURL = "", "", s.PreviewURL
	if s.Contract != nil {
		d.state.ContractID = s.Contract.ID
		d.state.Stage = s.Contract.Stage
	}
	d.mu.Unlock()
	c.persist(ctx, d)
}

func (c *Controller) stepResult(d *dialog) *StepResult {
	st := d.snapshot()
	s := d.session.State()
	return &StepResult{
		DialogID:   st.ID,
		ContractID: st.ContractID,
		Stage:      st.Stage,
		PreviewURL: s.PreviewURL,
		Filename:   s.Filename,
	}
}

// finish applies the boundary effects of a workflow result: metrics, journal,
// events and notices. Responses for a closed dialog are not surfaced.
func (c *Controller) finish(ctx context.Context, d *dialog, op string, err error, event string, payload events.WorkflowEventPayload, success string) error {
	st := d.snapshot()
	payload.DialogID = st.ID
	payload.Op = op
	payload.At = c.now()

	kind := "ok"
	if err != nil {
		kind = string(domain.KindOf(err))
		if kind == "" {
			kind = "error"
		}
	}
	metrics.IncWorkflow(op, kind)
	if issued(err) {
		c.record(ctx, op, payload.BookingID, err)
	}

	closed := d.closed.Load()
	if err != nil {
		payload.ErrorKind = kind
		payload.Message = domain.MessageOf(err)
		c.publish(events.EventWorkflowFailed, payload)
		c.logger.Warn().Err(err).Str("op", op).Str("dialog_id", st.ID).Str("booking_id", payload.BookingID).Msg("workflow failed")
		if closed {
			return err
		}
		level := domain.NoticeError
		if local(err) {
			level = domain.NoticeWarning
		}
		c.d.Notifier.Notify(ctx, domain.Notice{
			Level:       level,
			DialogID:    st.ID,
			Op:          op,
			Kind:        domain.KindOf(err),
			Message:     domain.MessageOf(err),
			Dismissable: true,
			At:          c.now(),
		})
		return err
	}

	if event != "" {
		c.publish(event, payload)
	}
	c.logger.Info().Str("op", op).Str("dialog_id", st.ID).Str("booking_id", payload.BookingID).Msg("workflow succeeded")
	if closed {
		return domain.E(domain.KindDialogClosed, op, "dialog closed before the response arrived")
	}
	if success != "" {
		c.d.Notifier.Notify(ctx, domain.Notice{
			Level:    domain.NoticeSuccess,
			DialogID: st.ID,
			Op:       op,
			Message:  success,
			At:       c.now(),
		})
	}
	return nil
}

func (c *Controller) publish(event string, payload events.WorkflowEventPayload) {
	if c.d.Events == nil {
		return
	}
	if err := c.d.Events.PublishJSON(event, payload); err != nil {
		c.logger.Warn().Err(err).Str("event", event).Msg("failed to publish event")
	}
}

func (c *Controller) record(ctx context.Context, op, bookingID string, err error) {
	if c.d.Journal == nil {
		return
	}
	// the journal write must not depend on the caller's request lifetime
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if jerr := c.d.Journal.Record(jctx, op, bookingID, err); jerr != nil {
		c.logger.Warn().Err(jerr).Str("op", op).Msg("failed to journal operation")
	}
}

// local reports precondition failures detected before any request was sent.
func local(err error) bool {
	switch domain.KindOf(err) {
	case domain.KindUnauthenticated, domain.KindInvalidTransition, domain.KindMissingSelection,
		domain.KindEmptySignature, domain.KindNotFound, domain.KindBusy:
		return true
	}
	return false
}

// issued reports whether a request reached (or tried to reach) the backend.
func issued(err error) bool {
	if err == nil {
		return true
	}
	if domain.KindOf(err) == domain.KindDialogClosed {
		return true
	}
	return !local(err)
}
