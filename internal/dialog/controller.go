package dialog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"camrent/internal/contract"
	"camrent/internal/domain"
	"camrent/internal/filter"
	"camrent/internal/models"
	"camrent/internal/status"
	"camrent/internal/workload"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Deps are the collaborators of a Controller. Journal and Events may be nil.
type Deps struct {
	Store     domain.BookingSource
	Machine   *status.Machine
	Assigner  *workload.Assigner
	Pipeline  *contract.Pipeline
	Repo      domain.DialogStateRepository
	Notifier  domain.Notifier
	Events    domain.EventPublisher
	Journal   domain.OperationJournal
	CartLabel string
	Logger    *zerolog.Logger
}

// Controller owns open dialogs and runs at most one workflow per dialog at a
// time. Workflows return typed results; user-facing notices are emitted here
// and nowhere else.
type Controller struct {
	d      Deps
	logger *zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	dialogs map[string]*dialog
}

type dialog struct {
	mu       sync.Mutex
	state    models.DialogState
	session  *contract.Session
	inFlight atomic.Bool
	closed   atomic.Bool
}

func (d *dialog) snapshot() models.DialogState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func New(d Deps) *Controller {
	logger := d.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	if d.CartLabel == "" {
		d.CartLabel = models.CartLabel
	}
	return &Controller{
		d:       d,
		logger:  logger,
		now:     time.Now,
		dialogs: make(map[string]*dialog),
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, domain.Notice) {}

// Open starts a dialog of kind for bookingID. Status and assign dialogs need
// the booking to be in the store; contract dialogs may target a verification id.
func (c *Controller) Open(ctx context.Context, kind models.DialogKind, bookingID string) (models.DialogState, error) {
	const op = "dialog.open"
	if bookingID == "" {
		return models.DialogState{}, domain.E(domain.KindMissingSelection, op, "no booking selected")
	}

	d := &dialog{state: models.DialogState{
		ID:        uuid.NewString(),
		Kind:      kind,
		BookingID: bookingID,
		OpenedAt:  c.now(),
	}}
	switch kind {
	case models.DialogStatus, models.DialogAssign:
		if _, ok := c.d.Store.Booking(bookingID); !ok {
			return models.DialogState{}, domain.E(domain.KindNotFound, op, fmt.Sprintf("booking %s not found", bookingID))
		}
	case models.DialogContract:
		d.session = c.d.Pipeline.NewSession()
	default:
		return models.DialogState{}, domain.E(domain.KindNotFound, op, fmt.Sprintf("unknown dialog kind %q", kind))
	}

	c.mu.Lock()
	c.dialogs[d.state.ID] = d
	c.mu.Unlock()

	c.persist(ctx, d)
	c.logger.Debug().Str("dialog_id", d.state.ID).Str("kind", string(kind)).Str("booking_id", bookingID).Msg("dialog opened")
	return d.snapshot(), nil
}

// Close dismisses a dialog. Requests still in flight keep running but their
// responses no longer reach the dialog; owned blobs are released now.
func (c *Controller) Close(ctx context.Context, id string) error {
	c.mu.Lock()
	d, ok := c.dialogs[id]
	delete(c.dialogs, id)
	c.mu.Unlock()
	if !ok {
		return domain.E(domain.KindNotFound, "dialog.close", "dialog not found")
	}

	d.closed.Store(true)
	if d.session != nil {
		d.session.Close()
	}
	if c.d.Repo != nil {
		if err := c.d.Repo.ClearDialog(ctx, id); err != nil {
			c.logger.Warn().Err(err).Str("dialog_id", id).Msg("failed to clear dialog state")
		}
	}
	c.logger.Debug().Str("dialog_id", id).Msg("dialog closed")
	return nil
}

// CloseIdle closes dialogs opened more than maxAge ago and returns how many.
func (c *Controller) CloseIdle(ctx context.Context, maxAge time.Duration) int {
	cutoff := c.now().Add(-maxAge)
	var stale []string
	c.mu.Lock()
	for id, d := range c.dialogs {
		if d.snapshot().OpenedAt.Before(cutoff) && !d.inFlight.Load() {
			stale = append(stale, id)
		}
	}
	c.mu.Unlock()

	n := 0
	for _, id := range stale {
		if c.Close(ctx, id) == nil {
			n++
		}
	}
	return n
}

// Dialog returns the current state of an open dialog.
func (c *Controller) Dialog(id string) (models.DialogState, error) {
	d, err := c.lookup(id, "", "dialog.get")
	if err != nil {
		return models.DialogState{}, err
	}
	return d.snapshot(), nil
}

// OpenCount is the number of dialogs currently open.
func (c *Controller) OpenCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dialogs)
}

// ApplyFilters derives the visible list from the current store snapshot.
func (c *Controller) ApplyFilters(criteria filter.Criteria) []models.Booking {
	if criteria.CartLabel == "" {
		criteria.CartLabel = c.d.CartLabel
	}
	return filter.ApplyFilters(c.d.Store.Bookings(), criteria)
}

// TabCounts returns per-tab totals for the current query.
func (c *Controller) TabCounts(query string) [filter.TabMax + 1]int {
	return filter.TabCounts(c.d.Store.Bookings(), query, c.d.CartLabel)
}

func (c *Controller) lookup(id string, kind models.DialogKind, op string) (*dialog, error) {
	c.mu.Lock()
	d, ok := c.dialogs[id]
	c.mu.Unlock()
	if !ok {
		return nil, domain.E(domain.KindNotFound, op, "dialog not found")
	}
	if kind != "" && d.state.Kind != kind {
		return nil, domain.E(domain.KindNotFound, op, fmt.Sprintf("dialog %s is not a %s dialog", id, kind))
	}
	return d, nil
}

// begin claims the dialog's in-flight slot. The returned func releases it.
func (c *Controller) begin(id string, kind models.DialogKind, op string) (*dialog, func(), error) {
	d, err := c.lookup(id, kind, op)
	if err != nil {
		return nil, nil, err
	}
	if !d.inFlight.CompareAndSwap(false, true) {
		return nil, nil, domain.E(domain.KindBusy, op, "another request is already running for this dialog")
	}
	return d, func() { d.inFlight.Store(false) }, nil
}

func (c *Controller) persist(ctx context.Context, d *dialog) {
	if c.d.Repo == nil || d.closed.Load() {
		return
	}
	st := d.snapshot()
	if err := c.d.Repo.SetDialog(ctx, &st); err != nil {
		c.logger.Warn().Err(err).Str("dialog_id", st.ID).Msg("failed to persist dialog state")
	}
}

func (c *Controller) booking(id, op string) (models.Booking, error) {
	b, ok := c.d.Store.Booking(id)
	if !ok {
		return models.Booking{}, domain.E(domain.KindNotFound, op, fmt.Sprintf("booking %s not found", id))
	}
	return b, nil
}

func (c *Controller) refresh(ctx context.Context, cred domain.Credential) {
	if err := c.d.Store.Refresh(ctx, cred); err != nil {
		c.logger.Warn().Err(err).Msg("store refresh after workflow failed")
	}
}
