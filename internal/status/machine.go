package status

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"camrent/internal/config"
	"camrent/internal/domain"
	"camrent/internal/models"

	"github.com/rs/zerolog"
)

type Action string

const (
	ActionConfirm Action = "confirm"
	ActionCancel  Action = "cancel"
	ActionSet     Action = "set"
)

type Transition struct {
	Action Action
	Target models.Status // only for ActionSet
}

func Confirm() Transition                   { return Transition{Action: ActionConfirm} }
func Cancel() Transition                    { return Transition{Action: ActionCancel} }
func SetStatus(to models.Status) Transition { return Transition{Action: ActionSet, Target: to} }

// To is the state the booking is in after a successful transition.
func (t Transition) To() models.Status {
	switch t.Action {
	case ActionConfirm:
		return models.StatusConfirmed
	case ActionCancel:
		return models.StatusCancelled
	default:
		return t.Target
	}
}

// Result is the post-condition the caller checks after refreshing the store.
type Result struct {
	BookingID     string
	From          models.Status
	To            models.Status
	ExpectedLabel string
}

// Holds reports whether a refreshed booking satisfies the post-condition.
func (r Result) Holds(b models.Booking) bool {
	return b.ID == r.BookingID && b.Status() == r.To
}

// Validate checks a transition against the current state without any I/O.
//
//	confirm: only from PendingApproval
//	cancel:  from anything except Cancelled and Completed
//	set:     target needs a wire name, current is not terminal, target differs
func Validate(current models.Status, t Transition) error {
	op := "status." + string(t.Action)
	switch t.Action {
	case ActionConfirm:
		if current != models.StatusPending {
			return domain.E(domain.KindInvalidTransition, op, fmt.Sprintf("cannot confirm a booking in state %s", current))
		}
	case ActionCancel:
		if current == models.StatusCancelled || current == models.StatusCompleted {
			return domain.E(domain.KindInvalidTransition, op, fmt.Sprintf("cannot cancel a booking in state %s", current))
		}
	case ActionSet:
		if _, ok := t.Target.Wire(); !ok {
			return domain.E(domain.KindInvalidTransition, op, fmt.Sprintf("state %s cannot be set directly", t.Target))
		}
		if current.Terminal() {
			return domain.E(domain.KindInvalidTransition, op, fmt.Sprintf("booking is already %s", current))
		}
		if current == t.Target {
			return domain.E(domain.KindInvalidTransition, op, fmt.Sprintf("booking is already %s", current))
		}
	default:
		return domain.E(domain.KindInvalidTransition, "status", fmt.Sprintf("unknown action %q", t.Action))
	}
	return nil
}

// Machine executes transitions as single update-status requests. It never
// touches local booking state; callers refresh the store on success.
type Machine struct {
	gw       domain.Gateway
	endpoint string
	logger   *zerolog.Logger
}

func NewMachine(gw domain.Gateway, endpoints config.EndpointsConfig, logger *zerolog.Logger) *Machine {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Machine{gw: gw, endpoint: endpoints.UpdateStatus, logger: logger}
}

func (m *Machine) RequestTransition(ctx context.Context, cred domain.Credential, booking models.Booking, t Transition) (*Result, error) {
	from := booking.Status()
	if err := Validate(from, t); err != nil {
		return nil, err
	}

	to := t.To()
	wire, _ := to.Wire()
	op := "status." + string(t.Action)
	path := config.ExpandPath(m.endpoint, booking.ID)

	if err := m.gw.DoJSON(domain.WithOp(ctx, op), cred, http.MethodPut, path, url.Values{"status": {wire}}, nil, nil); err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("booking_id", booking.ID).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("booking status changed")

	return &Result{
		BookingID:     booking.ID,
		From:          from,
		To:            to,
		ExpectedLabel: to.Label(),
	}, nil
}
