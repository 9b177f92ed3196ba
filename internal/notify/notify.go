package notify

import (
	"context"
	"sync"
	"time"

	"camrent/internal/domain"
	"camrent/internal/models"

	"github.com/rs/zerolog"
)

// Log writes notices to the structured log.
type Log struct {
	logger *zerolog.Logger
}

func NewLog(logger *zerolog.Logger) *Log {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, n domain.Notice) {
	var ev *zerolog.Event
	switch n.Level {
	case domain.NoticeError:
		ev = l.logger.Error()
	case domain.NoticeWarning:
		ev = l.logger.Warn()
	default:
		ev = l.logger.Info()
	}
	ev.Str("op", n.Op).
		Str("dialog_id", n.DialogID).
		Str("kind", string(n.Kind)).
		Bool("dismissable", n.Dismissable).
		Msg(n.Message)
}

// Inbox keeps the most recent notices in a fixed-size ring so the console can
// poll them. Older notices are overwritten once capacity is reached.
type Inbox struct {
	mu    sync.Mutex
	buf   []domain.Notice
	start int
	size  int
}

func NewInbox(capacity int) *Inbox {
	if capacity <= 0 {
		capacity = models.InboxCapacity
	}
	return &Inbox{buf: make([]domain.Notice, capacity)}
}

func (i *Inbox) Notify(_ context.Context, n domain.Notice) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	end := (i.start + i.size) % len(i.buf)
	i.buf[end] = n
	if i.size < len(i.buf) {
		i.size++
	} else {
		i.start = (i.start + 1) % len(i.buf)
	}
}

// Drain returns the queued notices oldest first and empties the inbox.
func (i *Inbox) Drain() []domain.Notice {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]domain.Notice, 0, i.size)
	for k := 0; k < i.size; k++ {
		out = append(out, i.buf[(i.start+k)%len(i.buf)])
	}
	i.start, i.size = 0, 0
	return out
}

func (i *Inbox) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.size
}

// Multi fans a notice out to every wrapped notifier.
type Multi []domain.Notifier

func (m Multi) Notify(ctx context.Context, n domain.Notice) {
	for _, x := range m {
		if x != nil {
			x.Notify(ctx, n)
		}
	}
}
