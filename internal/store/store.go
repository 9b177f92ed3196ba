package store

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"camrent/internal/config"
	"camrent/internal/domain"
	"camrent/internal/models"

	"github.com/rs/zerolog"
)

// Store holds the last fetched bookings and staff. The backend owns both; the
// store never mutates them locally, it only replaces the snapshot on Refresh.
type Store struct {
	gw        domain.Gateway
	endpoints config.EndpointsConfig
	retry     RetryPolicy
	logger    *zerolog.Logger
	sleep     func(context.Context, time.Duration) error

	mu          sync.RWMutex
	bookings    []models.Booking
	index       map[string]int
	staff       []models.Staff
	refreshedAt time.Time
}

func New(gw domain.Gateway, endpoints config.EndpointsConfig, retry RetryPolicy, logger *zerolog.Logger) *Store {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = models.RefreshMaxAttempts
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Store{
		gw:        gw,
		endpoints: endpoints,
		retry:     retry,
		logger:    logger,
		sleep:     sleepCtx,
		index:     make(map[string]int),
	}
}

// Refresh refetches bookings and staff. The snapshot is swapped only when both
// calls succeed. Transport failures are retried with backoff; backend
// rejections and missing credentials are returned immediately.
func (s *Store) Refresh(ctx context.Context, cred domain.Credential) error {
	var (
		bookings []models.Booking
		staff    []models.Staff
	)
	err := s.withRetry(ctx, func() error {
		bookings = nil
		return s.gw.DoJSON(domain.WithOp(ctx, "store.bookings"), cred, http.MethodGet, s.endpoints.Bookings, nil, nil, &bookings)
	})
	if err != nil {
		return err
	}
	err = s.withRetry(ctx, func() error {
		staff = nil
		return s.gw.DoJSON(domain.WithOp(ctx, "store.staffs"), cred, http.MethodGet, s.endpoints.Staffs, nil, nil, &staff)
	})
	if err != nil {
		return err
	}

	index := make(map[string]int, len(bookings))
	for i := range bookings {
		b := &bookings[i]
		if b.LabelMismatch() {
			s.logger.Warn().
				Str("booking_id", b.ID).
				Str("status", b.StatusCode).
				Str("label", b.StatusLabel).
				Msg("backend status disagrees with label, using label")
		}
		index[b.ID] = i
	}

	s.mu.Lock()
	s.bookings = bookings
	s.index = index
	s.staff = staff
	s.refreshedAt = time.Now()
	s.mu.Unlock()

	s.logger.Debug().Int("bookings", len(bookings)).Int("staff", len(staff)).Msg("store refreshed")
	return nil
}

func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, domain.ErrNetworkUnavailable) {
			return err
		}
		if attempt == s.retry.MaxAttempts {
			break
		}
		delay := s.retry.NextDelay(attempt)
		s.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("store refresh failed")
		if serr := s.sleep(ctx, delay); serr != nil {
			return err
		}
	}
	return err
}

// Bookings returns a deep copy of the snapshot in backend order.
func (s *Store) Bookings() []models.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Booking, len(s.bookings))
	for i, b := range s.bookings {
		out[i] = b.Clone()
	}
	return out
}

func (s *Store) Booking(id string) (models.Booking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return models.Booking{}, false
	}
	return s.bookings[i].Clone(), true
}

func (s *Store) Staff() []models.Staff {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Staff(nil), s.staff...)
}

func (s *Store) RefreshedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshedAt
}
