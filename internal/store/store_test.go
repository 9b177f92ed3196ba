package store

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"camrent/internal/config"
	"camrent/internal/domain"
	"camrent/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) DoJSON(ctx context.Context, cred domain.Credential, method, path string, query url.Values, body, out any) error {
	return m.Called(ctx, cred, method, path, query, body, out).Error(0)
}

func (m *mockGateway) GetBinary(ctx context.Context, cred domain.Credential, path string) (*domain.BinaryResponse, error) {
	args := m.Called(ctx, cred, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BinaryResponse), args.Error(1)
}

var cred = domain.Credential{Token: "t"}

func newTestStore(gw domain.Gateway) *Store {
	endpoints := config.EndpointsConfig{Bookings: "/Bookings", Staffs: "/Staffs"}
	logger := zerolog.New(io.Discard)
	s := New(gw, endpoints, RetryPolicy{InitialDelay: time.Millisecond}, &logger)
	s.sleep = func(context.Context, time.Duration) error { return nil }
	return s
}

func returnBookings(bookings []models.Booking) func(mock.Arguments) {
	return func(args mock.Arguments) {
		*args.Get(6).(*[]models.Booking) = bookings
	}
}

func returnStaff(staff []models.Staff) func(mock.Arguments) {
	return func(args mock.Arguments) {
		*args.Get(6).(*[]models.Staff) = staff
	}
}

func TestStoreRefresh(t *testing.T) {
	gw := new(mockGateway)
	s := newTestStore(gw)
	ctx := context.Background()

	bookings := []models.Booking{
		{ID: "B1", StatusLabel: models.LabelPending},
		{ID: "B2", StatusLabel: models.LabelConfirmed, StatusCode: "Cancelled"},
	}
	staff := []models.Staff{{ID: "S1", Name: "Lan"}}

	gw.On("DoJSON", mock.Anything, cred, http.MethodGet, "/Bookings", mock.Anything, nil, mock.Anything).
		Run(returnBookings(bookings)).Return(nil).Once()
	gw.On("DoJSON", mock.Anything, cred, http.MethodGet, "/Staffs", mock.Anything, nil, mock.Anything).
		Run(returnStaff(staff)).Return(nil).Once()

	require.NoError(t, s.Refresh(ctx, cred))
	gw.AssertExpectations(t)

	assert.Len(t, s.Bookings(), 2)
	assert.Equal(t, staff, s.Staff())
	assert.False(t, s.RefreshedAt().IsZero())

	b, ok := s.Booking("B2")
	require.True(t, ok)
	assert.Equal(t, models.StatusConfirmed, b.Status())

	_, ok = s.Booking("nope")
	assert.False(t, ok)
}

func TestStoreSnapshotIsCopy(t *testing.T) {
	gw := new(mockGateway)
	s := newTestStore(gw)

	gw.On("DoJSON", mock.Anything, cred, http.MethodGet, "/Bookings", mock.Anything, nil, mock.Anything).
		Run(returnBookings([]models.Booking{{ID: "B1", Items: []models.RentedItem{{Name: "Sony A7"}}}})).Return(nil)
	gw.On("DoJSON", mock.Anything, cred, http.MethodGet, "/Staffs", mock.Anything, nil, mock.Anything).
		Run(returnStaff(nil)).Return(nil)
	require.NoError(t, s.Refresh(context.Background(), cred))

	got := s.Bookings()
	got[0].Items[0].Name = "mutated"
	assert.Equal(t, "Sony A7", s.Bookings()[0].Items[0].Name)
}

func TestStoreRefreshRetriesNetworkErrors(t *testing.T) {
	gw := new(mockGateway)
	s := newTestStore(gw)
	netErr := domain.E(domain.KindNetworkUnavailable, "store.bookings", "backend unreachable")

	gw.On("DoJSON", mock.Anything, cred, http.MethodGet, "/Bookings", mock.Anything, nil, mock.Anything).
		Return(netErr).Twice()
	gw.On("DoJSON", mock.Anything, cred, http.MethodGet, "/Bookings", mock.Anything, nil, mock.Anything).
		Run(returnBookings([]models.Booking{{ID: "B1"}})).Return(nil).Once()
	gw.On("DoJSON", mock.Anything, cred, http.MethodGet, "/Staffs", mock.Anything, nil, mock.Anything).
		Run(returnStaff(nil)).Return(nil).Once()

	require.NoError(t, s.Refresh(context.Background(), cred))
	gw.AssertNumberOfCalls(t, "DoJSON", 4)
	assert.Len(t, s.Bookings(), 1)
}

func TestStoreRefreshGivesUpAfterMaxAttempts(t *testing.T) {
	gw := new(mockGateway)
	s := newTestStore(gw)
	netErr := domain.E(domain.KindNetworkUnavailable, "store.bookings", "backend unreachable")

	gw.On("DoJSON", mock.Anything, cred, http.MethodGet, "/Bookings", mock.Anything, nil, mock.Anything).Return(netErr)

	err := s.Refresh(context.Background(), cred)
	assert.ErrorIs(t, err, domain.ErrNetworkUnavailable)
	gw.AssertNumberOfCalls(t, "DoJSON", models.RefreshMaxAttempts)
}

func TestStoreRefreshDoesNotRetryRejections(t *testing.T) {
	gw := new(mockGateway)
	s := newTestStore(gw)

	gw.On("DoJSON", mock.Anything, cred, http.MethodGet, "/Bookings", mock.Anything, nil, mock.Anything).
		Run(returnBookings([]models.Booking{{ID: "old"}})).Return(nil).Once()
	gw.On("DoJSON", mock.Anything, cred, http.MethodGet, "/Staffs", mock.Anything, nil, mock.Anything).
		Run(returnStaff(nil)).Return(nil).Once()
	require.NoError(t, s.Refresh(context.Background(), cred))

	gw.On("DoJSON", mock.Anything, cred, http.MethodGet, "/Bookings", mock.Anything, nil, mock.Anything).
		Run(returnBookings([]models.Booking{{ID: "new"}})).Return(nil).Once()
	gw.On("DoJSON", mock.Anything, cred, http.MethodGet, "/Staffs", mock.Anything, nil, mock.Anything).
		Return(domain.E(domain.KindRemoteRejected, "store.staffs", "forbidden")).Once()

	err := s.Refresh(context.Background(), cred)
	assert.ErrorIs(t, err, domain.ErrRemoteRejected)

	// snapshot untouched on partial failure
	_, ok := s.Booking("old")
	assert.True(t, ok)
	_, ok = s.Booking("new")
	assert.False(t, ok)
}

func TestRetryPolicyNextDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, BackoffFactor: 2}
	assert.Equal(t, 100*time.Millisecond, p.NextDelay(0))
	assert.Equal(t, 100*time.Millisecond, p.NextDelay(1))
	assert.Equal(t, 200*time.Millisecond, p.NextDelay(2))
	assert.Equal(t, 300*time.Millisecond, p.NextDelay(3))

	assert.Equal(t, 200*time.Millisecond, RetryPolicy{}.NextDelay(1))
}

func TestSleepCtxCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}
