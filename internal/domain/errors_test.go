package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	err := E(KindRemoteRejected, "status.confirm", "booking already confirmed")
	wrapped := fmt.Errorf("dialog: %w", err)

	assert.True(t, errors.Is(wrapped, ErrRemoteRejected))
	assert.False(t, errors.Is(wrapped, ErrNetworkUnavailable))
	assert.Equal(t, KindRemoteRejected, KindOf(wrapped))
	assert.Equal(t, "booking already confirmed", MessageOf(wrapped))
	assert.Equal(t, "status.confirm: RemoteRejected: booking already confirmed", err.Error())
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.Equal(t, "boom", MessageOf(errors.New("boom")))
	assert.Equal(t, "", MessageOf(nil))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &Error{Kind: KindNetworkUnavailable, Op: "gateway.get", Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}
