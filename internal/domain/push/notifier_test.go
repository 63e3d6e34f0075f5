package push

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNotifier struct {
	err   error
	calls int
}

func (s *stubNotifier) Deliver(_ context.Context, _, _ string) error {
	s.calls++
	return s.err
}

func TestFanout_AnySuccessIsSuccess(t *testing.T) {
	failing := &stubNotifier{err: errors.New("boom")}
	ok := &stubNotifier{}

	err := Fanout{failing, ok}.Deliver(context.Background(), "t", "b")
	require.NoError(t, err)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, ok.calls)
}

func TestFanout_AllFail(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")

	err := Fanout{&stubNotifier{err: first}, &stubNotifier{err: second}}.Deliver(context.Background(), "t", "b")
	require.Error(t, err)
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}

func TestFanout_Empty(t *testing.T) {
	err := Fanout{}.Deliver(context.Background(), "t", "b")
	assert.ErrorIs(t, err, ErrDeliveryFailed)
}
