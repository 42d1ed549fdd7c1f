package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	name   string
	err    error
	titles []string
}

func (s *recordingSender) Send(_ context.Context, title, _ string) error {
	if s.err != nil {
		return s.err
	}
	s.titles = append(s.titles, title)
	return nil
}

func (s *recordingSender) Name() string { return s.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFansOutToAllSenders(t *testing.T) {
	a := &recordingSender{name: "telegram"}
	b := &recordingSender{name: "discord"}
	n := New([]Sender{a, b}, nil, testLogger())

	require.NoError(t, n.Notify(context.Background(), EventPositionOpened, "Position opened", "BTC-USD buy"))
	assert.Equal(t, []string{"Position opened"}, a.titles)
	assert.Equal(t, []string{"Position opened"}, b.titles)
}

func TestNotifyFiltersDisallowedEvents(t *testing.T) {
	s := &recordingSender{name: "telegram"}
	n := New([]Sender{s}, []string{EventBreakerActivated}, testLogger())

	require.NoError(t, n.Notify(context.Background(), EventPositionOpened, "Position opened", "msg"))
	assert.Empty(t, s.titles)

	require.NoError(t, n.Notify(context.Background(), EventBreakerActivated, "Breaker tripped", "msg"))
	assert.Equal(t, []string{"Breaker tripped"}, s.titles)
}

func TestNotifyOneFailingSenderDoesNotBlockOthers(t *testing.T) {
	bad := &recordingSender{name: "telegram", err: errors.New("api down")}
	good := &recordingSender{name: "discord"}
	n := New([]Sender{bad, good}, nil, testLogger())

	err := n.Notify(context.Background(), EventPositionClosed, "Position closed", "msg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
	assert.Equal(t, []string{"Position closed"}, good.titles)
}

func TestNotifyNoSendersIsNoop(t *testing.T) {
	n := New(nil, nil, testLogger())
	assert.NoError(t, n.Notify(context.Background(), EventPositionOpened, "t", "m"))
}
