package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetassign/infra/logger"
	"github.com/kilianp07/fleetassign/internal/eventbus"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, n Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func TestDispatcherDelivers(t *testing.T) {
	m := &mockNotifier{}
	var wg sync.WaitGroup
	wg.Add(2)
	m.On("Notify", mock.Anything, mock.MatchedBy(func(n Notification) bool { return n.Recipient == "op1" })).
		Return(nil).Run(func(mock.Arguments) { wg.Done() })
	m.On("Notify", mock.Anything, mock.MatchedBy(func(n Notification) bool { return n.Recipient == "client1" })).
		Return(errors.New("smtp down")).Run(func(mock.Arguments) { wg.Done() })

	d := NewDispatcher(m, Config{Workers: 1, QueueSize: 4}, logger.NopLogger{})
	require.NoError(t, d.Notify(context.Background(), Notification{Recipient: "op1", Kind: KindMissionAssigned}))
	require.NoError(t, d.Notify(context.Background(), Notification{Recipient: "client1", Kind: KindOrderAssigned}))
	wg.Wait()
	require.NoError(t, d.Close(context.Background()))
	m.AssertNumberOfCalls(t, "Notify", 2)

	assert.ErrorIs(t, d.Notify(context.Background(), Notification{}), ErrClosed)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	blocking := NotifierFunc(func(ctx context.Context, n Notification) error {
		started <- struct{}{}
		<-release
		return nil
	})
	d := NewDispatcher(blocking, Config{Workers: 1, QueueSize: 1, TimeoutMS: 5000}, logger.NopLogger{})
	require.NoError(t, d.Notify(context.Background(), Notification{Recipient: "a"}))
	<-started
	require.NoError(t, d.Notify(context.Background(), Notification{Recipient: "b"}))
	assert.ErrorIs(t, d.Notify(context.Background(), Notification{Recipient: "c"}), ErrQueueFull)
	close(release)
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcherNotifyNeverBlocks(t *testing.T) {
	slow := NotifierFunc(func(ctx context.Context, n Notification) error {
		<-ctx.Done()
		return ctx.Err()
	})
	d := NewDispatcher(slow, Config{Workers: 1, QueueSize: 1, TimeoutMS: 20}, logger.NopLogger{})
	start := time.Now()
	for i := 0; i < 10; i++ {
		_ = d.Notify(context.Background(), Notification{Recipient: "x"})
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
}

func TestMultiJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	ok := NotifierFunc(func(context.Context, Notification) error { calls++; return nil })
	bad := NotifierFunc(func(context.Context, Notification) error { calls++; return boom })
	err := Multi{bad, ok}.Notify(context.Background(), Notification{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestBusNotifierPublishes(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()
	sub := bus.Subscribe()
	n := Notification{Recipient: "op1", OrderID: "o1"}
	require.NoError(t, NewBusNotifier(bus).Notify(context.Background(), n))
	got := <-sub
	assert.Equal(t, n, got)
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, 2, c.Workers)
	assert.Equal(t, 128, c.QueueSize)
	assert.Equal(t, 2*time.Second, c.Timeout())
	require.Len(t, c.Sinks, 1)
	assert.Equal(t, "log", c.Sinks[0].Type)
	assert.Error(t, Config{RatePerSecond: -1}.Validate())
}
