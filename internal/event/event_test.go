package event_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/edusync/internal/domain"
	"github.com/victornm/edusync/internal/event"
)

func TestBus_PublishSubscribe(t *testing.T) {
	var (
		saved   = domain.EventResultSaved{Result: domain.Result{ResultID: uuid.New()}}
		deleted = domain.EventResultDeleted{Result: domain.Result{ResultID: uuid.New()}}
	)

	type (
		inputs struct {
			published   []event.Event
			subscribers []subscriber
		}

		outputs struct {
			received map[string][]event.Event
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"a subscriber should only receive events it subscribed to": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{saved, deleted},
					subscribers: []subscriber{
						{name: "leaderboard", subscribeTo: []string{domain.EventNameResultSaved}},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{saved}, out.received["leaderboard"])
			},
		},

		"an event should be dispatched to all subscribers": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{deleted},
					subscribers: []subscriber{
						{name: "s1", subscribeTo: []string{domain.EventNameResultDeleted}},
						{name: "s2", subscribeTo: []string{domain.EventNameResultDeleted}},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{deleted}, out.received["s1"])
				assert.ElementsMatch(t, []event.Event{deleted}, out.received["s2"])
			},
		},

		"repeated events should all be dispatched": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{saved, deleted, saved},
					subscribers: []subscriber{
						{name: "s1", subscribeTo: []string{domain.EventNameResultSaved, domain.EventNameResultDeleted}},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{saved, saved, deleted}, out.received["s1"])
			},
		},

		"events without subscribers are dropped": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{saved},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.Empty(t, out.received)
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tt.arrange()
			mu := sync.Mutex{}
			out := outputs{received: make(map[string][]event.Event)}

			b := event.NewBus()
			for _, s := range in.subscribers {
				for _, e := range s.subscribeTo {
					b.Subscribe(e, func(ctx context.Context, e event.Event) error {
						mu.Lock()
						out.received[s.name] = append(out.received[s.name], e)
						mu.Unlock()
						return nil
					})
				}
			}

			for _, e := range in.published {
				b.Publish(context.Background(), e)
			}
			b.Stop()

			tt.assert(t, out)
		})
	}
}

func TestBus_HandlerIsolation(t *testing.T) {
	t.Run("a panicking handler does not affect other handlers", func(t *testing.T) {
		var calls atomic.Int32

		b := event.NewBus()
		b.Subscribe(domain.EventNameResultSaved, func(context.Context, event.Event) error {
			panic("boom")
		})
		b.Subscribe(domain.EventNameResultSaved, func(context.Context, event.Event) error {
			calls.Add(1)
			return nil
		})

		b.Publish(context.Background(), domain.EventResultSaved{})
		b.Stop()

		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("handlers outlive the publisher's context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		var handlerErr error
		b := event.NewBus()
		b.Subscribe(domain.EventNameResultSaved, func(ctx context.Context, _ event.Event) error {
			handlerErr = ctx.Err()
			return nil
		})

		cancel()
		b.Publish(ctx, domain.EventResultSaved{})
		b.Stop()

		require.NoError(t, handlerErr)
	})

	t.Run("handler context is bounded by the configured timeout", func(t *testing.T) {
		var handlerErr error
		b := event.NewBus(event.WithTimeout(10 * time.Millisecond))
		b.Subscribe(domain.EventNameResultSaved, func(ctx context.Context, _ event.Event) error {
			<-ctx.Done()
			handlerErr = ctx.Err()
			return nil
		})

		b.Publish(context.Background(), domain.EventResultSaved{})
		b.Stop()

		require.ErrorIs(t, handlerErr, context.DeadlineExceeded)
	})

	t.Run("pool size limits concurrent handlers", func(t *testing.T) {
		var running, peak atomic.Int32

		b := event.NewBus(event.WithPoolSize(2))
		b.Subscribe(domain.EventNameResultSaved, func(context.Context, event.Event) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		})

		for i := 0; i < 10; i++ {
			b.Publish(context.Background(), domain.EventResultSaved{})
		}
		b.Stop()

		assert.LessOrEqual(t, peak.Load(), int32(2))
	})
}

type subscriber struct {
	name        string
	subscribeTo []string
}
