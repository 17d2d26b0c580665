package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRunEventBusDeliversToQueueSubscribers(t *testing.T) {
	bus := NewRunEventBus(nil, nil, "", testLogger())

	events, cancel := bus.Subscribe("Q1")
	defer cancel()
	other, cancelOther := bus.Subscribe("Q2")
	defer cancelOther()

	bus.Publish(context.Background(), RunEvent{Type: RunEventProgress, QueueID: "Q1", Done: 1, Total: 2})

	select {
	case event := <-events:
		require.Equal(t, 1, event.Done)
		require.False(t, event.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("expected event for Q1")
	}

	select {
	case <-other:
		t.Fatal("Q2 subscriber must not receive Q1 events")
	default:
	}
}

func TestRunEventBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewRunEventBus(nil, nil, "", testLogger())
	events, cancel := bus.Subscribe("Q1")
	cancel()
	cancel()

	_, open := <-events
	require.False(t, open)
}

func TestRunEventBusFansOutOverRedis(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	publisher := NewRunEventBus(client, nil, "judge", testLogger())
	listener := NewRunEventBus(client, nil, "judge", testLogger())
	listener.Start(ctx)

	events, unsubscribe := listener.Subscribe("Q1")
	defer unsubscribe()

	// Wait until the listener's subscription is registered.
	require.Eventually(t, func() bool {
		return len(server.PubSubChannels("judge:runs")) == 1
	}, time.Second, 5*time.Millisecond)

	publisher.Publish(ctx, RunEvent{Type: RunEventFinished, QueueID: "Q1", Status: RunStatusCompleted, Done: 3, Total: 3})

	select {
	case event := <-events:
		require.Equal(t, RunEventFinished, event.Type)
		require.Equal(t, RunStatusCompleted, event.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("expected remote event")
	}
}
