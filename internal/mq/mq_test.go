package mq

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studyplanner/planner/config"
)

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := New(NewMemoryBus())
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	id, err := bus.Publish(ctx, "timetable.imported", []byte(`{"imported":2}`), map[string]string{"user_id": "u-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got := make(chan Message, 1)
	go func() {
		_ = bus.Subscribe(ctx, "timetable.imported", func(_ context.Context, msg Message) error {
			got <- msg
			return nil
		})
	}()

	select {
	case msg := <-got:
		assert.Equal(t, id, msg.ID)
		assert.Equal(t, `{"imported":2}`, string(msg.Data))
		assert.Equal(t, "u-1", msg.Attributes["user_id"])
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
}

func TestMemoryBus_RedeliversOnce(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := bus.Publish(ctx, "c", []byte("x"), nil)
	require.NoError(t, err)

	var attempts atomic.Int32
	done := make(chan struct{})
	go func() {
		_ = bus.Subscribe(ctx, "c", func(context.Context, Message) error {
			if attempts.Add(1) == 2 {
				close(done)
			}
			return errors.New("handler failed")
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not redelivered")
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestMemoryBus_Closed(t *testing.T) {
	bus := NewMemoryBus()
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	_, err := bus.Publish(context.Background(), "c", []byte("x"), nil)
	assert.Error(t, err)
	assert.Error(t, bus.Subscribe(context.Background(), "c", func(context.Context, Message) error { return nil }))
}

func TestOpen(t *testing.T) {
	bus, err := Open(context.Background(), config.MQConfig{Backend: config.BackendNone})
	require.NoError(t, err)
	assert.Nil(t, bus)

	bus, err = Open(context.Background(), config.MQConfig{Backend: config.BackendMemory})
	require.NoError(t, err)
	require.NotNil(t, bus)
	assert.NoError(t, bus.Close())

	_, err = Open(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.Error(t, err)

	_, err = Open(context.Background(), config.MQConfig{Backend: config.BackendPubSub})
	assert.Error(t, err)
}

func TestHeadersToAttributes(t *testing.T) {
	attrs := headersToAttributes(amqp.Table{"user_id": "u-1", "raw": []byte("b"), "n": int32(3)})
	assert.Equal(t, map[string]string{"user_id": "u-1", "raw": "b", "n": "3"}, attrs)
	assert.Nil(t, headersToAttributes(nil))
}
