package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBusFanOut(t *testing.T) {
	bus := NewEventBus()
	a := bus.Subscribe()
	b := bus.Subscribe()

	bus.Publish(Event{Session: "s1", Action: "MAP_READY"})

	assert.Equal(t, "s1", (<-a).Session)
	assert.Equal(t, "s1", (<-b).Session)

	bus.Unsubscribe(a)
	_, open := <-a
	assert.False(t, open)

	bus.Unsubscribe(b)
}

func TestEventBusSkipsSlowSubscriber(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	for i := 0; i < 20; i++ {
		bus.Publish(Event{Action: "X"})
	}
	assert.Len(t, ch, cap(ch))
}
