package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type testEvent struct {
	name  string
	value int
}

func (e testEvent) EventName() string { return e.name }

func TestBusRoutesByName(t *testing.T) {
	bus := NewBus[testEvent]()

	var got []string
	bus.Listen("a", func(e testEvent) { got = append(got, "a") })
	bus.Listen("b", func(e testEvent) { got = append(got, "b") })
	bus.Listen("", func(e testEvent) { got = append(got, "*"+e.name) })

	bus.Publish(testEvent{name: "a"})
	bus.Publish(testEvent{name: "c"})

	assert.Equal(t, []string{"a", "*a", "*c"}, got)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus[testEvent]()

	count := 0
	cancel := bus.Listen("a", func(e testEvent) { count++ })
	bus.Publish(testEvent{name: "a"})
	cancel()
	bus.Publish(testEvent{name: "a"})

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, bus.Len())
}

func TestBusHandlerMayPublish(t *testing.T) {
	bus := NewBus[testEvent]()

	var got []int
	bus.Listen("first", func(e testEvent) {
		got = append(got, e.value)
		bus.Publish(testEvent{name: "second", value: e.value + 1})
	})
	bus.Listen("second", func(e testEvent) { got = append(got, e.value) })

	bus.Publish(testEvent{name: "first", value: 1})
	assert.Equal(t, []int{1, 2}, got)
}
