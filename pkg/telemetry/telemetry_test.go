package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoopDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		Noop.Emit(Event{Name: ClaimAttempt})
	})
}

func TestMultiFansOutInOrder(t *testing.T) {
	var order []string
	a := HookFunc(func(e Event) { order = append(order, "a:"+string(e.Name)) })
	b := HookFunc(func(e Event) { order = append(order, "b:"+string(e.Name)) })

	Multi(a, b, nil).Emit(Event{Name: ClaimWon})

	assert.Equal(t, []string{"a:claim.won", "b:claim.won"}, order)
}

func TestDefaultSinkHandlesEmptyEvent(t *testing.T) {
	assert.NotPanics(t, func() {
		DefaultSink().Emit(Event{Name: HealthSnapshot})
	})
}
