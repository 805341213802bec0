package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	events []Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestNewEvent(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))
	ev := NewEvent(TypePatientCreated, "Ref001", "New", "desk", at)

	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, TypePatientCreated, ev.Type)
	assert.Equal(t, "Ref001", ev.RefID)
	assert.Equal(t, time.UTC, ev.OccurredAt.Location())
	assert.True(t, at.Equal(ev.OccurredAt))

	other := NewEvent(TypePatientCreated, "Ref001", "New", "desk", at)
	assert.NotEqual(t, ev.EventID, other.EventID)
}

func TestMultiPublisher_FansOutAndJoinsErrors(t *testing.T) {
	errA := errors.New("redis down")
	errB := errors.New("broker down")
	a := &recordingPublisher{err: errA}
	b := &recordingPublisher{}
	c := &recordingPublisher{err: errB}

	err := MultiPublisher{a, b, c}.Publish(context.Background(), NewEvent(TypePatientStatusUpdated, "Ref002", "Cleared", "", time.Now()))
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
	assert.Len(t, c.events, 1)
}

func TestCombine(t *testing.T) {
	assert.IsType(t, NopPublisher{}, Combine())
	assert.IsType(t, NopPublisher{}, Combine(nil, nil))

	one := &recordingPublisher{}
	assert.Same(t, one, Combine(nil, one))

	multi := Combine(one, &recordingPublisher{})
	assert.IsType(t, MultiPublisher{}, multi)
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), Event{}))
}
