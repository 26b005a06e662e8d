package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/engine"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/feeder"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/session"
)

func TestSubscriber_Subject(t *testing.T) {
	s := newSubscriber(nil, "viz.measurements.", nil)
	assert.Equal(t, "viz.measurements.sim-42", s.Subject("sim-42"))

	tests := []struct {
		subject string
		id      string
		ok      bool
	}{
		{"viz.measurements.sim-42", "sim-42", true},
		{"viz.measurements.", "", false},
		{"viz.measurements.a.b", "", false},
		{"other.sim-42", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			id, ok := s.simulationID(tt.subject)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestSubscriber_HandleFansOutBySimulation(t *testing.T) {
	reg := session.NewRegistry(context.Background(), session.RegistryOptions{})
	t.Cleanup(reg.CloseAll)

	var patched []session.Event
	events := make(chan session.Event, 64)
	reg.SetSink(func(_ string, ev session.Event) { events <- ev })

	ctx := context.Background()
	watched := reg.Create("sample", "sim-1")
	require.NoError(t, watched.SetMaps(ctx, feeder.NewSampleMaps()))
	require.NoError(t, watched.LoadModel(ctx, feeder.NewSampleModel()))
	reg.Create("sample", "sim-2")

	s := newSubscriber(nil, "viz.measurements", reg)

	n := s.handle("viz.measurements.sim-1",
		[]byte(`[{"conductingEquipmentMRID":"_SW1","type":"TAP","value":0}]`))
	assert.Equal(t, 1, n)

	assert.Equal(t, 0, s.handle("viz.measurements.sim-1", []byte(`not json`)))
	assert.Equal(t, 0, s.handle("viz.measurements.sim-9", []byte(`{"type":"TAP"}`)))

	timeout := time.After(time.Second)
	for len(patched) == 0 {
		select {
		case ev := <-events:
			if ev.Type == session.EventPatch {
				patched = append(patched, ev)
			}
		case <-timeout:
			t.Fatal("no patch event")
		}
	}
	assert.NotEmpty(t, patched[0].Patches)
	assert.IsType(t, engine.Patch{}, patched[0].Patches[0])
}
