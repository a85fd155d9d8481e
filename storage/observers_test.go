package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"orthrus/core"
)

// recordingObserver captures notifications for assertions. The optional
// order log is shared between observers to check notification order.
type recordingObserver struct {
	name      string
	order     *[]string
	events    []core.Event
	attacks   []core.Attack
	responses []core.ResponseRecord
}

func (o *recordingObserver) Name() string { return o.name }

func (o *recordingObserver) EventAdded(event core.Event) {
	if o.order != nil {
		*o.order = append(*o.order, o.name)
	}
	o.events = append(o.events, event)
}

func (o *recordingObserver) AttackAdded(attack core.Attack) {
	o.attacks = append(o.attacks, attack)
}

func (o *recordingObserver) ResponseAdded(response core.ResponseRecord) {
	o.responses = append(o.responses, response)
}

func TestObserversNotifiedOnAdd(t *testing.T) {
	for _, backend := range storeBackends() {
		t.Run(backend.name, func(t *testing.T) {
			events, attacks, responses := backend.setup(t)
			ctx := context.Background()

			observer := &recordingObserver{name: "recorder"}
			events.Attach(observer)
			attacks.Attach(observer)
			responses.Attach(observer)

			ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
			event := testEvent("ev-1", "IE1", "storefront", "alice", ts)
			require.NoError(t, events.AddEvent(ctx, event))

			attack := core.NewAttack(event, core.Threshold{Count: 3, Interval: core.Interval{Duration: 60, Unit: core.UnitSeconds}})
			require.NoError(t, attacks.AddAttack(ctx, attack))

			response := core.NewResponseRecord(attack, core.Response{Action: "logout"})
			require.NoError(t, responses.AddResponse(ctx, response))

			require.Len(t, observer.events, 1)
			assert.Equal(t, "ev-1", observer.events[0].ID)
			require.Len(t, observer.attacks, 1)
			assert.Equal(t, attack.ID, observer.attacks[0].ID)
			require.Len(t, observer.responses, 1)
			assert.Equal(t, response.ID, observer.responses[0].ID)
		})
	}
}

func TestObserversNotifiedInAttachOrder(t *testing.T) {
	events := NewInMemoryEventStore()
	ctx := context.Background()

	var order []string
	events.Attach(&recordingObserver{name: "first", order: &order})
	events.Attach(&recordingObserver{name: "second", order: &order})

	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, events.AddEvent(ctx, testEvent("ev-1", "IE1", "storefront", "alice", ts)))

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestObserverSeesOnlyAdditionsAfterAttach(t *testing.T) {
	events := NewInMemoryEventStore()
	ctx := context.Background()

	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, events.AddEvent(ctx, testEvent("ev-1", "IE1", "storefront", "alice", ts)))

	late := &recordingObserver{name: "late"}
	events.Attach(late)
	require.NoError(t, events.AddEvent(ctx, testEvent("ev-2", "IE1", "storefront", "alice", ts.Add(time.Minute))))

	require.Len(t, late.events, 1)
	assert.Equal(t, "ev-2", late.events[0].ID)
}

func TestLoggingObserver(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	observer := NewLoggingObserver(logger)

	assert.Equal(t, ImplLoggingObserver, observer.Name())

	event := core.NewEvent("IE1", "storefront", "alice")
	attack := core.NewAttack(event, core.Threshold{Count: 5, Interval: core.Interval{Duration: 10, Unit: core.UnitMinutes}})
	response := core.NewResponseRecord(attack, core.Response{Action: "log"})

	// Must not panic; output goes through the test logger.
	observer.EventAdded(*event)
	observer.AttackAdded(*attack)
	observer.ResponseAdded(*response)
}

func TestMetricsObserver(t *testing.T) {
	observer := NewMetricsObserver()

	assert.Equal(t, ImplMetricsObserver, observer.Name())

	event := core.NewEvent("IE1", "storefront", "alice")
	attack := core.NewAttack(event, core.Threshold{Count: 5, Interval: core.Interval{Duration: 10, Unit: core.UnitMinutes}})
	response := core.NewResponseRecord(attack, core.Response{Action: "log"})

	// Counters are process-global; the assertion is that counting works at
	// all, not the absolute values.
	observer.EventAdded(*event)
	observer.AttackAdded(*attack)
	observer.ResponseAdded(*response)
}
