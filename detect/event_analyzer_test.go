package detect

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"orthrus/config"
	"orthrus/core"
	"orthrus/storage"
)

// recordingHandler captures handled responses; actions named in fail are
// refused.
type recordingHandler struct {
	handled []core.ResponseRecord
	fail    map[string]bool
}

func (h *recordingHandler) Handle(_ context.Context, response *core.ResponseRecord) error {
	if h.fail[response.Action] {
		return fmt.Errorf("handler refused %s", response.Action)
	}
	h.handled = append(h.handled, *response)
	return nil
}

// testEngine wires the full analyzer chain over in-memory stores.
type testEngine struct {
	analyzer  *ThresholdEventAnalyzer
	events    *storage.InMemoryEventStore
	attacks   *storage.InMemoryAttackStore
	responses *storage.InMemoryResponseStore
	handler   *recordingHandler
}

func newTestEngine(t *testing.T, cfg *config.ServerConfig) *testEngine {
	t.Helper()
	return newThrottledTestEngine(t, cfg, 0, 1)
}

func newThrottledTestEngine(t *testing.T, cfg *config.ServerConfig, rateLimit, rateBurst int) *testEngine {
	t.Helper()

	logger := zaptest.NewLogger(t).Sugar()
	events := storage.NewInMemoryEventStore()
	attacks := storage.NewInMemoryAttackStore()
	responses := storage.NewInMemoryResponseStore()
	handler := &recordingHandler{}

	responseAnalyzer := NewReferenceResponseAnalyzer(responses, handler, logger)
	attackAnalyzer := NewReferenceAttackAnalyzer(attacks, responseAnalyzer, logger)
	analyzer, err := NewThresholdEventAnalyzer(cfg, events, attackAnalyzer, 64, rateLimit, rateBurst, logger)
	require.NoError(t, err)

	return &testEngine{
		analyzer:  analyzer,
		events:    events,
		attacks:   attacks,
		responses: responses,
		handler:   handler,
	}
}

// thresholdConfig builds a one-point configuration: IE1 trips at count
// events inside ten minutes.
func thresholdConfig(count int, responses ...core.Response) *config.ServerConfig {
	return &config.ServerConfig{
		DetectionPoints: []core.DetectionPoint{
			{
				ID: "IE1",
				Threshold: core.Threshold{
					Count:    count,
					Interval: core.Interval{Duration: 10, Unit: core.UnitMinutes},
				},
				Responses: responses,
			},
		},
	}
}

func eventAt(ts time.Time, detectionPoint, client, username string) *core.Event {
	e := core.NewEvent(detectionPoint, client, username)
	e.Timestamp = ts
	return e
}

func storedAttacks(t *testing.T, engine *testEngine) []core.Attack {
	t.Helper()
	attacks, err := engine.attacks.FindAttacks(context.Background(), storage.SearchCriteria{})
	require.NoError(t, err)
	return attacks
}

func TestThresholdRaisesAttack(t *testing.T) {
	cfg := thresholdConfig(3,
		core.Response{Action: "log"},
		core.Response{Action: "disableUser", Interval: core.Interval{Duration: 30, Unit: core.UnitMinutes}},
	)
	engine := newTestEngine(t, cfg)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(now.Add(-3*time.Second), "IE1", "storefront", "alice")))
	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(now.Add(-2*time.Second), "IE1", "storefront", "alice")))
	assert.Empty(t, storedAttacks(t, engine))

	trigger := eventAt(now.Add(-1*time.Second), "IE1", "storefront", "alice")
	require.NoError(t, engine.analyzer.OnEvent(ctx, trigger))

	attacks := storedAttacks(t, engine)
	require.Len(t, attacks, 1)
	assert.Equal(t, trigger.ID, attacks[0].EventID)
	assert.Equal(t, "alice", attacks[0].Username)
	assert.Equal(t, cfg.DetectionPoints[0].Threshold, attacks[0].Threshold)

	records, err := engine.responses.FindResponses(ctx, storage.SearchCriteria{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "log", records[0].Action)
	assert.Equal(t, core.Interval{}, records[0].Interval)
	assert.Equal(t, "disableUser", records[1].Action)
	assert.Equal(t, core.Interval{Duration: 30, Unit: core.UnitMinutes}, records[1].Interval)

	require.Len(t, engine.handler.handled, 2)
}

func TestEventsOutsideIntervalExpire(t *testing.T) {
	engine := newTestEngine(t, thresholdConfig(3))
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(now.Add(-30*time.Minute), "IE1", "storefront", "alice")))
	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(now.Add(-25*time.Minute), "IE1", "storefront", "alice")))
	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(now.Add(-1*time.Second), "IE1", "storefront", "alice")))
	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(now, "IE1", "storefront", "alice")))

	// The two old events fell out of the ten-minute window.
	assert.Empty(t, storedAttacks(t, engine))

	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(time.Now().UTC(), "IE1", "storefront", "alice")))
	assert.Len(t, storedAttacks(t, engine), 1)
}

func TestAttackResetsCounting(t *testing.T) {
	engine := newTestEngine(t, thresholdConfig(2))
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(now.Add(-2*time.Second), "IE1", "storefront", "alice")))
	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(now.Add(-1*time.Second), "IE1", "storefront", "alice")))
	assert.Len(t, storedAttacks(t, engine), 1)

	// Counting starts over after the attack.
	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(time.Now().UTC(), "IE1", "storefront", "alice")))
	assert.Len(t, storedAttacks(t, engine), 1)

	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(time.Now().UTC(), "IE1", "storefront", "alice")))
	assert.Len(t, storedAttacks(t, engine), 2)
}

func TestCorrelatedClientsCountTogether(t *testing.T) {
	cfg := thresholdConfig(3)
	cfg.CorrelationSets = []core.CorrelationSet{
		{ClientApplications: []string{"storefront", "checkout"}},
	}
	engine := newTestEngine(t, cfg)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(now.Add(-3*time.Second), "IE1", "storefront", "alice")))
	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(now.Add(-2*time.Second), "IE1", "checkout", "alice")))
	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(now.Add(-1*time.Second), "IE1", "storefront", "alice")))

	assert.Len(t, storedAttacks(t, engine), 1)

	// billing is not in the set; its events count in their own window.
	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(time.Now().UTC(), "IE1", "billing", "alice")))
	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(time.Now().UTC(), "IE1", "billing", "alice")))
	assert.Len(t, storedAttacks(t, engine), 1)
}

func TestUsernamesCountSeparately(t *testing.T) {
	engine := newTestEngine(t, thresholdConfig(2))
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(now.Add(-3*time.Second), "IE1", "storefront", "alice")))
	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(now.Add(-2*time.Second), "IE1", "storefront", "bob")))
	assert.Empty(t, storedAttacks(t, engine))

	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(now.Add(-1*time.Second), "IE1", "storefront", "alice")))

	attacks := storedAttacks(t, engine)
	require.Len(t, attacks, 1)
	assert.Equal(t, "alice", attacks[0].Username)
}

func TestUnconfiguredDetectionPointStoredOnly(t *testing.T) {
	engine := newTestEngine(t, thresholdConfig(1))
	ctx := context.Background()

	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(time.Now().UTC(), "XX9", "storefront", "alice")))

	events, err := engine.events.FindEvents(ctx, storage.SearchCriteria{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Empty(t, storedAttacks(t, engine))
}

func TestIntakeThrottling(t *testing.T) {
	engine := newThrottledTestEngine(t, thresholdConfig(10), 1, 1)
	ctx := context.Background()

	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(time.Now().UTC(), "IE1", "storefront", "alice")))

	err := engine.analyzer.OnEvent(ctx, eventAt(time.Now().UTC(), "IE1", "storefront", "alice"))
	require.ErrorIs(t, err, ErrThrottled)

	// The throttled event was never stored.
	events, findErr := engine.events.FindEvents(ctx, storage.SearchCriteria{})
	require.NoError(t, findErr)
	assert.Len(t, events, 1)
}

func TestWindowRebuiltFromStore(t *testing.T) {
	engine := newTestEngine(t, thresholdConfig(3))
	ctx := context.Background()

	// Two matching events already persisted before this analyzer saw
	// anything, as after a restart.
	now := time.Now().UTC()
	require.NoError(t, engine.events.AddEvent(ctx, eventAt(now.Add(-2*time.Second), "IE1", "storefront", "alice")))
	require.NoError(t, engine.events.AddEvent(ctx, eventAt(now.Add(-1*time.Second), "IE1", "storefront", "alice")))

	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(now, "IE1", "storefront", "alice")))
	assert.Len(t, storedAttacks(t, engine), 1)
}

func TestRebuildHonorsStoredAttacks(t *testing.T) {
	engine := newTestEngine(t, thresholdConfig(3))
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 5; i >= 3; i-- {
		require.NoError(t, engine.events.AddEvent(ctx, eventAt(now.Add(-time.Duration(i)*time.Second), "IE1", "storefront", "alice")))
	}
	require.NoError(t, engine.attacks.AddAttack(ctx, &core.Attack{
		ID:                "at-prior",
		EventID:           "ev-prior",
		DetectionPointID:  "IE1",
		ClientApplication: "storefront",
		Username:          "alice",
		Timestamp:         now.Add(-2 * time.Second),
	}))

	// Only the new event postdates the stored attack, so no fresh attack.
	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(now, "IE1", "storefront", "alice")))
	assert.Len(t, storedAttacks(t, engine), 1)
}

func TestReloadAppliesNewConfiguration(t *testing.T) {
	engine := newTestEngine(t, thresholdConfig(5))
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 3; i >= 1; i-- {
		require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(now.Add(-time.Duration(i)*time.Second), "IE1", "storefront", "alice")))
	}
	assert.Empty(t, storedAttacks(t, engine))

	engine.analyzer.Reload(thresholdConfig(2))

	require.NoError(t, engine.analyzer.OnEvent(ctx, eventAt(now, "IE1", "storefront", "alice")))
	assert.Len(t, storedAttacks(t, engine), 1)
}
