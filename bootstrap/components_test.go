package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"orthrus/config"
	"orthrus/core"
	"orthrus/detect"
	"orthrus/respond"
	"orthrus/storage"
)

func inMemoryConfig() *config.ServerConfig {
	return &config.ServerConfig{
		EventAnalyzer:    detect.ImplThresholdEventAnalyzer,
		AttackAnalyzer:   detect.ImplReferenceAttackAnalyzer,
		ResponseAnalyzer: detect.ImplReferenceResponseAnalyzer,
		EventStore:       storage.ImplInMemoryEventStore,
		AttackStore:      storage.ImplInMemoryAttackStore,
		ResponseStore:    storage.ImplInMemoryResponseStore,
		ResponseHandler:  respond.ImplLocalResponseHandler,
		DetectionPoints: []core.DetectionPoint{
			{
				ID: "IE1",
				Threshold: core.Threshold{
					Count:    3,
					Interval: core.Interval{Duration: 10, Unit: core.UnitMinutes},
				},
			},
		},
	}
}

func testSettings(mode config.StartupMode) *config.Settings {
	s := &config.Settings{StartupMode: mode}
	s.Engine.WindowCacheSize = 64
	s.Engine.RateBurst = 1
	return s
}

func newTestRegistry(t *testing.T) *storage.Registry {
	t.Helper()
	return storage.NewRegistry(storage.Backends{}, zaptest.NewLogger(t).Sugar())
}

func TestBuildComponentsInMemory(t *testing.T) {
	c, err := BuildComponents(inMemoryConfig(), testSettings(config.StartupModeStrict),
		newTestRegistry(t), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	assert.IsType(t, &storage.InMemoryEventStore{}, c.Events)
	assert.IsType(t, &storage.InMemoryAttackStore{}, c.Attacks)
	assert.IsType(t, &storage.InMemoryResponseStore{}, c.Responses)
	assert.IsType(t, &respond.LocalResponseHandler{}, c.Handler)
	assert.NotNil(t, c.Analyzer)
}

func TestBuildComponentsWiresAnalysisChain(t *testing.T) {
	cfg := inMemoryConfig()
	cfg.DetectionPoints[0].Responses = []core.Response{{Action: respond.ActionLog}}

	c, err := BuildComponents(cfg, testSettings(config.StartupModeStrict),
		newTestRegistry(t), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Analyzer.OnEvent(ctx, core.NewEvent("IE1", "storefront", "mallory")))
	}

	attacks, err := c.Attacks.FindAttacks(ctx, storage.SearchCriteria{})
	require.NoError(t, err)
	assert.Len(t, attacks, 1)

	responses, err := c.Responses.FindResponses(ctx, storage.SearchCriteria{})
	require.NoError(t, err)
	assert.Len(t, responses, 1)
}

func TestBuildComponentsAttachesObservers(t *testing.T) {
	obsCore, logs := observer.New(zap.InfoLevel)
	sugar := zap.New(obsCore).Sugar()

	cfg := inMemoryConfig()
	cfg.EventStoreObservers = []string{storage.ImplLoggingObserver}

	c, err := BuildComponents(cfg, testSettings(config.StartupModeStrict),
		storage.NewRegistry(storage.Backends{}, sugar), sugar)
	require.NoError(t, err)

	require.NoError(t, c.Events.AddEvent(context.Background(), core.NewEvent("IE1", "storefront", "mallory")))
	assert.Equal(t, 1, logs.FilterMessage("security event recorded").Len())
}

func TestBuildComponentsStrictUnknownStore(t *testing.T) {
	cfg := inMemoryConfig()
	cfg.EventStore = "orthrus/storage.CassandraEventStore"

	_, err := BuildComponents(cfg, testSettings(config.StartupModeStrict),
		newTestRegistry(t), zaptest.NewLogger(t).Sugar())
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrUnknownImplementation)
	assert.Contains(t, err.Error(), "orthrus/storage.CassandraEventStore")
}

func TestBuildComponentsGracefulFallsBackToInMemory(t *testing.T) {
	cfg := inMemoryConfig()
	cfg.EventStore = "orthrus/storage.CassandraEventStore"
	cfg.AttackStore = "orthrus/storage.CassandraAttackStore"
	cfg.ResponseStore = "orthrus/storage.CassandraResponseStore"

	c, err := BuildComponents(cfg, testSettings(config.StartupModeGraceful),
		newTestRegistry(t), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	assert.IsType(t, &storage.InMemoryEventStore{}, c.Events)
	assert.IsType(t, &storage.InMemoryAttackStore{}, c.Attacks)
	assert.IsType(t, &storage.InMemoryResponseStore{}, c.Responses)
}

func TestBuildComponentsStrictUnknownAnalyzer(t *testing.T) {
	cfg := inMemoryConfig()
	cfg.EventAnalyzer = "orthrus/detect.MLEventAnalyzer"

	_, err := BuildComponents(cfg, testSettings(config.StartupModeStrict),
		newTestRegistry(t), zaptest.NewLogger(t).Sugar())
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrUnknownImplementation)
	assert.Contains(t, err.Error(), "orthrus/detect.MLEventAnalyzer")
}

func TestBuildComponentsGracefulUnknownAnalyzer(t *testing.T) {
	cfg := inMemoryConfig()
	cfg.EventAnalyzer = "orthrus/detect.MLEventAnalyzer"

	c, err := BuildComponents(cfg, testSettings(config.StartupModeGraceful),
		newTestRegistry(t), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	assert.NotNil(t, c.Analyzer)
}

func TestBuildComponentsStrictUnknownObserver(t *testing.T) {
	cfg := inMemoryConfig()
	cfg.AttackStoreObservers = []string{"orthrus/storage.KafkaObserver"}

	_, err := BuildComponents(cfg, testSettings(config.StartupModeStrict),
		newTestRegistry(t), zaptest.NewLogger(t).Sugar())
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrUnknownImplementation)
	assert.Contains(t, err.Error(), "orthrus/storage.KafkaObserver")
}

func TestBuildComponentsGracefulSkipsUnknownObserver(t *testing.T) {
	cfg := inMemoryConfig()
	cfg.AttackStoreObservers = []string{"orthrus/storage.KafkaObserver", storage.ImplMetricsObserver}

	c, err := BuildComponents(cfg, testSettings(config.StartupModeGraceful),
		newTestRegistry(t), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	assert.NotNil(t, c.Attacks)
}
