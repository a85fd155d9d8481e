package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistration(t *testing.T) {
	// This is a basic test to ensure no panic on import
	// Since metrics are global, we can't easily test registration without mocking

	// Just assert that the variables are not nil
	assert.NotNil(t, ConfigReloads)
	assert.NotNil(t, ParseFailures)
	assert.NotNil(t, DetectionPoints)
	assert.NotNil(t, EventsAdded)
	assert.NotNil(t, AttacksDetected)
	assert.NotNil(t, ResponsesTriggered)
	assert.NotNil(t, EventsThrottled)
	assert.NotNil(t, EventProcessingDuration)
}
