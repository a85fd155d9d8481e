package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalAsDuration(t *testing.T) {
	tests := []struct {
		name     string
		interval Interval
		want     time.Duration
	}{
		{"seconds", Interval{Duration: 60, Unit: UnitSeconds}, 60 * time.Second},
		{"minutes", Interval{Duration: 10, Unit: UnitMinutes}, 10 * time.Minute},
		{"hours", Interval{Duration: 2, Unit: UnitHours}, 2 * time.Hour},
		{"days", Interval{Duration: 1, Unit: UnitDays}, 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.interval.AsDuration()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntervalAsDurationErrors(t *testing.T) {
	tests := []struct {
		name     string
		interval Interval
	}{
		{"unknown unit", Interval{Duration: 5, Unit: "fortnights"}},
		{"empty unit", Interval{Duration: 5, Unit: ""}},
		{"zero duration", Interval{Duration: 0, Unit: UnitSeconds}},
		{"negative duration", Interval{Duration: -3, Unit: UnitMinutes}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.interval.AsDuration()
			assert.Error(t, err)
		})
	}
}

func TestIntervalString(t *testing.T) {
	assert.Equal(t, "60 seconds", Interval{Duration: 60, Unit: UnitSeconds}.String())
	assert.Equal(t, "10 minutes", Interval{Duration: 10, Unit: UnitMinutes}.String())
}

func TestCorrelationSetContains(t *testing.T) {
	set := CorrelationSet{ClientApplications: []string{"storefront", "checkout"}}

	assert.True(t, set.Contains("storefront"))
	assert.True(t, set.Contains("checkout"))
	assert.False(t, set.Contains("billing"))
	assert.False(t, CorrelationSet{}.Contains("storefront"))
}
