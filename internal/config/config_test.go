package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	require.NotNil(t, cfg)

	assert.Same(t, cfg, Load())
	assert.Equal(t, 1.5, cfg.Engine.SafetyStockMultiplier)
	assert.Equal(t, 90, cfg.Engine.CadenceLookbackDays)
	assert.Equal(t, 30, cfg.Engine.TriggerLookbackDays)
	assert.Equal(t, 7, cfg.Engine.SuggestionValidityDays)
	assert.InDelta(t, 1.0, cfg.Engine.CostWeight+cfg.Engine.LeadTimeWeight+cfg.Engine.SLAWeight, 1e-9)
	assert.False(t, cfg.Engine.ManualReview())
	assert.Equal(t, "02:00", cfg.Schedule.NightlyAt)
	assert.Equal(t, "replenishment", cfg.Cache.KeyPrefix)
}

func TestScheduleHelpers(t *testing.T) {
	s := ScheduleConfig{TimeZone: "Not/AZone"}
	assert.Equal(t, time.UTC, s.Location())
	assert.Equal(t, time.Minute, s.TriggerPollInterval())

	s = ScheduleConfig{TimeZone: "Asia/Jakarta", TriggerPollSeconds: 5}
	assert.Equal(t, "Asia/Jakarta", s.Location().String())
	assert.Equal(t, 5*time.Second, s.TriggerPollInterval())
}

func TestManualReview(t *testing.T) {
	assert.True(t, EngineConfig{ReviewMode: " Manual "}.ManualReview())
	assert.False(t, EngineConfig{ReviewMode: "auto"}.ManualReview())
}
