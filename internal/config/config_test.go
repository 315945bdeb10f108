package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chickmaster/internal/metric"
)

func TestDefault_Valid(t *testing.T) {
	for name, b := range map[string]Balance{"default": Default(), "casual": Casual(), "hard": Hard()} {
		assert.NoError(t, b.Validate(), name)
	}
}

func TestBalance_Stage(t *testing.T) {
	b := Default()
	assert.Equal(t, "early", b.Stage(1))
	assert.Equal(t, "early", b.Stage(244))
	assert.Equal(t, "mid", b.Stage(245))
	assert.Equal(t, "mid", b.Stage(487))
	assert.Equal(t, "late", b.Stage(488))
}

func TestBalance_SeverityLevel(t *testing.T) {
	b := Default()
	assert.Equal(t, "high", b.SeverityLevel(0.7))
	assert.Equal(t, "medium", b.SeverityLevel(0.4))
	assert.Equal(t, "medium", b.SeverityLevel(0.69))
	assert.Equal(t, "low", b.SeverityLevel(0.39))
}

func TestBalance_ValidateRejectsBadThresholds(t *testing.T) {
	b := Default()
	b.MidGameThreshold = 100
	err := b.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))

	b = Default()
	b.Starting.Money = 2_000_000
	assert.ErrorIs(t, b.Validate(), ErrConfig)

	b = Default()
	b.Caps = map[string]float64{"mana": 10}
	assert.ErrorIs(t, b.Validate(), ErrConfig)
}

func TestBalance_MetricCapsOverride(t *testing.T) {
	b := Default()
	b.Caps = map[string]float64{"inventory": 500}
	caps := b.MetricCaps()
	assert.Equal(t, 500.0, caps.Of(metric.Inventory))
	assert.Equal(t, 1_000_000.0, caps.Of(metric.Money))
}

func TestSettings_Resolve(t *testing.T) {
	money := 15000.0
	day := 10
	s := Settings{Money: &money, CurrentDay: &day}

	got := s.Resolve(Default().Starting)
	assert.Equal(t, 15000.0, got.Money)
	assert.Equal(t, 10, got.Day)
	assert.Equal(t, 50.0, got.Reputation)
}

func TestSettingsFromMap(t *testing.T) {
	s, err := SettingsFromMap(map[string]any{"money": 2500, "Demand": 70.5, "current_day": 3})
	require.NoError(t, err)

	v, ok := s.Lookup(metric.Money)
	require.True(t, ok)
	assert.Equal(t, 2500.0, v)
	v, ok = s.Lookup(metric.Demand)
	require.True(t, ok)
	assert.Equal(t, 70.5, v)
	require.NotNil(t, s.CurrentDay)
	assert.Equal(t, 3, *s.CurrentDay)

	_, ok = s.Lookup(metric.Facility)
	assert.False(t, ok)
}

func TestSettingsFromMap_Rejects(t *testing.T) {
	_, err := SettingsFromMap(map[string]any{"gold": 1})
	assert.ErrorIs(t, err, ErrConfig)

	_, err = SettingsFromMap(map[string]any{"money": "lots"})
	assert.ErrorIs(t, err, ErrConfig)

	_, err = SettingsFromMap(map[string]any{"current_day": 1.5})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestSettings_CheckOutOfRange(t *testing.T) {
	rep := 150.0
	assert.ErrorIs(t, Settings{Reputation: &rep}.Check(Default()), ErrConfig)

	day := 0
	assert.ErrorIs(t, Settings{CurrentDay: &day}.Check(Default()), ErrConfig)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DIFFICULTY", "hard")
	t.Setenv("CHICK_MAX_CASCADE_DEPTH", "5")
	t.Setenv("CHICK_TIMEOUT_SECONDS", "0.25")
	t.Setenv("CHICK_EVENT_COOLDOWN_DAYS", "not-a-number")

	cfg := FromEnv()
	assert.Equal(t, 5, cfg.MaxCascadeDepth)
	assert.Equal(t, 0.25, cfg.TimeoutSeconds)
	assert.Equal(t, Hard().EventCooldownDays, cfg.EventCooldownDays)
	assert.Equal(t, Hard().Starting.Money, cfg.Starting.Money)
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chick.yml")
	body := `
difficulty: casual
seeded_rng:
  enabled: true
  seed: 42
balance:
  max_cascade_depth: 5
settings:
  money: 12000
content:
  events_dir: content/events
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1", cfg.Version)
	assert.True(t, cfg.SeededRNG.Enabled)
	assert.Equal(t, int64(42), cfg.SeededRNG.Seed)
	assert.Equal(t, 5, cfg.Balance.MaxCascadeDepth)
	assert.Equal(t, Casual().EventCooldownDays, cfg.Balance.EventCooldownDays)
	assert.Equal(t, 730, cfg.Balance.TotalGameDays)
	require.NotNil(t, cfg.Settings.Money)
	assert.Equal(t, 12000.0, *cfg.Settings.Money)
	assert.Equal(t, "content/events", cfg.Content.EventsDir)
}

func TestLoad_InvalidBalance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("balance:\n  max_retry_attempts: 0\n"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrConfig)
}
