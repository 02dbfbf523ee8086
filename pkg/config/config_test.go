package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Nil(t, cfg.Timetable.Days)
	assert.Equal(t, 5*time.Minute, cfg.Timetable.CacheTTL)
	assert.Equal(t, time.Minute, cfg.Timetable.GenerationLockTTL)
	assert.Equal(t, 2, cfg.Notifications.Workers)
}

func TestLoadTimetableGridFromEnv(t *testing.T) {
	t.Setenv("TIMETABLE_DAYS", "Monday, Tuesday")
	t.Setenv("TIMETABLE_TIME_SLOTS", "08:00,09:00,")
	t.Setenv("TIMETABLE_CACHE_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"Monday", "Tuesday"}, cfg.Timetable.Days)
	assert.Equal(t, []string{"08:00", "09:00"}, cfg.Timetable.TimeSlots)
	assert.Equal(t, 5*time.Minute, cfg.Timetable.CacheTTL)
}
