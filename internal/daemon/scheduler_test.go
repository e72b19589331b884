package daemon

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/autobuild/internal/config"
)

func TestDefinition(t *testing.T) {
	tests := []struct {
		name    string
		sc      config.ScheduleConfig
		expr    string
		wantErr bool
	}{
		{name: "cron", sc: config.ScheduleConfig{Cron: "0 2 * * *"}, expr: "0 2 * * *"},
		{name: "interval", sc: config.ScheduleConfig{Interval: "15m"}, expr: "every 15m0s"},
		{name: "cron wins", sc: config.ScheduleConfig{Cron: "*/5 * * * *", Interval: "1h"}, expr: "*/5 * * * *"},
		{name: "bad interval", sc: config.ScheduleConfig{Interval: "soon"}, wantErr: true},
		{name: "negative interval", sc: config.ScheduleConfig{Interval: "-1m"}, wantErr: true},
		{name: "empty", sc: config.ScheduleConfig{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, expr, err := definition(tt.sc)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, def)
			assert.Equal(t, tt.expr, expr)
		})
	}
}

func TestSchedulerRunsAndReplacesJob(t *testing.T) {
	s, err := NewScheduler()
	require.NoError(t, err)

	_, err = s.NextRun()
	require.Error(t, err)

	var first, second atomic.Int32
	require.NoError(t, s.Schedule(config.ScheduleConfig{Interval: "30ms"}, func() { first.Add(1) }))
	s.Start()
	t.Cleanup(func() { _ = s.Stop() })

	require.Eventually(t, func() bool { return first.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Schedule(config.ScheduleConfig{Interval: "30ms"}, func() { second.Add(1) }))
	require.Eventually(t, func() bool { return second.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)

	next, err := s.NextRun()
	require.NoError(t, err)
	assert.False(t, next.IsZero())
	assert.Len(t, s.scheduler.Jobs(), 1)
}
