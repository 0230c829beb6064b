package cronmanager

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJobs(t *testing.T) {
	var runs atomic.Int32
	cm := NewCronManager(JobRegistry{
		"blob_expire":    {Func: func() { runs.Add(1) }, Schedule: Every(time.Second)},
		"session_expire": {Func: func() {}, Schedule: "*/5 * * * *"},
	})

	require.NoError(t, cm.LoadJobs())
	assert.Equal(t, []string{"blob_expire", "session_expire"}, cm.Jobs())

	cm.Start()
	defer cm.Stop()

	next, ok := cm.Next("blob_expire")
	require.True(t, ok)
	assert.False(t, next.IsZero())

	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
}

func TestLoadJobsInvalid(t *testing.T) {
	cm := NewCronManager(JobRegistry{
		"broken":  {Func: func() {}, Schedule: "not a schedule"},
		"missing": {Schedule: Every(time.Minute)},
		"ok":      {Func: func() {}, Schedule: Every(time.Minute)},
	})

	err := cm.LoadJobs()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Contains(t, err.Error(), "missing")
	assert.Equal(t, []string{"ok"}, cm.Jobs())
}

func TestRemoveJob(t *testing.T) {
	cm := NewCronManager(JobRegistry{
		"a": {Func: func() {}, Schedule: Every(time.Minute)},
	})
	require.NoError(t, cm.LoadJobs())

	cm.RemoveJob("a")
	cm.RemoveJob("unknown")
	assert.Empty(t, cm.Jobs())

	_, ok := cm.Next("a")
	assert.False(t, ok)
}

func TestEvery(t *testing.T) {
	assert.Equal(t, "@every 1m0s", Every(time.Minute))
}
