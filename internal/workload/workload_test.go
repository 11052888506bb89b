package workload

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/throttler/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.WorkloadConfig
		wantErr bool
	}{
		{"spin", config.WorkloadConfig{Type: config.WorkloadSpin, Duration: config.Duration(time.Microsecond)}, false},
		{"sleep", config.WorkloadConfig{Type: config.WorkloadSleep, Duration: config.Duration(time.Microsecond)}, false},
		{"fail", config.WorkloadConfig{Type: config.WorkloadFail, Duration: config.Duration(time.Microsecond), FailEvery: 2}, false},
		{"fail without interval", config.WorkloadConfig{Type: config.WorkloadFail, Duration: config.Duration(time.Microsecond)}, true},
		{"zero duration", config.WorkloadConfig{Type: config.WorkloadSpin}, true},
		{"unknown", config.WorkloadConfig{Type: "juggle", Duration: config.Duration(time.Microsecond)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			work, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, work)
		})
	}
}

func TestSpin_TakesAtLeastDuration(t *testing.T) {
	start := time.Now()
	require.NoError(t, Spin(2*time.Millisecond)())
	assert.GreaterOrEqual(t, time.Since(start), 2*time.Millisecond)
}

func TestSleep_TakesAtLeastDuration(t *testing.T) {
	start := time.Now()
	require.NoError(t, Sleep(2*time.Millisecond)())
	assert.GreaterOrEqual(t, time.Since(start), 2*time.Millisecond)
}

func TestFailEvery(t *testing.T) {
	runs := 0
	work := FailEvery(3, func() error {
		runs++
		return nil
	})

	var failures int
	for i := 0; i < 9; i++ {
		if err := work(); err != nil {
			assert.True(t, errors.Is(err, ErrSyntheticFailure))
			failures++
		}
	}

	assert.Equal(t, 3, failures)
	assert.Equal(t, 6, runs)
}
