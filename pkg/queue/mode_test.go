package queue_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/storefront/pkg/queue"
)

func TestMode_DueAt(t *testing.T) {
	t.Parallel()

	now := epoch

	tests := []struct {
		name    string
		mode    queue.Mode
		want    time.Time
		wantErr bool
	}{
		{name: "immediate", mode: queue.Immediate(), want: now},
		{name: "delay", mode: queue.Delay(5 * time.Minute), want: now.Add(5 * time.Minute)},
		{name: "zero delay", mode: queue.Delay(0), want: now},
		{name: "at future", mode: queue.At(now.Add(10 * time.Minute)), want: now.Add(10 * time.Minute)},
		{name: "at past", mode: queue.At(now.Add(-time.Hour)), want: now.Add(-time.Hour)},
		{name: "negative delay", mode: queue.Delay(-time.Second), wantErr: true},
		{name: "zero at", mode: queue.At(time.Time{}), wantErr: true},
		{name: "unknown kind", mode: queue.Mode{Kind: "sometime"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.mode.DueAt(now)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, queue.ErrInvalidSchedule)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMode_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "immediate", queue.Immediate().String())
	assert.Equal(t, "delay(5s)", queue.Delay(5*time.Second).String())
	assert.Equal(t, "at(2024-01-01T12:00:00Z)", queue.At(epoch).String())
}
