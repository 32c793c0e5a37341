package workflow

import (
	"context"
	"testing"
	"time"

	"dubflow/internal/stage"
)

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		base, max time.Duration
		n         int
		want      time.Duration
	}{
		{0, time.Minute, 3, 0},
		{time.Second, 0, 1, time.Second},
		{time.Second, 0, 4, 8 * time.Second},
		{2 * time.Second, 30 * time.Second, 1, 2 * time.Second},
		{2 * time.Second, 30 * time.Second, 4, 16 * time.Second},
		{2 * time.Second, 30 * time.Second, 5, 30 * time.Second},
		{2 * time.Second, 30 * time.Second, 50, 30 * time.Second},
		{time.Minute, 30 * time.Second, 1, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := backoffDelay(tt.base, tt.max, tt.n); got != tt.want {
			t.Fatalf("backoffDelay(%v, %v, %d) = %v, want %v", tt.base, tt.max, tt.n, got, tt.want)
		}
	}
}

func TestSleepContextHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := sleepContext(context.Background(), 0); err != nil {
		t.Fatalf("zero delay should not fail, got %v", err)
	}
}

func TestStageLimitsUnboundedWithoutEntry(t *testing.T) {
	limits := newStageLimits(map[stage.Name]int{stage.NameSeparate: 0})
	release, err := limits.acquire(context.Background(), stage.NameSeparate)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	release()
}
