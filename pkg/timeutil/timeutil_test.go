package timeutil

import (
	"math/rand"
	"testing"
	"time"
)

func TestComputeJitter(t *testing.T) {
	tests := []struct {
		name string
		max  time.Duration
		seed int64
	}{
		{name: "max=0 returns 0", max: 0, seed: 1},
		{name: "negative max returns 0", max: -100 * time.Millisecond, seed: 1},
		{name: "positive max returns value within range", max: time.Second, seed: 42},
		{name: "large max works correctly", max: 10 * time.Second, seed: 123},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeJitter(tt.max, rand.New(rand.NewSource(tt.seed)))
			if tt.max <= 0 {
				if got != 0 {
					t.Errorf("ComputeJitter() = %v, want 0", got)
				}
				return
			}
			if got < 0 || got > tt.max {
				t.Errorf("ComputeJitter() = %v, want between 0 and %v", got, tt.max)
			}
		})
	}
}

func TestComputeJitter_SameSeedIsDeterministic(t *testing.T) {
	a := ComputeJitter(time.Second, rand.New(rand.NewSource(7)))
	b := ComputeJitter(time.Second, rand.New(rand.NewSource(7)))
	if a != b {
		t.Errorf("expected identical jitter for identical seeds, got %v and %v", a, b)
	}
}

func TestExponentialBackoffDelay(t *testing.T) {
	param := NewBackoffParam(100*time.Millisecond, 2.0, time.Second)

	tests := []struct {
		name    string
		attempt int
		want    time.Duration
	}{
		{name: "first attempt uses initial duration", attempt: 1, want: 100 * time.Millisecond},
		{name: "second attempt doubles", attempt: 2, want: 200 * time.Millisecond},
		{name: "third attempt doubles again", attempt: 3, want: 400 * time.Millisecond},
		{name: "capped at max duration", attempt: 10, want: time.Second},
		{name: "non-positive attempt treated as first", attempt: 0, want: 100 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExponentialBackoffDelay(tt.attempt, 0, rand.New(rand.NewSource(1)), param)
			if got != tt.want {
				t.Errorf("ExponentialBackoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestExponentialBackoffDelay_AddsBoundedJitter(t *testing.T) {
	param := NewBackoffParam(100*time.Millisecond, 2.0, time.Second)
	jitter := 50 * time.Millisecond

	got := ExponentialBackoffDelay(1, jitter, rand.New(rand.NewSource(99)), param)
	if got < 100*time.Millisecond || got > 150*time.Millisecond {
		t.Errorf("expected delay within [100ms, 150ms], got %v", got)
	}
}
