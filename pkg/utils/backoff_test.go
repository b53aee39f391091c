package utils

import (
	"testing"
	"time"
)

func TestConstantBackoff(t *testing.T) {
	cb := NewConstantBackoff(100 * time.Millisecond)

	for attempt := 0; attempt < 5; attempt++ {
		if got := cb.NextDelay(attempt); got != 100*time.Millisecond {
			t.Errorf("attempt %d: got %v, want 100ms", attempt, got)
		}
	}
}

func TestLinearBackoff(t *testing.T) {
	lb := NewLinearBackoff(50*time.Millisecond, 200*time.Millisecond)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 50 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 150 * time.Millisecond},
		{3, 200 * time.Millisecond},
		{10, 200 * time.Millisecond}, // capped at max
	}

	for _, tt := range tests {
		if got := lb.NextDelay(tt.attempt); got != tt.want {
			t.Errorf("attempt %d: got %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialBackoff(t *testing.T) {
	eb := NewExponentialBackoff(10*time.Millisecond, 1*time.Second, 2.0)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 10 * time.Millisecond},
		{1, 20 * time.Millisecond},
		{2, 40 * time.Millisecond},
		{3, 80 * time.Millisecond},
		{10, 1 * time.Second}, // capped at max
	}

	for _, tt := range tests {
		if got := eb.NextDelay(tt.attempt); got != tt.want {
			t.Errorf("attempt %d: got %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialBackoffDefaultMultiplier(t *testing.T) {
	eb := NewExponentialBackoff(10*time.Millisecond, 1*time.Second, 0)
	if eb.Multiplier != 2.0 {
		t.Fatalf("expected default multiplier 2.0, got %f", eb.Multiplier)
	}
}

func TestBackoffFromConfig(t *testing.T) {
	tests := []struct {
		backoffType string
		attempt     int
		want        time.Duration
	}{
		{"constant", 3, 100 * time.Millisecond},
		{"linear", 1, 200 * time.Millisecond},
		{"exponential", 2, 400 * time.Millisecond},
		{"unknown", 0, 100 * time.Millisecond}, // defaults to exponential
	}

	for _, tt := range tests {
		strategy := BackoffFromConfig(tt.backoffType, 100, 5000)
		if got := strategy.NextDelay(tt.attempt); got != tt.want {
			t.Errorf("%s attempt %d: got %v, want %v", tt.backoffType, tt.attempt, got, tt.want)
		}
	}
}
