package session

import (
	"math/rand"
	"testing"
	"time"

	"github.com/danmuck/motorctl/internal/testutil/testlog"
)

func TestBackoffJitterStaysInRange(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 1, MaxDelay: 100 * time.Millisecond, Jitter: true}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		got := NextBackoffDelay(cfg, 2, rng)
		if got < 50*time.Millisecond || got > 150*time.Millisecond {
			t.Fatalf("jittered delay %s outside [50ms,150ms]", got)
		}
	}
	if got := NextBackoffDelay(BackoffConfig{}, 3, rng); got != 0 {
		t.Fatalf("zero config delay = %s", got)
	}
}
