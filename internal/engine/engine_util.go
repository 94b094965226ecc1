package engine

import "time"

// DeriveStatus computes the externally visible status. Ended wins over
// Paused, although a paused session cannot reach its duration because elapsed
// time is frozen.
func DeriveStatus(started, paused, completed bool, elapsed, duration time.Duration) Status {
	switch {
	case !started:
		return StatusNotStarted
	case completed || elapsed >= duration:
		return StatusEnded
	case paused:
		return StatusPaused
	default:
		return StatusRunning
	}
}

// ceilSeconds rounds up so a countdown never reads 0 while time remains.
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
