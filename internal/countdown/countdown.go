// Package countdown turns periodic server snapshots into a display value that
// ticks locally between polls without ever jumping back up.
//
// A Countdown remembers the last server reading (time left and when it was
// fetched) and a floor: the lowest value already shown during the current run.
// The floor is only lifted when the round is not running or the server's run
// counter has moved, i.e. the round was resumed or reset and started again
// since the last poll.
package countdown

import (
	"fmt"
	"time"

	"github.com/DoyleJ11/dexrush-backend/internal/engine"
)

type Countdown struct {
	Run       int
	TimeLeft  int
	FetchedAt time.Time
	Status    engine.Status
	Floor     int

	seeded bool
}

// Observe folds a fresh server reading in and returns the updated value.
func (c Countdown) Observe(run int, status engine.Status, timeLeft int, fetchedAt time.Time) Countdown {
	next := Countdown{
		Run:       run,
		TimeLeft:  timeLeft,
		FetchedAt: fetchedAt,
		Status:    status,
		Floor:     timeLeft,
		seeded:    true,
	}
	if c.seeded && c.Run == run && c.Status == engine.StatusRunning && status == engine.StatusRunning {
		next.Floor = min(c.Project(fetchedAt), timeLeft)
	}
	return next
}

// Project returns the whole seconds to display at now.
func (c Countdown) Project(now time.Time) int {
	switch c.Status {
	case engine.StatusEnded:
		return 0
	case engine.StatusRunning:
	default:
		return max(c.TimeLeft, 0)
	}

	elapsed := now.Sub(c.FetchedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	v := c.TimeLeft - int(elapsed/time.Second)
	return max(min(v, c.Floor), 0)
}

// Format renders seconds as m:ss.
func Format(seconds int) string {
	seconds = max(seconds, 0)
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
