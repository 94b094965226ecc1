package engine

import "time"

const DefaultMaxLog = 500

type GuessEvent struct {
	ID        string    `json:"id"`
	Player    string    `json:"player"`
	Guess     string    `json:"guess"`
	Accepted  bool      `json:"accepted"`
	Reason    Reason    `json:"reason,omitempty"`
	Ranks     []int     `json:"ranks,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// EventLog is a fixed-capacity ring of guess events. Once full, each append
// overwrites the oldest entry. Not safe for concurrent use; Session guards it.
type EventLog struct {
	buf   []GuessEvent
	start int
	n     int
}

func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = DefaultMaxLog
	}
	return &EventLog{buf: make([]GuessEvent, capacity)}
}

func (l *EventLog) Append(e GuessEvent) {
	if l.n < len(l.buf) {
		l.buf[(l.start+l.n)%len(l.buf)] = e
		l.n++
		return
	}
	l.buf[l.start] = e
	l.start = (l.start + 1) % len(l.buf)
}

func (l *EventLog) Len() int { return l.n }

func (l *EventLog) Cap() int { return len(l.buf) }

// Newest copies up to limit events, most recent first. limit <= 0 means all.
func (l *EventLog) Newest(limit int) []GuessEvent {
	if limit <= 0 || limit > l.n {
		limit = l.n
	}
	out := make([]GuessEvent, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (l.start + l.n - 1 - i) % len(l.buf)
		out = append(out, l.buf[idx])
	}
	return out
}

func (l *EventLog) Reset() {
	clear(l.buf)
	l.start, l.n = 0, 0
}
