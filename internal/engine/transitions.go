package engine

import "slices"

// Transitions lists the status changes a command may make. Ended is reached
// only by the clock or by completing the catalog, never by a command; Reset
// leaves any status for NotStarted and is handled on its own.
var Transitions = map[Status][]Status{
	StatusNotStarted: {StatusRunning},
	StatusRunning:    {StatusPaused},
	StatusPaused:     {StatusRunning},
}

func canTransition(from, to Status) bool {
	return slices.Contains(Transitions[from], to)
}
