// Package engine is the authoritative per-lobby game state machine: timer,
// roster, guessed species and the guess log.
//
// Every exported Session method takes the session lock for its full duration,
// so callers never coordinate locking themselves. Time is derived from the
// injected Clock on each call; nothing ticks in the background.
package engine

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultDuration = 15 * time.Minute

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusRunning    Status = "running"
	StatusPaused     Status = "paused"
	StatusEnded      Status = "ended"
)

type Player struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type GuessedSpecies struct {
	Rank    int    `json:"rank"`
	Species string `json:"species"`
	Player  string `json:"player"`
}

// Snapshot is a point-in-time copy of a session. It shares no memory with the
// session and is safe to serialize.
type Snapshot struct {
	Version      int              `json:"version"`
	Run          int              `json:"run"`
	Status       Status           `json:"status"`
	Duration     int              `json:"duration"`
	TimeLeft     int              `json:"timeLeft"`
	Total        int              `json:"total"`
	GuessedCount int              `json:"guessedCount"`
	Guessed      []GuessedSpecies `json:"guessed"`
	Log          []GuessEvent     `json:"log"`
	Players      []Player         `json:"players"`
}

type GuessResult struct {
	Accepted     bool        `json:"accepted"`
	Reason       Reason      `json:"reason,omitempty"`
	Ranks        []int       `json:"ranks,omitempty"`
	Normalized   string      `json:"normalized,omitempty"`
	TotalGuessed int         `json:"totalGuessed"`
	Remaining    int         `json:"remaining"`
	Complete     bool        `json:"complete"`
	Event        *GuessEvent `json:"event,omitempty"`
	Players      []Player    `json:"players,omitempty"`
}

type Options struct {
	Duration time.Duration
	MaxLog   int
	Clock    Clock
}

type Session struct {
	mu        sync.RWMutex
	clock     Clock
	validator *Validator
	duration  time.Duration

	started        bool
	startedAt      time.Time
	pausedAccum    time.Duration
	paused         bool
	pauseStartedAt time.Time
	completed      bool
	completedAt    time.Time

	guessed map[int]string
	players []Player
	index   map[string]int
	log     *EventLog
	version int
	// run counts starts, resumes and resets. A reader that sees it change
	// knows the countdown may have moved up.
	run int
}

func NewSession(v *Validator, opts Options) *Session {
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	return &Session{
		clock:     opts.Clock,
		validator: v,
		duration:  opts.Duration,
		guessed:   make(map[int]string),
		index:     make(map[string]int),
		log:       NewEventLog(opts.MaxLog),
	}
}

// AddPlayer appends name to the roster with a zero score.
func (s *Session) AddPlayer(name string) (Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Player{}, ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[name]; ok {
		return Player{}, ErrNameTaken
	}
	p := Player{Name: name}
	s.index[name] = len(s.players)
	s.players = append(s.players, p)
	s.version++
	return p, nil
}

func (s *Session) Players() []Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.players)
}

// Start begins the round or resumes it from a pause. Starting a running
// session is a no-op so duplicate client retries are harmless.
func (s *Session) Start() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	cur := s.statusLocked(now)
	switch {
	case cur == StatusEnded:
		return Snapshot{}, ErrGameOver
	case cur == StatusRunning:
		return s.snapshotLocked(now), nil
	case !canTransition(cur, StatusRunning):
		return Snapshot{}, ErrInvalidState
	}

	if cur == StatusPaused {
		s.pausedAccum += now.Sub(s.pauseStartedAt)
		s.paused = false
		s.pauseStartedAt = time.Time{}
	} else {
		s.started = true
		s.startedAt = now
	}
	s.run++
	s.version++
	return s.snapshotLocked(now), nil
}

func (s *Session) Pause() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	cur := s.statusLocked(now)
	if cur == StatusEnded {
		return Snapshot{}, ErrGameOver
	}
	if !canTransition(cur, StatusPaused) {
		return Snapshot{}, ErrInvalidState
	}

	s.paused = true
	s.pauseStartedAt = now
	s.version++
	return s.snapshotLocked(now), nil
}

// Reset starts a fresh round: timer, guesses and log are cleared and every
// score returns to zero. The roster is kept.
func (s *Session) Reset() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.started, s.startedAt = false, time.Time{}
	s.paused, s.pauseStartedAt = false, time.Time{}
	s.completed, s.completedAt = false, time.Time{}
	s.pausedAccum = 0
	clear(s.guessed)
	for i := range s.players {
		s.players[i].Score = 0
	}
	s.log.Reset()
	s.run++
	s.version++
	return s.snapshotLocked(s.clock.Now())
}

// SubmitGuess resolves one guess. Rejections are reported through the result,
// not the error; the error is non-nil only when player is not in the roster.
func (s *Session) SubmitGuess(player, raw string) (GuessResult, error) {
	player = strings.TrimSpace(player)

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.index[player]
	if !ok {
		return GuessResult{}, ErrUnknownPlayer
	}

	now := s.clock.Now()
	switch s.statusLocked(now) {
	case StatusNotStarted:
		return s.rejectLocked(now, player, raw, ReasonNotStarted), nil
	case StatusPaused:
		return s.rejectLocked(now, player, raw, ReasonPaused), nil
	case StatusEnded:
		return s.rejectLocked(now, player, raw, ReasonGameOver), nil
	}

	if strings.TrimSpace(raw) == "" {
		return s.resultLocked(GuessResult{Reason: ReasonEmpty}), nil
	}
	normalized, ranks := s.validator.Resolve(raw)
	if normalized == "" {
		return s.resultLocked(GuessResult{Reason: ReasonEmpty}), nil
	}
	if len(ranks) == 0 {
		return s.rejectLocked(now, player, raw, ReasonNotFound), nil
	}

	fresh := make([]int, 0, len(ranks))
	for _, rank := range ranks {
		if _, taken := s.guessed[rank]; !taken {
			fresh = append(fresh, rank)
		}
	}
	if len(fresh) == 0 {
		return s.rejectLocked(now, player, raw, ReasonDuplicate), nil
	}

	for _, rank := range fresh {
		s.guessed[rank] = player
	}
	s.players[idx].Score++
	if len(s.guessed) >= s.validator.Catalog().Len() {
		s.completed = true
		s.completedAt = now
	}

	ev := s.appendLocked(now, player, raw, true, "", fresh)
	res := s.resultLocked(GuessResult{
		Accepted:   true,
		Ranks:      fresh,
		Normalized: normalized,
		Event:      &ev,
		Players:    slices.Clone(s.players),
	})
	return res, nil
}

func (s *Session) TimeLeft() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeLeftLocked(s.clock.Now())
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusLocked(s.clock.Now())
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(s.clock.Now())
}

// Quiescent reports whether nobody holds the session lock right now.
func (s *Session) Quiescent() bool {
	if !s.mu.TryLock() {
		return false
	}
	s.mu.Unlock()
	return true
}

func (s *Session) rejectLocked(now time.Time, player, raw string, reason Reason) GuessResult {
	ev := s.appendLocked(now, player, raw, false, reason, nil)
	return s.resultLocked(GuessResult{Reason: reason, Event: &ev})
}

func (s *Session) resultLocked(res GuessResult) GuessResult {
	total := s.validator.Catalog().Len()
	res.TotalGuessed = len(s.guessed)
	res.Remaining = total - len(s.guessed)
	res.Complete = s.completed
	return res
}

func (s *Session) appendLocked(now time.Time, player, raw string, accepted bool, reason Reason, ranks []int) GuessEvent {
	ev := GuessEvent{
		ID:        uuid.NewString(),
		Player:    player,
		Guess:     raw,
		Accepted:  accepted,
		Reason:    reason,
		Ranks:     slices.Clone(ranks),
		Timestamp: now,
	}
	s.log.Append(ev)
	s.version++
	return ev
}

// elapsedLocked must only be called on a started session.
func (s *Session) elapsedLocked(now time.Time) time.Duration {
	end := now
	switch {
	case s.completed:
		end = s.completedAt
	case s.paused:
		end = s.pauseStartedAt
	}
	e := end.Sub(s.startedAt) - s.pausedAccum
	if e < 0 {
		return 0
	}
	return e
}

func (s *Session) statusLocked(now time.Time) Status {
	if !s.started {
		return StatusNotStarted
	}
	return DeriveStatus(s.started, s.paused, s.completed, s.elapsedLocked(now), s.duration)
}

func (s *Session) timeLeftLocked(now time.Time) int {
	if !s.started {
		return ceilSeconds(s.duration)
	}
	if s.completed {
		return 0
	}
	return ceilSeconds(s.duration - s.elapsedLocked(now))
}

func (s *Session) snapshotLocked(now time.Time) Snapshot {
	cat := s.validator.Catalog()
	guessed := make([]GuessedSpecies, 0, len(s.guessed))
	for rank, player := range s.guessed {
		sp, _ := cat.Species(rank)
		guessed = append(guessed, GuessedSpecies{Rank: rank, Species: sp.Name, Player: player})
	}
	slices.SortFunc(guessed, func(a, b GuessedSpecies) int { return a.Rank - b.Rank })

	return Snapshot{
		Version:      s.version,
		Run:          s.run,
		Status:       s.statusLocked(now),
		Duration:     ceilSeconds(s.duration),
		TimeLeft:     s.timeLeftLocked(now),
		Total:        cat.Len(),
		GuessedCount: len(s.guessed),
		Guessed:      guessed,
		Log:          s.log.Newest(0),
		Players:      append(make([]Player, 0, len(s.players)), s.players...),
	}
}
