package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/DoyleJ11/dexrush-backend/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestSession(t *testing.T, duration time.Duration, players ...string) (*Session, *ManualClock) {
	t.Helper()
	clock := NewManualClock(epoch)
	s := NewSession(NewValidator(catalog.Default()), Options{Duration: duration, Clock: clock})
	for _, p := range players {
		_, err := s.AddPlayer(p)
		require.NoError(t, err)
	}
	return s, clock
}

func scoreOf(t *testing.T, players []Player, name string) int {
	t.Helper()
	for _, p := range players {
		if p.Name == name {
			return p.Score
		}
	}
	t.Fatalf("player %q not in roster %+v", name, players)
	return 0
}

func TestStart_FromNotStarted(t *testing.T) {
	s, clock := newTestSession(t, 900*time.Second, "host")
	assert.Equal(t, StatusNotStarted, s.Status())
	assert.Equal(t, 900, s.TimeLeft())

	clock.Advance(30 * time.Second)
	assert.Equal(t, 900, s.TimeLeft(), "clock must not run before start")

	snap, err := s.Start()
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, snap.Status)
	assert.Equal(t, 900, snap.TimeLeft)
}

func TestStart_WhileRunningIsNoop(t *testing.T) {
	s, clock := newTestSession(t, 900*time.Second, "host")
	first, err := s.Start()
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	again, err := s.Start()
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, again.Status)
	assert.Equal(t, first.Version, again.Version)
	assert.Equal(t, 890, again.TimeLeft)
}

func TestPause_Transitions(t *testing.T) {
	cases := []struct {
		name    string
		setup   func(s *Session, c *ManualClock)
		wantErr error
	}{
		{
			name:    "not started",
			setup:   func(*Session, *ManualClock) {},
			wantErr: ErrInvalidState,
		},
		{
			name: "already paused",
			setup: func(s *Session, c *ManualClock) {
				_, _ = s.Start()
				_, _ = s.Pause()
			},
			wantErr: ErrInvalidState,
		},
		{
			name: "ended",
			setup: func(s *Session, c *ManualClock) {
				_, _ = s.Start()
				c.Advance(time.Hour)
			},
			wantErr: ErrGameOver,
		},
		{
			name: "running",
			setup: func(s *Session, c *ManualClock) {
				_, _ = s.Start()
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, clock := newTestSession(t, 900*time.Second, "host")
			tc.setup(s, clock)
			snap, err := s.Pause()
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, tc.wantErr.(*Error).Reason, ReasonOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusPaused, snap.Status)
		})
	}
}

func TestStart_AfterEndIsGameOver(t *testing.T) {
	s, clock := newTestSession(t, 60*time.Second, "host")
	_, err := s.Start()
	require.NoError(t, err)

	clock.Advance(61 * time.Second)
	assert.Equal(t, StatusEnded, s.Status())

	_, err = s.Start()
	assert.ErrorIs(t, err, ErrGameOver)
	assert.Equal(t, StatusEnded, s.Status(), "ended is terminal")
	assert.Equal(t, 0, s.TimeLeft())
}

func TestTimeLeft_RoundsUp(t *testing.T) {
	s, clock := newTestSession(t, 10*time.Second, "host")
	_, _ = s.Start()

	clock.Advance(9*time.Second + 100*time.Millisecond)
	assert.Equal(t, 1, s.TimeLeft(), "a fraction of a second left must still show 1")

	clock.Advance(900 * time.Millisecond)
	assert.Equal(t, 0, s.TimeLeft())
	assert.Equal(t, StatusEnded, s.Status())
}

func TestTimeLeft_BoundedAndMonotonic(t *testing.T) {
	s, clock := newTestSession(t, 120*time.Second, "host")
	_, _ = s.Start()

	prev := s.TimeLeft()
	for i := 0; i < 400; i++ {
		clock.Advance(450 * time.Millisecond)
		left := s.TimeLeft()
		require.GreaterOrEqual(t, left, 0)
		require.LessOrEqual(t, left, 120)
		require.LessOrEqual(t, left, prev, "step %d", i)
		prev = left
	}
	assert.Equal(t, 0, prev)
}

func TestPauseResume_PreservesTimeLeft(t *testing.T) {
	s, clock := newTestSession(t, 900*time.Second, "host")
	_, _ = s.Start()

	clock.Advance(100 * time.Second)
	paused, err := s.Pause()
	require.NoError(t, err)
	assert.Equal(t, 800, paused.TimeLeft)

	clock.Advance(50 * time.Second)
	assert.Equal(t, 800, s.TimeLeft(), "paused clock is frozen")

	resumed, err := s.Start()
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, resumed.Status)
	assert.Equal(t, 800, resumed.TimeLeft)

	clock.Advance(10 * time.Second)
	assert.Equal(t, 790, s.TimeLeft())
}

func TestScenario_DuplicateAcrossPlayersAndGameOver(t *testing.T) {
	s, clock := newTestSession(t, 900*time.Second, "host", "A", "B")
	_, err := s.Start()
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	res, err := s.SubmitGuess("A", "bulbasaur")
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assert.Equal(t, []int{1}, res.Ranks)
	assert.Equal(t, 1, scoreOf(t, res.Players, "A"))

	clock.Advance(1 * time.Second)
	res, err = s.SubmitGuess("B", "Bulbasaur")
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, ReasonDuplicate, res.Reason)
	require.NotNil(t, res.Event)
	assert.Equal(t, 0, scoreOf(t, s.Players(), "B"))

	clock.Advance(890 * time.Second) // t=901s
	res, err = s.SubmitGuess("B", "ivysaur")
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, ReasonGameOver, res.Reason)

	snap := s.Snapshot()
	assert.Equal(t, StatusEnded, snap.Status)
	assert.Equal(t, []GuessedSpecies{{Rank: 1, Species: "Bulbasaur", Player: "A"}}, snap.Guessed)
	require.Len(t, snap.Log, 3)
	assert.Equal(t, ReasonGameOver, snap.Log[0].Reason, "log is newest first")
	assert.True(t, snap.Log[2].Accepted)
}

func TestSubmitGuess_Rejections(t *testing.T) {
	cases := []struct {
		name    string
		setup   func(s *Session, c *ManualClock)
		guess   string
		want    Reason
		wantLog bool
	}{
		{name: "not started", setup: func(*Session, *ManualClock) {}, guess: "pikachu", want: ReasonNotStarted, wantLog: true},
		{
			name:    "paused",
			setup:   func(s *Session, _ *ManualClock) { _, _ = s.Start(); _, _ = s.Pause() },
			guess:   "pikachu",
			want:    ReasonPaused,
			wantLog: true,
		},
		{name: "empty", setup: func(s *Session, _ *ManualClock) { _, _ = s.Start() }, guess: "   ", want: ReasonEmpty},
		{name: "punctuation only", setup: func(s *Session, _ *ManualClock) { _, _ = s.Start() }, guess: "?!.", want: ReasonEmpty},
		{name: "not found", setup: func(s *Session, _ *ManualClock) { _, _ = s.Start() }, guess: "agumon", want: ReasonNotFound, wantLog: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, clock := newTestSession(t, 900*time.Second, "A")
			tc.setup(s, clock)

			res, err := s.SubmitGuess("A", tc.guess)
			require.NoError(t, err)
			assert.False(t, res.Accepted)
			assert.Equal(t, tc.want, res.Reason)
			assert.Equal(t, 0, scoreOf(t, s.Players(), "A"))

			snap := s.Snapshot()
			assert.Empty(t, snap.Guessed)
			if tc.wantLog {
				require.NotNil(t, res.Event)
				assert.True(t, containsReason(snap.Log, tc.want))
			} else {
				assert.Nil(t, res.Event)
				assert.Empty(t, snap.Log)
			}
		})
	}
}

func TestSubmitGuess_UnknownPlayer(t *testing.T) {
	s, _ := newTestSession(t, 900*time.Second, "A")
	_, _ = s.Start()

	_, err := s.SubmitGuess("mallory", "pikachu")
	require.ErrorIs(t, err, ErrUnknownPlayer)
	assert.Equal(t, ReasonNotFound, ReasonOf(err))
	assert.Empty(t, s.Snapshot().Log)
}

func TestSubmitGuess_SameSpeciesTwiceBySamePlayer(t *testing.T) {
	s, _ := newTestSession(t, 900*time.Second, "A")
	_, _ = s.Start()

	first, _ := s.SubmitGuess("A", "Mr. Mime")
	second, _ := s.SubmitGuess("A", "mrmime")
	assert.True(t, first.Accepted)
	assert.Equal(t, ReasonDuplicate, second.Reason)
	assert.Equal(t, 1, scoreOf(t, s.Players(), "A"))
}

func TestSubmitGuess_SharedTokenCreditsAllRanksOnce(t *testing.T) {
	s, _ := newTestSession(t, 900*time.Second, "A")
	_, _ = s.Start()

	res, err := s.SubmitGuess("A", "Nidoran")
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assert.Equal(t, []int{29, 32}, res.Ranks)
	assert.Equal(t, 1, scoreOf(t, res.Players, "A"))
	assert.Equal(t, 2, res.TotalGuessed)
	assert.Equal(t, 149, res.Remaining)
}

func TestSubmitGuess_CompletionEndsSession(t *testing.T) {
	cat, err := catalog.New([]string{"Bulbasaur", "Ivysaur"})
	require.NoError(t, err)
	clock := NewManualClock(epoch)
	s := NewSession(NewValidator(cat), Options{Duration: time.Minute, Clock: clock})
	_, _ = s.AddPlayer("A")
	_, _ = s.Start()

	res, _ := s.SubmitGuess("A", "bulbasaur")
	assert.False(t, res.Complete)
	clock.Advance(5 * time.Second)
	res, _ = s.SubmitGuess("A", "ivysaur")
	assert.True(t, res.Accepted)
	assert.True(t, res.Complete)
	assert.Equal(t, 0, res.Remaining)

	assert.Equal(t, StatusEnded, s.Status())
	assert.Equal(t, 0, s.TimeLeft())
	res, _ = s.SubmitGuess("A", "bulbasaur")
	assert.Equal(t, ReasonGameOver, res.Reason)
	_, err = s.Start()
	assert.ErrorIs(t, err, ErrGameOver)
}

func TestConcurrentSameSpecies_ExactlyOneAccepted(t *testing.T) {
	const players = 16
	names := make([]string, players)
	for i := range names {
		names[i] = string(rune('a'+i)) + "-player"
	}
	s, _ := newTestSession(t, 900*time.Second, names...)
	_, _ = s.Start()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		reasons = map[Reason]int{}
		winners []string
	)
	start := make(chan struct{})
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			<-start
			res, err := s.SubmitGuess(name, "Pikachu")
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			if res.Accepted {
				winners = append(winners, name)
				return
			}
			reasons[res.Reason]++
		}(name)
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, players-1, reasons[ReasonDuplicate])

	total := 0
	for _, p := range s.Players() {
		total += p.Score
	}
	assert.Equal(t, 1, total)

	accepted := 0
	for _, ev := range s.Snapshot().Log {
		if ev.Accepted {
			accepted++
			assert.Equal(t, winners[0], ev.Player)
		}
	}
	assert.Equal(t, 1, accepted)
}

func TestConcurrentReadsDuringWrites(t *testing.T) {
	s, clock := newTestSession(t, 900*time.Second, "A", "B")
	_, _ = s.Start()

	var wg sync.WaitGroup
	for _, name := range []string{"A", "B"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			for _, sp := range catalog.Default().All() {
				_, _ = s.SubmitGuess(name, sp.Name)
			}
		}(name)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			snap := s.Snapshot()
			score := 0
			for _, p := range snap.Players {
				score += p.Score
			}
			// One accepted guess per non-shared token, so the scores can never
			// exceed the number of guessed ranks.
			assert.LessOrEqual(t, score, snap.GuessedCount)
			clock.Advance(time.Millisecond)
		}
	}()
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, snap.Total, snap.GuessedCount)
	assert.Equal(t, StatusEnded, snap.Status)
}

func TestReset_ClearsRoundKeepsRoster(t *testing.T) {
	s, clock := newTestSession(t, 60*time.Second, "A", "B")
	_, _ = s.Start()
	_, _ = s.SubmitGuess("A", "mew")
	clock.Advance(2 * time.Minute)
	require.Equal(t, StatusEnded, s.Status())

	snap := s.Reset()
	assert.Equal(t, StatusNotStarted, snap.Status)
	assert.Equal(t, 60, snap.TimeLeft)
	assert.Empty(t, snap.Guessed)
	assert.Empty(t, snap.Log)
	assert.Equal(t, []Player{{Name: "A"}, {Name: "B"}}, snap.Players)

	_, err := s.Start()
	require.NoError(t, err)
	res, _ := s.SubmitGuess("B", "mew")
	assert.True(t, res.Accepted)
}

func TestAddPlayer(t *testing.T) {
	s, _ := newTestSession(t, time.Minute, "host")

	_, err := s.AddPlayer("host")
	assert.ErrorIs(t, err, ErrNameTaken)
	_, err = s.AddPlayer("  ")
	assert.ErrorIs(t, err, ErrEmptyName)

	p, err := s.AddPlayer("  guest ")
	require.NoError(t, err)
	assert.Equal(t, Player{Name: "guest"}, p)
	assert.Equal(t, []Player{{Name: "host"}, {Name: "guest"}}, s.Players())
}

func TestSnapshot_DoesNotMutate(t *testing.T) {
	s, clock := newTestSession(t, time.Minute, "A")
	_, _ = s.Start()
	before := s.Snapshot()
	clock.Advance(time.Second)
	_ = s.Snapshot()
	after := s.Snapshot()
	assert.Equal(t, before.Version, after.Version)

	after.Players[0].Score = 99
	assert.Equal(t, 0, s.Players()[0].Score)
}

func TestQuiescent(t *testing.T) {
	s, _ := newTestSession(t, time.Minute)
	assert.True(t, s.Quiescent())

	s.mu.Lock()
	assert.False(t, s.Quiescent())
	s.mu.Unlock()
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name                       string
		started, paused, completed bool
		elapsed                    time.Duration
		want                       Status
	}{
		{name: "fresh", want: StatusNotStarted},
		{name: "running", started: true, elapsed: time.Second, want: StatusRunning},
		{name: "paused", started: true, paused: true, elapsed: time.Second, want: StatusPaused},
		{name: "time up", started: true, elapsed: time.Minute, want: StatusEnded},
		{name: "completed", started: true, completed: true, elapsed: time.Second, want: StatusEnded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveStatus(tc.started, tc.paused, tc.completed, tc.elapsed, time.Minute)
			assert.Equal(t, tc.want, got)
		})
	}
}

func containsReason(events []GuessEvent, reason Reason) bool {
	for _, event := range events {
		if event.Reason == reason {
			return true
		}
	}
	return false
}

func TestRun_ChangesOnStartResumeAndReset(t *testing.T) {
	s, clock := newTestSession(t, 900*time.Second, "A")
	assert.Equal(t, 0, s.Snapshot().Run)

	snap, err := s.Start()
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Run)

	snap, err = s.Start()
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Run, "start while running is a no-op")

	clock.Advance(10 * time.Second)
	snap, err = s.Pause()
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Run)

	snap, err = s.Start()
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Run)

	_, _ = s.SubmitGuess("A", "mew")
	assert.Equal(t, 2, s.Snapshot().Run)

	snap = s.Reset()
	assert.Equal(t, 3, snap.Run)
	snap, err = s.Start()
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Run)
}
