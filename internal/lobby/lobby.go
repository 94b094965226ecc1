package lobby

import (
	"sync/atomic"
	"time"

	"github.com/DoyleJ11/dexrush-backend/internal/engine"
)

// View is the roster-level description of a lobby.
type View struct {
	Code      string          `json:"code"`
	Host      string          `json:"host"`
	CreatedAt time.Time       `json:"createdAt"`
	Players   []engine.Player `json:"players"`
}

// Lobby pairs a join code with the one session it owns. All game state,
// roster included, lives in the session and is guarded by its lock.
type Lobby struct {
	Code      string
	Host      string
	CreatedAt time.Time

	session  *engine.Session
	lastSeen atomic.Int64
}

// NewLobby seats host as the first player.
func NewLobby(code, host string, session *engine.Session, now time.Time) (*Lobby, error) {
	p, err := session.AddPlayer(host)
	if err != nil {
		return nil, err
	}
	l := &Lobby{
		Code:      code,
		Host:      p.Name,
		CreatedAt: now,
		session:   session,
	}
	l.Touch(now)
	return l, nil
}

func (l *Lobby) Session() *engine.Session { return l.session }

func (l *Lobby) Join(name string) (engine.Player, error) {
	return l.session.AddPlayer(name)
}

func (l *Lobby) Players() []engine.Player { return l.session.Players() }

// Touch records a successful lookup.
func (l *Lobby) Touch(now time.Time) { l.lastSeen.Store(now.UnixNano()) }

func (l *Lobby) LastSeen() time.Time { return time.Unix(0, l.lastSeen.Load()) }

// Idle reports whether the lobby has not been seen since cutoff and no
// operation is holding its session.
func (l *Lobby) Idle(cutoff time.Time) bool {
	return l.LastSeen().Before(cutoff) && l.session.Quiescent()
}

func (l *Lobby) View() View {
	return View{
		Code:      l.Code,
		Host:      l.Host,
		CreatedAt: l.CreatedAt,
		Players:   l.session.Players(),
	}
}
