// Package hub is the lobby registry: it mints join codes, owns every live
// lobby, and evicts lobbies nobody has polled for a while.
package hub

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/DoyleJ11/dexrush-backend/internal/catalog"
	"github.com/DoyleJ11/dexrush-backend/internal/engine"
	"github.com/DoyleJ11/dexrush-backend/internal/lobby"
	"go.uber.org/zap"
)

const (
	DefaultCodeLength = 6
	// CodeChars leaves out characters that are easy to misread (0/O, 1/I).
	CodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	maxCodeAttempts = 64
)

var (
	ErrNotFound       = engine.NewError(engine.ReasonNotFound, "lobby not found")
	ErrCodesExhausted = errors.New("could not find a free lobby code")
)

type Options struct {
	Catalog     *catalog.Catalog
	Duration    time.Duration
	MaxLog      int
	CodeLength  int
	IdleTimeout time.Duration
	Clock       engine.Clock
	Logger      *zap.Logger
}

type Hub struct {
	mu        sync.RWMutex
	lobbies   map[string]*lobby.Lobby
	validator *engine.Validator
	opts      Options
	log       *zap.Logger
}

func NewHub(opts Options) *Hub {
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.CodeLength <= 0 {
		opts.CodeLength = DefaultCodeLength
	}
	if opts.Clock == nil {
		opts.Clock = engine.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Hub{
		lobbies:   make(map[string]*lobby.Lobby),
		validator: engine.NewValidator(opts.Catalog),
		opts:      opts,
		log:       opts.Logger.Named("hub"),
	}
}

// NormalizeCode makes join codes case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func GenerateCode(length int) (string, error) {
	code := make([]byte, length)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(CodeChars))))
		if err != nil {
			return "", err
		}
		code[i] = CodeChars[num.Int64()]
	}
	return string(code), nil
}

// Create opens a lobby with host seated and a session that has not started.
func (h *Hub) Create(host string) (*lobby.Lobby, error) {
	if strings.TrimSpace(host) == "" {
		return nil, engine.ErrEmptyName
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	code, err := h.freeCodeLocked()
	if err != nil {
		return nil, err
	}

	session := engine.NewSession(h.validator, engine.Options{
		Duration: h.opts.Duration,
		MaxLog:   h.opts.MaxLog,
		Clock:    h.opts.Clock,
	})
	lb, err := lobby.NewLobby(code, host, session, h.opts.Clock.Now())
	if err != nil {
		return nil, err
	}
	h.lobbies[code] = lb

	h.log.Info("lobby created", zap.String("code", code), zap.String("host", lb.Host))
	return lb, nil
}

func (h *Hub) Join(code, name string) (*lobby.Lobby, engine.Player, error) {
	lb, err := h.Get(code)
	if err != nil {
		return nil, engine.Player{}, err
	}
	p, err := lb.Join(name)
	if err != nil {
		return nil, engine.Player{}, err
	}
	h.log.Info("player joined", zap.String("code", lb.Code), zap.String("player", p.Name))
	return lb, p, nil
}

// Get looks a lobby up and marks it as recently seen.
func (h *Hub) Get(code string) (*lobby.Lobby, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	lb, ok := h.lobbies[NormalizeCode(code)]
	if !ok {
		return nil, ErrNotFound
	}
	lb.Touch(h.opts.Clock.Now())
	return lb, nil
}

func (h *Hub) Remove(code string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	code = NormalizeCode(code)
	if _, ok := h.lobbies[code]; !ok {
		return false
	}
	delete(h.lobbies, code)
	return true
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.lobbies)
}

// Reap evicts lobbies idle for longer than the idle timeout and returns their
// codes. Lobbies whose session is busy are left for the next pass.
func (h *Hub) Reap() []string {
	if h.opts.IdleTimeout <= 0 {
		return nil
	}
	cutoff := h.opts.Clock.Now().Add(-h.opts.IdleTimeout)

	h.mu.Lock()
	defer h.mu.Unlock()

	var reaped []string
	for code, lb := range h.lobbies {
		if lb.Idle(cutoff) {
			delete(h.lobbies, code)
			reaped = append(reaped, code)
		}
	}
	if len(reaped) > 0 {
		h.log.Info("reaped idle lobbies", zap.Strings("codes", reaped), zap.Int("remaining", len(h.lobbies)))
	}
	return reaped
}

// Run reaps on a ticker until ctx is done. With no idle timeout it only waits.
func (h *Hub) Run(ctx context.Context) error {
	if h.opts.IdleTimeout <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(h.opts.IdleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.Reap()
		}
	}
}

// Close drops every lobby.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.log.Info("closing hub", zap.Int("lobbies", len(h.lobbies)))
	clear(h.lobbies)
}

func (h *Hub) freeCodeLocked() (string, error) {
	for range maxCodeAttempts {
		c, err := GenerateCode(h.opts.CodeLength)
		if err != nil {
			return "", err
		}
		if _, taken := h.lobbies[c]; !taken {
			return c, nil
		}
		h.log.Debug("collision on code, regenerating", zap.String("code", c))
	}
	return "", ErrCodesExhausted
}
